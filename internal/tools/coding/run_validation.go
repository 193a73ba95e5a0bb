package coding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/validation"
)

// RunValidationTool implements run_validation (spec.md §4.3/§6): runs the
// repository's own test/lint/build ladder through validation.Runner and
// returns a structured report. The Agent Loop itself (not this handler)
// decides pass/fail by scanning the returned content for "passed",
// "success", or "skipped" (spec.md §4.6's context-update rule) — this
// handler's job is only to surface the Runner's Summary in that content.
type RunValidationTool struct {
	cfg Config
}

func NewRunValidationTool(cfg Config) *RunValidationTool { return &RunValidationTool{cfg: cfg} }

func (t *RunValidationTool) Name() string { return "run_validation" }

func (t *RunValidationTool) Description() string {
	return "Run the repository's validation ladder (syntax, lint, build, tests) against the working copy."
}

func (t *RunValidationTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tiers": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Specific tiers to run (default: the runner's own default ladder).",
			},
			"branch": map[string]any{
				"type":        "string",
				"description": "Branch being validated (for reporting only).",
			},
		},
	})
}

func (t *RunValidationTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Tiers  []string `json:"tiers"`
		Branch string   `json:"branch"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	if t.cfg.Validator == nil {
		return toolError("validation runner unavailable"), nil
	}

	report, err := t.cfg.Validator.Run(ctx, validation.Task{
		RepoPath: t.cfg.WorkingDir,
		Branch:   input.Branch,
		Tiers:    input.Tiers,
	})
	if err != nil {
		return toolError(fmt.Sprintf("run validation: %v", err)), nil
	}

	var tierLines []string
	for _, tier := range report.Tiers {
		tierLines = append(tierLines, fmt.Sprintf("%s: %s", tier.Tier, tier.Status))
	}

	summary := report.Summary
	if summary == "" {
		summary = fmt.Sprintf("validation %s", report.Status)
	}

	return toolOK(map[string]any{
		"status":     report.Status,
		"summary":    summary,
		"details":    report.Details,
		"tiers":      tierLines,
		"duration_s": report.Duration.Seconds(),
		"content":    strings.TrimSpace(summary + "\n" + report.Details),
	}), nil
}
