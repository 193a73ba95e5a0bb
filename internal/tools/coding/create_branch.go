package coding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
)

// CreateBranchTool implements create_branch (spec.md §4.3/§6): creates a
// branch server-side via the tracker (idempotent if the branch already
// points at the requested base), then checks it out in the local working
// copy so subsequent file tools operate against it.
type CreateBranchTool struct {
	cfg Config
}

func NewCreateBranchTool(cfg Config) *CreateBranchTool { return &CreateBranchTool{cfg: cfg} }

func (t *CreateBranchTool) Name() string { return "create_branch" }

func (t *CreateBranchTool) Description() string {
	return "Create (or reuse) a branch from the repository's default branch and check it out locally."
}

func (t *CreateBranchTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Branch name to create.",
			},
			"base": map[string]any{
				"type":        "string",
				"description": "Branch to fork from (default: the repository's default branch).",
			},
		},
		"required": []string{"name"},
	})
}

func (t *CreateBranchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Name string `json:"name"`
		Base string `json:"base"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return toolError("name is required"), nil
	}
	if t.cfg.Tracker == nil {
		return toolError("tracker client unavailable"), nil
	}

	base := strings.TrimSpace(input.Base)
	if base == "" {
		var err error
		base, err = t.cfg.Tracker.GetDefaultBranch(ctx, t.cfg.Repo)
		if err != nil {
			return toolError(fmt.Sprintf("resolve default branch: %v", err)), nil
		}
	}

	baseSHA, err := t.cfg.Tracker.GetBranchSHA(ctx, t.cfg.Repo, base)
	if err != nil {
		return toolError(fmt.Sprintf("resolve base branch sha: %v", err)), nil
	}

	// Reusing an existing branch that already points at the base commit is
	// idempotent (spec.md §6); only attempt creation if it doesn't exist yet.
	if existingSHA, shaErr := t.cfg.Tracker.GetBranchSHA(ctx, t.cfg.Repo, name); shaErr == nil && existingSHA != "" {
		if existingSHA != baseSHA {
			if err := t.cfg.Tracker.UpdateBranch(ctx, t.cfg.Repo, name, baseSHA, false); err != nil {
				return toolError(fmt.Sprintf("reset existing branch: %v", err)), nil
			}
		}
	} else if err := t.cfg.Tracker.CreateBranch(ctx, t.cfg.Repo, name, baseSHA); err != nil {
		return toolError(fmt.Sprintf("create branch: %v", err)), nil
	}

	if t.cfg.Workspace != nil && t.cfg.WorkingDir != "" {
		if err := t.cfg.Workspace.Checkout(ctx, t.cfg.WorkingDir, name, base); err != nil {
			return toolError(fmt.Sprintf("checkout branch locally: %v", err)), nil
		}
	}

	return toolOK(map[string]any{
		"branch_name": name,
		"base":        base,
		"base_sha":    baseSHA,
	}), nil
}
