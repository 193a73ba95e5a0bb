package coding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
)

// CreatePlanTool implements create_plan: a side-effect-free tool the
// model uses to record its intended approach before touching any files.
// It has no external collaborator — the plan becomes part of the
// conversation history as an ordinary tool_result.
//
// Grounded on original_source/src/tarsis/tools/task_tools.py's
// CreatePlanHandler (plan text, files_to_modify, estimated_complexity).
type CreatePlanTool struct{}

func NewCreatePlanTool() *CreatePlanTool { return &CreatePlanTool{} }

func (t *CreatePlanTool) Name() string { return "create_plan" }

func (t *CreatePlanTool) Description() string {
	return "Record a step-by-step implementation plan before making changes: what will change, which files, and how complex the work is."
}

func (t *CreatePlanTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plan": map[string]any{
				"type":        "string",
				"description": "The implementation plan in Markdown, with numbered steps.",
			},
			"files_to_modify": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Files expected to change.",
			},
			"estimated_complexity": map[string]any{
				"type":        "string",
				"enum":        []string{"low", "medium", "high"},
				"description": "Rough complexity estimate.",
			},
		},
		"required": []string{"plan"},
	})
}

func (t *CreatePlanTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Plan                 string   `json:"plan"`
		FilesToModify        []string `json:"files_to_modify"`
		EstimatedComplexity  string   `json:"estimated_complexity"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Plan) == "" {
		return toolError("plan is required"), nil
	}
	complexity := input.EstimatedComplexity
	if complexity == "" {
		complexity = "medium"
	}

	return toolOK(map[string]any{
		"plan":                  input.Plan,
		"files_to_modify":       input.FilesToModify,
		"estimated_complexity":  complexity,
	}), nil
}
