package coding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/vcs"
)

// ModifyFileTool implements modify_file (spec.md §4.3): a single-file edit
// against the task's working copy, applied atomically through
// vcs.Workspace.BatchModify so a failed write never leaves a partial edit
// on disk. Per I-T1, any successful call here resets validation_performed/
// validation_passed (TaskContext.ApplyToolEffect handles that once it
// sees this tool's file_path metadata).
type ModifyFileTool struct {
	cfg Config
}

func NewModifyFileTool(cfg Config) *ModifyFileTool { return &ModifyFileTool{cfg: cfg} }

func (t *ModifyFileTool) Name() string { return "modify_file" }

func (t *ModifyFileTool) Description() string {
	return "Write or delete a single file in the task's working copy."
}

func (t *ModifyFileTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file, relative to the repository root.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "New file contents. Ignored if delete is true.",
			},
			"delete": map[string]any{
				"type":        "boolean",
				"description": "Delete the file instead of writing it (default: false).",
			},
		},
		"required": []string{"path"},
	})
}

func (t *ModifyFileTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Delete  bool   `json:"delete"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return toolError("path is required"), nil
	}
	if t.cfg.Workspace == nil {
		return toolError("workspace unavailable"), nil
	}

	edit := vcs.FileEdit{Path: path, Content: []byte(input.Content), Delete: input.Delete}
	if err := t.cfg.Workspace.BatchModify(ctx, t.cfg.WorkingDir, []vcs.FileEdit{edit}); err != nil {
		return toolError(fmt.Sprintf("apply edit: %v", err)), nil
	}

	return toolOK(map[string]any{
		"file_path": path,
		"deleted":   input.Delete,
	}), nil
}
