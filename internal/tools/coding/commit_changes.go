package coding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/vcs"
)

// CommitChangesTool implements commit_changes (spec.md §4.3): applies a
// batch of edits atomically and pushes the result, for the common case of
// several related files landing together (as opposed to modify_file's
// one-file-at-a-time edits). Like modify_file, a successful call resets
// validation_performed/validation_passed (I-T1).
type CommitChangesTool struct {
	cfg Config
}

func NewCommitChangesTool(cfg Config) *CommitChangesTool { return &CommitChangesTool{cfg: cfg} }

func (t *CommitChangesTool) Name() string { return "commit_changes" }

func (t *CommitChangesTool) Description() string {
	return "Apply a batch of file edits atomically and push the branch."
}

func (t *CommitChangesTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"files": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":    map[string]any{"type": "string"},
						"content": map[string]any{"type": "string"},
						"delete":  map[string]any{"type": "boolean"},
					},
					"required": []string{"path"},
				},
				"description": "Files to write or delete in this commit.",
			},
			"branch": map[string]any{
				"type":        "string",
				"description": "Branch to push (must already be checked out locally).",
			},
			"force": map[string]any{
				"type":        "boolean",
				"description": "Force-push even if the remote has diverged (default: false).",
			},
		},
		"required": []string{"files", "branch"},
	})
}

func (t *CommitChangesTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Files []struct {
			Path    string `json:"path"`
			Content string `json:"content"`
			Delete  bool   `json:"delete"`
		} `json:"files"`
		Branch string `json:"branch"`
		Force  bool   `json:"force"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if len(input.Files) == 0 {
		return toolError("files is required"), nil
	}
	branch := strings.TrimSpace(input.Branch)
	if branch == "" {
		return toolError("branch is required"), nil
	}
	if t.cfg.Workspace == nil {
		return toolError("workspace unavailable"), nil
	}

	edits := make([]vcs.FileEdit, 0, len(input.Files))
	paths := make([]string, 0, len(input.Files))
	for _, f := range input.Files {
		path := strings.TrimSpace(f.Path)
		if path == "" {
			return toolError("each file requires a path"), nil
		}
		edits = append(edits, vcs.FileEdit{Path: path, Content: []byte(f.Content), Delete: f.Delete})
		paths = append(paths, path)
	}

	if err := t.cfg.Workspace.BatchModify(ctx, t.cfg.WorkingDir, edits); err != nil {
		return toolError(fmt.Sprintf("apply edits: %v", err)), nil
	}
	if err := t.cfg.Workspace.SafePush(ctx, t.cfg.WorkingDir, branch, input.Force); err != nil {
		return toolError(fmt.Sprintf("push branch: %v", err)), nil
	}

	return toolOK(map[string]any{
		"files":  paths,
		"branch": branch,
		"pushed": true,
	}), nil
}
