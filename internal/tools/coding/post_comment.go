package coding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
)

// PostCommentTool implements post_comment (spec.md §4.3/§6). The prompt's
// RULES section prohibits using this tool to narrate progress mid-task
// (completion is reported through attempt_completion instead); this
// handler doesn't enforce that, it's a prompt-level constraint.
type PostCommentTool struct {
	cfg Config
}

func NewPostCommentTool(cfg Config) *PostCommentTool { return &PostCommentTool{cfg: cfg} }

func (t *PostCommentTool) Name() string { return "post_comment" }

func (t *PostCommentTool) Description() string {
	return "Post a comment on the issue being worked."
}

func (t *PostCommentTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"body": map[string]any{"type": "string", "description": "Comment body."},
		},
		"required": []string{"body"},
	})
}

func (t *PostCommentTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return toolError("body is required"), nil
	}
	if t.cfg.Tracker == nil {
		return toolError("tracker client unavailable"), nil
	}

	comment, err := t.cfg.Tracker.PostComment(ctx, t.cfg.Repo, t.cfg.Issue, body)
	if err != nil {
		return toolError(fmt.Sprintf("post comment: %v", err)), nil
	}

	return toolOK(map[string]any{
		"comment_id": comment.ID,
		"posted_at":  comment.CreatedAt,
	}), nil
}
