package coding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
)

// CreatePullRequestTool implements create_pull_request (spec.md §4.3/§6).
type CreatePullRequestTool struct {
	cfg Config
}

func NewCreatePullRequestTool(cfg Config) *CreatePullRequestTool {
	return &CreatePullRequestTool{cfg: cfg}
}

func (t *CreatePullRequestTool) Name() string { return "create_pull_request" }

func (t *CreatePullRequestTool) Description() string {
	return "Open a pull request from a head branch into a base branch."
}

func (t *CreatePullRequestTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "description": "Pull request title."},
			"body":  map[string]any{"type": "string", "description": "Pull request description."},
			"head":  map[string]any{"type": "string", "description": "Branch containing the changes."},
			"base": map[string]any{
				"type":        "string",
				"description": "Branch to merge into (default: the repository's default branch).",
			},
		},
		"required": []string{"title", "head"},
	})
}

func (t *CreatePullRequestTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Head  string `json:"head"`
		Base  string `json:"base"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	title := strings.TrimSpace(input.Title)
	head := strings.TrimSpace(input.Head)
	if title == "" {
		return toolError("title is required"), nil
	}
	if head == "" {
		return toolError("head is required"), nil
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

	pr, err := t.cfg.Tracker.CreatePullRequest(ctx, t.cfg.Repo, head, base, title, input.Body)
	if err != nil {
		return toolError(fmt.Sprintf("create pull request: %v", err)), nil
	}

	return toolOK(map[string]any{
		"pr_url": pr.HTMLURL,
		"number": pr.Number,
		"state":  pr.State,
	}), nil
}
