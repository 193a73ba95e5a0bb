package coding

import "github.com/brightforge/reflexagent/internal/agent"

// RegisterAll registers every concrete tool handler this package provides
// against registry, using cfg's collaborators. Called once per task run
// by cmd/reflexagentd after the working copy has been cloned.
func RegisterAll(registry *agent.ToolRegistry, cfg Config) {
	registry.Register(NewReadFileTool(cfg))
	registry.Register(NewSearchCodeTool(cfg))
	registry.Register(NewCreateBranchTool(cfg))
	registry.Register(NewModifyFileTool(cfg))
	registry.Register(NewCommitChangesTool(cfg))
	registry.Register(NewRunValidationTool(cfg))
	registry.Register(NewCreatePullRequestTool(cfg))
	registry.Register(NewCreatePlanTool())
	registry.Register(NewPostCommentTool(cfg))
	registry.Register(NewAttemptCompletionTool())
}
