package coding

import (
	"context"
	"encoding/json"

	"github.com/brightforge/reflexagent/internal/agent"
)

// AttemptCompletionTool exists only so its schema is advertised to the
// LLM (spec.md §4.3, #4). ToolRegistry.Dispatch refuses to route calls
// to agent.CompletionName directly — the Agent Loop intercepts and
// handles every attempt_completion call itself (internal/agent/loop.go's
// handleCompletion) before the registry is ever consulted. Execute here
// is unreachable in normal operation.
type AttemptCompletionTool struct{}

func NewAttemptCompletionTool() *AttemptCompletionTool { return &AttemptCompletionTool{} }

func (t *AttemptCompletionTool) Name() string { return agent.CompletionName }

func (t *AttemptCompletionTool) Description() string {
	return "Signal that the task is complete and report the result. This ends the task; use it only once the work is done and validated."
}

func (t *AttemptCompletionTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": map[string]any{
				"type":        "string",
				"description": "A summary of what was accomplished.",
			},
		},
		"required": []string{"result"},
	})
}

func (t *AttemptCompletionTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{
		Content: "attempt_completion is handled by the agent loop and is never dispatched directly",
		IsError: true,
	}, nil
}
