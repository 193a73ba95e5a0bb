package agent

import (
	"context"
	"encoding/json"

	"github.com/brightforge/reflexagent/internal/convo"
)

// LLMProvider defines the interface for Large Language Model backends
// (C5). Implementations handle the specifics of one of the three wire
// dialects (spec.md §4.5) while presenting this unified streaming
// interface to the Agent Loop.
//
// Implementations must be safe for concurrent use.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []Model

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for an LLM completion request.
type CompletionRequest struct {
	// Model specifies which LLM model to use. If empty, the provider's
	// default model is used.
	Model string `json:"model"`

	// System is the system prompt, built by the Prompt Builder (C9).
	System string `json:"system,omitempty"`

	// Messages is the conversation history in chronological order.
	Messages []convo.Message `json:"messages"`

	// Tools defines the tools the LLM may request to call. If empty, no
	// tool calling is available.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens limits the maximum length of the generated response. If 0
	// or negative, the provider's default is used.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature overrides the provider's default sampling temperature.
	// Used by the reflection manager's reflect-mode calls (spec.md §4.2).
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionChunk is a single chunk in a streaming LLM response.
type CompletionChunk struct {
	// Text contains partial response text (streamed incrementally).
	Text string `json:"text,omitempty"`

	// ToolUse contains a complete tool-call block once the provider has
	// finished assembling one.
	ToolUse *convo.Block `json:"tool_use,omitempty"`

	// Done is true when the stream has completed successfully.
	Done bool `json:"done,omitempty"`

	// Error contains any error that occurred (streaming is terminated).
	Error error `json:"-"`

	// InputTokens/OutputTokens are populated on the final chunk only.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Model describes an available LLM model and its capabilities.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContextSize int    `json:"context_size"`
}

// Tool defines the interface for an executable agent tool (C3).
type Tool interface {
	// Name returns the tool name for LLM function calling. Must be a
	// valid function name (alphanumeric, underscores).
	Name() string

	// Description returns a natural language description of what the
	// tool does.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON parameters, matching
	// Schema(). Returns the tool output or an error.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult contains the output from a tool execution. Errors are
// communicated via IsError=true rather than a non-nil error from
// Execute, so the LLM sees the failure and can react to it (spec.md §7).
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}
