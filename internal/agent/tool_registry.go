package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompletionName is the reserved tool name the Agent Loop intercepts
// rather than dispatching through the registry (spec.md §4.3, #4): the
// loop inspects its arguments directly to decide whether to end the task.
// It is still registered, so its schema is advertised to the LLM.
const CompletionName = "attempt_completion"

// ToolRegistry manages available tools with thread-safe registration and
// lookup (C3). Tools are registered by name; Dispatch runs one by name
// against raw JSON-Schema-shaped parameters.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry by its name, replacing any
// existing tool registered under the same name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool from the registry by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name and whether it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

const (
	// MaxToolNameLength bounds a tool name before a registry lookup.
	MaxToolNameLength = 256

	// MaxToolParamsSize bounds a tool call's JSON parameters (10MB).
	MaxToolParamsSize = 10 << 20
)

// Dispatch runs a tool by name with the given JSON parameters (spec.md
// §4.3): an unknown tool, an oversized name/params, or a direct call to
// the reserved completion name returns a structured ToolResult{IsError:
// true} rather than a Go error — only a panic recovered inside Execute,
// or a context cancellation, surfaces as an error return, so the Agent
// Loop's per-call error handling has one shape to deal with for ordinary
// tool failures (#3: "an execution failure is caught and re-raised as a
// structured ToolResult, never left to propagate as a panic").
func (r *ToolRegistry) Dispatch(ctx context.Context, name string, params json.RawMessage) (result *ToolResult, err error) {
	if len(name) > MaxToolNameLength {
		return &ToolResult{
			Content: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength),
			IsError: true,
		}, nil
	}
	if len(params) > MaxToolParamsSize {
		return &ToolResult{
			Content: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize),
			IsError: true,
		}, nil
	}
	if name == CompletionName {
		return &ToolResult{
			Content: "attempt_completion is handled by the agent loop and is never dispatched directly",
			IsError: true,
		}, nil
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &ToolResult{Content: "tool not found: " + name, IsError: true}, nil
	}

	if schema := tool.Schema(); len(schema) > 0 {
		if verr := validateAgainstSchema(name, schema, params); verr != nil {
			return &ToolResult{Content: verr.Error(), IsError: true}, nil
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = &ToolResult{Content: fmt.Sprintf("tool %q panicked: %v", name, rec), IsError: true}
			err = nil
		}
	}()

	res, execErr := tool.Execute(ctx, params)
	if execErr != nil {
		return &ToolResult{Content: fmt.Sprintf("tool %q failed: %v", name, execErr), IsError: true}, nil
	}
	if res == nil {
		return &ToolResult{Content: fmt.Sprintf("tool %q returned no result", name), IsError: true}, nil
	}
	return res, nil
}

// schemaCache compiles each tool's JSON Schema once and reuses it across
// calls, the same pattern the pluginsdk's manifest-config validator uses.
var schemaCache sync.Map

// validateAgainstSchema checks raw tool-call params against a tool's
// declared JSON Schema before Execute ever runs, so a malformed call from
// the LLM surfaces as a ToolResult error the model can read and correct
// rather than a panic or a handler-specific type assertion failure.
func validateAgainstSchema(toolName string, schema, params json.RawMessage) error {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	compiled, err := compileToolSchema(toolName, schema)
	if err != nil {
		return fmt.Errorf("tool %q has an invalid schema: %w", toolName, err)
	}

	var decoded any
	if err := json.Unmarshal(params, &decoded); err != nil {
		return fmt.Errorf("tool %q received malformed JSON parameters: %w", toolName, err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("tool %q parameters failed schema validation: %w", toolName, err)
	}
	return nil
}

func compileToolSchema(toolName string, schema json.RawMessage) (*jsonschema.Schema, error) {
	key := toolName + ":" + string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString(toolName+".schema.json", string(schema))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// AsLLMTools returns all registered tools (including attempt_completion)
// for schema exposure to the LLM provider.
func (r *ToolRegistry) AsLLMTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}
