// Package providers contains LLM provider implementations.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/agent/toolconv"
	"github.com/brightforge/reflexagent/internal/convo"
	openai "github.com/sashabaranov/go-openai"
)

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration

	// UseStructuredOutput enables grammar-based native tool_calls. Default
	// false: some local models crash their grammar parser on complex
	// schemas, so the safer default is the prompt-based fallback (spec.md
	// §4.5, Dialect C).
	UseStructuredOutput bool
}

// OllamaProvider implements agent.LLMProvider against a local
// OpenAI/Ollama-compatible server (spec.md §4.5, Dialect C). It supports
// native grammar-based tool_calls and a prompt-based fallback that
// instructs the model to emit a single `{"tool": ..., "input": ...}` JSON
// object, extracted from the response text.
type OllamaProvider struct {
	client       *http.Client
	baseURL      string
	defaultModel string
	structured   bool
}

var _ agent.LLMProvider = (*OllamaProvider)(nil)

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaProvider{
		client:       &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
		structured:   cfg.UseStructuredOutput,
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

// Models returns available models (default only when configured).
func (p *OllamaProvider) Models() []agent.Model {
	if p.defaultModel == "" {
		return nil
	}
	return []agent.Model{{ID: p.defaultModel, Name: p.defaultModel}}
}

func (p *OllamaProvider) SupportsTools() bool { return true }

// Complete sends a chat request to Ollama's /api/chat. When tools are
// present and structured output is disabled, a deterministic tool-calling
// section is appended to the system prompt and the response text is
// scanned for a JSON tool call (spec.md §4.5, Dialect C). A structured
// request whose server error mentions "grammar" or "unexpected empty" is
// retried once in prompt-based mode (a known local-parser bug).
func (p *OllamaProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}
	if model == "" {
		return nil, NewProviderError("ollama", req.Model, errors.New("model is required"))
	}

	useStructured := p.structured && len(req.Tools) > 0

	resp, err := p.send(ctx, model, req, useStructured)
	if useStructured && err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "grammar") || strings.Contains(msg, "unexpected empty") {
			resp, err = p.send(ctx, model, req, false)
			useStructured = false
		}
	}
	if err != nil {
		return nil, NewProviderError("ollama", model, err)
	}

	chunks := make(chan *agent.CompletionChunk, 4)
	go p.emit(resp, useStructured, chunks)
	return chunks, nil
}

func (p *OllamaProvider) send(ctx context.Context, model string, req *agent.CompletionRequest, useStructured bool) (*ollamaChatResponse, error) {
	system := req.System
	if len(req.Tools) > 0 && !useStructured {
		system = system + toolsToPrompt(req.Tools)
	}

	payload := ollamaChatRequest{
		Model:    model,
		Stream:   false,
		Messages: buildOllamaMessages(system, req.Messages),
		Options:  map[string]any{},
	}
	if req.Temperature > 0 {
		payload.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload.Options["num_predict"] = req.MaxTokens
	}
	if useStructured {
		payload.Tools = toolconv.ToOpenAITools(req.Tools)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("ollama status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var resp ollamaChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return &resp, nil
}

func (p *OllamaProvider) emit(resp *ollamaChatResponse, useStructured bool, out chan<- *agent.CompletionChunk) {
	defer close(out)

	content := ""
	if resp.Message != nil {
		content = resp.Message.Content
	}

	if resp.Message != nil && len(resp.Message.ToolCalls) > 0 {
		if content != "" {
			out <- &agent.CompletionChunk{Text: content}
		}
		for _, tc := range resp.Message.ToolCalls {
			var args map[string]any
			if len(tc.Function.Arguments) > 0 {
				_ = json.Unmarshal(tc.Function.Arguments, &args)
			}
			id := strings.TrimSpace(tc.ID)
			if id == "" {
				id = "tool_0"
			}
			block := convo.ToolUseBlock(id, strings.TrimSpace(tc.Function.Name), args)
			out <- &agent.CompletionChunk{ToolUse: &block}
		}
	} else if content != "" {
		if calls := parseTextToolCalls(content); len(calls) > 0 {
			for i, c := range calls {
				block := convo.ToolUseBlock(fmt.Sprintf("tool_%d", i), c.Name, c.Input)
				out <- &agent.CompletionChunk{ToolUse: &block}
			}
		} else {
			out <- &agent.CompletionChunk{Text: content}
		}
	}

	out <- &agent.CompletionChunk{
		Done:         true,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []openai.Tool       `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaChatResponse struct {
	Message         *ollamaChatMessage `json:"message"`
	Done            bool               `json:"done"`
	Error           string             `json:"error"`
	EvalCount       int                `json:"eval_count"`
	PromptEvalCount int                `json:"prompt_eval_count"`
}

type ollamaToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// buildOllamaMessages flattens the canonical Conversation into Ollama's
// role/content shape: a tool_use block renders as an assistant-authored
// tool_calls entry, a tool_result block collapses into a plain "tool"
// message, matching Ollama's simpler (non-block) message format.
func buildOllamaMessages(system string, messages []convo.Message) []ollamaChatMessage {
	out := make([]ollamaChatMessage, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, ollamaChatMessage{Role: "system", Content: system})
	}

	for _, msg := range messages {
		role := "user"
		if msg.Role == convo.RoleAssistant {
			role = "assistant"
		}

		var text strings.Builder
		var toolCalls []ollamaToolCall
		var toolResults []ollamaChatMessage

		for _, b := range msg.Content {
			switch b.Kind {
			case convo.KindText:
				text.WriteString(b.Text)
			case convo.KindToolUse:
				args, _ := json.Marshal(b.ToolInput)
				toolCalls = append(toolCalls, ollamaToolCall{
					ID:   b.ToolUseID,
					Type: "function",
					Function: ollamaToolFunction{
						Name:      b.ToolName,
						Arguments: args,
					},
				})
			case convo.KindToolResult:
				toolResults = append(toolResults, ollamaChatMessage{Role: "tool", Content: b.Text})
			}
		}

		if text.Len() > 0 || len(toolCalls) > 0 {
			out = append(out, ollamaChatMessage{Role: role, Content: text.String(), ToolCalls: toolCalls})
		}
		out = append(out, toolResults...)
	}

	return out
}

// toolsToPrompt renders the deterministic tool-calling preamble appended
// to the system prompt in prompt-based mode (spec.md §4.5, Dialect C).
func toolsToPrompt(tools []agent.Tool) string {
	var b strings.Builder
	b.WriteString("\n\nTOOL CALLING INSTRUCTIONS\n\n")
	b.WriteString("You have access to tools. To call one, output a single JSON object ")
	b.WriteString("(optionally inside a ```json code block) in this exact shape:\n\n")
	b.WriteString(`{"tool": "tool_name", "input": {"param1": "value1"}}` + "\n\n")
	b.WriteString("Call one tool at a time and wait for its result before calling another. ")
	b.WriteString("Output only the JSON, nothing else.\n\nAVAILABLE TOOLS\n\n")

	for _, tool := range tools {
		fmt.Fprintf(&b, "## %s\n%s\n\n", tool.Name(), tool.Description())

		var schema struct {
			Properties map[string]struct {
				Type        string `json:"type"`
				Description string `json:"description"`
				Enum        []any  `json:"enum"`
			} `json:"properties"`
			Required []string `json:"required"`
		}
		if json.Unmarshal(tool.Schema(), &schema) != nil || len(schema.Properties) == 0 {
			b.WriteString("No parameters required.\n\n")
			continue
		}

		required := map[string]bool{}
		for _, r := range schema.Required {
			required[r] = true
		}
		for name, prop := range schema.Properties {
			marker := "optional"
			if required[name] {
				marker = "required"
			}
			fmt.Fprintf(&b, "- %s (%s) [%s]: %s\n", name, prop.Type, marker, prop.Description)
			if len(prop.Enum) > 0 {
				fmt.Fprintf(&b, "  allowed values: %v\n", prop.Enum)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

type textToolCall struct {
	Name  string
	Input map[string]any
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*?\\})\\s*\\n?```")

// parseTextToolCalls extracts `{"tool": ..., "input": ...}` objects from
// free-form text (spec.md §4.5, Dialect C): first scanning fenced code
// blocks, then falling back to a balanced-brace scan over the raw text.
// Neither strategy matching is not an error — the text is returned as
// plain assistant output by the caller.
func parseTextToolCalls(text string) []textToolCall {
	var calls []textToolCall

	for _, m := range fencedJSONPattern.FindAllStringSubmatch(text, -1) {
		if call, ok := decodeToolCallJSON(m[1]); ok {
			calls = append(calls, call)
		}
	}
	if len(calls) > 0 {
		return calls
	}

	depth := 0
	start := -1
	for i, r := range text {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				if call, ok := decodeToolCallJSON(text[start : i+1]); ok {
					calls = append(calls, call)
				}
				start = -1
			}
		}
	}
	return calls
}

func decodeToolCallJSON(s string) (textToolCall, bool) {
	var payload struct {
		Tool  string         `json:"tool"`
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &payload); err != nil || payload.Tool == "" {
		return textToolCall{}, false
	}
	if payload.Input == nil {
		payload.Input = map[string]any{}
	}
	return textToolCall{Name: payload.Tool, Input: payload.Input}, true
}
