package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightforge/reflexagent/internal/convo"
)

func TestBuildOllamaMessages_ToolCallsAndResults(t *testing.T) {
	messages := []convo.Message{
		convo.UserText("hi"),
		{
			Role: convo.RoleAssistant,
			Content: []convo.Block{
				convo.ToolUseBlock("call-1", "lookup", map[string]any{"q": "test"}),
			},
		},
		{
			Role:    convo.RoleUser,
			Content: []convo.Block{convo.ToolResultBlock("call-1", "ok", false)},
		},
	}

	msgs := buildOllamaMessages("sys", messages)
	require.Len(t, msgs, 4)

	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "sys", msgs[0].Content)

	require.Equal(t, "assistant", msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "lookup", msgs[2].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"q":"test"}`, string(msgs[2].ToolCalls[0].Function.Arguments))

	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "ok", msgs[3].Content)
}

func TestBuildOllamaMessages_NoSystem(t *testing.T) {
	msgs := buildOllamaMessages("", []convo.Message{convo.UserText("hi")})
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestParseTextToolCalls_FencedJSON(t *testing.T) {
	text := "Sure, let me do that.\n```json\n{\"tool\": \"read_file\", \"input\": {\"path\": \"a.go\"}}\n```\n"
	calls := parseTextToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.Equal(t, "a.go", calls[0].Input["path"])
}

func TestParseTextToolCalls_BareJSON(t *testing.T) {
	calls := parseTextToolCalls(`{"tool": "search_code", "input": {"query": "TODO"}}`)
	require.Len(t, calls, 1)
	assert.Equal(t, "search_code", calls[0].Name)
}

func TestParseTextToolCalls_NoMatch(t *testing.T) {
	calls := parseTextToolCalls("just plain prose, no tool call here")
	assert.Empty(t, calls)
}
