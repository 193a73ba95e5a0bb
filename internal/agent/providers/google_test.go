package providers

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/convo"
)

func TestNewGoogleProvider(t *testing.T) {
	t.Run("missing API key", func(t *testing.T) {
		p, err := NewGoogleProvider(GoogleConfig{})
		assert.Error(t, err)
		assert.Nil(t, p)
	})

	t.Run("valid config with defaults", func(t *testing.T) {
		p, err := NewGoogleProvider(GoogleConfig{APIKey: "test-key"})
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "google", p.Name())
		assert.True(t, p.SupportsTools())
		assert.NotEmpty(t, p.Models())
		assert.Equal(t, "gemini-2.0-flash", p.getModel(""))
	})

	t.Run("explicit overrides respected", func(t *testing.T) {
		p, err := NewGoogleProvider(GoogleConfig{
			APIKey:       "test-key",
			MaxRetries:   5,
			RetryDelay:   2 * time.Second,
			DefaultModel: "gemini-1.5-pro",
		})
		require.NoError(t, err)
		assert.Equal(t, "gemini-1.5-pro", p.getModel(""))
		assert.Equal(t, "gemini-2.5-pro", p.getModel("gemini-2.5-pro"))
	})
}

func TestGoogleProvider_ConvertMessages(t *testing.T) {
	p, err := NewGoogleProvider(GoogleConfig{APIKey: "k"})
	require.NoError(t, err)

	messages := []convo.Message{
		convo.UserText("hello"),
		{
			Role: convo.RoleAssistant,
			Content: []convo.Block{
				convo.ToolUseBlock("call-1", "read_file", map[string]any{"path": "a.go"}),
			},
		},
		{
			Role:    convo.RoleUser,
			Content: []convo.Block{convo.ToolResultBlock("call-1", `{"content":"ok"}`, false)},
		},
	}

	contents, err := p.convertMessages(messages)
	require.NoError(t, err)
	require.Len(t, contents, 3)
}

func TestGoogleProvider_ConvertMessages_ToolResultFallback(t *testing.T) {
	p, err := NewGoogleProvider(GoogleConfig{APIKey: "k"})
	require.NoError(t, err)

	messages := []convo.Message{
		{
			Role:    convo.RoleAssistant,
			Content: []convo.Block{convo.ToolUseBlock("call-1", "run_validation", nil)},
		},
		{
			Role:    convo.RoleUser,
			Content: []convo.Block{convo.ToolResultBlock("call-1", "not json", true)},
		},
	}

	contents, err := p.convertMessages(messages)
	require.NoError(t, err)
	require.Len(t, contents, 2)
	part := contents[1].Parts[0]
	require.NotNil(t, part.FunctionResponse)
	assert.Equal(t, "run_validation", part.FunctionResponse.Name)
	assert.Equal(t, "not json", part.FunctionResponse.Response["result"])
	assert.Equal(t, true, part.FunctionResponse.Response["error"])
}

func TestGoogleProvider_IsRetryableError(t *testing.T) {
	p, err := NewGoogleProvider(GoogleConfig{APIKey: "k"})
	require.NoError(t, err)

	cases := []struct {
		err       error
		retryable bool
	}{
		{errors.New("429 resource exhausted"), true},
		{errors.New("503 service unavailable"), true},
		{errors.New("deadline exceeded"), true},
		{errors.New("connection refused"), true},
		{errors.New("invalid argument"), false},
		{nil, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.retryable, p.isRetryableError(c.err), "err=%v", c.err)
	}
}

func TestGoogleProvider_BuildConfig(t *testing.T) {
	p, err := NewGoogleProvider(GoogleConfig{APIKey: "k"})
	require.NoError(t, err)

	req := &agent.CompletionRequest{System: "be helpful", MaxTokens: 512}
	config := p.buildConfig(req)
	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, int32(512), config.MaxOutputTokens)
}

func TestGoogleProvider_CountTokens(t *testing.T) {
	p, err := NewGoogleProvider(GoogleConfig{APIKey: "k"})
	require.NoError(t, err)

	req := &agent.CompletionRequest{
		System:   strings.Repeat("x", 40),
		Messages: []convo.Message{convo.UserText(strings.Repeat("y", 40))},
	}
	assert.Greater(t, p.CountTokens(req), 0)
}
