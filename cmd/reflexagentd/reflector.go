package main

import (
	"context"
	"strings"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/convo"
)

// providerReflector adapts an agent.LLMProvider's streaming Complete into
// reflection.Reflector's synchronous call shape: accumulate Text chunks
// until the stream reports Done or Error, grounded on loop.go's
// runIteration chunk-collection loop (range over the stream, accumulate
// chunk.Text, bail out on chunk.Error).
type providerReflector struct {
	provider agent.LLMProvider
	model    string
}

func (r *providerReflector) Reflect(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	stream, err := r.provider.Complete(ctx, &agent.CompletionRequest{
		Model:       r.model,
		System:      systemPrompt,
		Messages:    []convo.Message{convo.UserText(userPrompt)},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
		}
	}
	return text.String(), nil
}
