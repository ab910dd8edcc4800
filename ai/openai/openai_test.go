package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/ragd/ai"
	"github.com/stretchr/testify/assert"
)

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt("What is the capital of France?", []string{
		"Paris is the capital of France.",
		"France is in Western Europe.",
	})

	assert.Contains(t, prompt, "[1] <<<\nParis is the capital of France.\n>>>")
	assert.Contains(t, prompt, "[2] <<<\nFrance is in Western Europe.\n>>>")
	assert.Contains(t, prompt, "Question: What is the capital of France?")
}

func TestBuildUserPromptEmptyContext(t *testing.T) {
	prompt := buildUserPrompt("Anything?", nil)

	assert.Contains(t, prompt, "no relevant passages were found")
	assert.Contains(t, prompt, "Question: Anything?")
	assert.NotContains(t, prompt, "[1]")
}

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
		rejected    bool
	}{
		{"rate limited", errors.New("API returned unexpected status code: 429"), true, false},
		{"server error", errors.New("API returned unexpected status code: 503"), true, false},
		{"bad request", errors.New("API returned unexpected status code: 400"), false, true},
		{"unauthorized", errors.New("API returned unexpected status code: 401"), false, true},
		{"missing model", errors.New("API returned unexpected status code: 404 model not found"), false, true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), true, false},
		{"deadline", context.DeadlineExceeded, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyProviderError(tt.err)
			assert.Equal(t, tt.unavailable, ai.IsUnavailable(classified))
			assert.Equal(t, tt.rejected, ai.IsRejected(classified))
		})
	}
}

func TestClassifyProviderErrorPassesCancellation(t *testing.T) {
	classified := classifyProviderError(context.Canceled)
	assert.ErrorIs(t, classified, context.Canceled)
	assert.False(t, ai.IsUnavailable(classified))
	assert.False(t, ai.IsRejected(classified))
}

func TestClassifyProviderErrorNil(t *testing.T) {
	assert.NoError(t, classifyProviderError(nil))
}

func TestStatusCodeFromError(t *testing.T) {
	status, ok := statusCodeFromError(errors.New("request failed, status code: 502, retry later"))
	assert.True(t, ok)
	assert.Equal(t, 502, status)

	_, ok = statusCodeFromError(errors.New("no code here"))
	assert.False(t, ok)
}
