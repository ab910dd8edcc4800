// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragd/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client llms.Model
	retry  *ai.RetryConfig
	logger *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config, retry *ai.RetryConfig) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.APIToken),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		retry:  retry,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new answer generator using the provided
// configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config, ai.DefaultRetryConfig())
}

// GenerateAnswer answers the query from the given context passages,
// retrying transient failures with exponential backoff. A non-empty model
// overrides the configured generation model for this request.
func (g *Generator) GenerateAnswer(ctx context.Context, query string, contexts []string, model string) (string, error) {
	g.logger.Debug("generating answer", "context_passages", len(contexts), "model_override", model)

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(generationSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildUserPrompt(query, contexts))},
		},
	}

	opts := []llms.CallOption{llms.WithTemperature(0.0)}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	var response *llms.ContentResponse
	err := ai.Retry(ctx, g.retry, g.logger, func() error {
		result, err := g.client.GenerateContent(ctx, content, opts...)
		if err != nil {
			return classifyProviderError(err)
		}
		response = result
		return nil
	})
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", ai.ErrProviderUnavailable)
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}
