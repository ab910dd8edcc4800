package openai

import (
	"log/slog"

	"github.com/poiesic/ragd/ai"
)

// Provider implements ai.Provider using OpenAI-compatible services.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

// NewProvider creates an AI provider backed by OpenAI-compatible services.
// The config is validated and normalized before use; retry may be nil for
// the default backoff policy.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config, retry *ai.RetryConfig) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if retry == nil {
		retry = ai.DefaultRetryConfig()
	}

	embedder, err := newEmbedder(config, retry)
	if err != nil {
		return nil, err
	}

	generator, err := newGenerator(config, retry)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		generator: generator,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the answer generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
