package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple texts in a
	// batch, returned in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a natural-language answer to a query, grounded in the
// retrieved context passages. Implementations must be safe for concurrent
// use.
type Generator interface {
	// GenerateAnswer answers the query using only the given context
	// passages. An empty context is valid; the generator is expected to
	// say it has nothing to go on rather than invent an answer. A
	// non-empty model overrides the configured generation model for this
	// request.
	GenerateAnswer(ctx context.Context, query string, contexts []string, model string) (string, error)
}

// Provider aggregates the AI services behind one lifecycle. The returned
// services are safe for concurrent use.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
