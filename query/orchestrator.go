package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/storage"
)

// Orchestrator runs the read side of the pipeline: embed the query,
// retrieve the most similar documents, and generate an answer grounded in
// them.
type Orchestrator struct {
	repository    storage.DocumentRepository
	embedder      ai.Embedder
	generator     ai.Generator
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithMinSimilarity drops retrieved documents scoring below the threshold
// before they reach generation. Zero keeps everything.
func WithMinSimilarity(threshold float32) Option {
	return func(o *Orchestrator) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("%w: similarity threshold %v outside [-1, 1]",
				core.ErrInvalidArgument, threshold)
		}
		o.minSimilarity = threshold
		return nil
	}
}

// NewOrchestrator creates a query orchestrator.
func NewOrchestrator(
	repository storage.DocumentRepository,
	provider ai.Provider,
	opts ...Option,
) (*Orchestrator, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	o := &Orchestrator{
		repository: repository,
		embedder:   provider.Embedder(),
		generator:  provider.Generator(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Answer runs the full query pipeline.
func (o *Orchestrator) Answer(ctx context.Context, req *core.QueryRequest) (*core.AnswerResponse, error) {
	return o.AnswerWithMonitor(ctx, req, nil)
}

// AnswerWithMonitor runs the full query pipeline with stage callbacks.
//
// Retrieval coming back empty is not an error: generation still runs and
// the model is expected to say it has no relevant information.
func (o *Orchestrator) AnswerWithMonitor(ctx context.Context, req *core.QueryRequest, monitor Monitor) (*core.AnswerResponse, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if err := core.ValidateQueryRequest(req); err != nil {
		return nil, err
	}

	monitor.Start(req.Query)

	vector, err := o.embedder.EmbedText(ctx, req.Query)
	if err != nil {
		o.logger.Error("error embedding query", "err", err)
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrievalFailed, err)
	}
	monitor.AfterQueryEmbedding(vector)

	matches, err := o.repository.SimilaritySearch(ctx, vector, req.TopK)
	if err != nil {
		o.logger.Error("error searching for similar documents", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	if o.minSimilarity > 0 {
		matches = aboveThreshold(matches, o.minSimilarity)
	}
	monitor.AfterRetrieval(matches)

	contexts := make([]string, len(matches))
	for i, match := range matches {
		contexts[i] = match.Document.Content
	}

	answer, err := o.generator.GenerateAnswer(ctx, req.Query, contexts, req.Model)
	if err != nil {
		o.logger.Error("error generating answer", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	monitor.AfterGeneration(answer)

	o.logger.Debug("query answered",
		"top_k", req.TopK,
		"retrieved", len(matches),
		"model_override", req.Model)

	response := &core.AnswerResponse{
		Answer:  answer,
		Sources: matches,
	}
	monitor.Finish(response)
	return response, nil
}

// aboveThreshold keeps the leading matches scoring at or above the
// threshold. Matches arrive sorted by descending score, so the cut is a
// prefix.
func aboveThreshold(matches core.RetrievalResult, threshold float32) core.RetrievalResult {
	for i, match := range matches {
		if match.Similarity < threshold {
			return matches[:i]
		}
	}
	return matches
}
