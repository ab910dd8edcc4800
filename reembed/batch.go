package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/storage"
)

// BatchProcessor embeds batches of documents and stores the vectors.
type BatchProcessor struct {
	repo     storage.DocumentRepository
	embedder ai.Embedder
	retry    *ai.RetryConfig
	logger   *slog.Logger
}

// NewBatchProcessor creates a batch processor. retry may be nil for the
// default backoff policy.
func NewBatchProcessor(repo storage.DocumentRepository, embedder ai.Embedder, retry *ai.RetryConfig) *BatchProcessor {
	if retry == nil {
		retry = ai.DefaultRetryConfig()
	}
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
		retry:    retry,
		logger:   slog.Default(),
	}
}

// Process embeds a batch of documents in one provider call and upserts the
// resulting vectors. Transient provider failures are retried with
// exponential backoff before the batch is abandoned.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	var vectors [][]float32
	err := ai.Retry(ctx, bp.retry, bp.logger, func() error {
		result, err := bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		vectors = result
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(docs), len(vectors))
	}

	for i, doc := range docs {
		if err := bp.repo.UpsertEmbedding(ctx, doc.Id, vectors[i]); err != nil {
			return fmt.Errorf("failed to store embedding for document %d: %w", doc.Id, err)
		}
	}
	return nil
}
