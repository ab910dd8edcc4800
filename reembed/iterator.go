package reembed

import (
	"context"

	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/storage"
)

// DefaultBatchSize is the default number of documents fetched per batch.
const DefaultBatchSize = 100

// DocumentIterator walks every document in the store in ID order, a page
// at a time.
type DocumentIterator struct {
	repo      storage.DocumentRepository
	batchSize int
}

// NewDocumentIterator creates a document iterator.
// batchSize: number of documents fetched per batch (must be > 0).
func NewDocumentIterator(repo storage.DocumentRepository, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DocumentIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of documents. Iteration stops on the
// first error from fn; context cancellation is checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.Document) error) error {
	skip := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.repo.ListDocuments(ctx, skip, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		skip += len(batch)
	}
}
