package storage

import (
	"context"

	"github.com/poiesic/ragd/core"
)

// DocumentRepository persists documents and their embedding records and
// answers similarity queries. Implementations must be safe for concurrent
// use; embedding upserts must be idempotent per document ID.
type DocumentRepository interface {
	// PutDocument persists a new document. The ID, checksum, and creation
	// timestamp are assigned by the store; the passed document's Id field
	// is ignored. Returns the stored document.
	PutDocument(ctx context.Context, content string, metadata core.Metadata) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing ones).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListDocuments returns documents ordered by ascending ID, skipping the
	// first skip documents and returning at most limit.
	ListDocuments(ctx context.Context, skip, limit int) ([]*core.Document, error)

	// AmendMetadata replaces a document's metadata. Content is immutable;
	// metadata is the only field that may change after creation.
	// Returns ErrNotFound if the document doesn't exist.
	AmendMetadata(ctx context.Context, id core.ID, metadata core.Metadata) (*core.Document, error)

	// DeleteDocument removes a document and, atomically, its embedding
	// record. Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error

	// UpsertEmbedding stores the embedding vector for a document. If an
	// embedding record already exists it is replaced, never duplicated.
	// Returns ErrNotFound if the document doesn't exist and
	// ErrDimensionMismatch if the vector length differs from the
	// configured dimension.
	UpsertEmbedding(ctx context.Context, documentID core.ID, vector []float32) error

	// GetEmbedding retrieves the embedding record for a document.
	// Returns ErrNotFound if no embedding exists yet.
	GetEmbedding(ctx context.Context, documentID core.ID) (*core.EmbeddingRecord, error)

	// SimilaritySearch returns up to k documents ranked by cosine
	// similarity to the query vector, restricted to documents with a live
	// embedding record. Results are ordered by descending similarity; ties
	// are broken by ascending document ID. Returns ErrDimensionMismatch if
	// the query vector length differs from the configured dimension.
	SimilaritySearch(ctx context.Context, vector []float32, k int) (core.RetrievalResult, error)

	// CountDocuments returns the total number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// CountEmbeddings returns the number of documents with a live
	// embedding record.
	CountEmbeddings(ctx context.Context) (int, error)

	// Dimension returns the configured embedding dimension d.
	Dimension() int

	// Close closes the repository and releases resources.
	Close() error
}
