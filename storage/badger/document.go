package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
// Embedding vectors are persisted next to their documents and mirrored into
// an in-memory cosine index that serves similarity queries.
type DocumentRepository struct {
	backend   *Backend
	idSeq     *badger.Sequence
	index     *vectorIndex
	dimension int
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a DocumentRepository with the given embedding
// dimension and rebuilds the similarity index from the persisted embedding
// records.
func NewDocumentRepository(backend *Backend, dimension int) (storage.DocumentRepository, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", storage.ErrInvalidQuery)
	}

	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	repo := &DocumentRepository{
		backend:   backend,
		idSeq:     idSeq,
		index:     newVectorIndex(),
		dimension: dimension,
	}

	if err := repo.rebuildIndex(); err != nil {
		idSeq.Release()
		return nil, err
	}

	return repo, nil
}

// rebuildIndex loads every persisted embedding record into the in-memory
// index. Runs once at open.
func (r *DocumentRepository) rebuildIndex() error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix(embeddingPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				rec, err := storage.UnmarshalEmbeddingRecord(val)
				if err != nil {
					return err
				}
				r.index.Upsert(rec.DocumentId, rec.Vector)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// Dimension returns the configured embedding dimension.
func (r *DocumentRepository) Dimension() int {
	return r.dimension
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// PutDocument persists a new document and returns it with the assigned ID,
// checksum, and creation timestamp populated.
func (r *DocumentRepository) PutDocument(ctx context.Context, content string, metadata core.Metadata) (*core.Document, error) {
	if err := core.ValidateContent(content); err != nil {
		return nil, err
	}
	if err := core.ValidateMetadata(metadata); err != nil {
		return nil, err
	}

	nextID, err := r.idSeq.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorage, err)
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrStorage, err)
		}
	}

	doc := &core.Document{
		Id:        core.ID(nextID),
		Content:   content,
		Metadata:  metadata.Clone(),
		Checksum:  core.ContentChecksum(content),
		CreatedAt: time.Now().UTC(),
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorage, err)
	}

	return doc, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// GetDocuments retrieves multiple documents by their IDs. Missing documents
// are skipped, not reported.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	results := make([]*core.Document, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListDocuments returns documents in ascending ID order with offset
// pagination.
func (r *DocumentRepository) ListDocuments(ctx context.Context, skip, limit int) ([]*core.Document, error) {
	if skip < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: skip and limit must be non-negative", storage.ErrInvalidQuery)
	}

	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		skipped := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if limit > 0 && len(results) >= limit {
				break
			}
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				results = append(results, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// AmendMetadata replaces a document's metadata, leaving content untouched.
func (r *DocumentRepository) AmendMetadata(ctx context.Context, id core.ID, metadata core.Metadata) (*core.Document, error) {
	if err := core.ValidateMetadata(metadata); err != nil {
		return nil, err
	}

	var result *core.Document
	err := r.backend.WithUpdateRetry(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		doc.Metadata = metadata.Clone()
		if err := tx.Set(makeDocumentKey(id), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		result = doc
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteDocument removes a document and its embedding record in one
// transaction, then drops the vector from the index.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	err := r.backend.WithUpdateRetry(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if err := tx.Delete(makeEmbeddingKey(id)); err != nil {
			return err
		}
		if err := tx.Delete(makeDocumentKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}
	r.index.Remove(id)
	return nil
}

// UpsertEmbedding stores the embedding vector for a document. Replays with
// the same document ID overwrite the existing record; the record count per
// document never exceeds one.
func (r *DocumentRepository) UpsertEmbedding(ctx context.Context, documentID core.ID, vector []float32) error {
	if len(vector) != r.dimension {
		return fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vector), r.dimension)
	}

	err := r.backend.WithUpdateRetry(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		now := time.Now().UTC()
		rec := &core.EmbeddingRecord{
			DocumentId: documentID,
			Vector:     vector,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		// Preserve the original creation time across overwrites.
		existing, err := readEmbedding(tx, documentID)
		if err != nil {
			return err
		}
		if existing != nil {
			rec.CreatedAt = existing.CreatedAt
		}

		if err := tx.Set(makeEmbeddingKey(documentID), storage.MarshalEmbeddingRecord(rec)); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", storage.ErrStorage, err)
	}

	r.index.Upsert(documentID, vector)
	return nil
}

// GetEmbedding retrieves the embedding record for a document.
func (r *DocumentRepository) GetEmbedding(ctx context.Context, documentID core.ID) (*core.EmbeddingRecord, error) {
	var result *core.EmbeddingRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEmbedding(tx, documentID)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// SimilaritySearch ranks embedded documents by cosine similarity to the
// query vector.
func (r *DocumentRepository) SimilaritySearch(ctx context.Context, vector []float32, k int) (core.RetrievalResult, error) {
	if len(vector) != r.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vector), r.dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}

	matches := r.index.Search(vector, k)

	results := make(core.RetrievalResult, 0, len(matches))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, match := range matches {
			doc, err := readDocument(tx, match.DocumentId)
			if err != nil {
				return err
			}
			if doc == nil {
				// Deleted between index snapshot and read; skip.
				continue
			}
			results = append(results, &core.ScoredDocument{
				Document:   doc,
				Similarity: match.Score,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CountDocuments returns the total number of stored documents.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	return r.countPrefix(documentPrefix)
}

// CountEmbeddings returns the number of live embedding records.
func (r *DocumentRepository) CountEmbeddings(ctx context.Context) (int, error) {
	return r.index.Len(), nil
}

func (r *DocumentRepository) countPrefix(prefix string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix(prefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readDocument reads a document inside a transaction.
// Returns (nil, nil) if the key is absent.
func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

// readEmbedding reads an embedding record inside a transaction.
// Returns (nil, nil) if the key is absent.
func readEmbedding(tx *badger.Txn, id core.ID) (*core.EmbeddingRecord, error) {
	item, err := tx.Get(makeEmbeddingKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec *core.EmbeddingRecord
	err = item.Value(func(val []byte) error {
		rec, err = storage.UnmarshalEmbeddingRecord(val)
		return err
	})
	return rec, err
}
