package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Document IDs are assigned from a database sequence, so ascending ID order
// is also insertion order.
type ID uint64

// DefaultTopK is the number of documents retrieved for a query when the
// caller does not ask for a specific count.
const DefaultTopK = 3

// ContentChecksum computes a 64-bit BLAKE2b digest of text content.
// Identical content always produces the same checksum; the worker uses it to
// detect storage corruption before spending an embedding call on a document.
func ContentChecksum(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// Document is a unit of ingested text. Content is immutable after creation;
// metadata may be amended. A document becomes retrievable only once its
// embedding record exists.
type Document struct {
	Id        ID
	Content   string
	Metadata  Metadata
	Checksum  uint64 // BLAKE2b-64 of Content, set at creation
	CreatedAt time.Time
}

// EmbeddingRecord associates a document with its embedding vector.
// A document has zero or exactly one live embedding record; upserts replace,
// never duplicate.
type EmbeddingRecord struct {
	DocumentId ID
	Vector     []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IngestionTask is the unit of work carried by the ingestion queue.
// It references a document by ID; delivery is at-least-once, so processing
// must stay idempotent under replay.
type IngestionTask struct {
	DocumentId ID
	EnqueuedAt time.Time
}

// QueryRequest describes a retrieval-augmented query.
type QueryRequest struct {
	Query string
	TopK  int    // must be > 0; HTTP layer defaults to DefaultTopK
	Model string // optional generation model override
}

// SimilarityMatch is a raw vector-index hit: a document ID and its cosine
// similarity to the query vector.
type SimilarityMatch struct {
	DocumentId ID
	Score      float32
}

// ScoredDocument pairs a retrieved document with its similarity score.
type ScoredDocument struct {
	Document   *Document
	Similarity float32
}

// RetrievalResult is an ordered set of scored documents, descending by
// similarity with ties broken by ascending document ID.
type RetrievalResult []*ScoredDocument

// AnswerResponse is the final result of a query: the generated answer and
// the retrieval result it was grounded on.
type AnswerResponse struct {
	Answer  string
	Sources RetrievalResult
}
