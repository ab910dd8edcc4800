package reembed

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/ai/mock"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/storage"
	storagebadger "github.com/poiesic/ragd/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

func setupTestRepository(t *testing.T) storage.DocumentRepository {
	t.Helper()
	repo, backend, err := storagebadger.NewMemoryRepository(testDimension)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func seedDocuments(t *testing.T, repo storage.DocumentRepository, n int) []*core.Document {
	t.Helper()
	docs := make([]*core.Document, n)
	for i := range docs {
		doc, err := repo.PutDocument(context.Background(), fmt.Sprintf("document %d", i), nil)
		require.NoError(t, err)
		docs[i] = doc
	}
	return docs
}

func TestReembedderEmbedsEverything(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	docs := seedDocuments(t, repo, 7)

	var progress bytes.Buffer
	r := NewReembedder(repo, mock.NewEmbedder(testDimension),
		&Config{BatchSize: 3, ReportInterval: 3}, &progress)
	require.NoError(t, r.Run(ctx))

	count, err := repo.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(docs), count)

	for _, doc := range docs {
		rec, err := repo.GetEmbedding(ctx, doc.Id)
		require.NoError(t, err)
		assert.Equal(t, mock.DeterministicVector(doc.Content, testDimension), rec.Vector)
	}

	assert.Contains(t, progress.String(), "Re-embedding up to 7 documents")
}

func TestReembedderPendingOnly(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	docs := seedDocuments(t, repo, 4)

	// Two documents already have embeddings; a pending-only sweep must
	// leave them untouched.
	stale := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, repo.UpsertEmbedding(ctx, docs[0].Id, stale))
	require.NoError(t, repo.UpsertEmbedding(ctx, docs[2].Id, stale))

	embedder := mock.NewEmbedder(testDimension)
	r := NewReembedder(repo, embedder, &Config{BatchSize: 10, ReportInterval: 10, PendingOnly: true}, nil)
	require.NoError(t, r.Run(ctx))

	count, err := repo.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	kept, err := repo.GetEmbedding(ctx, docs[0].Id)
	require.NoError(t, err)
	assert.Equal(t, stale, kept.Vector)

	swept, err := repo.GetEmbedding(ctx, docs[1].Id)
	require.NoError(t, err)
	assert.Equal(t, mock.DeterministicVector(docs[1].Content, testDimension), swept.Vector)
}

func TestReembedderEmptyStore(t *testing.T) {
	repo := setupTestRepository(t)

	var progress bytes.Buffer
	r := NewReembedder(repo, mock.NewEmbedder(testDimension), nil, &progress)
	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, progress.String(), "No documents in store")
}

func TestReembedderStopsOnPermanentFailure(t *testing.T) {
	repo := setupTestRepository(t)
	seedDocuments(t, repo, 2)

	embedder := mock.NewEmbedder(testDimension)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, fmt.Errorf("%w: invalid model", ai.ErrProviderRejected)
	}

	r := NewReembedder(repo, embedder, nil, nil)
	err := r.Run(context.Background())
	assert.ErrorIs(t, err, ai.ErrProviderRejected)
}

func TestReembedderHonorsCancellation(t *testing.T) {
	repo := setupTestRepository(t)
	seedDocuments(t, repo, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReembedder(repo, mock.NewEmbedder(testDimension), nil, nil)
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
}

func TestBatchProcessorCountMismatch(t *testing.T) {
	repo := setupTestRepository(t)
	docs := seedDocuments(t, repo, 3)

	embedder := mock.NewEmbedder(testDimension)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{mock.DeterministicVector("only one", testDimension)}, nil
	}

	bp := NewBatchProcessor(repo, embedder, nil)
	err := bp.Process(context.Background(), docs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding count mismatch")
}

func TestDocumentIteratorBatches(t *testing.T) {
	repo := setupTestRepository(t)
	seedDocuments(t, repo, 5)

	it := NewDocumentIterator(repo, 2)
	var sizes []int
	err := it.ForEach(context.Background(), func(docs []*core.Document) error {
		sizes = append(sizes, len(docs))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestProgressTracker(t *testing.T) {
	var out strings.Builder
	tracker := NewProgressTracker(&out, 10, 5)
	tracker.Start()

	tracker.Increment(3)
	assert.Empty(t, out.String())

	tracker.Increment(3)
	assert.Contains(t, out.String(), "6/10")

	tracker.Finish()
	assert.Contains(t, out.String(), "10/10 (100.0%)")
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
}
