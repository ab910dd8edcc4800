package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/ai/mock"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/storage"
	storagebadger "github.com/poiesic/ragd/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

func setupOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, storage.DocumentRepository, *mock.Provider) {
	t.Helper()

	repo, backend, err := storagebadger.NewMemoryRepository(testDimension)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	provider := mock.NewProvider(testDimension)
	orch, err := NewOrchestrator(repo, provider, opts...)
	require.NoError(t, err)

	return orch, repo, provider
}

// seedDocument stores a document with its deterministic mock embedding,
// as the ingestion worker would have.
func seedDocument(t *testing.T, repo storage.DocumentRepository, content string) *core.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := repo.PutDocument(ctx, content, nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertEmbedding(ctx, doc.Id, mock.DeterministicVector(content, testDimension)))
	return doc
}

func TestAnswerGroundsInRetrievedDocuments(t *testing.T) {
	orch, repo, _ := setupOrchestrator(t)
	ctx := context.Background()

	paris := seedDocument(t, repo, "Paris is the capital of France.")
	seedDocument(t, repo, "Tokyo is the capital of Japan.")

	// The mock embedder embeds identical text to the identical point, so
	// querying with the document's own content must rank it first.
	resp, err := orch.Answer(ctx, &core.QueryRequest{
		Query: "Paris is the capital of France.",
		TopK:  2,
	})
	require.NoError(t, err)

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, paris.Id, resp.Sources[0].Document.Id)
	assert.InDelta(t, 1.0, resp.Sources[0].Similarity, 1e-5)
	assert.Contains(t, resp.Answer, "Paris is the capital of France.")
}

func TestAnswerRespectsTopK(t *testing.T) {
	orch, repo, _ := setupOrchestrator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedDocument(t, repo, fmt.Sprintf("document %d", i))
	}

	resp, err := orch.Answer(ctx, &core.QueryRequest{Query: "anything", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 2)
}

func TestAnswerEmptyStoreStillGenerates(t *testing.T) {
	orch, _, provider := setupOrchestrator(t)

	resp, err := orch.Answer(context.Background(), &core.QueryRequest{
		Query: "is anyone out there",
		TopK:  core.DefaultTopK,
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Sources)
	assert.NotEmpty(t, resp.Answer)
	assert.Equal(t, 1, provider.MockGenerator().CallCount())
}

func TestAnswerValidatesRequest(t *testing.T) {
	orch, _, provider := setupOrchestrator(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *core.QueryRequest
	}{
		{"nil request", nil},
		{"empty query", &core.QueryRequest{Query: "", TopK: 3}},
		{"blank query", &core.QueryRequest{Query: "   ", TopK: 3}},
		{"zero top_k", &core.QueryRequest{Query: "q", TopK: 0}},
		{"negative top_k", &core.QueryRequest{Query: "q", TopK: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.Answer(ctx, tt.req)
			assert.ErrorIs(t, err, core.ErrInvalidArgument)
		})
	}

	// Nothing reached the provider.
	assert.Equal(t, 0, provider.MockEmbedder().CallCount())
	assert.Equal(t, 0, provider.MockGenerator().CallCount())
}

func TestAnswerPassesModelOverride(t *testing.T) {
	orch, _, provider := setupOrchestrator(t)

	_, err := orch.Answer(context.Background(), &core.QueryRequest{
		Query: "q",
		TopK:  1,
		Model: "qwen2.5:3b",
	})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:3b", provider.MockGenerator().LastModel())
}

func TestAnswerRetrievalStageFailure(t *testing.T) {
	orch, _, provider := setupOrchestrator(t)

	provider.MockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("%w: connection refused", ai.ErrProviderUnavailable)
	}

	_, err := orch.Answer(context.Background(), &core.QueryRequest{Query: "q", TopK: 1})
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Equal(t, 0, provider.MockGenerator().CallCount())
}

func TestAnswerGenerationStageFailure(t *testing.T) {
	orch, repo, provider := setupOrchestrator(t)

	seedDocument(t, repo, "some context")
	provider.MockGenerator().GenerateAnswerFunc = func(ctx context.Context, query string, contexts []string, model string) (string, error) {
		return "", fmt.Errorf("%w: 503", ai.ErrProviderUnavailable)
	}

	_, err := orch.Answer(context.Background(), &core.QueryRequest{Query: "q", TopK: 1})
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestAnswerMinSimilarityFilter(t *testing.T) {
	orch, repo, _ := setupOrchestrator(t, WithMinSimilarity(0.99))
	ctx := context.Background()

	seedDocument(t, repo, "exact match text")
	seedDocument(t, repo, "completely unrelated ramblings")

	resp, err := orch.Answer(ctx, &core.QueryRequest{Query: "exact match text", TopK: 5})
	require.NoError(t, err)

	// Only the self-match survives a 0.99 threshold.
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "exact match text", resp.Sources[0].Document.Content)
}

func TestWithMinSimilarityValidatesRange(t *testing.T) {
	repo, backend, err := storagebadger.NewMemoryRepository(testDimension)
	require.NoError(t, err)
	defer repo.Close()
	defer backend.Close()

	_, err = NewOrchestrator(repo, mock.NewProvider(testDimension), WithMinSimilarity(1.5))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

type recordingMonitor struct {
	started   string
	embedded  bool
	retrieved int
	answer    string
	finished  bool
}

func (m *recordingMonitor) Start(query string)          { m.started = query }
func (m *recordingMonitor) AfterQueryEmbedding(v []float32) {
	m.embedded = len(v) == testDimension
}
func (m *recordingMonitor) AfterRetrieval(matches core.RetrievalResult) { m.retrieved = len(matches) }
func (m *recordingMonitor) AfterGeneration(answer string)               { m.answer = answer }
func (m *recordingMonitor) Finish(_ *core.AnswerResponse)               { m.finished = true }

func TestMonitorSeesEveryStage(t *testing.T) {
	orch, repo, _ := setupOrchestrator(t)
	ctx := context.Background()

	seedDocument(t, repo, "observable")

	monitor := &recordingMonitor{}
	resp, err := orch.AnswerWithMonitor(ctx, &core.QueryRequest{Query: "observable", TopK: 1}, monitor)
	require.NoError(t, err)

	assert.Equal(t, "observable", monitor.started)
	assert.True(t, monitor.embedded)
	assert.Equal(t, 1, monitor.retrieved)
	assert.Equal(t, resp.Answer, monitor.answer)
	assert.True(t, monitor.finished)
}
