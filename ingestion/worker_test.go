package ingestion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/ai/mock"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/queue"
	queuebadger "github.com/poiesic/ragd/queue/badger"
	"github.com/poiesic/ragd/storage"
	storagebadger "github.com/poiesic/ragd/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

type pipelineFixture struct {
	repository storage.DocumentRepository
	tasks      *queuebadger.TaskQueue
	provider   *mock.Provider
	intake     *Intake
	worker     *Worker
}

func setupPipeline(t *testing.T, queueOpts ...queuebadger.Option) *pipelineFixture {
	t.Helper()

	repo, backend, err := storagebadger.NewMemoryRepository(testDimension)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	tasks, err := queuebadger.NewTaskQueue(backend, queueOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { tasks.Close() })

	provider := mock.NewProvider(testDimension)

	intake, err := NewIntake(repo, tasks, nil)
	require.NoError(t, err)

	worker, err := NewWorker(repo, tasks, provider,
		WithPoolSize(2),
		WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(worker.Stop)

	return &pipelineFixture{
		repository: repo,
		tasks:      tasks,
		provider:   provider,
		intake:     intake,
		worker:     worker,
	}
}

func TestIngestReturnsBeforeEmbedding(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	// Worker not started: the document must still be accepted.
	doc, err := f.intake.Ingest(ctx, "async by design", nil)
	require.NoError(t, err)
	assert.NotZero(t, doc.Id)

	_, err = f.repository.GetEmbedding(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stats, err := f.tasks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestWorkerEmbedsIngestedDocuments(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	f.worker.Start()

	doc, err := f.intake.Ingest(ctx, "Paris is the capital of France.", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := f.repository.GetEmbedding(ctx, doc.Id)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := f.repository.GetEmbedding(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, mock.DeterministicVector(doc.Content, testDimension), rec.Vector)

	// Queue fully drained.
	require.Eventually(t, func() bool {
		stats, err := f.tasks.Stats(ctx)
		return err == nil && stats == (queue.Stats{})
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(1), f.worker.Stats().Embedded)
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	failures := 2
	f.provider.MockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if failures > 0 {
			failures--
			return nil, fmt.Errorf("%w: connection refused", ai.ErrProviderUnavailable)
		}
		return mock.DeterministicVector(text, testDimension), nil
	}

	f.worker.Start()

	doc, err := f.intake.Ingest(ctx, "flaky provider", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := f.repository.GetEmbedding(ctx, doc.Id)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	stats := f.worker.Stats()
	assert.Equal(t, uint64(1), stats.Embedded)
	assert.Equal(t, uint64(2), stats.Requeued)
}

func TestWorkerDeadLettersDeletedDocuments(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	doc, err := f.intake.Ingest(ctx, "here and gone", nil)
	require.NoError(t, err)
	require.NoError(t, f.repository.DeleteDocument(ctx, doc.Id))

	f.worker.Start()

	require.Eventually(t, func() bool {
		dead, err := f.tasks.ListDead(ctx, 0)
		return err == nil && len(dead) == 1
	}, 2*time.Second, 10*time.Millisecond)

	dead, err := f.tasks.ListDead(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, doc.Id, dead[0].Task.DocumentId)
	assert.Equal(t, uint64(1), f.worker.Stats().DeadLettered)
}

func TestWorkerDeadLettersRejectedRequests(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	f.provider.MockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("%w: invalid model", ai.ErrProviderRejected)
	}

	f.worker.Start()

	doc, err := f.intake.Ingest(ctx, "never embeddable", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		dead, err := f.tasks.ListDead(ctx, 0)
		return err == nil && len(dead) == 1
	}, 2*time.Second, 10*time.Millisecond)

	dead, err := f.tasks.ListDead(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, doc.Id, dead[0].Task.DocumentId)
	// Rejected on the first attempt: no retries were spent on it.
	assert.Equal(t, 1, dead[0].Attempts)

	_, err = f.repository.GetEmbedding(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorkerRedeliveryLeavesSingleEmbedding(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	doc, err := f.intake.Ingest(ctx, "embedded exactly once", nil)
	require.NoError(t, err)

	// Simulate a worker that crashed after the upsert but before the ack:
	// the embedding exists and the task comes back around.
	vector := mock.DeterministicVector(doc.Content, testDimension)
	require.NoError(t, f.repository.UpsertEmbedding(ctx, doc.Id, vector))

	f.worker.Start()

	require.Eventually(t, func() bool {
		stats, err := f.tasks.Stats(ctx)
		return err == nil && stats == (queue.Stats{})
	}, 2*time.Second, 10*time.Millisecond)

	count, err := f.repository.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWorkerProcessesBacklogConcurrently(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	var ids []core.ID
	for i := 0; i < 10; i++ {
		doc, err := f.intake.Ingest(ctx, fmt.Sprintf("document number %d", i), nil)
		require.NoError(t, err)
		ids = append(ids, doc.Id)
	}

	f.worker.Start()

	require.Eventually(t, func() bool {
		count, err := f.repository.CountEmbeddings(ctx)
		return err == nil && count == len(ids)
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(len(ids)), f.worker.Stats().Embedded)
}

func TestNewWorkerValidatesDependencies(t *testing.T) {
	f := setupPipeline(t)

	_, err := NewWorker(nil, f.tasks, f.provider)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewWorker(f.repository, nil, f.provider)
	assert.ErrorIs(t, err, ErrQueueRequired)

	_, err = NewWorker(f.repository, f.tasks, nil)
	assert.ErrorIs(t, err, ErrProviderRequired)

	_, err = NewIntake(nil, f.tasks, nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewIntake(f.repository, nil, nil)
	assert.ErrorIs(t, err, ErrQueueRequired)
}
