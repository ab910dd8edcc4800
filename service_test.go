package ragd

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/ai/mock"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

func testAIConfig() *ai.Config {
	return ai.NewConfig(ai.WithDimension(testDimension))
}

func setupTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService("",
		WithInMemory(),
		WithAIConfig(testAIConfig()),
		WithProvider(mock.NewProvider(testDimension)))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestServiceEndToEnd(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	intake, err := svc.NewIntake()
	require.NoError(t, err)

	worker, err := svc.NewWorker(
		ingestion.WithPoolSize(2),
		ingestion.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	worker.Start()
	defer worker.Stop()

	paris, err := intake.Ingest(ctx, "Paris is the capital of France.", core.Metadata{
		"source": core.StringValue("geo"),
	})
	require.NoError(t, err)
	_, err = intake.Ingest(ctx, "Tokyo is the capital of Japan.", nil)
	require.NoError(t, err)

	// Both documents become retrievable asynchronously.
	require.Eventually(t, func() bool {
		count, err := svc.Repository().CountEmbeddings(ctx)
		return err == nil && count == 2
	}, 5*time.Second, 10*time.Millisecond)

	orchestrator, err := svc.NewOrchestrator()
	require.NoError(t, err)

	resp, err := orchestrator.Answer(ctx, &core.QueryRequest{
		Query: "Paris is the capital of France.",
		TopK:  1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, paris.Id, resp.Sources[0].Document.Id)
	assert.Contains(t, resp.Answer, "Paris")
}

func TestServiceSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	open := func() *Service {
		svc, err := NewService(dir,
			WithAIConfig(testAIConfig()),
			WithProvider(mock.NewProvider(testDimension)))
		require.NoError(t, err)
		return svc
	}

	svc := open()
	intake, err := svc.NewIntake()
	require.NoError(t, err)

	doc, err := intake.Ingest(ctx, "durable document", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	// The document and its queued task are still there after reopening;
	// a fresh worker picks the task up.
	svc = open()
	defer svc.Close()

	stored, err := svc.Repository().GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, "durable document", stored.Content)

	worker, err := svc.NewWorker(ingestion.WithPollInterval(5 * time.Millisecond))
	require.NoError(t, err)
	worker.Start()
	defer worker.Stop()

	require.Eventually(t, func() bool {
		_, err := svc.Repository().GetEmbedding(ctx, doc.Id)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNewServiceRejectsBadAIConfig(t *testing.T) {
	_, err := NewService("", WithInMemory(), WithAIConfig(ai.NewConfig(ai.WithDimension(-1))))
	assert.Error(t, err)
}

func TestServiceNewServer(t *testing.T) {
	svc := setupTestService(t)

	srv, err := svc.NewServer()
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler())
}
