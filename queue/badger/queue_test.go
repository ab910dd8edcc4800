package badger

import (
	"context"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/queue"
	storagebadger "github.com/poiesic/ragd/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestQueue(t *testing.T, opts ...Option) *TaskQueue {
	t.Helper()
	backend, err := storagebadger.OpenBackend("", true)
	require.NoError(t, err)
	q, err := NewTaskQueue(backend, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		q.Close()
		backend.Close()
	})
	return q
}

func newTask(id core.ID) core.IngestionTask {
	return core.IngestionTask{
		DocumentId: id,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestDequeueEmpty(t *testing.T) {
	q := setupTestQueue(t)

	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, queue.ErrEmpty)
}

func TestEnqueueDequeueOrder(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	for id := core.ID(1); id <= 3; id++ {
		require.NoError(t, q.Enqueue(ctx, newTask(id)))
	}

	for id := core.ID(1); id <= 3; id++ {
		d, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, d.Task.DocumentId)
		assert.Equal(t, 1, d.Attempt)
	}

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, queue.ErrEmpty)
}

func TestAckRemovesTask(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, newTask(7)))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Ack(ctx, d))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{}, stats)

	// A second ack of the same delivery has nothing to remove.
	assert.ErrorIs(t, q.Ack(ctx, d), queue.ErrUnknownDelivery)
}

func TestNackRequeueRedelivers(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, newTask(9)))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempt)

	require.NoError(t, q.Nack(ctx, first, true, "provider unavailable"))

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Task.DocumentId, second.Task.DocumentId)
	assert.Equal(t, 2, second.Attempt)
}

func TestNackRejectDeadLetters(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, newTask(11)))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Nack(ctx, d, false, "checksum mismatch"))

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, queue.ErrEmpty)

	dead, err := q.ListDead(ctx, 0)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, core.ID(11), dead[0].Task.DocumentId)
	assert.Equal(t, "checksum mismatch", dead[0].Reason)
	assert.Equal(t, 1, dead[0].Attempts)
	assert.False(t, dead[0].FailedAt.IsZero())
}

func TestNackRequeueExhaustsBudget(t *testing.T) {
	q := setupTestQueue(t, WithMaxDeliveries(2))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, newTask(13)))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, d, true, "timeout"))

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Attempt)
	require.NoError(t, q.Nack(ctx, d, true, "timeout"))

	// Second failed attempt spent the budget: dead-lettered, not requeued.
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, queue.ErrEmpty)

	dead, err := q.ListDead(ctx, 0)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 2, dead[0].Attempts)
	assert.Contains(t, dead[0].Reason, "delivery budget exhausted")
}

func TestRequeueDead(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, newTask(17)))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, d, false, "rejected"))

	dead, err := q.ListDead(ctx, 0)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	require.NoError(t, q.RequeueDead(ctx, dead[0].Seq))

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ID(17), redelivered.Task.DocumentId)
	assert.Equal(t, 1, redelivered.Attempt)

	assert.ErrorIs(t, q.RequeueDead(ctx, dead[0].Seq), queue.ErrDeadLetterNotFound)
}

func TestVisibilityTimeoutRedelivery(t *testing.T) {
	q := setupTestQueue(t,
		WithVisibilityTimeout(30*time.Millisecond),
		WithReaperInterval(10*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, newTask(19)))

	stalled, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// Consumer never acks; the reaper returns the task to the pending
	// queue after the lease expires.
	require.Eventually(t, func() bool {
		d, err := q.Dequeue(ctx)
		if err != nil {
			return false
		}
		assert.Equal(t, core.ID(19), d.Task.DocumentId)
		assert.Equal(t, 2, d.Attempt)
		return true
	}, 2*time.Second, 10*time.Millisecond)

	// The stale lease can no longer be acked.
	assert.ErrorIs(t, q.Ack(ctx, stalled), queue.ErrUnknownDelivery)
}

func TestQueueSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := storagebadger.OpenBackend(dir, false)
	require.NoError(t, err)
	q, err := NewTaskQueue(backend)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, newTask(23)))
	require.NoError(t, q.Close())
	require.NoError(t, backend.Close())

	backend, err = storagebadger.OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	q, err = NewTaskQueue(backend)
	require.NoError(t, err)
	defer q.Close()

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ID(23), d.Task.DocumentId)
}

func TestStats(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	for id := core.ID(1); id <= 4; id++ {
		require.NoError(t, q.Enqueue(ctx, newTask(id)))
	}

	leased, err := q.Dequeue(ctx)
	require.NoError(t, err)
	rejected, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, rejected, false, "malformed"))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Pending: 2, Inflight: 1, Dead: 1}, stats)

	require.NoError(t, q.Ack(ctx, leased))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	in := envelope{
		Task:     core.IngestionTask{DocumentId: 42, EnqueuedAt: time.UnixMicro(time.Now().UnixMicro()).UTC()},
		Attempts: 3,
		Deadline: time.UnixMicro(1700000000000000).UTC(),
		Reason:   "embedding provider rejected request",
		FailedAt: time.UnixMicro(1700000001000000).UTC(),
	}

	out, err := unmarshalEnvelope(marshalEnvelope(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDequeueBuriesMalformedPayload(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, newTask(9)))

	// Plant an undecodable entry behind the good one.
	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeQueueKey(pendingPrefix, 1000), []byte{0xff}); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ID(9), d.Task.DocumentId)
	require.NoError(t, q.Ack(ctx, d))

	// The corrupt entry is buried rather than served or left to block
	// the head of the queue.
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, queue.ErrEmpty)

	dead, err := q.ListDead(ctx, 0)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, uint64(1000), dead[0].Seq)
	assert.Contains(t, dead[0].Reason, "malformed payload")

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Dead: 1}, stats)
}
