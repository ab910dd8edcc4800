package queue

import (
	"context"
	"time"

	"github.com/poiesic/ragd/core"
)

// Delivery is one leased task handed out by Dequeue. It stays invisible to
// other consumers until it is acked, nacked, or its visibility timeout
// expires.
type Delivery struct {
	// Seq is the queue-assigned sequence number of the task.
	Seq uint64
	// Task is the ingestion task payload.
	Task core.IngestionTask
	// Attempt is the 1-based delivery attempt count.
	Attempt int
}

// DeadLetter is a task that was removed from circulation after repeated
// failures or an explicit reject.
type DeadLetter struct {
	Seq      uint64
	Task     core.IngestionTask
	Attempts int
	Reason   string
	FailedAt time.Time
}

// Stats is a point-in-time census of the queue's keyspaces.
type Stats struct {
	Pending  int
	Inflight int
	Dead     int
}

// TaskQueue is a durable at-least-once work queue of ingestion tasks.
//
// Dequeue leases the oldest pending task; the lease is released by Ack
// (task done, remove it), Nack (give it back, or dead-letter it), or by
// the visibility timeout when a consumer dies mid-task. A task may
// therefore be delivered more than once, and consumers must tolerate
// redelivery.
type TaskQueue interface {
	// Enqueue appends a task to the pending queue.
	Enqueue(ctx context.Context, task core.IngestionTask) error

	// Dequeue leases the oldest pending task. Returns ErrEmpty when
	// nothing is pending.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Ack removes a completed task from the queue. Returns
	// ErrUnknownDelivery if the lease already expired.
	Ack(ctx context.Context, d *Delivery) error

	// Nack releases a lease. With requeue the task returns to the
	// pending queue for another attempt, unless it has exhausted its
	// delivery budget, in which case it is dead-lettered. Without
	// requeue it goes straight to the dead-letter queue.
	Nack(ctx context.Context, d *Delivery, requeue bool, reason string) error

	// ListDead returns up to limit dead-lettered tasks in failure order.
	// A limit <= 0 returns all of them.
	ListDead(ctx context.Context, limit int) ([]*DeadLetter, error)

	// RequeueDead moves a dead-lettered task back to the pending queue
	// with a fresh delivery budget. Returns ErrDeadLetterNotFound if no
	// dead letter has that sequence number.
	RequeueDead(ctx context.Context, seq uint64) error

	// Stats counts the tasks in each keyspace.
	Stats(ctx context.Context) (Stats, error)

	// Close stops background maintenance and releases resources.
	// Pending, in-flight, and dead tasks survive a restart.
	Close() error
}
