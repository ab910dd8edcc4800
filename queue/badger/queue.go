// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/queue"
	storagebadger "github.com/poiesic/ragd/storage/badger"
)

const (
	defaultVisibilityTimeout = time.Minute
	defaultMaxDeliveries     = 5
	defaultReaperInterval    = 5 * time.Second
)

// TaskQueue is a durable ingestion queue on the same Badger backend as the
// document store. Pending, in-flight, and dead tasks each live under their
// own key prefix; a background reaper returns expired leases to the
// pending queue, dead-lettering tasks that have used up their delivery
// budget.
type TaskQueue struct {
	backend *storagebadger.Backend
	seq     *badgerdb.Sequence
	logger  *slog.Logger

	visibilityTimeout time.Duration
	maxDeliveries     int
	reaperInterval    time.Duration

	closeOnce sync.Once
	done      chan struct{}
	reaperWG  sync.WaitGroup
}

var _ queue.TaskQueue = (*TaskQueue)(nil)

// Option configures a TaskQueue.
type Option func(*TaskQueue)

// WithVisibilityTimeout sets how long a dequeued task stays leased before
// the reaper hands it out again.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(q *TaskQueue) { q.visibilityTimeout = d }
}

// WithMaxDeliveries sets the delivery budget after which a task is
// dead-lettered instead of requeued.
func WithMaxDeliveries(n int) Option {
	return func(q *TaskQueue) { q.maxDeliveries = n }
}

// WithReaperInterval sets how often expired leases are swept.
func WithReaperInterval(d time.Duration) Option {
	return func(q *TaskQueue) { q.reaperInterval = d }
}

// WithLogger sets the logger used by the queue and its reaper.
func WithLogger(logger *slog.Logger) Option {
	return func(q *TaskQueue) { q.logger = logger }
}

// NewTaskQueue creates a task queue on the given backend and starts its
// lease reaper.
func NewTaskQueue(backend *storagebadger.Backend, opts ...Option) (*TaskQueue, error) {
	seq, err := backend.GetSequence(queueSeq)
	if err != nil {
		return nil, fmt.Errorf("queue sequence: %w", err)
	}

	q := &TaskQueue{
		backend:           backend,
		seq:               seq,
		logger:            slog.Default(),
		visibilityTimeout: defaultVisibilityTimeout,
		maxDeliveries:     defaultMaxDeliveries,
		reaperInterval:    defaultReaperInterval,
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.reaperWG.Add(1)
	go q.reapLoop()

	return q, nil
}

// Close stops the reaper and releases the sequence. Queued tasks stay on
// disk and survive a restart.
func (q *TaskQueue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		close(q.done)
		q.reaperWG.Wait()
		err = q.seq.Release()
	})
	return err
}

func (q *TaskQueue) Enqueue(ctx context.Context, task core.IngestionTask) error {
	if q.backend.IsClosed() {
		return queue.ErrQueueClosed
	}

	seq, err := q.seq.Next()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	env := envelope{Task: task}
	return q.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(makeQueueKey(pendingPrefix, seq), marshalEnvelope(env)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func (q *TaskQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	if q.backend.IsClosed() {
		return nil, queue.ErrQueueClosed
	}

	var delivery *queue.Delivery
	err := q.backend.WithUpdateRetry(func(tx *badgerdb.Txn) error {
		seq, env, malformed, ok, err := oldestPending(tx)
		if err != nil {
			return err
		}
		for _, m := range malformed {
			if err := q.buryMalformed(tx, m.seq, m.err); err != nil {
				return err
			}
		}
		if !ok {
			if len(malformed) > 0 {
				if err := tx.Commit(); err != nil {
					return err
				}
			}
			return queue.ErrEmpty
		}

		env.Attempts++
		env.Deadline = time.Now().Add(q.visibilityTimeout).UTC()

		if err := tx.Delete(makeQueueKey(pendingPrefix, seq)); err != nil {
			return err
		}
		if err := tx.Set(makeQueueKey(inflightPrefix, seq), marshalEnvelope(env)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		delivery = &queue.Delivery{Seq: seq, Task: env.Task, Attempt: env.Attempts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

type malformedEntry struct {
	seq uint64
	err error
}

// oldestPending returns the first decodable envelope in the pending
// keyspace, along with any undecodable entries found before it. The
// iterator is closed before returning because Badger forbids writes while
// one is open.
func oldestPending(tx *badgerdb.Txn) (seq uint64, env envelope, malformed []malformedEntry, ok bool, err error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(pendingPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		seq = seqFromQueueKey(pendingPrefix, item.Key())
		verr := item.Value(func(val []byte) error {
			var uerr error
			env, uerr = unmarshalEnvelope(val)
			return uerr
		})
		if verr != nil {
			malformed = append(malformed, malformedEntry{seq: seq, err: verr})
			continue
		}
		return seq, env, malformed, true, nil
	}
	return 0, env, malformed, false, nil
}

// buryMalformed dead-letters a pending entry whose payload cannot be
// decoded. It is never requeued; the raw entry would fail again forever
// and block the head of the queue.
func (q *TaskQueue) buryMalformed(tx *badgerdb.Txn, seq uint64, cause error) error {
	if err := tx.Delete(makeQueueKey(pendingPrefix, seq)); err != nil {
		return err
	}
	env := envelope{
		Reason:   fmt.Sprintf("malformed payload: %s", cause),
		FailedAt: time.Now().UTC(),
	}
	q.logger.Error("malformed task payload dead-lettered", "seq", seq, "err", cause)
	return tx.Set(makeQueueKey(deadPrefix, seq), marshalEnvelope(env))
}

func (q *TaskQueue) Ack(ctx context.Context, d *queue.Delivery) error {
	if q.backend.IsClosed() {
		return queue.ErrQueueClosed
	}

	return q.backend.WithUpdateRetry(func(tx *badgerdb.Txn) error {
		key := makeQueueKey(inflightPrefix, d.Seq)
		if _, err := q.leasedEnvelope(tx, key, d); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// leasedEnvelope loads the in-flight envelope for a delivery, verifying
// that the lease still belongs to it. A stale handle, one whose lease
// expired and whose task was since redelivered under the same sequence
// number, no longer matches on the attempt count.
func (q *TaskQueue) leasedEnvelope(tx *badgerdb.Txn, key []byte, d *queue.Delivery) (envelope, error) {
	var env envelope
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return env, queue.ErrUnknownDelivery
		}
		return env, err
	}
	if err := item.Value(func(val []byte) error {
		var verr error
		env, verr = unmarshalEnvelope(val)
		return verr
	}); err != nil {
		return env, err
	}
	if env.Attempts != d.Attempt {
		return env, queue.ErrUnknownDelivery
	}
	return env, nil
}

func (q *TaskQueue) Nack(ctx context.Context, d *queue.Delivery, requeue bool, reason string) error {
	if q.backend.IsClosed() {
		return queue.ErrQueueClosed
	}

	return q.backend.WithUpdateRetry(func(tx *badgerdb.Txn) error {
		key := makeQueueKey(inflightPrefix, d.Seq)
		env, err := q.leasedEnvelope(tx, key, d)
		if err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := q.writeReleased(tx, d.Seq, env, requeue, reason); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// writeReleased puts a released envelope back in circulation, or buries it
// when the caller rejected it outright or its delivery budget is spent.
func (q *TaskQueue) writeReleased(tx *badgerdb.Txn, seq uint64, env envelope, requeue bool, reason string) error {
	if requeue && env.Attempts < q.maxDeliveries {
		env.Deadline = time.Time{}
		return tx.Set(makeQueueKey(pendingPrefix, seq), marshalEnvelope(env))
	}

	if requeue {
		reason = fmt.Sprintf("delivery budget exhausted after %d attempts: %s", env.Attempts, reason)
	}
	env.Reason = reason
	env.FailedAt = time.Now().UTC()
	q.logger.Warn("task dead-lettered",
		"document_id", env.Task.DocumentId,
		"attempts", env.Attempts,
		"reason", reason)
	return tx.Set(makeQueueKey(deadPrefix, seq), marshalEnvelope(env))
}

func (q *TaskQueue) ListDead(ctx context.Context, limit int) ([]*queue.DeadLetter, error) {
	if q.backend.IsClosed() {
		return nil, queue.ErrQueueClosed
	}

	var dead []*queue.DeadLetter
	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(deadPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(dead) >= limit {
				break
			}
			item := iter.Item()
			seq := seqFromQueueKey(deadPrefix, item.Key())
			var env envelope
			if err := item.Value(func(val []byte) error {
				var verr error
				env, verr = unmarshalEnvelope(val)
				return verr
			}); err != nil {
				return err
			}
			dead = append(dead, &queue.DeadLetter{
				Seq:      seq,
				Task:     env.Task,
				Attempts: env.Attempts,
				Reason:   env.Reason,
				FailedAt: env.FailedAt,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return dead, nil
}

func (q *TaskQueue) RequeueDead(ctx context.Context, seq uint64) error {
	if q.backend.IsClosed() {
		return queue.ErrQueueClosed
	}

	return q.backend.WithUpdateRetry(func(tx *badgerdb.Txn) error {
		key := makeQueueKey(deadPrefix, seq)
		item, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return queue.ErrDeadLetterNotFound
			}
			return err
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			var verr error
			env, verr = unmarshalEnvelope(val)
			return verr
		}); err != nil {
			return err
		}

		// Fresh delivery budget.
		env.Attempts = 0
		env.Deadline = time.Time{}
		env.Reason = ""
		env.FailedAt = time.Time{}

		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Set(makeQueueKey(pendingPrefix, seq), marshalEnvelope(env)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (q *TaskQueue) Stats(ctx context.Context) (queue.Stats, error) {
	if q.backend.IsClosed() {
		return queue.Stats{}, queue.ErrQueueClosed
	}

	var stats queue.Stats
	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		var err error
		if stats.Pending, err = countPrefix(tx, pendingPrefix); err != nil {
			return err
		}
		if stats.Inflight, err = countPrefix(tx, inflightPrefix); err != nil {
			return err
		}
		stats.Dead, err = countPrefix(tx, deadPrefix)
		return err
	}, false)
	return stats, err
}

func countPrefix(tx *badgerdb.Txn, prefix string) (int, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	count := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		count++
	}
	return count, nil
}

func (q *TaskQueue) reapLoop() {
	defer q.reaperWG.Done()

	ticker := time.NewTicker(q.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			if err := q.reapExpired(); err != nil {
				q.logger.Error("lease reaper sweep failed", "error", err)
			}
		}
	}
}

// reapExpired moves in-flight tasks whose lease has run out back to the
// pending queue, or to the dead-letter queue once their delivery budget is
// spent.
func (q *TaskQueue) reapExpired() error {
	if q.backend.IsClosed() {
		return nil
	}

	type expired struct {
		seq uint64
		env envelope
	}

	return q.backend.WithUpdateRetry(func(tx *badgerdb.Txn) error {
		now := time.Now()
		var found []expired

		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(inflightPrefix)
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			seq := seqFromQueueKey(inflightPrefix, item.Key())
			var env envelope
			if err := item.Value(func(val []byte) error {
				var verr error
				env, verr = unmarshalEnvelope(val)
				return verr
			}); err != nil {
				iter.Close()
				return err
			}
			if env.Deadline.Before(now) {
				found = append(found, expired{seq: seq, env: env})
			}
		}
		iter.Close()

		if len(found) == 0 {
			return nil
		}

		for _, e := range found {
			if err := tx.Delete(makeQueueKey(inflightPrefix, e.seq)); err != nil {
				return err
			}
			if err := q.writeReleased(tx, e.seq, e.env, true, "visibility timeout expired"); err != nil {
				return err
			}
			q.logger.Debug("expired lease released",
				"document_id", e.env.Task.DocumentId,
				"attempts", e.env.Attempts)
		}
		return tx.Commit()
	})
}
