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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/queue"
	"github.com/poiesic/ragd/storage"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultTaskTimeout  = 30 * time.Second
)

// WorkerStats counts task outcomes since the worker started.
type WorkerStats struct {
	Embedded     uint64
	Requeued     uint64
	DeadLettered uint64
}

// Worker drains the ingestion queue and materializes embeddings. Task
// handling is fanned out over an ants pool; the queue's lease semantics
// make concurrent handling safe, and the store's idempotent upsert makes
// redelivery safe.
type Worker struct {
	repository storage.DocumentRepository
	tasks      queue.TaskQueue
	embedder   ai.Embedder
	pool       *ants.Pool
	logger     *slog.Logger

	pollInterval time.Duration
	taskTimeout  time.Duration

	embedded     atomic.Uint64
	requeued     atomic.Uint64
	deadLettered atomic.Uint64

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) WorkerOption {
	return func(w *Worker) error {
		if size < 1 {
			size = 1
		}
		if w.pool != nil {
			w.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		w.pool = pool
		return nil
	}
}

// WithPollInterval sets how long the dispatcher sleeps when the queue is
// empty.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		w.pollInterval = d
		return nil
	}
}

// WithTaskTimeout bounds how long a single task may spend loading,
// embedding, and storing before it is abandoned and requeued. It should
// stay below the queue's visibility timeout.
func WithTaskTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) error {
		if d <= 0 {
			return errors.New("task timeout must be positive")
		}
		w.taskTimeout = d
		return nil
	}
}

// WithWorkerLogger sets a custom logger.
// Default is slog.Default().
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWorker creates an embedding worker. Call Start to begin draining the
// queue.
func NewWorker(
	repository storage.DocumentRepository,
	tasks queue.TaskQueue,
	provider ai.Provider,
	opts ...WorkerOption,
) (*Worker, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if tasks == nil {
		return nil, ErrQueueRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		repository:   repository,
		tasks:        tasks,
		embedder:     provider.Embedder(),
		pool:         pool,
		logger:       slog.Default(),
		pollInterval: defaultPollInterval,
		taskTimeout:  defaultTaskTimeout,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		if optErr := opt(w); optErr != nil {
			w.pool.Release()
			return nil, optErr
		}
	}
	return w, nil
}

// Start launches the dispatcher goroutine.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.dispatch()
	})
}

// Stop halts the dispatcher and waits for in-flight tasks to finish, then
// releases the pool. Unacked tasks return to the queue via their lease.
func (w *Worker) Stop() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.pool.Release()
	})
}

// Stats returns a snapshot of task outcome counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Embedded:     w.embedded.Load(),
		Requeued:     w.requeued.Load(),
		DeadLettered: w.deadLettered.Load(),
	}
}

func (w *Worker) dispatch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		delivery, err := w.tasks.Dequeue(context.Background())
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				w.logger.Error("dequeue failed", "err", err)
			}
			select {
			case <-w.done:
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}

		w.wg.Add(1)
		submitErr := w.pool.Submit(func() {
			defer w.wg.Done()
			w.handle(context.Background(), delivery)
		})
		if submitErr != nil {
			w.wg.Done()
			w.logger.Error("pool submit failed", "err", submitErr)
			if nackErr := w.tasks.Nack(context.Background(), delivery, true, "worker pool unavailable"); nackErr != nil {
				w.logger.Error("nack failed", "err", nackErr)
			}
		}
	}
}

// handle processes one leased task end to end. The embedding is upserted
// before the ack: a crash between the two redelivers the task, and the
// idempotent upsert absorbs the duplicate.
func (w *Worker) handle(ctx context.Context, d *queue.Delivery) {
	// The timeout covers only the embed work; ack and nack below must not
	// ride a context that the slow provider already burned through.
	embedCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	err := w.embed(embedCtx, d.Task.DocumentId)
	cancel()
	switch {
	case err == nil:
		if ackErr := w.tasks.Ack(ctx, d); ackErr != nil {
			w.logger.Warn("ack failed, task will be redelivered",
				"document_id", d.Task.DocumentId, "err", ackErr)
			return
		}
		w.embedded.Add(1)
		w.logger.Debug("document embedded",
			"document_id", d.Task.DocumentId, "attempt", d.Attempt)

	case isPermanentFailure(err):
		w.deadLettered.Add(1)
		w.logger.Error("embedding task rejected",
			"document_id", d.Task.DocumentId, "err", err)
		if nackErr := w.tasks.Nack(ctx, d, false, err.Error()); nackErr != nil {
			w.logger.Error("nack failed", "err", nackErr)
		}

	default:
		w.requeued.Add(1)
		w.logger.Warn("embedding task failed, requeueing",
			"document_id", d.Task.DocumentId, "attempt", d.Attempt, "err", err)
		if nackErr := w.tasks.Nack(ctx, d, true, err.Error()); nackErr != nil {
			w.logger.Error("nack failed", "err", nackErr)
		}
	}
}

// embed loads the document, verifies its checksum, embeds the content,
// and stores the vector.
func (w *Worker) embed(ctx context.Context, id core.ID) error {
	doc, err := w.repository.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	if core.ContentChecksum(doc.Content) != doc.Checksum {
		return fmt.Errorf("%w: document %d", ErrChecksumMismatch, id)
	}

	vector, err := w.embedder.EmbedText(ctx, doc.Content)
	if err != nil {
		return err
	}

	return w.repository.UpsertEmbedding(ctx, id, vector)
}

// isPermanentFailure reports whether retrying the task could not help: the
// document is gone, its content is corrupt, the provider refused the
// request outright, or the vector cannot fit the store.
func isPermanentFailure(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrDimensionMismatch) ||
		errors.Is(err, ErrChecksumMismatch) ||
		ai.IsRejected(err)
}
