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
	"log/slog"
	"time"

	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/queue"
	"github.com/poiesic/ragd/storage"
)

// Intake is the write side of the pipeline: it persists a document and
// enqueues an embedding task for it. Embedding never happens inline; the
// document stays pending until a worker picks the task up.
type Intake struct {
	repository storage.DocumentRepository
	tasks      queue.TaskQueue
	logger     *slog.Logger
}

// NewIntake creates the document intake.
func NewIntake(repository storage.DocumentRepository, tasks queue.TaskQueue, logger *slog.Logger) (*Intake, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if tasks == nil {
		return nil, ErrQueueRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		repository: repository,
		tasks:      tasks,
		logger:     logger,
	}, nil
}

// Ingest persists a document and queues it for embedding. The returned
// document has its store-assigned ID and checksum; its embedding appears
// asynchronously.
func (in *Intake) Ingest(ctx context.Context, content string, metadata core.Metadata) (*core.Document, error) {
	doc, err := in.repository.PutDocument(ctx, content, metadata)
	if err != nil {
		return nil, err
	}

	task := core.IngestionTask{
		DocumentId: doc.Id,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := in.tasks.Enqueue(ctx, task); err != nil {
		// The document is stored but has no task: it stays pending until
		// a re-embed sweep finds it.
		in.logger.Error("document stored but embedding task not enqueued",
			"document_id", doc.Id, "err", err)
		return nil, err
	}

	in.logger.Debug("document ingested", "document_id", doc.Id, "bytes", len(content))
	return doc, nil
}
