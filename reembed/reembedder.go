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

package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/core"
	"github.com/poiesic/ragd/storage"
)

// Config holds configuration for a re-embed run.
type Config struct {
	// BatchSize is the number of documents embedded per provider call.
	BatchSize int

	// ReportInterval is how often progress is reported (in documents).
	ReportInterval int

	// PendingOnly skips documents that already have an embedding, turning
	// the run into a repair sweep for documents whose embedding task was
	// lost.
	PendingOnly bool

	// Retry controls the backoff applied to transient provider failures.
	// Nil means the default policy.
	Retry *ai.RetryConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
	}
}

// Reembedder re-embeds the documents in a store, for instance after
// switching embedding models.
type Reembedder struct {
	repo      storage.DocumentRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *DocumentIterator
}

// NewReembedder creates a reembedder.
// progress: where to write progress output (typically os.Stderr).
func NewReembedder(repo storage.DocumentRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.Retry),
		iterator:  NewDocumentIterator(repo, config.BatchSize),
	}
}

// Run executes the re-embed. Every document in the store is re-embedded
// (or, with PendingOnly, only those missing an embedding); progress goes
// to the configured writer.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.repo.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents in store\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Re-embedding up to %d documents (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	embedded := 0
	err = r.iterator.ForEach(ctx, func(docs []*core.Document) error {
		batch := docs
		if r.config.PendingOnly {
			batch, err = r.withoutEmbedded(ctx, docs)
			if err != nil {
				return err
			}
		}

		if err := r.processor.Process(ctx, batch); err != nil {
			return err
		}

		embedded += len(batch)
		tracker.Increment(len(docs))
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()
	fmt.Fprintf(r.progress, "Embedded %d documents in %s\n",
		embedded, tracker.Elapsed().Round(10*time.Millisecond))
	return nil
}

// withoutEmbedded filters a batch down to the documents that have no
// embedding record yet.
func (r *Reembedder) withoutEmbedded(ctx context.Context, docs []*core.Document) ([]*core.Document, error) {
	pending := make([]*core.Document, 0, len(docs))
	for _, doc := range docs {
		_, err := r.repo.GetEmbedding(ctx, doc.Id)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		pending = append(pending, doc)
	}
	return pending, nil
}
