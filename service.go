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

package ragd

import (
	"io"
	"log/slog"

	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/ai/openai"
	"github.com/poiesic/ragd/ingestion"
	"github.com/poiesic/ragd/query"
	"github.com/poiesic/ragd/queue"
	queuebadger "github.com/poiesic/ragd/queue/badger"
	"github.com/poiesic/ragd/reembed"
	"github.com/poiesic/ragd/server"
	"github.com/poiesic/ragd/storage"
	storagebadger "github.com/poiesic/ragd/storage/badger"
)

// Service owns the pipeline's shared resources: the Badger backend, the
// document repository, the ingestion queue, and the AI provider. The
// moving parts (intake, worker, orchestrator, HTTP server) are built from
// it.
type Service struct {
	backend    *storagebadger.Backend
	repository storage.DocumentRepository
	tasks      queue.TaskQueue
	provider   ai.Provider
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig  *ai.Config
	retry     *ai.RetryConfig
	provider  ai.Provider
	queueOpts []queuebadger.Option
	inMemory  bool
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(config *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.aiConfig = config
	}
}

// WithRetryConfig sets the backoff policy for transient provider failures.
func WithRetryConfig(retry *ai.RetryConfig) ServiceOption {
	return func(o *serviceOptions) {
		o.retry = retry
	}
}

// WithProvider injects an AI provider, bypassing the OpenAI-compatible
// one. Used by tests.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithQueueOptions passes options through to the ingestion queue.
func WithQueueOptions(opts ...queuebadger.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.queueOpts = append(o.queueOpts, opts...)
	}
}

// WithInMemory keeps everything in memory; nothing is persisted. Used by
// tests.
func WithInMemory() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// NewService opens the store at filePath and wires the shared resources.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	backend, err := storagebadger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	repository, err := storagebadger.NewDocumentRepository(backend, options.aiConfig.Dimension)
	if err != nil {
		backend.Close()
		return nil, err
	}

	tasks, err := queuebadger.NewTaskQueue(backend, options.queueOpts...)
	if err != nil {
		repository.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig, options.retry)
		if err != nil {
			tasks.Close()
			repository.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Service{
		backend:    backend,
		repository: repository,
		tasks:      tasks,
		provider:   provider,
		logger:     slog.Default(),
	}, nil
}

// Close releases everything in reverse dependency order.
func (s *Service) Close() error {
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.tasks.Close(); err != nil {
		s.logger.Error("error closing task queue", "err", err)
		return err
	}
	if err := s.repository.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Repository returns the document repository.
func (s *Service) Repository() storage.DocumentRepository {
	return s.repository
}

// TaskQueue returns the ingestion task queue.
func (s *Service) TaskQueue() queue.TaskQueue {
	return s.tasks
}

// Provider returns the AI provider.
func (s *Service) Provider() ai.Provider {
	return s.provider
}

// NewIntake builds the document intake.
func (s *Service) NewIntake() (*ingestion.Intake, error) {
	return ingestion.NewIntake(s.repository, s.tasks, s.logger)
}

// NewWorker builds an embedding worker.
func (s *Service) NewWorker(opts ...ingestion.WorkerOption) (*ingestion.Worker, error) {
	return ingestion.NewWorker(s.repository, s.tasks, s.provider, opts...)
}

// NewOrchestrator builds a query orchestrator.
func (s *Service) NewOrchestrator(opts ...query.Option) (*query.Orchestrator, error) {
	return query.NewOrchestrator(s.repository, s.provider, opts...)
}

// NewServer builds the HTTP server.
func (s *Service) NewServer() (*server.Server, error) {
	intake, err := s.NewIntake()
	if err != nil {
		return nil, err
	}
	orchestrator, err := s.NewOrchestrator()
	if err != nil {
		return nil, err
	}
	return server.NewServer(intake, orchestrator, s.repository, s.tasks, s.logger), nil
}

// NewReembedder builds a re-embedder writing progress to the given writer.
func (s *Service) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(s.repository, s.provider.Embedder(), config, progress)
}
