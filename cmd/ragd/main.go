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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/ragd"
	"github.com/poiesic/ragd/ai"
	"github.com/poiesic/ragd/ai/openai"
	"github.com/poiesic/ragd/ingestion"
	queuebadger "github.com/poiesic/ragd/queue/badger"
	"github.com/poiesic/ragd/reembed"
	storagebadger "github.com/poiesic/ragd/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ragd",
		Usage: "Retrieval-augmented document store and query service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the embedding workers",
				Action: serveCommand,
				Flags: append(aiFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "addr",
						Usage: "HTTP listen address",
						Value: ":8000",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Embedding worker pool size (0 = half the CPUs)",
					},
					&cli.DurationFlag{
						Name:  "visibility-timeout",
						Usage: "How long a dequeued task stays leased",
						Value: time.Minute,
					},
					&cli.IntFlag{
						Name:  "max-deliveries",
						Usage: "Delivery attempts before a task is dead-lettered",
						Value: 5,
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate embeddings for stored documents",
				Action: reembedCommand,
				Flags: append(aiFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.BoolFlag{
						Name:  "pending-only",
						Usage: "Only embed documents that have no embedding yet",
					},
				),
			},
			{
				Name:  "dlq",
				Usage: "Inspect and recover dead-lettered ingestion tasks",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List dead-lettered tasks",
						Action: dlqListCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "db",
								Aliases:  []string{"d"},
								Usage:    "Path to BadgerDB database directory",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of tasks to list (0 = all)",
							},
						},
					},
					{
						Name:      "requeue",
						Usage:     "Move a dead-lettered task back to the pending queue",
						ArgsUsage: "<sequence number>",
						Action:    dlqRequeueCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "db",
								Aliases:  []string{"d"},
								Usage:    "Path to BadgerDB database directory",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "all",
								Usage: "Requeue every dead-lettered task",
							},
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// aiFlags are the provider flags shared by serve and reembed.
func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL for embedding and generation",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL (defaults to --host)",
		},
		&cli.StringFlag{
			Name:  "generation-host",
			Usage: "Generation service host URL (defaults to --host)",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "text-embedding-3-small",
		},
		&cli.StringFlag{
			Name:  "generation-model",
			Usage: "Default generation model name",
			Value: "gpt-4o-mini",
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "Provider API token",
			Value:   "none",
			EnvVars: []string{"RAGD_API_TOKEN"},
		},
		&cli.IntFlag{
			Name:  "dimension",
			Usage: "Embedding vector width",
			Value: 1536,
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.String("log-level"), err)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

func aiConfigFromFlags(c *cli.Context) (*ai.Config, error) {
	opts := []ai.ConfigOption{
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGenerationModel(c.String("generation-model")),
		ai.WithAPIToken(c.String("api-token")),
		ai.WithDimension(c.Int("dimension")),
	}
	if host := c.String("embedding-host"); host != "" {
		opts = append(opts, ai.WithEmbeddingHost(host))
	}
	if host := c.String("generation-host"); host != "" {
		opts = append(opts, ai.WithGenerationHost(host))
	}

	config := ai.NewConfig(opts...)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return config, nil
}

func serveCommand(c *cli.Context) error {
	aiConfig, err := aiConfigFromFlags(c)
	if err != nil {
		return err
	}

	svc, err := ragd.NewService(c.String("db"),
		ragd.WithAIConfig(aiConfig),
		ragd.WithQueueOptions(
			queuebadger.WithVisibilityTimeout(c.Duration("visibility-timeout")),
			queuebadger.WithMaxDeliveries(c.Int("max-deliveries")),
		))
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	var workerOpts []ingestion.WorkerOption
	if size := c.Int("workers"); size > 0 {
		workerOpts = append(workerOpts, ingestion.WithPoolSize(size))
	}
	worker, err := svc.NewWorker(workerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	worker.Start()
	defer worker.Stop()

	srv, err := svc.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Serve until interrupted, then drain.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(c.String("addr"))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	}
}

func reembedCommand(c *cli.Context) error {
	aiConfig, err := aiConfigFromFlags(c)
	if err != nil {
		return err
	}

	backend, err := storagebadger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := storagebadger.NewDocumentRepository(backend, aiConfig.Dimension)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		PendingOnly:    c.Bool("pending-only"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n\n", aiConfig.EmbeddingModel)

	reembedder := reembed.NewReembedder(repo, embedder, config, os.Stderr)
	if err := reembedder.Run(context.Background()); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func openQueue(c *cli.Context) (*queuebadger.TaskQueue, func(), error) {
	backend, err := storagebadger.OpenBackend(c.String("db"), false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	tasks, err := queuebadger.NewTaskQueue(backend)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("failed to open queue: %w", err)
	}

	cleanup := func() {
		tasks.Close()
		backend.Close()
	}
	return tasks, cleanup, nil
}

func dlqListCommand(c *cli.Context) error {
	tasks, cleanup, err := openQueue(c)
	if err != nil {
		return err
	}
	defer cleanup()

	dead, err := tasks.ListDead(context.Background(), c.Int("limit"))
	if err != nil {
		return err
	}
	if len(dead) == 0 {
		fmt.Println("Dead-letter queue is empty")
		return nil
	}

	fmt.Printf("%-12s %-12s %-9s %-25s %s\n", "SEQ", "DOCUMENT", "ATTEMPTS", "FAILED AT", "REASON")
	for _, d := range dead {
		fmt.Printf("%-12d %-12d %-9d %-25s %s\n",
			d.Seq, d.Task.DocumentId, d.Attempts,
			d.FailedAt.Format(time.RFC3339), d.Reason)
	}
	return nil
}

func dlqRequeueCommand(c *cli.Context) error {
	tasks, cleanup, err := openQueue(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()

	if c.Bool("all") {
		dead, err := tasks.ListDead(ctx, 0)
		if err != nil {
			return err
		}
		for _, d := range dead {
			if err := tasks.RequeueDead(ctx, d.Seq); err != nil {
				return fmt.Errorf("failed to requeue %d: %w", d.Seq, err)
			}
		}
		fmt.Printf("Requeued %d tasks\n", len(dead))
		return nil
	}

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one sequence number (or --all)")
	}
	var seq uint64
	if _, err := fmt.Sscanf(c.Args().First(), "%d", &seq); err != nil {
		return fmt.Errorf("invalid sequence number %q", c.Args().First())
	}
	if err := tasks.RequeueDead(ctx, seq); err != nil {
		return err
	}
	fmt.Printf("Requeued task %d\n", seq)
	return nil
}
