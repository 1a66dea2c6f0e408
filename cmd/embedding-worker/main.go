// embedding-worker runs the River worker that keeps paragraph embeddings in
// sync with message content. The story service enqueues a job on every
// message content change or deletion; this process embeds or clears the rows.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/storyweave/backend/internal/config"
	"github.com/storyweave/backend/internal/jobs"
	"github.com/storyweave/backend/internal/observability"
	"github.com/storyweave/backend/internal/repository"
	"github.com/storyweave/backend/internal/service"
	"github.com/storyweave/backend/internal/workers"
	"github.com/storyweave/backend/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1

	embeddingMaxConcurrent = 4
	stopTimeout            = 30 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meterProvider, err := observability.NewMeterProvider(cfg)
	if err != nil {
		slog.Error("Failed to create meter provider", "error", err)

		return exitFailure
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()

		if err := observability.ShutdownMeterProvider(shutdownCtx, meterProvider); err != nil {
			slog.Error("Meter provider shutdown failed", "error", err)
		}
	}()

	var metrics observability.EmbeddingMetrics

	if meterProvider != nil {
		metrics, err = observability.NewEmbeddingMetrics(meterProvider.Meter("storyweave-embedding-worker"))
		if err != nil {
			slog.Error("Failed to create embedding metrics", "error", err)

			return exitFailure
		}
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	embeddingClient, err := service.NewEmbeddingClient(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create embedding client", "error", err)

		return exitFailure
	}

	messagesRepo := repository.NewMessagesRepository(db)
	embeddingsRepo := repository.NewParagraphEmbeddingsRepository(db)
	refreshService := service.NewRefreshService(
		embeddingsRepo,
		messagesRepo,
		embeddingClient,
		cfg.EmbeddingModel,
		cfg.RebuildMaxParagraphsPerMessage,
		logger,
		metrics,
	)

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewMessageEmbeddingWorker(messagesRepo, refreshService, metrics))

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			jobs.QueueEmbeddings: {MaxWorkers: embeddingMaxConcurrent},
		},
		Workers: riverWorkers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)

		return exitFailure
	}

	runErr := make(chan error, 1)

	go func() {
		if err := riverClient.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	slog.Info("Embedding worker started",
		"queue", jobs.QueueEmbeddings,
		"provider", cfg.EmbeddingProvider,
		"model", cfg.EmbeddingModel,
	)

	select {
	case err := <-runErr:
		slog.Error("Worker failed", "error", err)

		return exitFailure
	case <-ctx.Done():
	}

	slog.Info("Shutting down embedding worker")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := riverClient.Stop(stopCtx); err != nil {
		slog.Error("River stop failed", "error", err)

		return exitFailure
	}

	return exitSuccess
}
