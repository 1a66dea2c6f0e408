// rebuild-embeddings re-embeds stored messages whose paragraph embeddings are
// missing or stale. Up-to-date messages are skipped, so it is safe to run
// repeatedly (e.g. after a model change with -force, or on a schedule without).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/storyweave/backend/internal/config"
	"github.com/storyweave/backend/internal/observability"
	"github.com/storyweave/backend/internal/repository"
	"github.com/storyweave/backend/internal/service"
	"github.com/storyweave/backend/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	storyFlag := flag.String("story", "", "restrict the rebuild to one story ID (default: all stories)")
	forceFlag := flag.Bool("force", false, "re-embed every message regardless of stored state")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	var storyID *uuid.UUID

	if *storyFlag != "" {
		id, err := uuid.Parse(*storyFlag)
		if err != nil {
			slog.Error("Invalid story ID", "story", *storyFlag, "error", err)

			return exitFailure
		}

		storyID = &id
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		nil,
	)

	var limiter *rate.Limiter

	if cfg.EmbeddingRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1)
	}

	rebuildService := service.NewRebuildService(
		messagesRepo,
		embeddingsRepo,
		refreshService,
		cfg.RebuildMaxParagraphsPerMessage,
		limiter,
		logger,
	)

	slog.Info("Starting embedding rebuild",
		"provider", cfg.EmbeddingProvider,
		"model", cfg.EmbeddingModel,
		"force", *forceFlag,
		"story", *storyFlag,
	)

	progress, err := rebuildService.Rebuild(ctx, service.RebuildOptions{
		StoryID:          storyID,
		Force:            *forceFlag,
		ProgressInterval: cfg.RebuildProgressInterval,
		OnProgress: func(p service.RebuildProgress) {
			slog.Info("Rebuild progress",
				"completed", p.Completed,
				"total", p.Total,
				"fraction", p.Fraction(),
				"refreshed", p.Refreshed,
				"skipped", p.Skipped,
				"failed", p.Failed,
				"story_id", p.StoryID,
				"message_id", p.MessageID,
			)
		},
	})
	if err != nil {
		slog.Error("Rebuild aborted",
			"completed", progress.Completed,
			"total", progress.Total,
			"error", err,
		)

		return exitFailure
	}

	slog.Info("Rebuild complete",
		"total", progress.Total,
		"refreshed", progress.Refreshed,
		"skipped", progress.Skipped,
		"failed", progress.Failed,
	)

	if progress.Failed > 0 {
		return exitFailure
	}

	return exitSuccess
}
