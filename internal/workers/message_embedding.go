// Package workers provides River job workers for the embedding pipeline.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/storyweave/backend/internal/apperrors"
	"github.com/storyweave/backend/internal/jobs"
	"github.com/storyweave/backend/internal/models"
	"github.com/storyweave/backend/internal/observability"
)

// MessageEmbeddingWorker refreshes the paragraph embeddings of one message
// per job. It reloads the message so the job always embeds current content.
type MessageEmbeddingWorker struct {
	river.WorkerDefaults[jobs.MessageEmbeddingArgs]

	messages  messageLoader
	refresher embeddingRefresher
	metrics   observability.EmbeddingMetrics
}

// messageLoader is the minimal message read interface needed by the worker.
type messageLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
}

// embeddingRefresher is the refresh surface needed by the worker.
type embeddingRefresher interface {
	Refresh(ctx context.Context, storyID, messageID uuid.UUID, content string, isQuery bool) ([]string, error)
	DeleteForMessage(ctx context.Context, storyID, messageID uuid.UUID) error
}

// NewMessageEmbeddingWorker creates a worker that loads the message and
// refreshes or clears its embeddings. metrics may be nil when metrics are disabled.
func NewMessageEmbeddingWorker(
	messages messageLoader,
	refresher embeddingRefresher,
	metrics observability.EmbeddingMetrics,
) *MessageEmbeddingWorker {
	return &MessageEmbeddingWorker{
		messages:  messages,
		refresher: refresher,
		metrics:   metrics,
	}
}

// messageEmbeddingTimeout bounds one job; long messages embed many paragraphs.
const messageEmbeddingTimeout = 5 * time.Minute

// Timeout limits how long a single embedding refresh job can run.
func (w *MessageEmbeddingWorker) Timeout(*river.Job[jobs.MessageEmbeddingArgs]) time.Duration {
	return messageEmbeddingTimeout
}

// Work loads the message and refreshes its embeddings, or clears them when
// the message is gone. Transient failures retry up to the job's attempt cap.
func (w *MessageEmbeddingWorker) Work(ctx context.Context, job *river.Job[jobs.MessageEmbeddingArgs]) error {
	args := job.Args

	msg, err := w.messages.GetByID(ctx, args.MessageID)
	if err != nil {
		var notFound *apperrors.NotFoundError
		if errors.As(err, &notFound) {
			// Hard-deleted message: clear any rows it left behind.
			return w.clearEmbeddings(ctx, args.StoryID, args.MessageID)
		}

		if w.metrics != nil {
			w.metrics.RecordWorkerError(ctx, "get_message_failed")
		}

		if job.Attempt >= job.MaxAttempts {
			slog.Error("embedding: get message failed (final attempt)",
				"message_id", args.MessageID,
				"error", err,
			)

			return nil
		}

		return fmt.Errorf("get message: %w", err)
	}

	if msg.Deleted {
		return w.clearEmbeddings(ctx, args.StoryID, args.MessageID)
	}

	_, err = w.refresher.Refresh(ctx, msg.StoryID, msg.ID, msg.Content, msg.IsQuery)
	if err != nil {
		if w.metrics != nil {
			w.metrics.RecordWorkerError(ctx, "refresh_failed")
		}

		if job.Attempt >= job.MaxAttempts {
			slog.Error("embedding: refresh failed (final attempt)",
				"story_id", msg.StoryID,
				"message_id", msg.ID,
				"error", err,
			)

			return nil
		}

		return fmt.Errorf("refresh message embeddings: %w", err)
	}

	return nil
}

func (w *MessageEmbeddingWorker) clearEmbeddings(ctx context.Context, storyID, messageID uuid.UUID) error {
	if err := w.refresher.DeleteForMessage(ctx, storyID, messageID); err != nil {
		if w.metrics != nil {
			w.metrics.RecordWorkerError(ctx, "delete_failed")
		}

		return fmt.Errorf("clear embeddings for deleted message: %w", err)
	}

	slog.Info("embedding: cleared (message deleted)",
		"story_id", storyID,
		"message_id", messageID,
	)

	return nil
}
