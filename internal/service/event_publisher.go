package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/storyweave/backend/internal/datatypes"
	"github.com/storyweave/backend/internal/jobs"
	"github.com/storyweave/backend/internal/observability"
)

// Event is a message lifecycle notification from the story layer.
type Event struct {
	ID        uuid.UUID
	Type      datatypes.EventType
	Timestamp time.Time
	StoryID   uuid.UUID
	MessageID uuid.UUID
}

// EmbeddingEventPublisher turns message lifecycle events into async embedding
// refresh jobs. Content changes and deletions enqueue the same job kind: the
// worker reloads the message and decides whether to re-embed or clear rows.
//
// The story service owns message writes and is the intended constructor site;
// nothing in this module's binaries wires a publisher.
type EmbeddingEventPublisher struct {
	inserter    jobs.JobInserter
	queue       string
	maxAttempts int
	logger      *slog.Logger
	metrics     observability.EmbeddingMetrics
}

// NewEmbeddingEventPublisher creates an event publisher. metrics may be nil.
func NewEmbeddingEventPublisher(
	inserter jobs.JobInserter,
	queue string,
	maxAttempts int,
	logger *slog.Logger,
	metrics observability.EmbeddingMetrics,
) *EmbeddingEventPublisher {
	if queue == "" {
		queue = jobs.QueueEmbeddings
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &EmbeddingEventPublisher{
		inserter:    inserter,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      logger,
		metrics:     metrics,
	}
}

// PublishEvent enqueues a refresh job for events that affect stored
// embeddings; other event types are ignored. Enqueue failures are logged and
// counted but never propagate: publishing must not fail the caller's write.
func (p *EmbeddingEventPublisher) PublishEvent(ctx context.Context, event Event) {
	switch event.Type {
	case datatypes.MessageContentChanged, datatypes.MessageDeleted:
	default:
		return
	}

	args := jobs.MessageEmbeddingArgs{
		StoryID:   event.StoryID,
		MessageID: event.MessageID,
	}

	_, err := p.inserter.Insert(ctx, args, &river.InsertOpts{
		Queue:       p.queue,
		MaxAttempts: p.maxAttempts,
	})
	if err != nil {
		p.logger.Error("Failed to enqueue embedding job",
			"event_type", event.Type.String(),
			"story_id", event.StoryID,
			"message_id", event.MessageID,
			"error", err,
		)

		if p.metrics != nil {
			p.metrics.RecordProviderError(ctx, "enqueue_failed")
		}

		return
	}

	if p.metrics != nil {
		p.metrics.RecordJobsEnqueued(ctx, 1)
	}
}
