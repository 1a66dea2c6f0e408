package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyweave/backend/internal/models"
	"github.com/storyweave/backend/internal/observability"
	"github.com/storyweave/backend/pkg/paragraphs"
)

// EmbeddingStore is the write side of the paragraph embeddings table used by refresh.
type EmbeddingStore interface {
	DeleteAllForMessage(ctx context.Context, storyID, messageID uuid.UUID) error
	InsertMany(ctx context.Context, records []models.ParagraphEmbedding) error
}

// ParagraphCacheWriter updates the denormalized paragraph split on a message.
type ParagraphCacheWriter interface {
	UpdateParagraphs(ctx context.Context, id uuid.UUID, paragraphs []string) error
}

// RefreshService keeps a message's paragraph embeddings in sync with its
// content. Each refresh deletes the message's old rows and recreates them
// from the current paragraph split, so stored state never mixes generations.
type RefreshService struct {
	store    EmbeddingStore
	messages ParagraphCacheWriter
	client   EmbeddingClient
	model    string

	// maxParagraphs truncates over-long messages; negative means unlimited.
	maxParagraphs int

	logger  *slog.Logger
	metrics observability.EmbeddingMetrics
}

// NewRefreshService creates a RefreshService. metrics may be nil (disabled).
func NewRefreshService(
	store EmbeddingStore,
	messages ParagraphCacheWriter,
	client EmbeddingClient,
	model string,
	maxParagraphs int,
	logger *slog.Logger,
	metrics observability.EmbeddingMetrics,
) *RefreshService {
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshService{
		store:         store,
		messages:      messages,
		client:        client,
		model:         model,
		maxParagraphs: maxParagraphs,
		logger:        logger,
		metrics:       metrics,
	}
}

// Refresh re-derives and stores the paragraph embeddings for one message. It
// returns the full paragraph split (also persisted on the message), which
// callers may use without re-splitting.
//
// Old rows are always deleted first, even for query or empty messages, so a
// message edited into an exempt state sheds its stale vectors. A provider
// failure aborts before any insert: the message is left with no rows rather
// than a partial set, and the error propagates for retry.
func (s *RefreshService) Refresh(
	ctx context.Context, storyID, messageID uuid.UUID, content string, isQuery bool,
) ([]string, error) {
	start := time.Now()

	split := paragraphs.Split(content)

	if err := s.messages.UpdateParagraphs(ctx, messageID, split); err != nil {
		return nil, fmt.Errorf("update paragraph cache: %w", err)
	}

	if err := s.store.DeleteAllForMessage(ctx, storyID, messageID); err != nil {
		return nil, fmt.Errorf("delete stale embeddings: %w", err)
	}

	if isQuery {
		s.recordOutcome(ctx, "skipped_query", start)

		return split, nil
	}

	if len(split) == 0 {
		s.recordOutcome(ctx, "skipped_empty", start)

		return split, nil
	}

	records, err := s.embedParagraphs(ctx, storyID, messageID, capParagraphs(split, s.maxParagraphs))
	if err != nil {
		s.recordOutcome(ctx, "failed", start)

		if s.metrics != nil {
			s.metrics.RecordProviderError(ctx, "embed_failed")
		}

		return nil, err
	}

	if err := s.store.InsertMany(ctx, records); err != nil {
		s.recordOutcome(ctx, "failed", start)

		return nil, fmt.Errorf("insert embeddings: %w", err)
	}

	s.recordOutcome(ctx, "success", start)
	s.logger.Debug("Refreshed message embeddings",
		"story_id", storyID, "message_id", messageID, "paragraphs", len(records))

	return split, nil
}

// embedParagraphs embeds each paragraph in order. Paragraphs the provider
// returns an empty vector for are skipped with a warning; a provider error
// aborts the whole batch.
func (s *RefreshService) embedParagraphs(
	ctx context.Context, storyID, messageID uuid.UUID, split []string,
) ([]models.ParagraphEmbedding, error) {
	records := make([]models.ParagraphEmbedding, 0, len(split))

	for i, text := range split {
		vector, err := s.client.CreateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed paragraph %d of message %s: %w", i, messageID, err)
		}

		if len(vector) == 0 {
			s.logger.Warn("Provider returned empty vector, skipping paragraph",
				"story_id", storyID, "message_id", messageID, "paragraph_index", i)

			continue
		}

		records = append(records, models.ParagraphEmbedding{
			StoryID:        storyID,
			MessageID:      messageID,
			ParagraphIndex: i,
			Text:           text,
			Vector:         vector,
			Model:          s.model,
			Dimensions:     len(vector),
		})
	}

	return records, nil
}

// DeleteForMessage removes all stored embeddings for a message. Used when the
// message itself is deleted.
func (s *RefreshService) DeleteForMessage(ctx context.Context, storyID, messageID uuid.UUID) error {
	if err := s.store.DeleteAllForMessage(ctx, storyID, messageID); err != nil {
		return fmt.Errorf("delete embeddings for message %s: %w", messageID, err)
	}

	return nil
}

func (s *RefreshService) recordOutcome(ctx context.Context, status string, start time.Time) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordRefreshOutcome(ctx, status)
	s.metrics.RecordRefreshDuration(ctx, time.Since(start), status)
}
