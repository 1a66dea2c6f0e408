package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/storyweave/backend/internal/models"
	"github.com/storyweave/backend/pkg/paragraphs"
)

// MessageLister lists messages eligible for embedding.
type MessageLister interface {
	ListEmbeddingCandidates(ctx context.Context, storyID *uuid.UUID) ([]models.MessageForEmbedding, error)
}

// EmbeddingMetaReader aggregates stored embedding rows per message.
type EmbeddingMetaReader interface {
	GroupMetadataByMessage(ctx context.Context, storyID *uuid.UUID) (map[uuid.UUID]models.MessageEmbeddingMeta, error)
}

// MessageRefresher re-embeds a single message. Satisfied by *RefreshService.
type MessageRefresher interface {
	Refresh(ctx context.Context, storyID, messageID uuid.UUID, content string, isQuery bool) ([]string, error)
}

// RebuildOptions controls one rebuild run.
type RebuildOptions struct {
	// StoryID restricts the run to one story; nil rebuilds everything.
	StoryID *uuid.UUID
	// Force re-embeds every candidate regardless of stored state.
	Force bool
	// ProgressInterval is how many messages between OnProgress calls; the
	// final message always reports. Non-positive disables interval reports.
	ProgressInterval int
	// OnProgress, when set, receives progress snapshots.
	OnProgress func(RebuildProgress)
}

// RebuildProgress is a snapshot of a rebuild run. Completed == Total on the
// final report.
type RebuildProgress struct {
	Completed int
	Total     int
	Refreshed int
	Skipped   int
	Failed    int

	// StoryID and MessageID identify the most recently processed message.
	StoryID   uuid.UUID
	MessageID uuid.UUID
}

// Fraction returns completion as a value in [0, 1].
func (p RebuildProgress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}

	return float64(p.Completed) / float64(p.Total)
}

// RebuildService walks embedding candidates and re-embeds the ones whose
// stored rows are stale. Up-to-date messages are skipped without touching the
// provider, so repeated runs over a synced corpus are cheap.
type RebuildService struct {
	messages  MessageLister
	meta      EmbeddingMetaReader
	refresher MessageRefresher

	// maxParagraphs mirrors the refresh cap so the row-count staleness check
	// compares against what refresh would actually store.
	maxParagraphs int

	// limiter paces provider calls across the batch; nil disables pacing.
	limiter *rate.Limiter

	logger *slog.Logger
}

// NewRebuildService creates a RebuildService. limiter may be nil.
func NewRebuildService(
	messages MessageLister,
	meta EmbeddingMetaReader,
	refresher MessageRefresher,
	maxParagraphs int,
	limiter *rate.Limiter,
	logger *slog.Logger,
) *RebuildService {
	if logger == nil {
		logger = slog.Default()
	}

	return &RebuildService{
		messages:      messages,
		meta:          meta,
		refresher:     refresher,
		maxParagraphs: maxParagraphs,
		limiter:       limiter,
		logger:        logger,
	}
}

// Rebuild runs one pass over the scope. Per-message refresh failures are
// logged and counted but do not stop the run; context cancellation is honored
// between messages and stops it with the progress made so far.
func (s *RebuildService) Rebuild(ctx context.Context, opts RebuildOptions) (RebuildProgress, error) {
	var progress RebuildProgress

	candidates, err := s.messages.ListEmbeddingCandidates(ctx, opts.StoryID)
	if err != nil {
		return progress, fmt.Errorf("list embedding candidates: %w", err)
	}

	progress.Total = len(candidates)
	if progress.Total == 0 {
		return progress, nil
	}

	var metas map[uuid.UUID]models.MessageEmbeddingMeta

	if !opts.Force {
		metas, err = s.meta.GroupMetadataByMessage(ctx, opts.StoryID)
		if err != nil {
			return progress, fmt.Errorf("load embedding metadata: %w", err)
		}
	}

	for i, msg := range candidates {
		if err := ctx.Err(); err != nil {
			return progress, fmt.Errorf("rebuild cancelled: %w", err)
		}

		if opts.Force || s.isStale(msg, metas) {
			if err := s.refreshOne(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return progress, fmt.Errorf("rebuild cancelled: %w", ctx.Err())
				}

				progress.Failed++
				s.logger.Error("Rebuild failed for message",
					"story_id", msg.StoryID, "message_id", msg.ID, "error", err)
			} else {
				progress.Refreshed++
			}
		} else {
			progress.Skipped++
		}

		progress.Completed = i + 1
		progress.StoryID = msg.StoryID
		progress.MessageID = msg.ID
		s.report(opts, progress)
	}

	return progress, nil
}

// isStale reports whether a message's stored rows need rebuilding. Stored
// state is fresh only when rows exist, the row count matches the message's
// capped paragraph count, every row has a positive dimension, and the stored
// timestamps are not older than the message's last content change.
func (s *RebuildService) isStale(msg models.MessageForEmbedding, metas map[uuid.UUID]models.MessageEmbeddingMeta) bool {
	meta, ok := metas[msg.ID]
	if !ok || meta.RowCount == 0 {
		return true
	}

	wantRows := len(capParagraphs(paragraphs.Split(msg.Content), s.maxParagraphs))
	if meta.RowCount != wantRows {
		return true
	}

	if meta.MinDimensions <= 0 {
		return true
	}

	return meta.LatestUpdatedAt.Before(msg.UpdatedAt)
}

func (s *RebuildService) refreshOne(ctx context.Context, msg models.MessageForEmbedding) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	if _, err := s.refresher.Refresh(ctx, msg.StoryID, msg.ID, msg.Content, msg.IsQuery); err != nil {
		return err
	}

	return nil
}

func (s *RebuildService) report(opts RebuildOptions, progress RebuildProgress) {
	if opts.OnProgress == nil {
		return
	}

	atInterval := opts.ProgressInterval > 0 && progress.Completed%opts.ProgressInterval == 0
	if atInterval || progress.Completed == progress.Total {
		opts.OnProgress(progress)
	}
}
