package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyweave/backend/internal/apperrors"
	"github.com/storyweave/backend/internal/models"
)

// MessagesRepository handles data access for the messages table. The table is
// owned by the story service; this repository only reads it and maintains the
// cached paragraphs column.
type MessagesRepository struct {
	db *pgxpool.Pool
}

// NewMessagesRepository creates a new messages repository.
func NewMessagesRepository(db *pgxpool.Pool) *MessagesRepository {
	return &MessagesRepository{db: db}
}

const messageColumns = `id, story_id, node_id, content, paragraphs, is_query, deleted, sequence,
	updated_at, sentence_summary, paragraph_summary, full_summary`

// GetByID returns a message by ID. Returns *apperrors.NotFoundError when no
// row exists, which callers use to distinguish "message was removed" from a
// transient database failure.
func (r *MessagesRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1`, id)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("message", id.String())
		}

		return nil, fmt.Errorf("get message by id: %w", err)
	}

	return msg, nil
}

// GetByIDs returns the messages with the given IDs keyed by ID. Missing IDs
// are silently absent from the result.
func (r *MessagesRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Message, error) {
	out := make(map[uuid.UUID]*models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get messages by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		out[msg.ID] = msg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return out, nil
}

// UpdateParagraphs writes the cached paragraph split for a message. This is
// the only messages column the embedding pipeline owns.
func (r *MessagesRepository) UpdateParagraphs(ctx context.Context, id uuid.UUID, paragraphs []string) error {
	encoded, err := json.Marshal(paragraphs)
	if err != nil {
		return fmt.Errorf("marshal paragraphs: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET paragraphs = $2 WHERE id = $1`, id, encoded)
	if err != nil {
		return fmt.Errorf("update message paragraphs: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("message", id.String())
	}

	return nil
}

// ListEmbeddingCandidates returns every message eligible for embedding,
// optionally restricted to one story. Deleted and query messages never
// qualify. Order is (story, sequence) so rebuild progress walks stories in a
// predictable order.
func (r *MessagesRepository) ListEmbeddingCandidates(
	ctx context.Context, storyID *uuid.UUID,
) ([]models.MessageForEmbedding, error) {
	query := `
		SELECT id, story_id, content, is_query, sequence, updated_at
		FROM messages
		WHERE NOT deleted AND NOT is_query`

	var args []any

	if storyID != nil {
		query += ` AND story_id = $1`

		args = append(args, *storyID)
	}

	query += ` ORDER BY story_id, sequence`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list embedding candidates: %w", err)
	}
	defer rows.Close()

	var out []models.MessageForEmbedding

	for rows.Next() {
		var m models.MessageForEmbedding

		if err := rows.Scan(&m.ID, &m.StoryID, &m.Content, &m.IsQuery, &m.Sequence, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding candidate: %w", err)
		}

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedding candidates: %w", err)
	}

	return out, nil
}

// messageRow is satisfied by both pgx.Row and pgx.Rows.
type messageRow interface {
	Scan(dest ...any) error
}

func scanMessage(row messageRow) (*models.Message, error) {
	var (
		msg        models.Message
		paragraphs []byte
	)

	if err := row.Scan(&msg.ID, &msg.StoryID, &msg.NodeID, &msg.Content, &paragraphs,
		&msg.IsQuery, &msg.Deleted, &msg.Sequence, &msg.UpdatedAt,
		&msg.SentenceSummary, &msg.ParagraphSummary, &msg.FullSummary); err != nil {
		return nil, err
	}

	if len(paragraphs) > 0 {
		if err := json.Unmarshal(paragraphs, &msg.Paragraphs); err != nil {
			return nil, fmt.Errorf("decode paragraphs for %s: %w", msg.ID, err)
		}
	}

	return &msg, nil
}
