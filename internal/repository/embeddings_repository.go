package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyweave/backend/internal/models"
	"github.com/storyweave/backend/pkg/embeddings"
)

// writeBatchSize caps how many rows a single delete or insert statement
// touches. Messages can carry hundreds of paragraphs; one oversized statement
// per message is traded for a short series of bounded ones.
const writeBatchSize = 200

// ParagraphEmbeddingsRepository handles data access for the paragraph_embeddings table.
// Vectors are stored as fixed-width little-endian float32 blobs (pkg/embeddings codec).
type ParagraphEmbeddingsRepository struct {
	db *pgxpool.Pool
}

// NewParagraphEmbeddingsRepository creates a new paragraph embeddings repository.
func NewParagraphEmbeddingsRepository(db *pgxpool.Pool) *ParagraphEmbeddingsRepository {
	return &ParagraphEmbeddingsRepository{db: db}
}

// DeleteAllForMessage removes every embedding row for the given message, in
// batches of writeBatchSize. Calling it when no rows exist is a no-op.
func (r *ParagraphEmbeddingsRepository) DeleteAllForMessage(ctx context.Context, storyID, messageID uuid.UUID) error {
	for {
		tag, err := r.db.Exec(ctx, `
			DELETE FROM paragraph_embeddings
			WHERE id IN (
				SELECT id FROM paragraph_embeddings
				WHERE story_id = $1 AND message_id = $2
				LIMIT $3
			)`, storyID, messageID, writeBatchSize)
		if err != nil {
			return fmt.Errorf("paragraph embeddings delete: %w", err)
		}

		if tag.RowsAffected() < writeBatchSize {
			return nil
		}
	}
}

// InsertMany bulk-inserts embedding rows in batches of writeBatchSize.
// Records get fresh IDs and timestamps when unset.
func (r *ParagraphEmbeddingsRepository) InsertMany(ctx context.Context, records []models.ParagraphEmbedding) error {
	for start := 0; start < len(records); start += writeBatchSize {
		end := start + writeBatchSize
		if end > len(records) {
			end = len(records)
		}

		if err := r.insertBatch(ctx, records[start:end]); err != nil {
			return err
		}
	}

	return nil
}

// insertBatch builds one multi-row INSERT for the chunk.
func (r *ParagraphEmbeddingsRepository) insertBatch(ctx context.Context, records []models.ParagraphEmbedding) error {
	if len(records) == 0 {
		return nil
	}

	const columnsPerRow = 10

	var sb strings.Builder

	sb.WriteString(`
		INSERT INTO paragraph_embeddings
			(id, story_id, message_id, paragraph_index, paragraph_text, vector, model, dimensions, created_at, updated_at)
		VALUES `)

	args := make([]any, 0, len(records)*columnsPerRow)
	now := time.Now()

	for i, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.Must(uuid.NewV7())
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		updatedAt := rec.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}

		if i > 0 {
			sb.WriteString(", ")
		}

		base := i * columnsPerRow
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))

		args = append(args,
			rec.ID, rec.StoryID, rec.MessageID, rec.ParagraphIndex, rec.Text,
			embeddings.Encode(rec.Vector), rec.Model, rec.Dimensions, createdAt, updatedAt,
		)
	}

	if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("paragraph embeddings insert: %w", err)
	}

	return nil
}

// FindByMessage returns the stored rows for one message ordered by paragraph index.
func (r *ParagraphEmbeddingsRepository) FindByMessage(
	ctx context.Context, storyID, messageID uuid.UUID,
) ([]models.ParagraphEmbedding, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, story_id, message_id, paragraph_index, paragraph_text, vector, model, dimensions, created_at, updated_at
		FROM paragraph_embeddings
		WHERE story_id = $1 AND message_id = $2
		ORDER BY paragraph_index`, storyID, messageID)
	if err != nil {
		return nil, fmt.Errorf("find by message: %w", err)
	}
	defer rows.Close()

	return scanParagraphEmbeddings(rows)
}

// FindByStoryScope returns all embedding rows for the scope, optionally
// restricted to one story. Rows whose owning message is deleted or is a query
// message are excluded. Order is deterministic (story, message, paragraph) so
// equal-score search results keep a stable tie-break across runs.
func (r *ParagraphEmbeddingsRepository) FindByStoryScope(
	ctx context.Context, storyID *uuid.UUID,
) ([]models.ParagraphEmbedding, error) {
	query := `
		SELECT e.id, e.story_id, e.message_id, e.paragraph_index, e.paragraph_text, e.vector,
		       e.model, e.dimensions, e.created_at, e.updated_at
		FROM paragraph_embeddings e
		INNER JOIN messages m ON m.id = e.message_id
		WHERE NOT m.deleted AND NOT m.is_query`

	var args []any

	if storyID != nil {
		query += ` AND e.story_id = $1`

		args = append(args, *storyID)
	}

	query += ` ORDER BY e.story_id, e.message_id, e.paragraph_index`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by story scope: %w", err)
	}
	defer rows.Close()

	return scanParagraphEmbeddings(rows)
}

// GroupMetadataByMessage returns, per (story, message): the latest updated_at,
// the row count, and the minimum dimension across rows. The rebuild scheduler
// compares these against each message's current state to classify staleness.
func (r *ParagraphEmbeddingsRepository) GroupMetadataByMessage(
	ctx context.Context, storyID *uuid.UUID,
) (map[uuid.UUID]models.MessageEmbeddingMeta, error) {
	query := `
		SELECT story_id, message_id, MAX(updated_at), COUNT(*), MIN(dimensions)
		FROM paragraph_embeddings`

	var args []any

	if storyID != nil {
		query += ` WHERE story_id = $1`

		args = append(args, *storyID)
	}

	query += ` GROUP BY story_id, message_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group metadata by message: %w", err)
	}
	defer rows.Close()

	metas := make(map[uuid.UUID]models.MessageEmbeddingMeta)

	for rows.Next() {
		var meta models.MessageEmbeddingMeta

		var count int64

		if err := rows.Scan(&meta.StoryID, &meta.MessageID, &meta.LatestUpdatedAt, &count, &meta.MinDimensions); err != nil {
			return nil, fmt.Errorf("scan embedding metadata: %w", err)
		}

		meta.RowCount = int(count)
		metas[meta.MessageID] = meta
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedding metadata: %w", err)
	}

	return metas, nil
}

// rowScanner is satisfied by pgx.Rows; kept tiny so scan helpers stay testable.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanParagraphEmbeddings(rows rowScanner) ([]models.ParagraphEmbedding, error) {
	var out []models.ParagraphEmbedding

	for rows.Next() {
		var (
			rec     models.ParagraphEmbedding
			encoded []byte
		)

		if err := rows.Scan(&rec.ID, &rec.StoryID, &rec.MessageID, &rec.ParagraphIndex, &rec.Text,
			&encoded, &rec.Model, &rec.Dimensions, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan paragraph embedding: %w", err)
		}

		vector, err := embeddings.Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode stored vector for %s: %w", rec.ID, err)
		}

		rec.Vector = vector
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating paragraph embeddings: %w", err)
	}

	return out, nil
}
