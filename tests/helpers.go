// Package tests provides integration tests against a disposable Postgres
// container, exercising the repositories and services together.
package tests

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/storyweave/backend/pkg/database"
)

const schema = `
CREATE TABLE messages (
    id                UUID PRIMARY KEY,
    story_id          UUID NOT NULL,
    node_id           UUID NOT NULL,
    content           TEXT NOT NULL DEFAULT '',
    paragraphs        JSONB NOT NULL DEFAULT '[]',
    is_query          BOOLEAN NOT NULL DEFAULT FALSE,
    deleted           BOOLEAN NOT NULL DEFAULT FALSE,
    sequence          INT NOT NULL DEFAULT 0,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    sentence_summary  TEXT,
    paragraph_summary TEXT,
    full_summary      TEXT
);

CREATE TABLE paragraph_embeddings (
    id              UUID PRIMARY KEY,
    story_id        UUID NOT NULL,
    message_id      UUID NOT NULL,
    paragraph_index INT  NOT NULL,
    paragraph_text  TEXT NOT NULL,
    vector          BYTEA NOT NULL,
    model           TEXT NOT NULL,
    dimensions      INT  NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    UNIQUE (message_id, paragraph_index)
);
`

// StartPostgres spins up a Postgres container with the schema applied and
// returns a connected pool. The container and pool are cleaned up with the test.
func StartPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storyweave_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewPostgresPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Exec(ctx, schema)
	require.NoError(t, err)

	return db
}

// testMessage is the seed row inserted by InsertMessage.
type testMessage struct {
	ID        uuid.UUID
	StoryID   uuid.UUID
	NodeID    uuid.UUID
	Content   string
	IsQuery   bool
	Deleted   bool
	Sequence  int
	UpdatedAt time.Time
	Summary   *string
}

// InsertMessage seeds one message row, standing in for the story service's writes.
func InsertMessage(t *testing.T, db *pgxpool.Pool, msg testMessage) {
	t.Helper()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.Must(uuid.NewV7())
	}

	if msg.NodeID == uuid.Nil {
		msg.NodeID = uuid.Must(uuid.NewV7())
	}

	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = time.Now()
	}

	paragraphs, err := json.Marshal([]string{})
	require.NoError(t, err)

	_, err = db.Exec(context.Background(), `
		INSERT INTO messages
			(id, story_id, node_id, content, paragraphs, is_query, deleted, sequence, updated_at, sentence_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		msg.ID, msg.StoryID, msg.NodeID, msg.Content, paragraphs,
		msg.IsQuery, msg.Deleted, msg.Sequence, msg.UpdatedAt, msg.Summary,
	)
	require.NoError(t, err)
}

// fakeEmbeddingClient returns canned vectors per input text and counts calls.
type fakeEmbeddingClient struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	calls    int
}

func newFakeEmbeddingClient(fallback []float32) *fakeEmbeddingClient {
	return &fakeEmbeddingClient{
		vectors:  make(map[string][]float32),
		fallback: fallback,
	}
}

func (f *fakeEmbeddingClient) set(text string, vector []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.vectors[text] = vector
}

func (f *fakeEmbeddingClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func (f *fakeEmbeddingClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if v, ok := f.vectors[input]; ok {
		return v, nil
	}

	return f.fallback, nil
}
