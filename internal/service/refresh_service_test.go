package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyweave/backend/internal/models"
)

type mockEmbeddingStore struct {
	deleteCalls []uuid.UUID
	deleteErr   error
	inserted    [][]models.ParagraphEmbedding
	insertErr   error
}

func (m *mockEmbeddingStore) DeleteAllForMessage(_ context.Context, _, messageID uuid.UUID) error {
	m.deleteCalls = append(m.deleteCalls, messageID)

	return m.deleteErr
}

func (m *mockEmbeddingStore) InsertMany(_ context.Context, records []models.ParagraphEmbedding) error {
	if m.insertErr != nil {
		return m.insertErr
	}

	m.inserted = append(m.inserted, records)

	return nil
}

type mockParagraphWriter struct {
	updates map[uuid.UUID][]string
	err     error
}

func (m *mockParagraphWriter) UpdateParagraphs(_ context.Context, id uuid.UUID, paragraphs []string) error {
	if m.err != nil {
		return m.err
	}

	if m.updates == nil {
		m.updates = make(map[uuid.UUID][]string)
	}

	m.updates[id] = paragraphs

	return nil
}

type mockEmbeddingClient struct {
	calls []string
	fn    func(input string) ([]float32, error)
}

func (m *mockEmbeddingClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	m.calls = append(m.calls, input)

	if m.fn != nil {
		return m.fn(input)
	}

	return []float32{1, 0, 0}, nil
}

func newRefreshFixture() (*RefreshService, *mockEmbeddingStore, *mockParagraphWriter, *mockEmbeddingClient) {
	store := &mockEmbeddingStore{}
	writer := &mockParagraphWriter{}
	client := &mockEmbeddingClient{}
	svc := NewRefreshService(store, writer, client, "nomic-embed-text", -1, nil, nil)

	return svc, store, writer, client
}

func TestRefreshService_Refresh_splitsEmbedsAndStores(t *testing.T) {
	svc, store, writer, client := newRefreshFixture()
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	split, err := svc.Refresh(context.Background(), storyID, messageID, "First paragraph.\n\nSecond paragraph.", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"First paragraph.", "Second paragraph."}, split)

	assert.Equal(t, []uuid.UUID{messageID}, store.deleteCalls)
	assert.Equal(t, split, writer.updates[messageID])
	assert.Equal(t, []string{"First paragraph.", "Second paragraph."}, client.calls)

	require.Len(t, store.inserted, 1)
	records := store.inserted[0]
	require.Len(t, records, 2)

	for i, rec := range records {
		assert.Equal(t, storyID, rec.StoryID)
		assert.Equal(t, messageID, rec.MessageID)
		assert.Equal(t, i, rec.ParagraphIndex)
		assert.Equal(t, split[i], rec.Text)
		assert.Equal(t, "nomic-embed-text", rec.Model)
		assert.Equal(t, 3, rec.Dimensions)
	}
}

func TestRefreshService_Refresh_queryMessage_deletesButNeverEmbeds(t *testing.T) {
	svc, store, _, client := newRefreshFixture()
	messageID := uuid.Must(uuid.NewV7())

	split, err := svc.Refresh(context.Background(), uuid.Must(uuid.NewV7()), messageID, "What happens next?", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"What happens next?"}, split)

	assert.Equal(t, []uuid.UUID{messageID}, store.deleteCalls, "old rows must still be cleared")
	assert.Empty(t, client.calls)
	assert.Empty(t, store.inserted)
}

func TestRefreshService_Refresh_emptyContent_deletesButNeverEmbeds(t *testing.T) {
	svc, store, writer, client := newRefreshFixture()
	messageID := uuid.Must(uuid.NewV7())

	split, err := svc.Refresh(context.Background(), uuid.Must(uuid.NewV7()), messageID, "   \n\n  ", false)
	require.NoError(t, err)
	assert.Empty(t, split)

	assert.Equal(t, []uuid.UUID{messageID}, store.deleteCalls)
	assert.Empty(t, writer.updates[messageID])
	assert.Empty(t, client.calls)
	assert.Empty(t, store.inserted)
}

func TestRefreshService_Refresh_providerError_insertsNothing(t *testing.T) {
	svc, store, _, client := newRefreshFixture()
	providerErr := errors.New("provider unavailable")
	client.fn = func(input string) ([]float32, error) {
		if input == "Beta." {
			return nil, providerErr
		}

		return []float32{1, 0, 0}, nil
	}

	_, err := svc.Refresh(context.Background(), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()),
		"Alpha.\n\nBeta.\n\nGamma.", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, providerErr)

	assert.Empty(t, store.inserted, "a mid-batch failure must not leave partial rows")
	assert.Len(t, client.calls, 2, "embedding stops at the failing paragraph")
}

func TestRefreshService_Refresh_emptyVector_skipsParagraphKeepsIndex(t *testing.T) {
	svc, store, _, client := newRefreshFixture()
	client.fn = func(input string) ([]float32, error) {
		if input == "Beta." {
			return []float32{}, nil
		}

		return []float32{1, 0, 0}, nil
	}

	_, err := svc.Refresh(context.Background(), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()),
		"Alpha.\n\nBeta.\n\nGamma.", false)
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	records := store.inserted[0]
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].ParagraphIndex)
	assert.Equal(t, 2, records[1].ParagraphIndex, "skipped paragraph leaves a gap, not a shift")
}

func TestRefreshService_Refresh_capsParagraphsButReturnsFullSplit(t *testing.T) {
	store := &mockEmbeddingStore{}
	writer := &mockParagraphWriter{}
	client := &mockEmbeddingClient{}
	svc := NewRefreshService(store, writer, client, "nomic-embed-text", 2, nil, nil)
	messageID := uuid.Must(uuid.NewV7())

	split, err := svc.Refresh(context.Background(), uuid.Must(uuid.NewV7()), messageID,
		"One.\n\nTwo.\n\nThree.\n\nFour.", false)
	require.NoError(t, err)
	assert.Len(t, split, 4, "the cached split keeps every paragraph")
	assert.Equal(t, split, writer.updates[messageID])

	assert.Equal(t, []string{"One.", "Two."}, client.calls)
	require.Len(t, store.inserted, 1)
	assert.Len(t, store.inserted[0], 2)
}

func TestRefreshService_DeleteForMessage(t *testing.T) {
	svc, store, _, _ := newRefreshFixture()
	messageID := uuid.Must(uuid.NewV7())

	require.NoError(t, svc.DeleteForMessage(context.Background(), uuid.Must(uuid.NewV7()), messageID))
	assert.Equal(t, []uuid.UUID{messageID}, store.deleteCalls)

	store.deleteErr = errors.New("db down")
	assert.Error(t, svc.DeleteForMessage(context.Background(), uuid.Must(uuid.NewV7()), messageID))
}
