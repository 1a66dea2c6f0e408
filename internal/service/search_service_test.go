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

type mockScopedReader struct {
	rows []models.ParagraphEmbedding
	err  error
}

func (m *mockScopedReader) FindByStoryScope(
	_ context.Context, _ *uuid.UUID,
) ([]models.ParagraphEmbedding, error) {
	return m.rows, m.err
}

type mockMessageReader struct {
	msgs map[uuid.UUID]*models.Message
	err  error
}

func (m *mockMessageReader) GetByIDs(
	_ context.Context, _ []uuid.UUID,
) (map[uuid.UUID]*models.Message, error) {
	if m.err != nil {
		return nil, m.err
	}

	if m.msgs == nil {
		return map[uuid.UUID]*models.Message{}, nil
	}

	return m.msgs, nil
}

func storedRow(storyID, messageID uuid.UUID, index int, text string, vector []float32) models.ParagraphEmbedding {
	return models.ParagraphEmbedding{
		ID:             uuid.Must(uuid.NewV7()),
		StoryID:        storyID,
		MessageID:      messageID,
		ParagraphIndex: index,
		Text:           text,
		Vector:         vector,
		Model:          "nomic-embed-text",
		Dimensions:     len(vector),
	}
}

func newSearchFixture(t *testing.T, store *mockScopedReader, messages *mockMessageReader,
	client *mockEmbeddingClient, minScore float64,
) *SearchService {
	t.Helper()

	svc, err := NewSearchService(store, messages, client, 16, minScore, nil, nil)
	require.NoError(t, err)

	return svc
}

func TestSearchService_Search_emptyQuery_returnsNothingWithoutProviderCall(t *testing.T) {
	client := &mockEmbeddingClient{}
	svc := newSearchFixture(t, &mockScopedReader{}, &mockMessageReader{}, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "   "})
	require.NoError(t, err)

	assert.Nil(t, results)
	assert.Empty(t, client.calls)
}

func TestSearchService_Search_ranksDescendingAndLimits(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 0, "weak", []float32{0, 1, 0}),
		storedRow(storyID, messageID, 1, "exact", []float32{1, 0, 0}),
		storedRow(storyID, messageID, 2, "close", []float32{1, 0.2, 0}),
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, &mockMessageReader{}, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "castle gates", Limit: 2})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "close", results[1].Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchService_Search_equalScoresKeepStorageOrder(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 0, "first", []float32{1, 0, 0}),
		storedRow(storyID, messageID, 1, "second", []float32{2, 0, 0}),
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, &mockMessageReader{}, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "q"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Text)
	assert.Equal(t, "second", results[1].Text)
}

func TestSearchService_Search_minScoreFilters(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 0, "orthogonal", []float32{0, 1, 0}),
		storedRow(storyID, messageID, 1, "aligned", []float32{1, 0, 0}),
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, &mockMessageReader{}, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "q", MinScore: 0.5})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].Text)
}

func TestSearchService_Search_defaultThresholdAppliesWhenUnset(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 0, "orthogonal", []float32{0, 1, 0}),
		storedRow(storyID, messageID, 1, "aligned", []float32{1, 0, 0}),
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, &mockMessageReader{}, client, 0.3)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "q"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].Text)
}

func TestSearchService_Search_dimensionMismatchSkipped(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 0, "old model", []float32{1, 0}),
		storedRow(storyID, messageID, 1, "current model", []float32{1, 0, 0}),
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, &mockMessageReader{}, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "q"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "current model", results[0].Text)
}

func TestSearchService_Search_providerFailure_degradesToEmpty(t *testing.T) {
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return nil, errors.New("provider unavailable")
	}}
	svc := newSearchFixture(t, &mockScopedReader{}, &mockMessageReader{}, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "castle"})
	require.NoError(t, err, "search degrades instead of failing the caller")
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSearchService_Search_attachesContextAndSummaryFromMessage(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())
	nodeID := uuid.Must(uuid.NewV7())
	summary := "The heroes reach the castle."

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 1, "Beta.", []float32{1, 0, 0}),
	}}
	messages := &mockMessageReader{msgs: map[uuid.UUID]*models.Message{
		messageID: {
			ID:              messageID,
			StoryID:         storyID,
			NodeID:          nodeID,
			Paragraphs:      []string{"Alpha.", "Beta.", "Gamma."},
			SentenceSummary: &summary,
		},
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, messages, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "q", ContextWindow: 1})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, nodeID, results[0].NodeID)
	require.NotNil(t, results[0].Summary.SentenceSummary)
	assert.Equal(t, summary, *results[0].Summary.SentenceSummary)
	assert.Equal(t, []models.ContextParagraph{
		{ParagraphIndex: 0, Text: "Alpha."},
		{ParagraphIndex: 2, Text: "Gamma."},
	}, results[0].Context)
}

func TestSearchService_Search_defaultContextWindowWhenUnset(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 1, "Beta.", []float32{1, 0, 0}),
	}}
	messages := &mockMessageReader{msgs: map[uuid.UUID]*models.Message{
		messageID: {ID: messageID, Paragraphs: []string{"Alpha.", "Beta.", "Gamma."}},
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, messages, client, 0)

	// No ContextWindow set: both neighbors must still come back.
	results, err := svc.Search(context.Background(), SearchOptions{Query: "q"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, []models.ContextParagraph{
		{ParagraphIndex: 0, Text: "Alpha."},
		{ParagraphIndex: 2, Text: "Gamma."},
	}, results[0].Context)
}

func TestSearchService_Search_contextClippedAtMessageBounds(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 0, "Alpha.", []float32{1, 0, 0}),
	}}
	messages := &mockMessageReader{msgs: map[uuid.UUID]*models.Message{
		messageID: {ID: messageID, Paragraphs: []string{"Alpha.", "Beta."}},
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, messages, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "q", ContextWindow: 2})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, []models.ContextParagraph{
		{ParagraphIndex: 1, Text: "Beta."},
	}, results[0].Context)
}

func TestSearchService_Search_missingMessageStillReturnsHit(t *testing.T) {
	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	store := &mockScopedReader{rows: []models.ParagraphEmbedding{
		storedRow(storyID, messageID, 0, "orphan", []float32{1, 0, 0}),
	}}
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, store, &mockMessageReader{}, client, 0)

	results, err := svc.Search(context.Background(), SearchOptions{Query: "q", ContextWindow: 1})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "orphan", results[0].Text)
	assert.Empty(t, results[0].Context)
}

func TestSearchService_Search_queryEmbeddingCachedAcrossSearches(t *testing.T) {
	client := &mockEmbeddingClient{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	svc := newSearchFixture(t, &mockScopedReader{}, &mockMessageReader{}, client, 0)

	for range 3 {
		_, err := svc.Search(context.Background(), SearchOptions{Query: "same query"})
		require.NoError(t, err)
	}

	assert.Len(t, client.calls, 1, "repeated identical queries reuse the cached embedding")
}
