package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/storyweave/backend/internal/models"
	"github.com/storyweave/backend/internal/observability"
	"github.com/storyweave/backend/pkg/embeddings"
)

// DefaultSearchLimit is the result cap when SearchOptions.Limit is not positive.
const DefaultSearchLimit = 10

// DefaultContextWindow is the standard number of neighboring paragraphs
// attached on each side of a hit.
const DefaultContextWindow = 1

const defaultQueryCacheSize = 1000

// ScopedEmbeddingReader is the read side of the embeddings table used by search.
type ScopedEmbeddingReader interface {
	FindByStoryScope(ctx context.Context, storyID *uuid.UUID) ([]models.ParagraphEmbedding, error)
}

// MessageReader fetches messages for result assembly.
type MessageReader interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Message, error)
}

// SearchOptions controls one similarity search.
type SearchOptions struct {
	Query string
	// StoryID restricts the scan to one story; nil searches all stories.
	StoryID *uuid.UUID
	// Limit caps results; non-positive falls back to DefaultSearchLimit.
	Limit int
	// MinScore filters hits below the threshold; non-positive falls back to
	// the configured default threshold.
	MinScore float64
	// ContextWindow is how many neighboring paragraphs to attach on each
	// side of a hit; non-positive falls back to DefaultContextWindow.
	ContextWindow int
}

// SearchService ranks stored paragraphs by cosine similarity against an
// embedded query. Query embeddings are cached (LRU) and deduplicated in
// flight, so repeated or concurrent identical queries cost one provider call.
type SearchService struct {
	store    ScopedEmbeddingReader
	messages MessageReader
	client   EmbeddingClient

	queryCache *lru.Cache[string, []float32]
	inflight   singleflight.Group

	defaultMinScore float64

	logger  *slog.Logger
	metrics observability.SearchMetrics
}

// NewSearchService creates a SearchService. metrics may be nil (disabled).
func NewSearchService(
	store ScopedEmbeddingReader,
	messages MessageReader,
	client EmbeddingClient,
	queryCacheSize int,
	defaultMinScore float64,
	logger *slog.Logger,
	metrics observability.SearchMetrics,
) (*SearchService, error) {
	if queryCacheSize <= 0 {
		queryCacheSize = defaultQueryCacheSize
	}

	cache, err := lru.New[string, []float32](queryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SearchService{
		store:           store,
		messages:        messages,
		client:          client,
		queryCache:      cache,
		defaultMinScore: defaultMinScore,
		logger:          logger,
		metrics:         metrics,
	}, nil
}

// scoredHit pairs a stored row with its similarity to the current query.
type scoredHit struct {
	row   models.ParagraphEmbedding
	score float64
}

// Search embeds the query and ranks all in-scope paragraphs against it.
// Results come back in descending score order, ties kept in stable storage
// order, truncated to the limit.
//
// A blank query returns no results without touching the provider. A provider
// failure degrades to an empty result set instead of an error: search is a
// retrieval aid and callers proceed without it.
func (s *SearchService) Search(ctx context.Context, opts SearchOptions) ([]models.SearchResult, error) {
	start := time.Now()

	query := strings.TrimSpace(opts.Query)
	if query == "" {
		s.recordSearch(ctx, "empty_query", start)

		return nil, nil
	}

	queryVector, err := s.queryEmbedding(ctx, query)
	if err != nil {
		s.logger.Warn("Query embedding failed, degrading to empty results", "error", err)
		s.recordSearch(ctx, "degraded", start)

		return []models.SearchResult{}, nil
	}

	queryMagnitude := embeddings.Magnitude(queryVector)
	if queryMagnitude == 0 {
		s.logger.Warn("Query embedded to a zero vector, degrading to empty results")
		s.recordSearch(ctx, "degraded", start)

		return []models.SearchResult{}, nil
	}

	rows, err := s.store.FindByStoryScope(ctx, opts.StoryID)
	if err != nil {
		s.recordSearch(ctx, "failed", start)

		return nil, fmt.Errorf("scan embeddings: %w", err)
	}

	hits := s.scoreRows(rows, queryVector, queryMagnitude, s.minScore(opts))

	// Stable sort keeps equal scores in storage order (story, message, paragraph).
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}

	window := opts.ContextWindow
	if window <= 0 {
		window = DefaultContextWindow
	}

	results, err := s.assembleResults(ctx, hits, window)
	if err != nil {
		s.recordSearch(ctx, "failed", start)

		return nil, err
	}

	s.recordSearch(ctx, "success", start)

	return results, nil
}

func (s *SearchService) minScore(opts SearchOptions) float64 {
	if opts.MinScore > 0 {
		return opts.MinScore
	}

	return s.defaultMinScore
}

// scoreRows computes similarity for every row, skipping rows whose stored
// dimension does not match the query vector (stale rows from a model change;
// the rebuild scheduler repairs them).
func (s *SearchService) scoreRows(
	rows []models.ParagraphEmbedding, queryVector []float32, queryMagnitude float64, minScore float64,
) []scoredHit {
	hits := make([]scoredHit, 0, len(rows))

	for _, row := range rows {
		if len(row.Vector) != len(queryVector) {
			s.logger.Warn("Skipping paragraph with mismatched dimensions",
				"message_id", row.MessageID, "paragraph_index", row.ParagraphIndex,
				"stored", len(row.Vector), "query", len(queryVector))

			continue
		}

		score := embeddings.CosineAgainst(queryVector, queryMagnitude, row.Vector)
		if score < minScore {
			continue
		}

		hits = append(hits, scoredHit{row: row, score: score})
	}

	return hits
}

// assembleResults attaches owning-message data to each hit: node identity,
// summaries, and the neighboring paragraphs inside the context window.
func (s *SearchService) assembleResults(
	ctx context.Context, hits []scoredHit, window int,
) ([]models.SearchResult, error) {
	results := make([]models.SearchResult, 0, len(hits))
	if len(hits) == 0 {
		return results, nil
	}

	seen := make(map[uuid.UUID]bool, len(hits))
	ids := make([]uuid.UUID, 0, len(hits))

	for _, hit := range hits {
		if !seen[hit.row.MessageID] {
			seen[hit.row.MessageID] = true

			ids = append(ids, hit.row.MessageID)
		}
	}

	msgs, err := s.messages.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load messages for results: %w", err)
	}

	for _, hit := range hits {
		result := models.SearchResult{
			StoryID:        hit.row.StoryID,
			MessageID:      hit.row.MessageID,
			ParagraphIndex: hit.row.ParagraphIndex,
			Text:           hit.row.Text,
			Score:          hit.score,
			Model:          hit.row.Model,
			Dimensions:     hit.row.Dimensions,
		}

		if msg, ok := msgs[hit.row.MessageID]; ok {
			result.NodeID = msg.NodeID
			result.Summary = msg.Summary()
			result.Context = contextWindow(msg.Paragraphs, hit.row.ParagraphIndex, window)
		} else {
			s.logger.Debug("Hit references a missing message, returning without context",
				"message_id", hit.row.MessageID)
		}

		results = append(results, result)
	}

	return results, nil
}

// contextWindow returns the paragraphs within window positions of index,
// excluding the match itself, clipped to the cached split's bounds.
func contextWindow(cached []string, index, window int) []models.ContextParagraph {
	if window <= 0 || len(cached) == 0 {
		return nil
	}

	lo := index - window
	if lo < 0 {
		lo = 0
	}

	hi := index + window
	if hi > len(cached)-1 {
		hi = len(cached) - 1
	}

	var out []models.ContextParagraph

	for i := lo; i <= hi; i++ {
		if i == index {
			continue
		}

		out = append(out, models.ContextParagraph{ParagraphIndex: i, Text: cached[i]})
	}

	return out
}

// queryEmbedding returns the cached embedding for the query, embedding it at
// most once across concurrent callers.
func (s *SearchService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if vector, ok := s.queryCache.Get(query); ok {
		return vector, nil
	}

	v, err, _ := s.inflight.Do(query, func() (any, error) {
		vector, err := s.client.CreateEmbedding(ctx, query)
		if err != nil {
			return nil, err
		}

		s.queryCache.Add(query, vector)

		return vector, nil
	})
	if err != nil {
		return nil, err
	}

	vector, ok := v.([]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected cached embedding type %T", v)
	}

	return vector, nil
}

func (s *SearchService) recordSearch(ctx context.Context, status string, start time.Time) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordSearch(ctx, time.Since(start), status)
}
