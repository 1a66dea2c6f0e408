package models

import (
	"time"

	"github.com/google/uuid"
)

// ParagraphEmbedding is one stored row: one vector per paragraph per message.
// For a given (story, message) the set of ParagraphIndex values is contiguous
// from 0 and matches the message's current paragraph split; the rebuild
// scheduler detects and repairs violations.
type ParagraphEmbedding struct {
	ID             uuid.UUID `json:"id"`
	StoryID        uuid.UUID `json:"story_id"`
	MessageID      uuid.UUID `json:"message_id"`
	ParagraphIndex int       `json:"paragraph_index"`
	// Text is the paragraph's exact text at embedding time; search returns
	// this snapshot rather than re-deriving it from the live message.
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
	// Model and Dimensions record provenance; Dimensions is redundant with
	// len(Vector) but stored for integrity checks.
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MessageEmbeddingMeta aggregates the stored rows of one message for the
// rebuild staleness check: latest update time, row count, and the smallest
// recorded dimension (0 or negative means corrupt rows, always stale).
type MessageEmbeddingMeta struct {
	StoryID         uuid.UUID
	MessageID       uuid.UUID
	LatestUpdatedAt time.Time
	RowCount        int
	MinDimensions   int
}

// ContextParagraph is one neighboring paragraph attached to a search hit.
type ContextParagraph struct {
	ParagraphIndex int    `json:"paragraph_index"`
	Text           string `json:"text"`
}

// SearchResult is one ranked similarity search hit. Results are ordered by
// descending Score; callers never need to re-sort.
type SearchResult struct {
	StoryID        uuid.UUID `json:"story_id"`
	MessageID      uuid.UUID `json:"message_id"`
	NodeID         uuid.UUID `json:"node_id"`
	ParagraphIndex int       `json:"paragraph_index"`
	Text           string    `json:"text"`
	// Context holds paragraphs within the context window of the match,
	// excluding the match itself, clipped to the message's bounds.
	Context    []ContextParagraph `json:"context"`
	Score      float64            `json:"score"`
	Model      string             `json:"model"`
	Dimensions int                `json:"dimensions"`
	Summary    MessageSummary     `json:"summary"`
}
