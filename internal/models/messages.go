package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is the story message entity owned by the story data model. The
// embedding core reads it and writes back exactly one field: the denormalized
// Paragraphs cache, kept in sync by the refresh service on every content
// change.
type Message struct {
	ID        uuid.UUID `json:"id"`
	StoryID   uuid.UUID `json:"story_id"`
	NodeID    uuid.UUID `json:"node_id"`
	Content   string    `json:"content"`
	// Paragraphs is the cached paragraph split of Content.
	Paragraphs []string `json:"paragraphs"`
	// IsQuery marks user prompts rather than narrative content; query
	// messages are excluded from embedding and from search results.
	IsQuery  bool `json:"is_query"`
	Deleted  bool `json:"deleted"`
	Sequence int  `json:"sequence"`
	// UpdatedAt is the message's last content-change timestamp; the rebuild
	// staleness check compares it against stored embedding timestamps.
	UpdatedAt time.Time `json:"updated_at"`

	// Summary fields shown alongside search hits.
	SentenceSummary  *string `json:"sentence_summary,omitempty"`
	ParagraphSummary *string `json:"paragraph_summary,omitempty"`
	FullSummary      *string `json:"full_summary,omitempty"`
}

// Summary returns the display snapshot attached to search results.
func (m *Message) Summary() MessageSummary {
	return MessageSummary{
		SentenceSummary:  m.SentenceSummary,
		ParagraphSummary: m.ParagraphSummary,
		FullSummary:      m.FullSummary,
	}
}

// MessageSummary is the snapshot of a message's summary fields carried on a
// search result (whichever summaries exist).
type MessageSummary struct {
	SentenceSummary  *string `json:"sentence_summary,omitempty"`
	ParagraphSummary *string `json:"paragraph_summary,omitempty"`
	FullSummary      *string `json:"full_summary,omitempty"`
}

// MessageForEmbedding is the slice of a message the rebuild scheduler needs
// to decide staleness and re-embed: identity, content, and content timestamp.
type MessageForEmbedding struct {
	ID        uuid.UUID
	StoryID   uuid.UUID
	Content   string
	IsQuery   bool
	Sequence  int
	UpdatedAt time.Time
}
