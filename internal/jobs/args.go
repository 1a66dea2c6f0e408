// Package jobs provides River job arguments and insertion for async embedding refresh.
package jobs

import "github.com/google/uuid"

// MessageEmbeddingArgs contains the arguments for a message embedding refresh job.
// The worker reloads the message by ID, so a burst of edits to one message
// collapses into a single job that embeds the final content.
type MessageEmbeddingArgs struct {
	// StoryID is the story the message belongs to.
	StoryID uuid.UUID `json:"story_id"`

	// MessageID is the message whose embeddings need refreshing.
	MessageID uuid.UUID `json:"message_id"`
}

// Kind returns the job type identifier for River.
func (MessageEmbeddingArgs) Kind() string { return "message_embedding" }

// QueueEmbeddings is the River queue embedding jobs run on.
const QueueEmbeddings = "embeddings"
