package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyweave/backend/internal/datatypes"
	"github.com/storyweave/backend/internal/jobs"
)

type mockJobInserter struct {
	insertCalls []insertCall
	insertErr   error
}

type insertCall struct {
	args jobs.MessageEmbeddingArgs
	opts *river.InsertOpts
}

func (m *mockJobInserter) Insert(
	_ context.Context,
	args river.JobArgs,
	opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	embeddingArgs, ok := args.(jobs.MessageEmbeddingArgs)
	if !ok {
		m.insertCalls = append(m.insertCalls, insertCall{opts: opts})

		return nil, m.insertErr
	}

	m.insertCalls = append(m.insertCalls, insertCall{args: embeddingArgs, opts: opts})
	if m.insertErr != nil {
		return nil, m.insertErr
	}

	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: 1}}, nil
}

func TestEmbeddingEventPublisher_PublishEvent_contentChanged_enqueues(t *testing.T) {
	inserter := &mockJobInserter{}
	p := NewEmbeddingEventPublisher(inserter, "embeddings", 3, nil, nil)

	storyID := uuid.Must(uuid.NewV7())
	messageID := uuid.Must(uuid.NewV7())

	p.PublishEvent(context.Background(), Event{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      datatypes.MessageContentChanged,
		Timestamp: time.Now(),
		StoryID:   storyID,
		MessageID: messageID,
	})

	require.Len(t, inserter.insertCalls, 1)
	assert.Equal(t, storyID, inserter.insertCalls[0].args.StoryID)
	assert.Equal(t, messageID, inserter.insertCalls[0].args.MessageID)
	require.NotNil(t, inserter.insertCalls[0].opts)
	assert.Equal(t, "embeddings", inserter.insertCalls[0].opts.Queue)
	assert.Equal(t, 3, inserter.insertCalls[0].opts.MaxAttempts)
}

func TestEmbeddingEventPublisher_PublishEvent_deleted_enqueues(t *testing.T) {
	inserter := &mockJobInserter{}
	p := NewEmbeddingEventPublisher(inserter, "embeddings", 3, nil, nil)

	p.PublishEvent(context.Background(), Event{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      datatypes.MessageDeleted,
		Timestamp: time.Now(),
		StoryID:   uuid.Must(uuid.NewV7()),
		MessageID: uuid.Must(uuid.NewV7()),
	})

	assert.Len(t, inserter.insertCalls, 1)
}

func TestEmbeddingEventPublisher_PublishEvent_insertFailure_doesNotPanic(t *testing.T) {
	inserter := &mockJobInserter{insertErr: errors.New("queue unavailable")}
	p := NewEmbeddingEventPublisher(inserter, "embeddings", 3, nil, nil)

	p.PublishEvent(context.Background(), Event{
		Type:      datatypes.MessageContentChanged,
		StoryID:   uuid.Must(uuid.NewV7()),
		MessageID: uuid.Must(uuid.NewV7()),
	})

	assert.Len(t, inserter.insertCalls, 1, "failure is swallowed after the attempt")
}
