package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// RiverJobInserter implements JobInserter using the River client, adding
// uniqueness constraints so each message has at most one in-flight job.
type RiverJobInserter struct {
	client *river.Client[pgx.Tx]
}

// NewRiverJobInserter creates a new River-based job inserter.
func NewRiverJobInserter(client *river.Client[pgx.Tx]) *RiverJobInserter {
	return &RiverJobInserter{client: client}
}

// Insert enqueues a job, deduplicating by args against jobs not yet finished.
func (r *RiverJobInserter) Insert(
	ctx context.Context, args river.JobArgs, opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	if opts == nil {
		opts = &river.InsertOpts{}
	}

	opts.UniqueOpts = river.UniqueOpts{
		// Only one pending job per message (by args).
		ByArgs: true,
		// Note: JobStatePending is required by River when using ByState.
		ByState: []rivertype.JobState{
			rivertype.JobStatePending,
			rivertype.JobStateAvailable,
			rivertype.JobStateRunning,
			rivertype.JobStateRetryable,
			rivertype.JobStateScheduled,
		},
	}

	result, err := r.client.Insert(ctx, args, opts)
	if err != nil {
		return nil, fmt.Errorf("river insert: %w", err)
	}

	return result, nil
}
