package state

import "context"

// Mutation adjusts a record's payload fields during a transition. It runs
// against a copy of the record after the target status is applied; version
// and timestamps are managed by the store.
type Mutation func(*Record)

// System defines the public contract for state record operations.
// All writes are guarded by the record's version (optimistic concurrency).
type System interface {
	Find(ctx context.Context, documentID string) (*Record, error)

	// ListReady returns up to limit records with status New or Retry,
	// oldest first.
	ListReady(ctx context.Context, limit int) ([]Record, error)

	// ListProcessing returns up to limit records with status Processing,
	// oldest first.
	ListProcessing(ctx context.Context, limit int) ([]Record, error)

	// ListByJob returns every record sharing the given detection job handle.
	// Records submitted in one batch share a handle and are finalized together.
	ListByJob(ctx context.Context, jobID string) ([]Record, error)

	Create(ctx context.Context, cmd CreateCommand) (*Record, error)

	// Transition moves a record to a new status with an optional mutation,
	// guarded by the version observed on rec. Returns ErrVersionConflict
	// when the stored version differs, ErrIllegalTransition when the
	// lifecycle forbids the move. On success the returned record carries
	// the incremented version.
	Transition(ctx context.Context, rec *Record, to Status, mutate Mutation) (*Record, error)
}
