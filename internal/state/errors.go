package state

import "errors"

// Domain errors for state record operations.
var (
	ErrNotFound  = errors.New("state record not found")
	ErrDuplicate = errors.New("state record already exists")

	// ErrVersionConflict signals that another worker claimed the record
	// since it was read. It is not a failure: the local attempt is
	// discarded and the record is left to the winning worker.
	ErrVersionConflict = errors.New("state record version conflict")

	// ErrIllegalTransition indicates a transition the lifecycle does not permit.
	ErrIllegalTransition = errors.New("illegal state transition")
)
