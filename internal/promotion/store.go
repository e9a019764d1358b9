package promotion

import "context"

// Store is the persisted resolution tier: outcomes survive worker
// restarts and are shared across workers. Ambiguous outcomes are never
// stored, so every pass re-examines them.
type Store interface {
	// Lookup returns the stored outcome for a canonical key, or
	// ErrNotCached.
	Lookup(ctx context.Context, key string) (*Outcome, error)

	// Save stores an outcome under a canonical key, overwriting any
	// previous one.
	Save(ctx context.Context, key string, outcome Outcome) error
}
