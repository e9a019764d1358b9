// Package promotion resolves provisional annotation edges to concrete
// entities through a tiered lookup: an in-process cache, a persisted
// resolution table, and finally an alias search over the entity
// population. Resolutions apply uniformly to every provisional edge
// sharing the same text.
package promotion

import "errors"

// Kind classifies a resolution attempt for one text.
type Kind string

// Resolution kinds. Single resolved to exactly one entity; None matched
// nothing; Ambiguous matched several entities and needs a human.
const (
	KindSingle    Kind = "Single"
	KindNone      Kind = "None"
	KindAmbiguous Kind = "Ambiguous"
)

// Outcome is the result of resolving one text. EntityID is set only for
// KindSingle.
type Outcome struct {
	Kind     Kind   `json:"kind"`
	EntityID string `json:"entity_id,omitempty"`
}

// ErrNotCached indicates a cache tier holds no outcome for the key.
var ErrNotCached = errors.New("promotion outcome not cached")
