// Package entities implements the candidate-entity domain: the per-scope
// population of entities a detection job can match against, the text
// patterns generated from their aliases, and the TTL-guarded scope cache
// that keeps both ready for batch submission.
package entities

import "time"

// Entity is a candidate target for annotation matches. Aliases hold the
// alternate spellings a detection job or promotion lookup may encounter.
type Entity struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases"`
	ScopeKey string   `json:"scope_key"`
}

// ScopeCache is the cached candidate population for one scope grouping key.
// It is valid for TTL from GeneratedAt and rebuilt on expiry; rebuilds are
// idempotent, so concurrent writers race harmlessly (later wins).
type ScopeCache struct {
	ScopeKey    string    `json:"scope_key"`
	Entities    []Entity  `json:"entities"`
	Patterns    []string  `json:"patterns"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Valid reports whether the cache is still usable under the given TTL.
func (c *ScopeCache) Valid(ttl time.Duration, now time.Time) bool {
	return now.Sub(c.GeneratedAt) < ttl
}

// CacheOptions controls scope cache rebuilds.
type CacheOptions struct {
	TTL time.Duration

	// ManualPatterns are operator-supplied override patterns merged with
	// the generated set (deduplicated by exact pattern string).
	ManualPatterns []string
}
