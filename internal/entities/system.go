package entities

import "context"

// System defines the public contract for candidate-entity operations.
type System interface {
	// ListByScope returns every candidate entity registered under a scope.
	ListByScope(ctx context.Context, scopeKey string) ([]Entity, error)

	// SearchAliases returns the entities in scope whose alias set intersects
	// the given text variants, in a single round trip. This is the Tier-3
	// promotion lookup: it queries the entity population, never the
	// annotation edges.
	SearchAliases(ctx context.Context, scopeKey string, variants []string) ([]Entity, error)

	// EnsureScopeCache returns a valid cache for the scope, rebuilding and
	// persisting it when the stored one is missing or past its TTL.
	EnsureScopeCache(ctx context.Context, scopeKey string, opts CacheOptions) (*ScopeCache, error)
}
