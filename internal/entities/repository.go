package entities

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cognitedata/annotator/pkg/query"
	"github.com/cognitedata/annotator/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates an entity repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "entities"),
	}
}

func (r *repo) ListByScope(ctx context.Context, scopeKey string) ([]Entity, error) {
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("ScopeKey", scopeKey).
		Build()

	ents, err := repository.QueryMany(ctx, r.db, q, args, scanEntity)
	if err != nil {
		return nil, fmt.Errorf("query entities for scope %s: %w", scopeKey, err)
	}
	return ents, nil
}

func (r *repo) SearchAliases(ctx context.Context, scopeKey string, variants []string) ([]Entity, error) {
	if len(variants) == 0 {
		return []Entity{}, nil
	}

	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("marshal variants: %w", err)
	}

	// An empty scope searches the whole entity population. Either way the
	// query runs against entities, whose count stays small, never against
	// the annotation edges.
	q := `
		SELECT e.id, e.name, e.aliases, e.scope_key
		FROM entities e
		WHERE ($1 = '' OR e.scope_key = $1)
		  AND EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(e.aliases) a
			WHERE a IN (SELECT jsonb_array_elements_text($2::jsonb))
		  )
		ORDER BY e.name ASC`

	ents, err := repository.QueryMany(ctx, r.db, q, []any{scopeKey, variantsJSON}, scanEntity)
	if err != nil {
		return nil, fmt.Errorf("search aliases in scope %s: %w", scopeKey, err)
	}
	return ents, nil
}

func (r *repo) EnsureScopeCache(ctx context.Context, scopeKey string, opts CacheOptions) (*ScopeCache, error) {
	cached, err := r.loadCache(ctx, scopeKey)
	if err != nil && !errors.Is(err, ErrCacheNotFound) {
		return nil, err
	}

	if cached != nil && cached.Valid(opts.TTL, time.Now()) {
		return cached, nil
	}

	rebuilt, err := r.rebuildCache(ctx, scopeKey, opts)
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"scope cache rebuilt",
		"scope", scopeKey,
		"entities", len(rebuilt.Entities),
		"patterns", len(rebuilt.Patterns),
	)

	return rebuilt, nil
}

func (r *repo) loadCache(ctx context.Context, scopeKey string) (*ScopeCache, error) {
	q := `
		SELECT c.scope_key, c.entities, c.patterns, c.generated_at
		FROM scope_caches c
		WHERE c.scope_key = $1`

	c, err := repository.QueryOne(ctx, r.db, q, []any{scopeKey}, scanScopeCache)
	if err != nil {
		return nil, repository.MapError(err, ErrCacheNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) rebuildCache(ctx context.Context, scopeKey string, opts CacheOptions) (*ScopeCache, error) {
	ents, err := r.ListByScope(ctx, scopeKey)
	if err != nil {
		return nil, err
	}

	cache := &ScopeCache{
		ScopeKey:    scopeKey,
		Entities:    ents,
		Patterns:    MergePatterns(GeneratePatterns(ents), opts.ManualPatterns),
		GeneratedAt: time.Now(),
	}

	entitiesJSON, err := json.Marshal(cache.Entities)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entities: %w", err)
	}
	patternsJSON, err := json.Marshal(cache.Patterns)
	if err != nil {
		return nil, fmt.Errorf("marshal cache patterns: %w", err)
	}

	// Rebuilds are idempotent; a concurrent rebuild for the same scope
	// simply overwrites with equivalent content (later wins).
	q := `
		INSERT INTO scope_caches(scope_key, entities, patterns, generated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope_key) DO UPDATE SET
			entities = EXCLUDED.entities,
			patterns = EXCLUDED.patterns,
			generated_at = EXCLUDED.generated_at`

	if err := repository.ExecExpectOne(ctx, r.db, q, scopeKey, entitiesJSON, patternsJSON, cache.GeneratedAt); err != nil {
		return nil, fmt.Errorf("persist scope cache %s: %w", scopeKey, err)
	}

	return cache, nil
}
