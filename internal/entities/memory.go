package entities

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory System used by tests and local development.
type Memory struct {
	mu      sync.Mutex
	ents    map[string][]Entity   // scope key -> entities
	caches  map[string]ScopeCache // scope key -> cache
	Tier3   int                   // SearchAliases invocation count, for tests
	Rebuilt int                   // cache rebuild count, for tests
}

// NewMemory creates an empty in-memory entity store.
func NewMemory() *Memory {
	return &Memory{
		ents:   make(map[string][]Entity),
		caches: make(map[string]ScopeCache),
	}
}

// Add registers entities under their scope keys.
func (m *Memory) Add(ents ...Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range ents {
		m.ents[e.ScopeKey] = append(m.ents[e.ScopeKey], e)
	}
}

func (m *Memory) ListByScope(_ context.Context, scopeKey string) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ents := slices.Clone(m.ents[scopeKey])
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name < ents[j].Name })
	return ents, nil
}

func (m *Memory) SearchAliases(_ context.Context, scopeKey string, variants []string) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Tier3++

	var pool []Entity
	if scopeKey == "" {
		for _, scoped := range m.ents {
			pool = append(pool, scoped...)
		}
	} else {
		pool = m.ents[scopeKey]
	}

	matched := make([]Entity, 0)
	for _, e := range pool {
		for _, alias := range e.Aliases {
			if slices.Contains(variants, alias) {
				matched = append(matched, e)
				break
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched, nil
}

func (m *Memory) EnsureScopeCache(ctx context.Context, scopeKey string, opts CacheOptions) (*ScopeCache, error) {
	m.mu.Lock()
	cached, ok := m.caches[scopeKey]
	m.mu.Unlock()

	if ok && cached.Valid(opts.TTL, time.Now()) {
		return &cached, nil
	}

	ents, err := m.ListByScope(ctx, scopeKey)
	if err != nil {
		return nil, err
	}

	cache := ScopeCache{
		ScopeKey:    scopeKey,
		Entities:    ents,
		Patterns:    MergePatterns(GeneratePatterns(ents), opts.ManualPatterns),
		GeneratedAt: time.Now(),
	}

	m.mu.Lock()
	m.caches[scopeKey] = cache
	m.Rebuilt++
	m.mu.Unlock()

	return &cache, nil
}
