package promotion

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
// Lookups and Saves are counted so tests can verify tier short-circuits.
type MemoryStore struct {
	mu       sync.Mutex
	outcomes map[string]Outcome

	Lookups int
	Saves   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{outcomes: make(map[string]Outcome)}
}

func (m *MemoryStore) Lookup(_ context.Context, key string) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Lookups++
	o, ok := m.outcomes[key]
	if !ok {
		return nil, ErrNotCached
	}
	return &o, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Saves++
	m.outcomes[key] = outcome
	return nil
}
