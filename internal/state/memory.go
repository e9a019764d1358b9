package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory System used by tests and local development.
// It honors the same version-guarded write semantics as the Postgres store.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemory creates an empty in-memory state store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Find(_ context.Context, documentID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) ListReady(_ context.Context, limit int) ([]Record, error) {
	return m.list(limit, func(r Record) bool {
		return r.Status == StatusNew || r.Status == StatusRetry
	}), nil
}

func (m *Memory) ListProcessing(_ context.Context, limit int) ([]Record, error) {
	return m.list(limit, func(r Record) bool {
		return r.Status == StatusProcessing
	}), nil
}

func (m *Memory) ListByJob(_ context.Context, jobID string) ([]Record, error) {
	return m.list(0, func(r Record) bool {
		if r.DetectionJobID != nil && *r.DetectionJobID == jobID {
			return true
		}
		return r.PatternJobID != nil && *r.PatternJobID == jobID
	}), nil
}

func (m *Memory) Create(_ context.Context, cmd CreateCommand) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[cmd.DocumentID]; ok {
		return nil, ErrDuplicate
	}

	now := time.Now()
	rec := Record{
		DocumentID:   cmd.DocumentID,
		ScopeKey:     cmd.ScopeKey,
		SecondaryKey: cmd.SecondaryKey,
		Status:       StatusNew,
		PageCount:    cmd.PageCount,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.records[cmd.DocumentID] = rec
	return &rec, nil
}

func (m *Memory) Transition(_ context.Context, rec *Record, to Status, mutate Mutation) (*Record, error) {
	if !CanTransition(rec.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, rec.Status, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[rec.DocumentID]
	if !ok || stored.Version != rec.Version {
		return nil, ErrVersionConflict
	}

	next := stored
	next.Status = to
	if mutate != nil {
		mutate(&next)
	}
	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now()

	m.records[rec.DocumentID] = next
	return &next, nil
}

func (m *Memory) list(limit int, keep func(Record) bool) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	recs := make([]Record, 0)
	for _, r := range m.records {
		if keep(r) {
			recs = append(recs, r)
		}
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].UpdatedAt.Equal(recs[j].UpdatedAt) {
			return recs[i].DocumentID < recs[j].DocumentID
		}
		return recs[i].UpdatedAt.Before(recs[j].UpdatedAt)
	})

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
