package edges

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory System used by tests and local development.
type Memory struct {
	mu    sync.Mutex
	edges []Edge
}

// NewMemory creates an empty in-memory edge store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) WriteBatch(_ context.Context, batch []Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, e := range batch {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		e.CreatedAt = now
		e.UpdatedAt = now
		m.edges = append(m.edges, e)
	}
	return nil
}

func (m *Memory) CleanDocument(_ context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.edges[:0]
	removed := 0
	for _, e := range m.edges {
		if e.SourceDocument == documentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	return removed, nil
}

func (m *Memory) ListByDocument(_ context.Context, documentID string) ([]Edge, error) {
	return m.filter(func(e Edge) bool {
		return e.SourceDocument == documentID
	}), nil
}

func (m *Memory) ListPromotableTexts(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	texts := make([]string, 0)
	for _, e := range m.edges {
		if e.Provisional() && e.Status == StatusSuggested && !e.HasTag(TagPromoteAttempted) {
			if !slices.Contains(texts, e.Text) {
				texts = append(texts, e.Text)
			}
		}
	}

	sort.Strings(texts)
	if limit > 0 && len(texts) > limit {
		texts = texts[:limit]
	}
	return texts, nil
}

func (m *Memory) ListProvisionalByText(_ context.Context, text string) ([]Edge, error) {
	return m.filter(func(e Edge) bool {
		return e.Provisional() && e.Status == StatusSuggested && e.Text == text
	}), nil
}

func (m *Memory) UpdateGroup(_ context.Context, text string, update GroupUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for i := range m.edges {
		e := &m.edges[i]
		if !e.Provisional() || e.Status != StatusSuggested || e.Text != text {
			continue
		}

		e.Status = update.Status
		if update.Target != nil {
			target := *update.Target
			e.TargetEntity = &target
		}
		for _, tag := range update.Tags {
			if !e.HasTag(tag) {
				e.Tags = append(e.Tags, tag)
			}
		}
		e.UpdatedAt = time.Now()
		updated++
	}
	return updated, nil
}

func (m *Memory) filter(keep func(Edge) bool) []Edge {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]Edge, 0)
	for _, e := range m.edges {
		if keep(e) {
			list = append(list, e)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Region.Key() < list[j].Region.Key()
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}
