package entities_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/cognitedata/annotator/internal/entities"
)

func TestAliasPatternShapes(t *testing.T) {
	tests := []struct {
		alias string
		want  string
	}{
		{"FT-101A", "[A-Z]{2}-[0-9]{3}[A-Z]{1}"},
		{"P_205", "[A-Z]{1}_[0-9]{3}"},
		{"PUMP", "[A-Z]{4}"},
		{"2041", "[0-9]{4}"},
		{"AB 12", "[A-Z]{2} [0-9]{2}"},
	}

	for _, tc := range tests {
		ents := []entities.Entity{{ID: "e1", Aliases: []string{tc.alias}}}
		got := entities.GeneratePatterns(ents)
		if len(got) != 1 || got[0] != tc.want {
			t.Errorf("GeneratePatterns(%q) = %v, want [%s]", tc.alias, got, tc.want)
		}
	}
}

func TestGeneratePatternsDeduplicates(t *testing.T) {
	ents := []entities.Entity{
		{ID: "e1", Aliases: []string{"FT-101A", "FT-202B"}},
		{ID: "e2", Aliases: []string{"PT-303C"}},
	}

	got := entities.GeneratePatterns(ents)
	if len(got) != 1 {
		t.Errorf("same-shape aliases produced %d patterns, want 1: %v", len(got), got)
	}
}

func TestGeneratePatternsSkipsEmptyContent(t *testing.T) {
	ents := []entities.Entity{{ID: "e1", Aliases: []string{"---", "  ", ""}}}
	if got := entities.GeneratePatterns(ents); len(got) != 0 {
		t.Errorf("separator-only aliases produced %v, want none", got)
	}
}

func TestMergePatterns(t *testing.T) {
	generated := []string{"[A-Z]{2}-[0-9]{3}"}
	manual := []string{"[A-Z]{2}-[0-9]{3}", "TAG-[0-9]{4}", ""}

	got := entities.MergePatterns(generated, manual)
	want := []string{"[A-Z]{2}-[0-9]{3}", "TAG-[0-9]{4}"}
	if !slices.Equal(got, want) {
		t.Errorf("MergePatterns = %v, want %v", got, want)
	}
}

func TestScopeCacheValid(t *testing.T) {
	now := time.Now()
	cache := &entities.ScopeCache{GeneratedAt: now.Add(-30 * time.Minute)}

	if !cache.Valid(time.Hour, now) {
		t.Error("cache within TTL reported invalid")
	}
	if cache.Valid(10*time.Minute, now) {
		t.Error("cache past TTL reported valid")
	}
}

func TestEnsureScopeCacheRebuildOnlyOnExpiry(t *testing.T) {
	ctx := context.Background()
	sys := entities.NewMemory()
	sys.Add(entities.Entity{ID: "e1", Name: "Flow Transmitter", Aliases: []string{"FT-101A"}, ScopeKey: "site-a"})

	opts := entities.CacheOptions{TTL: time.Hour}

	first, err := sys.EnsureScopeCache(ctx, "site-a", opts)
	if err != nil {
		t.Fatalf("EnsureScopeCache: %v", err)
	}
	if len(first.Entities) != 1 || len(first.Patterns) != 1 {
		t.Fatalf("cache content = %d entities, %d patterns", len(first.Entities), len(first.Patterns))
	}

	if _, err := sys.EnsureScopeCache(ctx, "site-a", opts); err != nil {
		t.Fatalf("EnsureScopeCache: %v", err)
	}
	if sys.Rebuilt != 1 {
		t.Errorf("valid cache rebuilt: %d rebuilds, want 1", sys.Rebuilt)
	}

	// Zero TTL invalidates immediately.
	if _, err := sys.EnsureScopeCache(ctx, "site-a", entities.CacheOptions{TTL: 0}); err != nil {
		t.Fatalf("EnsureScopeCache: %v", err)
	}
	if sys.Rebuilt != 2 {
		t.Errorf("expired cache not rebuilt: %d rebuilds, want 2", sys.Rebuilt)
	}
}

func TestEnsureScopeCacheMergesManualPatterns(t *testing.T) {
	ctx := context.Background()
	sys := entities.NewMemory()
	sys.Add(entities.Entity{ID: "e1", Name: "Flow Transmitter", Aliases: []string{"FT-101A"}, ScopeKey: "site-a"})

	cache, err := sys.EnsureScopeCache(ctx, "site-a", entities.CacheOptions{
		TTL:            time.Hour,
		ManualPatterns: []string{"TAG-[0-9]{4}"},
	})
	if err != nil {
		t.Fatalf("EnsureScopeCache: %v", err)
	}

	if !slices.Contains(cache.Patterns, "TAG-[0-9]{4}") {
		t.Errorf("manual pattern missing from cache: %v", cache.Patterns)
	}
	if !slices.Contains(cache.Patterns, "[A-Z]{2}-[0-9]{3}[A-Z]{1}") {
		t.Errorf("generated pattern missing from cache: %v", cache.Patterns)
	}
}

func TestSearchAliasesScoping(t *testing.T) {
	ctx := context.Background()
	sys := entities.NewMemory()
	sys.Add(
		entities.Entity{ID: "e1", Name: "Flow Transmitter", Aliases: []string{"FT-101A"}, ScopeKey: "site-a"},
		entities.Entity{ID: "e2", Name: "Flow Meter", Aliases: []string{"FT-101A"}, ScopeKey: "site-b"},
	)

	scoped, err := sys.SearchAliases(ctx, "site-a", []string{"FT-101A"})
	if err != nil {
		t.Fatalf("SearchAliases: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != "e1" {
		t.Errorf("scoped search = %v, want only e1", scoped)
	}

	global, err := sys.SearchAliases(ctx, "", []string{"FT-101A"})
	if err != nil {
		t.Fatalf("SearchAliases: %v", err)
	}
	if len(global) != 2 {
		t.Errorf("global search returned %d entities, want 2", len(global))
	}
}
