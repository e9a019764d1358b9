package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cognitedata/annotator/internal/state"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to state.Status
		want     bool
	}{
		{state.StatusNew, state.StatusProcessing, true},
		{state.StatusRetry, state.StatusProcessing, true},
		{state.StatusProcessing, state.StatusProcessing, true},
		{state.StatusProcessing, state.StatusAnnotated, true},
		{state.StatusProcessing, state.StatusRetry, true},
		{state.StatusProcessing, state.StatusFailed, true},
		{state.StatusNew, state.StatusAnnotated, false},
		{state.StatusNew, state.StatusFailed, false},
		{state.StatusAnnotated, state.StatusProcessing, false},
		{state.StatusFailed, state.StatusProcessing, false},
		{state.StatusRetry, state.StatusAnnotated, false},
	}

	for _, tc := range tests {
		if got := state.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	sys := state.NewMemory()

	created, err := sys.Create(ctx, state.CreateCommand{DocumentID: "doc-1", ScopeKey: "site-a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != state.StatusNew {
		t.Errorf("new record status = %s, want %s", created.Status, state.StatusNew)
	}
	if created.Version != 1 {
		t.Errorf("new record version = %d, want 1", created.Version)
	}

	if _, err := sys.Create(ctx, state.CreateCommand{DocumentID: "doc-1", ScopeKey: "site-a"}); !errors.Is(err, state.ErrDuplicate) {
		t.Errorf("duplicate Create = %v, want ErrDuplicate", err)
	}

	found, err := sys.Find(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.DocumentID != "doc-1" {
		t.Errorf("Find returned %s, want doc-1", found.DocumentID)
	}

	if _, err := sys.Find(ctx, "missing"); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("Find(missing) = %v, want ErrNotFound", err)
	}
}

func TestTransitionVersionGuard(t *testing.T) {
	ctx := context.Background()
	sys := state.NewMemory()

	rec, err := sys.Create(ctx, state.CreateCommand{DocumentID: "doc-1", ScopeKey: "site-a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two workers hold the same version; only the first write wins.
	first := *rec
	second := *rec

	if _, err := sys.Transition(ctx, &first, state.StatusProcessing, nil); err != nil {
		t.Fatalf("first Transition: %v", err)
	}
	if _, err := sys.Transition(ctx, &second, state.StatusProcessing, nil); !errors.Is(err, state.ErrVersionConflict) {
		t.Errorf("second Transition = %v, want ErrVersionConflict", err)
	}
}

func TestTransitionIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	sys := state.NewMemory()

	rec, _ := sys.Create(ctx, state.CreateCommand{DocumentID: "doc-1", ScopeKey: "site-a"})

	job := "job-1"
	updated, err := sys.Transition(ctx, rec, state.StatusProcessing, func(r *state.Record) {
		r.DetectionJobID = &job
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Version != rec.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, rec.Version+1)
	}
	if updated.DetectionJobID == nil || *updated.DetectionJobID != "job-1" {
		t.Errorf("mutation not applied: %+v", updated)
	}
}

func TestTransitionIllegal(t *testing.T) {
	ctx := context.Background()
	sys := state.NewMemory()

	rec, _ := sys.Create(ctx, state.CreateCommand{DocumentID: "doc-1", ScopeKey: "site-a"})

	if _, err := sys.Transition(ctx, rec, state.StatusAnnotated, nil); !errors.Is(err, state.ErrIllegalTransition) {
		t.Errorf("New -> Annotated = %v, want ErrIllegalTransition", err)
	}
}

func TestListByJobMatchesEitherHandle(t *testing.T) {
	ctx := context.Background()
	sys := state.NewMemory()

	detectionOnly, _ := sys.Create(ctx, state.CreateCommand{DocumentID: "doc-1", ScopeKey: "site-a"})
	patternOnly, _ := sys.Create(ctx, state.CreateCommand{DocumentID: "doc-2", ScopeKey: "site-a"})

	job := "job-1"
	if _, err := sys.Transition(ctx, detectionOnly, state.StatusProcessing, func(r *state.Record) {
		r.DetectionJobID = &job
	}); err != nil {
		t.Fatalf("Transition doc-1: %v", err)
	}
	if _, err := sys.Transition(ctx, patternOnly, state.StatusProcessing, func(r *state.Record) {
		r.PatternJobID = &job
	}); err != nil {
		t.Fatalf("Transition doc-2: %v", err)
	}

	batch, err := sys.ListByJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(batch) != 2 {
		t.Errorf("ListByJob returned %d records, want 2", len(batch))
	}
}

func TestGroupKey(t *testing.T) {
	secondary := "unit-7"

	tests := []struct {
		name string
		rec  state.Record
		want string
	}{
		{"primary only", state.Record{ScopeKey: "site-a"}, "site-a"},
		{"with secondary", state.Record{ScopeKey: "site-a", SecondaryKey: &secondary}, "site-a/unit-7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.GroupKey(); got != tc.want {
				t.Errorf("GroupKey() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestJobHandle(t *testing.T) {
	det := "job-det"
	pat := "job-pat"

	both := state.Record{DetectionJobID: &det, PatternJobID: &pat}
	if got := both.JobHandle(); got != "job-det" {
		t.Errorf("JobHandle with both = %s, want job-det", got)
	}

	patternOnly := state.Record{PatternJobID: &pat}
	if got := patternOnly.JobHandle(); got != "job-pat" {
		t.Errorf("JobHandle pattern only = %s, want job-pat", got)
	}

	none := state.Record{}
	if got := none.JobHandle(); got != "" {
		t.Errorf("JobHandle with neither = %q, want empty", got)
	}
}

func TestListReadyRespectsLimit(t *testing.T) {
	ctx := context.Background()
	sys := state.NewMemory()

	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		if _, err := sys.Create(ctx, state.CreateCommand{DocumentID: id, ScopeKey: "site-a"}); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	ready, err := sys.ListReady(ctx, 2)
	if err != nil {
		t.Fatalf("ListReady: %v", err)
	}
	if len(ready) != 2 {
		t.Errorf("ListReady(2) returned %d records", len(ready))
	}
}
