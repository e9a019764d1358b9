package edges_test

import (
	"context"
	"testing"

	"github.com/cognitedata/annotator/internal/edges"
)

func provisional(doc, text string, page int) edges.Edge {
	return edges.Edge{
		SourceDocument: doc,
		Text:           text,
		Confidence:     0.6,
		Region:         edges.Region{Page: page, XMin: 0.1, YMin: 0.1, XMax: 0.2, YMax: 0.2},
		Status:         edges.StatusSuggested,
	}
}

func TestRegionKeyIdentity(t *testing.T) {
	a := edges.Region{Page: 3, XMin: 0.1, YMin: 0.2, XMax: 0.3, YMax: 0.4}
	b := edges.Region{Page: 3, XMin: 0.1, YMin: 0.2, XMax: 0.3, YMax: 0.4}
	c := edges.Region{Page: 4, XMin: 0.1, YMin: 0.2, XMax: 0.3, YMax: 0.4}

	if a.Key() != b.Key() {
		t.Errorf("identical regions produced different keys: %s vs %s", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Errorf("different pages produced the same key: %s", a.Key())
	}
}

func TestProvisional(t *testing.T) {
	target := "e1"

	resolved := edges.Edge{TargetEntity: &target}
	if resolved.Provisional() {
		t.Error("edge with target reported provisional")
	}

	floating := edges.Edge{}
	if !floating.Provisional() {
		t.Error("edge without target not reported provisional")
	}
}

func TestCleanDocument(t *testing.T) {
	ctx := context.Background()
	sys := edges.NewMemory()

	if err := sys.WriteBatch(ctx, []edges.Edge{
		provisional("doc-1", "FT-101A", 1),
		provisional("doc-1", "FT-101A", 2),
		provisional("doc-2", "PT-303C", 1),
	}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	removed, err := sys.CleanDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("CleanDocument: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d edges, want 2", removed)
	}

	remaining, _ := sys.ListByDocument(ctx, "doc-2")
	if len(remaining) != 1 {
		t.Errorf("unrelated document lost edges: %d left, want 1", len(remaining))
	}
}

func TestUpdateGroupUniform(t *testing.T) {
	ctx := context.Background()
	sys := edges.NewMemory()

	if err := sys.WriteBatch(ctx, []edges.Edge{
		provisional("doc-1", "FT-101A", 1),
		provisional("doc-2", "FT-101A", 3),
		provisional("doc-3", "PT-303C", 1),
	}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	target := "e1"
	updated, err := sys.UpdateGroup(ctx, "FT-101A", edges.GroupUpdate{
		Status: edges.StatusApproved,
		Target: &target,
		Tags:   []string{edges.TagPromoteAttempted, edges.TagPromotedAuto},
	})
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated %d edges, want 2", updated)
	}

	for _, doc := range []string{"doc-1", "doc-2"} {
		list, _ := sys.ListByDocument(ctx, doc)
		if len(list) != 1 {
			t.Fatalf("%s has %d edges", doc, len(list))
		}
		e := list[0]
		if e.Status != edges.StatusApproved {
			t.Errorf("%s status = %s, want Approved", doc, e.Status)
		}
		if e.TargetEntity == nil || *e.TargetEntity != "e1" {
			t.Errorf("%s target not set", doc)
		}
		if !e.HasTag(edges.TagPromotedAuto) || !e.HasTag(edges.TagPromoteAttempted) {
			t.Errorf("%s tags = %v", doc, e.Tags)
		}
	}

	other, _ := sys.ListByDocument(ctx, "doc-3")
	if other[0].Status != edges.StatusSuggested || other[0].TargetEntity != nil {
		t.Errorf("unrelated text group was modified: %+v", other[0])
	}
}

func TestListPromotableTextsSkipsAttempted(t *testing.T) {
	ctx := context.Background()
	sys := edges.NewMemory()

	attempted := provisional("doc-1", "FT-101A", 1)
	attempted.Tags = []string{edges.TagPromoteAttempted}

	target := "e1"
	resolved := provisional("doc-1", "PT-303C", 2)
	resolved.TargetEntity = &target

	if err := sys.WriteBatch(ctx, []edges.Edge{
		attempted,
		resolved,
		provisional("doc-2", "LV-404D", 1),
	}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	texts, err := sys.ListPromotableTexts(ctx, 10)
	if err != nil {
		t.Fatalf("ListPromotableTexts: %v", err)
	}
	if len(texts) != 1 || texts[0] != "LV-404D" {
		t.Errorf("promotable texts = %v, want [LV-404D]", texts)
	}
}

func TestListPromotableTextsDistinct(t *testing.T) {
	ctx := context.Background()
	sys := edges.NewMemory()

	if err := sys.WriteBatch(ctx, []edges.Edge{
		provisional("doc-1", "FT-101A", 1),
		provisional("doc-2", "FT-101A", 5),
		provisional("doc-3", "FT-101A", 9),
	}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	texts, _ := sys.ListPromotableTexts(ctx, 10)
	if len(texts) != 1 {
		t.Errorf("same text listed %d times, want once", len(texts))
	}
}
