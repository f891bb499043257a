package organize

import (
	"path/filepath"
	"testing"

	"github.com/pixelsense/pixelsense/internal/classify"
	"github.com/pixelsense/pixelsense/internal/images"
	"github.com/pixelsense/pixelsense/internal/providers"
)

func queryOutcome(path string, matches bool) classify.Outcome[classify.QueryJudgment] {
	return classify.Outcome[classify.QueryJudgment]{
		Ref:      images.ImageRef{Path: path, Ext: filepath.Ext(path)},
		Judgment: classify.QueryJudgment{Matches: matches},
	}
}

func errorOutcome[T any](path string) classify.Outcome[T] {
	ref := images.ImageRef{Path: path, Ext: filepath.Ext(path)}
	return classify.Outcome[T]{
		Ref:     ref,
		Retries: 2,
		Err:     &classify.ErrorRecord{Ref: ref, Kind: providers.KindTransient, Message: "gave up"},
	}
}

func TestReduceQuerySingleMatch(t *testing.T) {
	outcomes := []classify.Outcome[classify.QueryJudgment]{
		queryOutcome("/photos/a.jpg", true),
		queryOutcome("/photos/b.jpg", false),
		queryOutcome("/photos/c.jpg", false),
	}

	stats := NewRunStats(3)
	plan := ReduceQuery(outcomes, "output", stats)

	if len(plan.Entries) != 1 {
		t.Fatalf("Expected exactly 1 plan entry, got %d", len(plan.Entries))
	}
	if plan.Entries[0].Dest != filepath.Join("output", "a.jpg") {
		t.Errorf("Expected output/a.jpg, got %s", plan.Entries[0].Dest)
	}

	snap := stats.Snapshot()
	if snap.Matched != 1 {
		t.Errorf("Expected Matched == 1, got %d", snap.Matched)
	}
	if snap.Failed != 0 {
		t.Errorf("Expected Failed == 0, got %d", snap.Failed)
	}
	if snap.Succeeded+snap.Failed != snap.Scanned {
		t.Errorf("succeeded(%d) + failed(%d) != scanned(%d)", snap.Succeeded, snap.Failed, snap.Scanned)
	}
}

func TestReduceQueryCollisions(t *testing.T) {
	outcomes := []classify.Outcome[classify.QueryJudgment]{
		queryOutcome("/one/photo.jpg", true),
		queryOutcome("/two/photo.jpg", true),
		queryOutcome("/three/photo.jpg", true),
	}

	stats := NewRunStats(3)
	plan := ReduceQuery(outcomes, "out", stats)

	if len(plan.Entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(plan.Entries))
	}
	dests := make(map[string]string)
	for _, entry := range plan.Entries {
		if prev, taken := dests[entry.Dest]; taken {
			t.Fatalf("Destination %s claimed by both %s and %s", entry.Dest, prev, entry.Ref.Path)
		}
		dests[entry.Dest] = entry.Ref.Path
	}

	// Reduction is sorted by source path, so the numbering is stable:
	// /one claims the bare name, /three and /two get suffixes.
	if dests[filepath.Join("out", "photo.jpg")] != "/one/photo.jpg" {
		t.Errorf("Expected /one/photo.jpg to keep the bare filename")
	}
	if dests[filepath.Join("out", "photo_1.jpg")] != "/three/photo.jpg" {
		t.Errorf("Expected /three/photo.jpg at photo_1.jpg")
	}
	if dests[filepath.Join("out", "photo_2.jpg")] != "/two/photo.jpg" {
		t.Errorf("Expected /two/photo.jpg at photo_2.jpg")
	}
}

func TestReduceQueryExcludesErrors(t *testing.T) {
	outcomes := []classify.Outcome[classify.QueryJudgment]{
		queryOutcome("/photos/a.jpg", true),
		errorOutcome[classify.QueryJudgment]("/photos/b.jpg"),
	}

	stats := NewRunStats(2)
	plan := ReduceQuery(outcomes, "out", stats)

	if len(plan.Entries) != 1 {
		t.Fatalf("Expected errored item excluded from the plan, got %d entries", len(plan.Entries))
	}
	snap := stats.Snapshot()
	if snap.Failed != 1 {
		t.Errorf("Expected Failed == 1, got %d", snap.Failed)
	}
	if snap.Retried != 2 {
		t.Errorf("Expected retries counted from the errored item, got %d", snap.Retried)
	}
}

func categoryOutcome(path, main, sub string) classify.Outcome[classify.CategoryJudgment] {
	return classify.Outcome[classify.CategoryJudgment]{
		Ref:      images.ImageRef{Path: path, Ext: filepath.Ext(path)},
		Judgment: classify.CategoryJudgment{Main: main, Sub: sub},
	}
}

func TestReduceCategories(t *testing.T) {
	outcomes := []classify.Outcome[classify.CategoryJudgment]{
		categoryOutcome("/photos/a.jpg", "travel", "beaches"),
		categoryOutcome("/photos/b.jpg", "travel", "beaches"),
		categoryOutcome("/photos/c.jpg", "documents", ""),
		categoryOutcome("/photos/d.jpg", classify.Uncategorized, ""),
		errorOutcome[classify.CategoryJudgment]("/photos/e.jpg"),
	}

	stats := NewRunStats(5)
	plan := ReduceCategories(outcomes, "out", stats)

	want := map[string]string{
		"/photos/a.jpg": filepath.Join("out", "travel", "beaches", "a.jpg"),
		"/photos/b.jpg": filepath.Join("out", "travel", "beaches", "b.jpg"),
		"/photos/c.jpg": filepath.Join("out", "documents", "c.jpg"),
		"/photos/d.jpg": filepath.Join("out", "uncategorized", "d.jpg"),
	}
	if len(plan.Entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(plan.Entries))
	}
	for _, entry := range plan.Entries {
		if entry.Dest != want[entry.Ref.Path] {
			t.Errorf("Dest for %s = %s, expected %s", entry.Ref.Path, entry.Dest, want[entry.Ref.Path])
		}
	}

	snap := stats.Snapshot()
	if snap.PerCategory["travel/beaches"] != 2 {
		t.Errorf("Expected 2 images under travel/beaches, got %d", snap.PerCategory["travel/beaches"])
	}
	if snap.PerCategory["documents"] != 1 {
		t.Errorf("Expected 1 image under documents, got %d", snap.PerCategory["documents"])
	}
	if snap.Succeeded != 4 || snap.Failed != 1 {
		t.Errorf("Expected 4 succeeded / 1 failed, got %d / %d", snap.Succeeded, snap.Failed)
	}
}
