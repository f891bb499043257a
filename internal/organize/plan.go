package organize

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pixelsense/pixelsense/internal/classify"
	"github.com/pixelsense/pixelsense/internal/images"
)

// Placement maps one source image to its destination path.
type Placement struct {
	Ref  images.ImageRef
	Dest string
}

// Plan is the full set of copies a run intends to perform. Items that
// failed or did not match are absent; they are counted in RunStats
// instead.
type Plan struct {
	Entries []Placement
}

// ReduceQuery computes the placement plan for a query-mode run:
// matching images map to outputRoot/<filename>, everything else is
// skipped. Counters for matches, failures and retries are folded into
// stats here, so the reduction is the single accounting point.
func ReduceQuery(outcomes []classify.Outcome[classify.QueryJudgment], outputRoot string, stats *RunStats) Plan {
	sortOutcomes(outcomes)

	plan := Plan{}
	used := newDestSet()
	for _, out := range outcomes {
		if out.Err != nil {
			stats.RecordFailure(out.Retries)
			continue
		}
		stats.RecordSuccess(out.Retries)
		stats.RecordMatch(out.Judgment.Matches)
		if !out.Judgment.Matches {
			continue
		}
		plan.Entries = append(plan.Entries, Placement{
			Ref:  out.Ref,
			Dest: used.claim(outputRoot, out.Ref.Filename()),
		})
	}
	return plan
}

// ReduceCategories computes the placement plan for an auto-categorize
// run: every judged image maps to outputRoot/main/sub/<filename>
// (or outputRoot/main/<filename> without a subcategory; unresolved
// judgments were already folded to the uncategorized sentinel).
func ReduceCategories(outcomes []classify.Outcome[classify.CategoryJudgment], outputRoot string, stats *RunStats) Plan {
	sortOutcomes(outcomes)

	plan := Plan{}
	used := newDestSet()
	for _, out := range outcomes {
		if out.Err != nil {
			stats.RecordFailure(out.Retries)
			continue
		}
		stats.RecordSuccess(out.Retries)
		stats.RecordCategory(out.Judgment.Path())

		dir := filepath.Join(outputRoot, filepath.FromSlash(out.Judgment.Path()))
		plan.Entries = append(plan.Entries, Placement{
			Ref:  out.Ref,
			Dest: used.claim(dir, out.Ref.Filename()),
		})
	}
	return plan
}

// sortOutcomes orders outcomes by source path so the reduction (and
// therefore collision numbering) is deterministic regardless of worker
// completion order.
func sortOutcomes[T any](outcomes []classify.Outcome[T]) {
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Ref.Path < outcomes[j].Ref.Path
	})
}

// destSet tracks claimed destination paths per directory so two source
// images never reduce to the same destination.
type destSet struct {
	claimed map[string]bool
}

func newDestSet() *destSet {
	return &destSet{claimed: make(map[string]bool)}
}

// claim returns dir/name, disambiguated with a numeric suffix
// (name_1.ext, name_2.ext, ...) when an earlier entry already took it.
func (d *destSet) claim(dir, name string) string {
	dest := filepath.Join(dir, name)
	if !d.claimed[dest] {
		d.claimed[dest] = true
		return dest
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if !d.claimed[dest] {
			d.claimed[dest] = true
			return dest
		}
	}
}
