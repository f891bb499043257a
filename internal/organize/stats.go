// Package organize reduces classification outcomes into a placement
// plan and executes the plan against the output folder.
package organize

import (
	"sync"
)

// RunStats accumulates run counters. Counters only grow; concurrent
// updates are serialized by the mutex.
type RunStats struct {
	mu sync.Mutex

	scanned     int
	succeeded   int
	failed      int
	retried     int
	matched     int
	unmatched   int
	perCategory map[string]int
	copyErrors  int
}

// StatsSnapshot is a point-in-time copy of the counters for reporting.
type StatsSnapshot struct {
	Scanned     int
	Succeeded   int
	Failed      int
	Retried     int
	Matched     int
	Unmatched   int
	PerCategory map[string]int
	CopyErrors  int
}

// NewRunStats returns stats for a run over scanned enumerated images.
func NewRunStats(scanned int) *RunStats {
	return &RunStats{
		scanned:     scanned,
		perCategory: make(map[string]int),
	}
}

// RecordSuccess counts one terminal judgment and the retries it cost.
func (s *RunStats) RecordSuccess(retries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded++
	s.retried += retries
}

// RecordFailure counts one exhausted item and the retries it cost.
func (s *RunStats) RecordFailure(retries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.retried += retries
}

// RecordMatch counts a query-mode judgment.
func (s *RunStats) RecordMatch(matched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if matched {
		s.matched++
	} else {
		s.unmatched++
	}
}

// RecordCategory counts an auto-mode judgment under its category path.
func (s *RunStats) RecordCategory(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perCategory[path]++
}

// RecordCopyError counts a failed plan copy. Copy failures never abort
// the run.
func (s *RunStats) RecordCopyError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyErrors++
}

// Snapshot returns a copy of the counters.
func (s *RunStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	perCategory := make(map[string]int, len(s.perCategory))
	for k, v := range s.perCategory {
		perCategory[k] = v
	}
	return StatsSnapshot{
		Scanned:     s.scanned,
		Succeeded:   s.succeeded,
		Failed:      s.failed,
		Retried:     s.retried,
		Matched:     s.matched,
		Unmatched:   s.unmatched,
		PerCategory: perCategory,
		CopyErrors:  s.copyErrors,
	}
}
