// ============================================================================
// Package: internal/remoteworker
// File: eventstats.go
// Function: Event-stats reconciliation (spec §4.7): on Exit, the worker
// reports its execution-event counters; the orchestrator compares them
// against its own running tally per event id to catch silently dropped
// events.
// ============================================================================

package remoteworker

import "sync"

// EventStatsTracker accumulates the orchestrator's own count of forwarded
// events per event id, for comparison against a worker's self-reported
// counters at Exit time.
type EventStatsTracker struct {
	mu     sync.Mutex
	counts map[uint32]uint64
}

// NewEventStatsTracker creates an empty tracker.
func NewEventStatsTracker() *EventStatsTracker {
	return &EventStatsTracker{counts: make(map[uint32]uint64)}
}

// Record increments this process's own tally for eventID, called once per
// forwarded event received via ReportPipResults.
func (t *EventStatsTracker) Record(eventID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[eventID]++
}

// Mismatch is one event id whose worker-reported and orchestrator-observed
// counts disagree.
type Mismatch struct {
	EventID  uint32
	Observed uint64
	Reported uint64
}

// Reconcile compares the worker's self-reported counters (from the Exit
// RPC response) against this tracker's own tally and returns every
// disagreement, in event-id order is not guaranteed (map iteration).
func (t *EventStatsTracker) Reconcile(reported map[uint32]uint64) []Mismatch {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[uint32]bool, len(t.counts)+len(reported))
	var mismatches []Mismatch
	for id, observed := range t.counts {
		seen[id] = true
		if reportedCount := reported[id]; reportedCount != observed {
			mismatches = append(mismatches, Mismatch{EventID: id, Observed: observed, Reported: reportedCount})
		}
	}
	for id, reportedCount := range reported {
		if seen[id] {
			continue
		}
		mismatches = append(mismatches, Mismatch{EventID: id, Observed: 0, Reported: reportedCount})
	}
	return mismatches
}
