// ============================================================================
// Package: internal/piptracker
// File: admitter.go
// Function: At-most-once admission of incoming pip-step requests by
// sequence number, used by RequestIntake (spec §4.3, invariant 1). Grounded
// on the same hybrid-map philosophy as completion_table.go but inverted:
// instead of tracking a pending result, it only ever needs a "have I seen
// this before" set, so it is a thin sync.Map-free guarded set rather than a
// full state machine.
// ============================================================================

package piptracker

import "sync"

// SequenceAdmitter is a test-and-set membership set for sequence numbers,
// scoped per worker per build (callers construct one per Attach). Retried
// requests carrying a previously admitted sequence number are rejected as
// no-ops without re-running the underlying step.
type SequenceAdmitter struct {
	mu      sync.Mutex
	handled map[uint64]struct{}
}

// NewSequenceAdmitter creates an empty admitter.
func NewSequenceAdmitter() *SequenceAdmitter {
	return &SequenceAdmitter{handled: make(map[uint64]struct{})}
}

// Admit atomically tests and sets seq in the handled set. Returns true the
// first time a given seq is seen, false on every subsequent call — the
// caller should run the step on true and silently drop on false.
func (a *SequenceAdmitter) Admit(seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, seen := a.handled[seq]; seen {
		return false
	}
	a.handled[seq] = struct{}{}
	return true
}

// Forget drops seq from the handled set. Not used on the steady-state
// admission path; exposed for tests and for bounding memory if a build ever
// needs to recycle sequence numbers across very long sessions.
func (a *SequenceAdmitter) Forget(seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.handled, seq)
}

// Len reports how many sequence numbers have been admitted so far.
func (a *SequenceAdmitter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handled)
}
