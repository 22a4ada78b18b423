// ============================================================================
// Package: internal/piptracker
// File: completion_table.go
// Function: PipCompletionTable — maps pipId -> Future<PipCompletionData> for
// the orchestrator's RemoteWorkerDriver. Adapted from JobManager's unified
// `jobs map[JobID]*Job` plus `inFlight` index: here there is no queue (a
// pip only enters the table once it has actually been sent) and no
// Completed/Dead secondary maps, since a resolved Future carries its own
// terminal state and stale entries are reaped by Forget once the caller has
// consumed the result.
// ============================================================================

package piptracker

import (
	"errors"
	"sync"

	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

var (
	// ErrDuplicatePip mirrors the teacher's ErrDuplicateJob: a pip cannot be
	// tracked twice concurrently — the caller must await or forget first.
	ErrDuplicatePip = errors.New("piptracker: pip already tracked")
	// ErrUnknownPip mirrors ErrJobNotFound.
	ErrUnknownPip = errors.New("piptracker: pip not tracked")
)

type entry struct {
	step   types.PipStep
	future *Future
}

// CompletionTable tracks in-flight pips awaiting a remote result.
type CompletionTable struct {
	mu      sync.RWMutex
	entries map[types.PipID]*entry
}

// NewCompletionTable creates an empty table.
func NewCompletionTable() *CompletionTable {
	return &CompletionTable{entries: make(map[types.PipID]*entry)}
}

// Track registers pip/step as in-flight and returns its Future. The caller
// is expected to await the future and eventually call Forget.
func (t *CompletionTable) Track(pip types.PipID, step types.PipStep) (*Future, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[pip]; exists {
		return nil, ErrDuplicatePip
	}
	f := NewFuture()
	t.entries[pip] = &entry{step: step, future: f}
	return f, nil
}

// NotifyCompletion resolves the pending future for pip if the reported step
// matches the tracked one. A step mismatch is treated as a notification
// belonging to a superseded RPC retry and is silently ignored, per spec
// §4.6. Resolving an already-resolved future is also a silent no-op. The
// returned bool is true only when this call actually resolved the future.
func (t *CompletionTable) NotifyCompletion(pip types.PipID, data types.PipCompletionData) bool {
	t.mu.RLock()
	e, ok := t.entries[pip]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	if e.step != data.Step {
		return false
	}
	return e.future.Resolve(Result{Data: data})
}

// FailAll resolves every currently tracked future with a retryable failure,
// used by ConnectionLost handling (§4.6, §7) to unblock every awaiter at
// once instead of letting each one time out independently.
func (t *CompletionTable) FailAll(reason types.RetryReason, err error) {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()
	for _, e := range entries {
		e.future.Resolve(Result{Retry: reason, Err: err})
	}
}

// Forget removes pip from the table. Safe to call whether or not the
// future resolved; used once the awaiting caller has consumed the result.
func (t *CompletionTable) Forget(pip types.PipID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, pip)
}

// Len reports how many pips are currently tracked, mainly for tests and
// metrics gauges.
func (t *CompletionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
