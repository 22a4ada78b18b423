// ============================================================================
// Beaver-Distbuild Pip Tracker
// ============================================================================
//
// Package: internal/piptracker
// File: future.go
// Function: Single-resolution future for a pip's remote-execution result.
// Grounded on the teacher's hybrid map+index job state machine in
// internal/jobmanager/job_manager.go, narrowed from a full job lifecycle
// (Pending/InFlight/Completed/Dead) down to what PipCompletionTable needs:
// one resolve, many awaiters, idempotent against duplicate resolution.
//
// ============================================================================

package piptracker

import (
	"context"
	"sync"

	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// Result is what a Future resolves to: either a completion reported by the
// worker, or a locally synthesized outcome (timeout, connection loss).
type Result struct {
	Data    types.PipCompletionData
	Retry   types.RetryReason
	Err     error
}

// Future is a single-assignment result slot. The zero value is not usable;
// create with NewFuture.
type Future struct {
	done chan struct{}

	mu       sync.Mutex
	resolved bool
	result   Result
}

// NewFuture creates an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve sets the result and wakes every waiter. Only the first call takes
// effect; later calls are no-ops, matching the spec's "if the future is
// already resolved, ignored" rule for duplicate completion notifications.
func (f *Future) Resolve(r Result) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.result = r
	f.mu.Unlock()
	close(f.done)
	return true
}

// Resolved reports whether Resolve has already run, and if so, with what.
func (f *Future) Resolved() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.resolved
}

// Await blocks until the future resolves or ctx is cancelled. A cancelled
// ctx does not resolve the future itself — the caller (typically the
// remote pip timeout racer) is responsible for calling Resolve with a
// retryable timeout result so other awaiters also unblock.
func (f *Future) Await(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		r, _ := f.Resolved()
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Done returns a channel closed when the future resolves, for callers that
// need to select against it alongside other channels (e.g. a timeout timer).
func (f *Future) Done() <-chan struct{} {
	return f.done
}
