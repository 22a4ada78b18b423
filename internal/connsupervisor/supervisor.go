// ============================================================================
// Beaver-Distbuild Connection Supervisor
// ============================================================================
//
// Package: internal/connsupervisor
// File: supervisor.go
// Function: Tracks liveness of a single peer connection (worker<->
// orchestrator) and fires exactly once when it is declared lost, fanning
// cancellation out to every context derived from it. Grounded on
// tombee-conductor's internal/daemon/runner/runner.go: the cancelOnce
// sync.Once-guarded close(run.stopped) in Cancel() (idempotent, first
// caller wins) and the draining atomic.Bool flag, generalized here from
// "cancel one run" to "cancel every context derived from a failed
// connection." The teacher has no single-shot guard of any kind to borrow
// from (see DESIGN.md).
//
// ============================================================================

package connsupervisor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// Supervisor latches the first failure observed for a peer connection and
// cancels every context derived via Context(). Safe for concurrent use;
// Fail may be called from multiple goroutines (a heartbeat timeout, a
// stream read error, an explicit Exit RPC) but only the first call has
// effect.
type Supervisor struct {
	failed atomic.Bool

	mu     sync.Mutex
	cause  types.ConnectionFailureCause
	reason string
	cancel context.CancelCauseFunc
	ctx    context.Context
}

// New creates a Supervisor whose derived context is a child of parent.
func New(parent context.Context) *Supervisor {
	ctx, cancel := context.WithCancelCause(parent)
	return &Supervisor{ctx: ctx, cancel: cancel}
}

// Context returns the context that is cancelled the first time Fail is
// called. Callers that need to abort in-flight work (the notification
// sender loop, a pending RPC) should select on Context().Done().
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Fail declares the connection lost. Only the first call has any effect;
// later calls (including ones racing concurrently) are silently dropped so
// the recorded cause is always the first failure observed, not the last.
func (s *Supervisor) Fail(cause types.ConnectionFailureCause, reason string) {
	if !s.failed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	s.cause = cause
	s.reason = reason
	s.mu.Unlock()
	s.cancel(types.NewDistributionError(cause, "%s", reason))
}

// Failed reports whether Fail has already latched.
func (s *Supervisor) Failed() bool {
	return s.failed.Load()
}

// Cause returns the latched failure cause and reason. Zero value and empty
// string if Fail has not been called yet.
func (s *Supervisor) Cause() (types.ConnectionFailureCause, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause, s.reason
}
