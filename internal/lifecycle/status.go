// ============================================================================
// Beaver-Distbuild Lifecycle State Machine
// ============================================================================
//
// Package: internal/lifecycle
// File: status.go
// Function: Atomic WorkerStatus state machine shared by the worker binary
// (tracking its own status) and the orchestrator's RemoteWorkerDriver
// (tracking its view of each attached worker).
//
// State Machine:
//   NotStarted -> Starting -> Started -> Running
//                    \            \         \
//                     ---------> Stopping -> Stopped
//
// Stopping/Stopped are sinks reachable from any non-sink state; Stopped is
// terminal. Transitions are compare-and-set, so concurrent callers racing to
// drive the same machine never observe a torn state.
//
// ============================================================================

package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// Observer is notified after every successful transition.
type Observer func(from, to types.WorkerStatus)

// SM is the atomic WorkerStatus state machine.
type SM struct {
	state      atomic.Int32
	everAvail  atomic.Bool

	mu        sync.Mutex
	observers []Observer
}

// New creates a state machine starting at NotStarted.
func New() *SM {
	sm := &SM{}
	sm.state.Store(int32(types.StatusNotStarted))
	return sm
}

// Current returns the current status.
func (sm *SM) Current() types.WorkerStatus {
	return types.WorkerStatus(sm.state.Load())
}

// EverAvailable reports whether the machine has ever reached Running.
func (sm *SM) EverAvailable() bool {
	return sm.everAvail.Load()
}

// OnChange registers an observer fired (synchronously, in registration
// order) after a successful transition. Intended for telemetry hookup at
// construction time, not for runtime wiring under load.
func (sm *SM) OnChange(obs Observer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.observers = append(sm.observers, obs)
}

// isLegal reports whether from -> to is an allowed move: either a forward
// step in the linear NotStarted<Starting<Started<Running order, or a move
// into a sink (Stopping/Stopped) from any non-sink state, or Stopping ->
// Stopped. No transition ever moves backward or escapes a sink.
func isLegal(from, to types.WorkerStatus) bool {
	if from == types.StatusStopped {
		return false // terminal
	}
	if to == types.StatusStopping {
		return from != types.StatusStopping
	}
	if to == types.StatusStopped {
		return true // from any non-terminal state, including Stopping
	}
	// Forward move within the linear order.
	fr, tr := rank(from), rank(to)
	return fr >= 0 && tr >= 0 && tr == fr+1
}

func rank(s types.WorkerStatus) int {
	switch s {
	case types.StatusNotStarted:
		return 0
	case types.StatusStarting:
		return 1
	case types.StatusStarted:
		return 2
	case types.StatusRunning:
		return 3
	default:
		return -1
	}
}

// TryTransition attempts from -> to via compare-and-set. Illegal transitions
// and lost CAS races both return false without side effects.
func (sm *SM) TryTransition(from, to types.WorkerStatus) bool {
	if !isLegal(from, to) {
		return false
	}
	if !sm.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if to == types.StatusRunning {
		sm.everAvail.Store(true)
	}
	sm.fire(from, to)
	return true
}

// ForceTransition drives the machine straight to `to` from whatever its
// current state is, so long as `to` is a sink, the current state legally
// reaches it, or the move is Starting -> Running. That last move covers an
// AttachCompleted arriving while Starting or Started (§4.2), where the
// caller does not know which of the two predecessors it is racing against;
// TryTransition still treats Starting -> Running as illegal.
func (sm *SM) ForceTransition(to types.WorkerStatus) bool {
	for {
		from := sm.Current()
		if from == to {
			return false // already there; redundant calls are no-ops
		}
		if !isLegal(from, to) && !(from == types.StatusStarting && to == types.StatusRunning) {
			return false
		}
		if sm.state.CompareAndSwap(int32(from), int32(to)) {
			if to == types.StatusRunning {
				sm.everAvail.Store(true)
			}
			sm.fire(from, to)
			return true
		}
		// Lost the race to a concurrent transition; re-read and retry once
		// more only if the new state still makes `to` reachable.
	}
}

func (sm *SM) fire(from, to types.WorkerStatus) {
	sm.mu.Lock()
	observers := append([]Observer(nil), sm.observers...)
	sm.mu.Unlock()
	for _, obs := range observers {
		obs(from, to)
	}
}

// IsTerminal reports whether the machine has reached Stopped.
func (sm *SM) IsTerminal() bool {
	return sm.Current() == types.StatusStopped
}
