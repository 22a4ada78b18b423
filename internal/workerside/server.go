// ============================================================================
// Package: internal/workerside
// File: server.go
// Function: Worker implements v1.WorkerServiceServer (spec §4.2's three
// handshake phases plus ExecutePips/Exit/Heartbeat). Grounded on the
// teacher's Controller: one struct wiring the lifecycle state machine,
// intake, and notification manager together, with ExecutePips doing
// nothing but validate + enqueue + return (spec §5's "RPC handlers must not
// block"); Exit runs its teardown before it returns.
// ============================================================================

package workerside

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/ChuLiYu/beaver-distbuild/api/proto/v1"
	"github.com/ChuLiYu/beaver-distbuild/internal/lifecycle"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// Worker is the worker binary's gRPC-facing core: the lifecycle state
// machine, the request intake pipeline, and the notification manager,
// wired together behind the WorkerServiceServer interface.
type Worker struct {
	v1.UnimplementedWorkerServiceServer

	id         types.WorkerID
	invocation types.InvocationID
	sm         *lifecycle.SM
	intake     *RequestIntake
	notify     *NotificationManager
	client     *OrchestratorClient

	attachTimeout time.Duration

	mu         sync.Mutex
	sessionID  string
	attachedAt time.Time
	exitOnce   sync.Once
	exitCh     chan exitRequest

	log *slog.Logger
}

type exitRequest struct {
	reason     string
	unexpected bool
}

// NewWorker wires a Worker around an already-constructed intake and
// notification manager. attachTimeout is the Hello/waiting-for-Attach budget
// from spec §4.2 (default 45 min; zero disables the deadline).
func NewWorker(id types.WorkerID, invocation types.InvocationID, sm *lifecycle.SM, intake *RequestIntake, notify *NotificationManager, client *OrchestratorClient, attachTimeout time.Duration, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	w := &Worker{
		id:            id,
		invocation:    invocation,
		sm:            sm,
		intake:        intake,
		notify:        notify,
		client:        client,
		attachTimeout: attachTimeout,
		exitCh:        make(chan exitRequest, 1),
		log:           log,
	}
	return w
}

// RequestExit implements ExitRequester: NotificationManager calls this after
// an unrecoverable send failure (spec §4.4). Single-shot; later calls are
// no-ops since the worker is already on its way out.
func (w *Worker) RequestExit(reason string, unexpected bool) {
	w.exitOnce.Do(func() {
		w.exitCh <- exitRequest{reason: reason, unexpected: unexpected}
		w.sm.ForceTransition(types.StatusStopping)
	})
}

// WaitForExitRequest blocks until RequestExit is called (from a failed send)
// or ctx is cancelled. The worker's main loop selects on this alongside
// signal handling to know when to begin tearing down.
func (w *Worker) WaitForExitRequest(ctx context.Context) (string, bool, bool) {
	select {
	case req := <-w.exitCh:
		return req.reason, req.unexpected, true
	case <-ctx.Done():
		return "", false, false
	}
}

func (w *Worker) validateHeader(h v1.InvocationHeader) error {
	got := h.ToTypes()
	if !got.Equal(w.invocation) {
		return fmt.Errorf("invocation mismatch: worker bound to %+v, request carried %+v", w.invocation, got)
	}
	return nil
}

// Attach implements the handshake's phase 2 (spec §4.2). Tolerates a
// concurrent AttachCompleted racing in: Starting may land on Started or
// jump straight to Running, both are legal outcomes of this call.
func (w *Worker) Attach(ctx context.Context, req *v1.AttachRequest) (*v1.AttachResponse, error) {
	if err := w.validateHeader(req.Header); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.sessionID = req.Start.SessionID
	w.attachedAt = time.Now()
	w.mu.Unlock()

	w.log.Info("attach received", "sessionId", req.Start.SessionID, "workerId", req.Start.WorkerID)

	// A worker still in NotStarted enters Starting here, so the first
	// Attach lands on Started.
	w.sm.TryTransition(types.StatusNotStarted, types.StatusStarting)
	if !w.sm.TryTransition(types.StatusStarting, types.StatusStarted) {
		// Either already past Started (AttachCompleted raced ahead, legal
		// per §4.2) or an illegal call from Stopping/Stopped — the latter
		// is reported to the caller, the former is a silent no-op.
		if w.sm.Current() == types.StatusStopping || w.sm.Current() == types.StatusStopped {
			return nil, fmt.Errorf("workerside: attach received while %s", w.sm.Current())
		}
	}

	return &v1.AttachResponse{}, nil
}

// ExecutePips implements spec §4.3: admit and dispatch, never blocking on
// the scheduler actually running the steps.
func (w *Worker) ExecutePips(ctx context.Context, req *v1.ExecutePipsRequest) (*v1.ExecutePipsResponse, error) {
	if err := w.validateHeader(req.Header); err != nil {
		return nil, err
	}
	if w.sm.Current() == types.StatusStopping || w.sm.Current() == types.StatusStopped {
		return &v1.ExecutePipsResponse{}, nil
	}
	w.intake.Admit(req.Batch)
	return &v1.ExecutePipsResponse{}, nil
}

// Exit implements the orchestrator-initiated shutdown: drive the lifecycle
// to Stopped, fail every still-pending step, and stop the notification
// sender. This worker keeps no per-event counters: the response always
// carries an empty EventCounts map.
func (w *Worker) Exit(ctx context.Context, req *v1.ExitRequest) (*v1.ExitResponse, error) {
	if err := w.validateHeader(req.Header); err != nil {
		return nil, err
	}

	w.sm.ForceTransition(types.StatusStopping)

	failureMsg := "connection lost / no result received"
	if req.End.Failure != nil {
		failureMsg = *req.End.Failure
	}
	w.intake.FailAllPending(failureMsg)
	w.notify.Stop()

	w.sm.ForceTransition(types.StatusStopped)

	return &v1.ExitResponse{EventCounts: map[uint32]uint64{}}, nil
}

// Heartbeat implements the liveness/load signal RPC. Recorded for
// telemetry only; spec §9 explicitly calls out that no local deadline is
// derived from it.
func (w *Worker) Heartbeat(ctx context.Context, req *v1.HeartbeatRequest) (*v1.HeartbeatResponse, error) {
	if err := w.validateHeader(req.Header); err != nil {
		return nil, err
	}
	w.log.Debug("heartbeat", "cpuPercent", req.Counters.CPUPercent, "activePips", req.Counters.ActivePips)
	return &v1.HeartbeatResponse{}, nil
}

// SayHello drives phase 1 of the handshake for dynamic workers (spec
// §4.2). Returns the outcome the caller uses to decide whether to wait for
// Attach or exit cleanly.
func (w *Worker) SayHello(ctx context.Context, location types.WorkerIdentity, requestedID *types.WorkerID) (types.HelloOutcome, error) {
	ctx, cancel := w.withAttachDeadline(ctx)
	defer cancel()
	return w.client.Hello(ctx, location, requestedID)
}

// CompleteAttach drives phase 3: reports capacities, then races the current
// status to Running (tolerating a concurrent Attach landing first).
func (w *Worker) CompleteAttach(ctx context.Context, capacities types.WorkerCapacities, cacheValidationHash []byte) error {
	if err := w.client.AttachCompleted(ctx, capacities, cacheValidationHash); err != nil {
		return err
	}
	w.sm.ForceTransition(types.StatusRunning)
	w.notify.Start()
	return nil
}

func (w *Worker) withAttachDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.attachTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.attachTimeout)
}

var _ v1.WorkerServiceServer = (*Worker)(nil)
