// ============================================================================
// Package: internal/remoteworker
// File: server.go
// Function: Orchestrator implements v1.OrchestratorServiceServer (spec
// §4.2's Hello/AttachCompleted, §4.4's ReportPipResults, §4.5's
// ReportExecutionLog), routing each call to the Driver identified by the
// WorkerID carried in its payload. Grounded on the teacher's Controller
// acting as the single coordination point other components are wired
// through.
// ============================================================================

package remoteworker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	v1 "github.com/ChuLiYu/beaver-distbuild/api/proto/v1"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// AttachGate decides the outcome of a dynamic worker's Hello call (spec
// §4.2 phase 1): whether to let it wait for Attach, or send it home.
type AttachGate interface {
	// Admit returns Ok if a slot exists for this worker; Released or
	// NoSlots otherwise.
	Admit(location types.WorkerIdentity, requestedID *types.WorkerID) types.HelloOutcome
}

// Orchestrator hosts OrchestratorService and owns the registry of attached
// workers' Drivers.
type Orchestrator struct {
	v1.UnimplementedOrchestratorServiceServer

	invocation types.InvocationID
	gate       AttachGate
	eventStats map[types.WorkerID]*EventStatsTracker

	mu      sync.RWMutex
	drivers map[types.WorkerID]*Driver
	logSeq  map[types.WorkerID]map[types.LogKind]int64

	log *slog.Logger
}

// NewOrchestrator creates an empty driver registry bound to one build
// invocation.
func NewOrchestrator(invocation types.InvocationID, gate AttachGate, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		invocation: invocation,
		gate:       gate,
		eventStats: make(map[types.WorkerID]*EventStatsTracker),
		drivers:    make(map[types.WorkerID]*Driver),
		logSeq:     make(map[types.WorkerID]map[types.LogKind]int64),
		log:        log,
	}
}

// Register adds a Driver to the registry once the orchestrator learns the
// worker's location and creates a driver for it (spec §4.6: "created when
// the orchestrator learns a worker location").
func (o *Orchestrator) Register(workerID types.WorkerID, d *Driver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drivers[workerID] = d
	o.eventStats[workerID] = NewEventStatsTracker()
}

// Driver looks up a registered driver by id.
func (o *Orchestrator) Driver(workerID types.WorkerID) (*Driver, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, ok := o.drivers[workerID]
	return d, ok
}

// Unregister removes a driver, e.g. after Disconnect completes.
func (o *Orchestrator) Unregister(workerID types.WorkerID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.drivers, workerID)
	delete(o.eventStats, workerID)
}

func (o *Orchestrator) validateHeader(h v1.InvocationHeader) error {
	got := h.ToTypes()
	if !got.Equal(o.invocation) {
		return fmt.Errorf("invocation mismatch: orchestrator bound to %+v, request carried %+v", o.invocation, got)
	}
	return nil
}

// Hello implements spec §4.2 phase 1.
func (o *Orchestrator) Hello(ctx context.Context, req *v1.HelloRequest) (*v1.HelloResponse, error) {
	if err := o.validateHeader(req.Header); err != nil {
		return nil, err
	}
	if o.gate == nil {
		return &v1.HelloResponse{Outcome: types.HelloOk}, nil
	}
	return &v1.HelloResponse{Outcome: o.gate.Admit(req.Location, req.RequestedID)}, nil
}

// AttachCompleted implements spec §4.2 phase 3.
func (o *Orchestrator) AttachCompleted(ctx context.Context, req *v1.AttachCompletedRequest) (*v1.AttachCompletedResponse, error) {
	if err := o.validateHeader(req.Header); err != nil {
		return nil, err
	}
	d, ok := o.Driver(req.Capacities.WorkerID)
	if !ok {
		return nil, fmt.Errorf("remoteworker: attach-completed from unknown worker %d", req.Capacities.WorkerID)
	}
	d.OnAttachCompleted(req.Capacities)
	return &v1.AttachCompletedResponse{}, nil
}

// ReportPipResults implements spec §4.4: resolves each reported pip's
// future and records forwarded events for §4.7's reconciliation.
func (o *Orchestrator) ReportPipResults(ctx context.Context, req *v1.ReportPipResultsRequest) (*v1.ReportPipResultsResponse, error) {
	if err := o.validateHeader(req.Header); err != nil {
		return nil, err
	}
	d, ok := o.Driver(req.Info.WorkerID)
	if !ok {
		return nil, fmt.Errorf("remoteworker: pip results from unknown worker %d", req.Info.WorkerID)
	}
	for _, completion := range req.Info.CompletedPips {
		d.NotifyPipCompletion(completion.PipID, completion)
	}

	o.mu.RLock()
	tracker := o.eventStats[req.Info.WorkerID]
	o.mu.RUnlock()
	if tracker != nil {
		for _, ev := range req.Info.ForwardedEvents {
			tracker.Record(ev.EventID)
		}
	}

	return &v1.ReportPipResultsResponse{}, nil
}

// ReportExecutionLog implements spec §4.5 and §8 invariant 3: per (worker,
// kind) channel, sequence numbers must form a strictly increasing run with
// duplicates (network retries) silently dropped and gaps impossible. The
// manifest/general blob routing to a durable sink beyond that is a
// collaborator out of this component's scope (spec §1).
func (o *Orchestrator) ReportExecutionLog(ctx context.Context, req *v1.ReportExecutionLogRequest) (*v1.ReportExecutionLogResponse, error) {
	if err := o.validateHeader(req.Header); err != nil {
		return nil, err
	}
	if _, ok := o.Driver(req.Info.WorkerID); !ok {
		return nil, fmt.Errorf("remoteworker: execution log from unknown worker %d", req.Info.WorkerID)
	}

	blob := req.Info.Blob
	switch o.admitLogSeq(req.Info.WorkerID, blob.Kind, blob.SequenceNumber) {
	case logSeqDuplicate:
		o.log.Debug("execution log blob dropped as duplicate", "workerId", req.Info.WorkerID, "kind", blob.Kind, "seq", blob.SequenceNumber)
		return &v1.ReportExecutionLogResponse{}, nil
	case logSeqGap:
		o.log.Error("execution log sequence gap", "workerId", req.Info.WorkerID, "kind", blob.Kind, "seq", blob.SequenceNumber)
		return nil, types.NewDistributionError(types.CauseSerializationMismatch,
			"remoteworker: execution log gap for worker %d kind %v at seq %d", req.Info.WorkerID, blob.Kind, blob.SequenceNumber)
	}

	o.log.Debug("execution log blob received", "workerId", req.Info.WorkerID, "kind", blob.Kind, "seq", blob.SequenceNumber, "bytes", len(blob.Data))
	return &v1.ReportExecutionLogResponse{}, nil
}

type logSeqVerdict int

const (
	logSeqAdmitted logSeqVerdict = iota
	logSeqDuplicate
	logSeqGap
)

// admitLogSeq enforces §8 invariant 3 per (workerID, kind) channel: the
// first sequence number observed for a channel establishes the baseline
// (spec §8 scenario 6's literal example itself starts a fresh stream at
// seq=5, not 0 — see DESIGN.md), every admission after that must equal
// last+1 exactly. Any value at or below the last-admitted one is a
// silently dropped duplicate; anything above last+1 (a skipped sequence
// number) is a gap and must be rejected, never recorded as the new high
// water mark.
func (o *Orchestrator) admitLogSeq(workerID types.WorkerID, kind types.LogKind, seq int64) logSeqVerdict {
	o.mu.Lock()
	defer o.mu.Unlock()
	byKind, ok := o.logSeq[workerID]
	if !ok {
		byKind = make(map[types.LogKind]int64)
		o.logSeq[workerID] = byKind
	}
	last, seen := byKind[kind]
	if !seen {
		byKind[kind] = seq
		return logSeqAdmitted
	}
	switch {
	case seq <= last:
		return logSeqDuplicate
	case seq == last+1:
		byKind[kind] = seq
		return logSeqAdmitted
	default:
		return logSeqGap
	}
}

// DisconnectAll disconnects every registered driver; used during graceful
// orchestrator shutdown.
func (o *Orchestrator) DisconnectAll(ctx context.Context) {
	o.mu.RLock()
	drivers := make([]*Driver, 0, len(o.drivers))
	for _, d := range o.drivers {
		drivers = append(drivers, d)
	}
	o.mu.RUnlock()
	for _, d := range drivers {
		d.Disconnect(ctx, nil, true)
	}
}

// ReconcileEventStats implements spec §4.7's reconciliation once a worker's
// Exit response has arrived.
func (o *Orchestrator) ReconcileEventStats(workerID types.WorkerID, reported map[uint32]uint64) []Mismatch {
	o.mu.RLock()
	tracker := o.eventStats[workerID]
	o.mu.RUnlock()
	if tracker == nil {
		return nil
	}
	mismatches := tracker.Reconcile(reported)
	for _, m := range mismatches {
		o.log.Warn("event count mismatch", "workerId", workerID, "eventId", m.EventID, "observed", m.Observed, "reported", m.Reported)
	}
	return mismatches
}

var _ v1.OrchestratorServiceServer = (*Orchestrator)(nil)
