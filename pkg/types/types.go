// ============================================================================
// Beaver-Distbuild Core Type Definitions
// ============================================================================
//
// Package: pkg/types
// Purpose: Core domain models shared by the worker and orchestrator binaries
//
// Design Principles:
//   1. Domain-Driven Design - distribution concepts as types, not primitives
//   2. Value semantics for wire payloads, pointer semantics for tracked state
//   3. JSON-friendly field shapes so the same structs can be logged/dumped
//
// Core Types:
//   - PipStepKey: unique key for a unit of distributed work
//   - SinglePipBuildRequest / PipBuildRequest: batched requests sent to a worker
//   - PipCompletionData: the result payload reported back
//   - WorkerStatus: lifecycle state enum with a partial order
//
// Timestamps are monotonic ticks (int64) where the source system would use
// them for duration math, and Unix milliseconds where they cross the wire as
// wall-clock markers — matching the distinction BuildXL's distribution layer
// makes between "ticks" (Stopwatch.ElapsedTicks) and wall time.
//
// ============================================================================

// Package types defines core domain models for the distribution runtime.
package types

import "fmt"

// WorkerID identifies a worker within a build session.
type WorkerID uint32

// PipID identifies a pip (a unit of build work) within a build graph.
type PipID uint32

// PipStep is a stage of processing a pip.
type PipStep int

const (
	StepMaterializeInputs PipStep = iota
	StepCacheLookup
	StepExecuteProcess
	StepExecuteNonProcessPip
	StepPostProcess
	StepMaterializeOutputs
	StepHandleResult
	StepDone
)

func (s PipStep) String() string {
	switch s {
	case StepMaterializeInputs:
		return "MaterializeInputs"
	case StepCacheLookup:
		return "CacheLookup"
	case StepExecuteProcess:
		return "ExecuteProcess"
	case StepExecuteNonProcessPip:
		return "ExecuteNonProcessPip"
	case StepPostProcess:
		return "PostProcess"
	case StepMaterializeOutputs:
		return "MaterializeOutputs"
	case StepHandleResult:
		return "HandleResult"
	case StepDone:
		return "Done"
	default:
		return fmt.Sprintf("PipStep(%d)", int(s))
	}
}

// PipType distinguishes the kind of pip a step belongs to. RequestIntake
// enforces that every step other than MaterializeOutputs is a Process or IPC
// pip (§4.3's hard assertion).
type PipType int

const (
	PipTypeProcess PipType = iota
	PipTypeIPC
	PipTypeOther
)

// PipStepKey uniquely identifies a unit of work in flight on a worker.
type PipStepKey struct {
	PipID PipID
	Step  PipStep
}

func (k PipStepKey) String() string {
	return fmt.Sprintf("pip=%d/%s", k.PipID, k.Step)
}

// WorkerIdentity is assigned by the orchestrator and is immutable after attach.
type WorkerIdentity struct {
	WorkerID WorkerID
	Host     string
	Port     int
}

func (w WorkerIdentity) Address() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// InvocationID identifies the distributed build session. Both peers validate
// equality on every RPC; a mismatch is an UnrecoverableFailure.
type InvocationID struct {
	RelatedActivityID string
	Environment       string
}

func (i InvocationID) Equal(o InvocationID) bool {
	return i.RelatedActivityID == o.RelatedActivityID && i.Environment == o.Environment
}

// AssociatedDirectory describes a dynamic directory a file artifact belongs to.
type AssociatedDirectory struct {
	DirPath         string
	SealID          uint64
	IsSharedOpaque  bool
}

// FileArtifactKeyedHash carries a path either as an intern-table index (when
// both peers share the graph) or as a string (for dynamic outputs not present
// in the shared path table).
type FileArtifactKeyedHash struct {
	PathIntID             int32  // > 0 when interned; 0 means PathString is authoritative.
	PathString            string
	RewriteCount          int32
	Hash                  []byte
	Size                  int64
	AssociatedDirectories []AssociatedDirectory
	IsSourceAffected      bool
	IsAllowedFileRewrite  bool
}

// IsInterned reports whether the path was sent as a shared intern-table index.
func (h FileArtifactKeyedHash) IsInterned() bool {
	return h.PathIntID > 0
}

// SinglePipBuildRequest is one unit of work inside a PipBuildRequest batch.
// SequenceNumber is unique per worker per build and drives at-most-once
// admission.
type SinglePipBuildRequest struct {
	PipID                  PipID
	Step                   PipStep
	PipType                PipType
	Priority               int32
	Fingerprint            []byte
	ExpectedMemoryCounters int64
	ActivityID             string
	SequenceNumber         uint64
}

// PipBuildRequest is one ExecutePips RPC payload: a batch of requests plus
// the deduplicated set of file hashes needed to satisfy them.
type PipBuildRequest struct {
	Pips   []SinglePipBuildRequest
	Hashes []FileArtifactKeyedHash
}

// PipCompletionData is the result payload for one finished pip step.
type PipCompletionData struct {
	PipID            PipID
	Step             PipStep
	ResultBlob       []byte
	ExecuteStepTicks int64
	QueueTicks       int64
	ThreadID         int64
	StartTimeTicks   int64
	BeforeSendTicks  int64
	Failed           bool
	FailureMessage   string
}

// EventMessage is a forwarded diagnostic event.
type EventMessage struct {
	EventID            uint32
	Level              EventLevel
	Text               string
	PipSemiStableHash  uint64 // 0 means "no pip association".
	HasPipSemiStableHash bool
}

// EventLevel mirrors the severities the orchestrator cares about.
type EventLevel int

const (
	EventLevelVerbose EventLevel = iota
	EventLevelInfo
	EventLevelWarning
	EventLevelError
	EventLevelCritical
)

// LogKind distinguishes the two execution-log channels.
type LogKind int

const (
	LogKindGeneral LogKind = iota
	LogKindManifest
)

func (k LogKind) String() string {
	if k == LogKindManifest {
		return "manifest"
	}
	return "general"
}

// ExecutionLogBlob is one flush of a binary execution-log stream. Sequence
// numbers are strictly monotone per (worker, LogKind) channel.
type ExecutionLogBlob struct {
	Data           []byte
	SequenceNumber int64
	Kind           LogKind
}

// WorkerStatus is the lifecycle state of a worker (or, symmetrically, the
// orchestrator's view of a RemoteWorkerDriver). NotStarted < Starting <
// Started < Running; Stopping/Stopped are sinks reachable from any
// non-sink state, and Stopped is terminal.
type WorkerStatus int32

const (
	StatusNotStarted WorkerStatus = iota
	StatusStarting
	StatusStarted
	StatusRunning
	StatusStopping
	StatusStopped
)

func (s WorkerStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "NotStarted"
	case StatusStarting:
		return "Starting"
	case StatusStarted:
		return "Started"
	case StatusRunning:
		return "Running"
	case StatusStopping:
		return "Stopping"
	case StatusStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("WorkerStatus(%d)", int(s))
	}
}

// rank gives the partial order needed to tell "forward" non-sink moves
// (NotStarted < Starting < Started < Running) from sink transitions, which
// are always legal from any non-sink state.
func (s WorkerStatus) rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusStarting:
		return 1
	case StatusStarted:
		return 2
	case StatusRunning:
		return 3
	default:
		return -1 // sink states are not part of the linear order
	}
}

// ConnectionFailureCause enumerates why a connection was classified as lost.
type ConnectionFailureCause int

const (
	CauseCallDeadlineExceeded ConnectionFailureCause = iota
	CauseReconnectionTimeout
	CauseUnrecoverableFailure
	CauseRemotePipTimeout
	CauseHeartbeatFailure
	CauseAttachmentTimeout
	// CauseSerializationMismatch is fatal to the build (spec §7): an
	// execution-log stream observed a sequence gap, meaning a blob was
	// lost or reordered in a way retries can't explain.
	CauseSerializationMismatch
)

func (c ConnectionFailureCause) String() string {
	switch c {
	case CauseCallDeadlineExceeded:
		return "CallDeadlineExceeded"
	case CauseReconnectionTimeout:
		return "ReconnectionTimeout"
	case CauseUnrecoverableFailure:
		return "UnrecoverableFailure"
	case CauseRemotePipTimeout:
		return "RemotePipTimeout"
	case CauseHeartbeatFailure:
		return "HeartbeatFailure"
	case CauseAttachmentTimeout:
		return "AttachmentTimeout"
	case CauseSerializationMismatch:
		return "SerializationMismatch"
	default:
		return fmt.Sprintf("ConnectionFailureCause(%d)", int(c))
	}
}

// RetryReason classifies why a failed remote pip is retryable, and where.
type RetryReason int

const (
	RetryReasonNone RetryReason = iota
	RetryReasonRemoteWorkerFailure // scheduler may try another worker
	RetryReasonDistributionFailure // scheduler retries only on the orchestrator
	RetryReasonNotMaterialized     // MaterializeOutputs-only: pip is not failed, worker will shut down
)

// BuildStartData is the Attach RPC payload (§4.2 phase 2).
type BuildStartData struct {
	SessionID             string
	WorkerID              WorkerID
	GraphDescriptor       []byte
	FingerprintSalt       string
	OrchestratorLocation  WorkerIdentity
	EnvironmentVariables  map[string]string
	PipSpecificProperties map[string]string
}

// WorkerCapacities is the AttachCompleted RPC payload (§4.2 phase 3).
type WorkerCapacities struct {
	WorkerID          WorkerID
	MaxProcesses      int32
	MaxMaterialize    int32
	MaxCacheLookup    int32
	MaxLightProcesses int32
	AvailableRAMMb    int64
	TotalRAMMb        int64
	EngineRAMMb       int64
}

// BuildEndData is the Exit RPC payload.
type BuildEndData struct {
	Failure *string
}

// WorkerExitResponse is the Exit RPC response: per-event-id counters the
// orchestrator reconciles against its own tally (§4.7).
type WorkerExitResponse struct {
	EventCounts map[uint32]uint64
}

// PipResultsInfo is the ReportPipResults RPC payload (§4.4).
type PipResultsInfo struct {
	WorkerID            WorkerID
	CompletedPips       []PipCompletionData
	ForwardedEvents     []EventMessage
	BuildManifestEvents []byte // nil when this cycle carried no manifest flush.
}

// ExecutionLogInfo is the ReportExecutionLog RPC payload (§4.5/§6.2).
type ExecutionLogInfo struct {
	WorkerID WorkerID
	Blob     ExecutionLogBlob
}

// PerfCounters is the Heartbeat RPC payload: a coarse liveness/load signal.
// The design notes (§9) call out that this runtime does not derive a
// worker-side liveness deadline from it; it is recorded for telemetry.
type PerfCounters struct {
	CPUPercent    float64
	AvailableRAMMb int64
	ActivePips    int32
	TimestampMs   int64
}

// HelloOutcome is the Hello RPC response (§4.2 phase 1).
type HelloOutcome int

const (
	HelloOk HelloOutcome = iota
	HelloReleased
	HelloNoSlots
)

func (o HelloOutcome) String() string {
	switch o {
	case HelloOk:
		return "Ok"
	case HelloReleased:
		return "Released"
	case HelloNoSlots:
		return "NoSlots"
	default:
		return fmt.Sprintf("HelloOutcome(%d)", int(o))
	}
}
