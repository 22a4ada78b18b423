package v1

// ============================================================================
// Wire Messages
// Mirrors api/proto/v1/distrun.proto. See codec.go for why these are plain
// structs rather than protoc-gen-go output.
// ============================================================================

import (
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// InvocationHeader is carried by every RPC (spec §6).
type InvocationHeader struct {
	RelatedActivityID string `json:"related_activity_id"`
	Environment       string `json:"environment"`
}

func (h InvocationHeader) ToTypes() types.InvocationID {
	return types.InvocationID{RelatedActivityID: h.RelatedActivityID, Environment: h.Environment}
}

func FromInvocationID(id types.InvocationID) InvocationHeader {
	return InvocationHeader{RelatedActivityID: id.RelatedActivityID, Environment: id.Environment}
}

// ---- WorkerService ----------------------------------------------------

type AttachRequest struct {
	Header InvocationHeader       `json:"header"`
	Start  types.BuildStartData   `json:"start"`
}

type AttachResponse struct{}

type ExecutePipsRequest struct {
	Header InvocationHeader      `json:"header"`
	Batch  types.PipBuildRequest `json:"batch"`
}

type ExecutePipsResponse struct{}

type ExitRequest struct {
	Header InvocationHeader    `json:"header"`
	End    types.BuildEndData  `json:"end"`
}

type ExitResponse struct {
	EventCounts map[uint32]uint64 `json:"event_counts"`
}

type HeartbeatRequest struct {
	Header   InvocationHeader   `json:"header"`
	Counters types.PerfCounters `json:"counters"`
}

type HeartbeatResponse struct{}

// ---- OrchestratorService -----------------------------------------------

type HelloRequest struct {
	Header      InvocationHeader     `json:"header"`
	Location    types.WorkerIdentity `json:"location"`
	RequestedID *types.WorkerID      `json:"requested_id,omitempty"`
}

type HelloResponse struct {
	Outcome types.HelloOutcome `json:"outcome"`
}

type AttachCompletedRequest struct {
	Header              InvocationHeader        `json:"header"`
	Capacities          types.WorkerCapacities  `json:"capacities"`
	CacheValidationHash []byte                  `json:"cache_validation_hash"`
}

type AttachCompletedResponse struct{}

type ReportPipResultsRequest struct {
	Header InvocationHeader       `json:"header"`
	Info   types.PipResultsInfo   `json:"info"`
}

type ReportPipResultsResponse struct{}

type ReportExecutionLogRequest struct {
	Header InvocationHeader        `json:"header"`
	Info   types.ExecutionLogInfo  `json:"info"`
}

type ReportExecutionLogResponse struct{}
