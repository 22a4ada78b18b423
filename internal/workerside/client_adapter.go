// ============================================================================
// Package: internal/workerside
// File: client_adapter.go
// Function: adapts the generated OrchestratorServiceClient onto the narrow
// ReportSender/ExitRequester/hello-and-attach-completed interfaces the rest
// of this package depends on, so NotificationManager and the attach
// handshake never import api/proto/v1 directly.
// ============================================================================

package workerside

import (
	"context"

	v1 "github.com/ChuLiYu/beaver-distbuild/api/proto/v1"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// OrchestratorClient is the subset of the generated client this package
// drives: the three outbound RPCs a worker issues after it is attached, plus
// the pre-attach Hello call.
type OrchestratorClient struct {
	cc     v1.OrchestratorServiceClient
	header v1.InvocationHeader
}

// NewOrchestratorClient wraps a generated client with the invocation header
// every RPC on this session must carry.
func NewOrchestratorClient(cc v1.OrchestratorServiceClient, invocation types.InvocationID) *OrchestratorClient {
	return &OrchestratorClient{cc: cc, header: v1.FromInvocationID(invocation)}
}

func (c *OrchestratorClient) Hello(ctx context.Context, location types.WorkerIdentity, requestedID *types.WorkerID) (types.HelloOutcome, error) {
	resp, err := c.cc.Hello(ctx, &v1.HelloRequest{Header: c.header, Location: location, RequestedID: requestedID})
	if err != nil {
		return types.HelloNoSlots, err
	}
	return resp.Outcome, nil
}

func (c *OrchestratorClient) AttachCompleted(ctx context.Context, capacities types.WorkerCapacities, cacheValidationHash []byte) error {
	_, err := c.cc.AttachCompleted(ctx, &v1.AttachCompletedRequest{Header: c.header, Capacities: capacities, CacheValidationHash: cacheValidationHash})
	return err
}

// SendPipResults implements ReportSender.
func (c *OrchestratorClient) SendPipResults(ctx context.Context, info types.PipResultsInfo) error {
	_, err := c.cc.ReportPipResults(ctx, &v1.ReportPipResultsRequest{Header: c.header, Info: info})
	return err
}

// SendExecutionLog implements ReportSender.
func (c *OrchestratorClient) SendExecutionLog(ctx context.Context, info types.ExecutionLogInfo) error {
	_, err := c.cc.ReportExecutionLog(ctx, &v1.ReportExecutionLogRequest{Header: c.header, Info: info})
	return err
}
