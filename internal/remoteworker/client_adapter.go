// ============================================================================
// Package: internal/remoteworker
// File: client_adapter.go
// Function: adapts the generated WorkerServiceClient onto the narrow
// interface Driver/Batcher depend on, mirroring
// internal/workerside/client_adapter.go's symmetric role on the other side
// of the wire.
// ============================================================================

package remoteworker

import (
	"context"

	v1 "github.com/ChuLiYu/beaver-distbuild/api/proto/v1"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// WorkerClient is the subset of the generated client a RemoteWorkerDriver
// drives against one attached worker.
type WorkerClient struct {
	cc     v1.WorkerServiceClient
	header v1.InvocationHeader
}

// NewWorkerClient wraps a generated client with the invocation header every
// RPC for this build session must carry.
func NewWorkerClient(cc v1.WorkerServiceClient, invocation types.InvocationID) *WorkerClient {
	return &WorkerClient{cc: cc, header: v1.FromInvocationID(invocation)}
}

func (c *WorkerClient) Attach(ctx context.Context, start types.BuildStartData) error {
	_, err := c.cc.Attach(ctx, &v1.AttachRequest{Header: c.header, Start: start})
	return err
}

func (c *WorkerClient) ExecutePips(ctx context.Context, batch types.PipBuildRequest) error {
	_, err := c.cc.ExecutePips(ctx, &v1.ExecutePipsRequest{Header: c.header, Batch: batch})
	return err
}

func (c *WorkerClient) Exit(ctx context.Context, end types.BuildEndData) (map[uint32]uint64, error) {
	resp, err := c.cc.Exit(ctx, &v1.ExitRequest{Header: c.header, End: end})
	if err != nil {
		return nil, err
	}
	return resp.EventCounts, nil
}

func (c *WorkerClient) Heartbeat(ctx context.Context, counters types.PerfCounters) error {
	_, err := c.cc.Heartbeat(ctx, &v1.HeartbeatRequest{Header: c.header, Counters: counters})
	return err
}
