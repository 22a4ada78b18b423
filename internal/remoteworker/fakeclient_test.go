package remoteworker

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/grpc"

	v1 "github.com/ChuLiYu/beaver-distbuild/api/proto/v1"
	"github.com/ChuLiYu/beaver-distbuild/pkg/types"
)

// fakeWorkerServiceClient is a deterministic in-process test double for
// v1.WorkerServiceClient, grounded in the teacher's own hand-rolled RPC
// fakes used across worker_test.go/controller_test.go.
type fakeWorkerServiceClient struct {
	mu            sync.Mutex
	attachCalls   int
	attachErr     error
	executeCalls  []*v1.ExecutePipsRequest
	executeErr    error
	exitCalls     []*v1.ExitRequest
	exitEventCounts map[uint32]uint64
}

func newFakeWorkerServiceClient() *fakeWorkerServiceClient {
	return &fakeWorkerServiceClient{exitEventCounts: map[uint32]uint64{}}
}

func (c *fakeWorkerServiceClient) Attach(ctx context.Context, in *v1.AttachRequest, opts ...grpc.CallOption) (*v1.AttachResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachCalls++
	if c.attachErr != nil {
		return nil, c.attachErr
	}
	return &v1.AttachResponse{}, nil
}

func (c *fakeWorkerServiceClient) ExecutePips(ctx context.Context, in *v1.ExecutePipsRequest, opts ...grpc.CallOption) (*v1.ExecutePipsResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executeCalls = append(c.executeCalls, in)
	if c.executeErr != nil {
		return nil, c.executeErr
	}
	return &v1.ExecutePipsResponse{}, nil
}

func (c *fakeWorkerServiceClient) Exit(ctx context.Context, in *v1.ExitRequest, opts ...grpc.CallOption) (*v1.ExitResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exitCalls = append(c.exitCalls, in)
	return &v1.ExitResponse{EventCounts: c.exitEventCounts}, nil
}

func (c *fakeWorkerServiceClient) Heartbeat(ctx context.Context, in *v1.HeartbeatRequest, opts ...grpc.CallOption) (*v1.HeartbeatResponse, error) {
	return &v1.HeartbeatResponse{}, nil
}

func (c *fakeWorkerServiceClient) executePipsCalls() []*v1.ExecutePipsRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*v1.ExecutePipsRequest, len(c.executeCalls))
	copy(out, c.executeCalls)
	return out
}

var errFakeExecuteFailed = errors.New("fake execute pips failure")

var _ v1.WorkerServiceClient = (*fakeWorkerServiceClient)(nil)
