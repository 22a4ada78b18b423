package v1

// ============================================================================
// WorkerService client/server stubs
// Hand-maintained in the shape protoc-gen-go-grpc would emit: a thin client
// wrapping grpc.ClientConnInterface.Invoke, a server interface plus an
// "Unimplemented" embed for forward compatibility, and a package-level
// grpc.ServiceDesc wiring method names to handlers.
// ============================================================================

import (
	"context"

	"google.golang.org/grpc"
)

const (
	WorkerService_Attach_FullMethodName      = "/distrun.v1.WorkerService/Attach"
	WorkerService_ExecutePips_FullMethodName = "/distrun.v1.WorkerService/ExecutePips"
	WorkerService_Exit_FullMethodName        = "/distrun.v1.WorkerService/Exit"
	WorkerService_Heartbeat_FullMethodName   = "/distrun.v1.WorkerService/Heartbeat"
)

// WorkerServiceClient is the orchestrator's view of a worker.
type WorkerServiceClient interface {
	Attach(ctx context.Context, in *AttachRequest, opts ...grpc.CallOption) (*AttachResponse, error)
	ExecutePips(ctx context.Context, in *ExecutePipsRequest, opts ...grpc.CallOption) (*ExecutePipsResponse, error)
	Exit(ctx context.Context, in *ExitRequest, opts ...grpc.CallOption) (*ExitResponse, error)
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
}

type workerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewWorkerServiceClient(cc grpc.ClientConnInterface) WorkerServiceClient {
	return &workerServiceClient{cc}
}

func (c *workerServiceClient) Attach(ctx context.Context, in *AttachRequest, opts ...grpc.CallOption) (*AttachResponse, error) {
	out := new(AttachResponse)
	if err := c.cc.Invoke(ctx, WorkerService_Attach_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerServiceClient) ExecutePips(ctx context.Context, in *ExecutePipsRequest, opts ...grpc.CallOption) (*ExecutePipsResponse, error) {
	out := new(ExecutePipsResponse)
	if err := c.cc.Invoke(ctx, WorkerService_ExecutePips_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerServiceClient) Exit(ctx context.Context, in *ExitRequest, opts ...grpc.CallOption) (*ExitResponse, error) {
	out := new(ExitResponse)
	if err := c.cc.Invoke(ctx, WorkerService_Exit_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerServiceClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, WorkerService_Heartbeat_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// WorkerServiceServer is the interface the worker process implements.
type WorkerServiceServer interface {
	Attach(context.Context, *AttachRequest) (*AttachResponse, error)
	ExecutePips(context.Context, *ExecutePipsRequest) (*ExecutePipsResponse, error)
	Exit(context.Context, *ExitRequest) (*ExitResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	mustEmbedUnimplementedWorkerServiceServer()
}

// UnimplementedWorkerServiceServer must be embedded by implementations for
// forward compatibility with future methods.
type UnimplementedWorkerServiceServer struct{}

func (UnimplementedWorkerServiceServer) Attach(context.Context, *AttachRequest) (*AttachResponse, error) {
	return nil, errUnimplemented("Attach")
}
func (UnimplementedWorkerServiceServer) ExecutePips(context.Context, *ExecutePipsRequest) (*ExecutePipsResponse, error) {
	return nil, errUnimplemented("ExecutePips")
}
func (UnimplementedWorkerServiceServer) Exit(context.Context, *ExitRequest) (*ExitResponse, error) {
	return nil, errUnimplemented("Exit")
}
func (UnimplementedWorkerServiceServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, errUnimplemented("Heartbeat")
}
func (UnimplementedWorkerServiceServer) mustEmbedUnimplementedWorkerServiceServer() {}

func RegisterWorkerServiceServer(s grpc.ServiceRegistrar, srv WorkerServiceServer) {
	s.RegisterService(&WorkerService_ServiceDesc, srv)
}

func _WorkerService_Attach_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AttachRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServiceServer).Attach(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WorkerService_Attach_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorkerServiceServer).Attach(ctx, req.(*AttachRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _WorkerService_ExecutePips_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExecutePipsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServiceServer).ExecutePips(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WorkerService_ExecutePips_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorkerServiceServer).ExecutePips(ctx, req.(*ExecutePipsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _WorkerService_Exit_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServiceServer).Exit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WorkerService_Exit_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorkerServiceServer).Exit(ctx, req.(*ExitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _WorkerService_Heartbeat_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServiceServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WorkerService_Heartbeat_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorkerServiceServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// WorkerService_ServiceDesc is the grpc.ServiceDesc for WorkerService.
var WorkerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "distrun.v1.WorkerService",
	HandlerType: (*WorkerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Attach", Handler: _WorkerService_Attach_Handler},
		{MethodName: "ExecutePips", Handler: _WorkerService_ExecutePips_Handler},
		{MethodName: "Exit", Handler: _WorkerService_Exit_Handler},
		{MethodName: "Heartbeat", Handler: _WorkerService_Heartbeat_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "distrun.proto",
}
