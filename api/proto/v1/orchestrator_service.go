package v1

// ============================================================================
// OrchestratorService client/server stubs — see worker_service.go for the
// conventions these follow.
// ============================================================================

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const (
	OrchestratorService_Hello_FullMethodName              = "/distrun.v1.OrchestratorService/Hello"
	OrchestratorService_AttachCompleted_FullMethodName    = "/distrun.v1.OrchestratorService/AttachCompleted"
	OrchestratorService_ReportPipResults_FullMethodName   = "/distrun.v1.OrchestratorService/ReportPipResults"
	OrchestratorService_ReportExecutionLog_FullMethodName = "/distrun.v1.OrchestratorService/ReportExecutionLog"
)

// OrchestratorServiceClient is the worker's view of the orchestrator.
type OrchestratorServiceClient interface {
	Hello(ctx context.Context, in *HelloRequest, opts ...grpc.CallOption) (*HelloResponse, error)
	AttachCompleted(ctx context.Context, in *AttachCompletedRequest, opts ...grpc.CallOption) (*AttachCompletedResponse, error)
	ReportPipResults(ctx context.Context, in *ReportPipResultsRequest, opts ...grpc.CallOption) (*ReportPipResultsResponse, error)
	ReportExecutionLog(ctx context.Context, in *ReportExecutionLogRequest, opts ...grpc.CallOption) (*ReportExecutionLogResponse, error)
}

type orchestratorServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrchestratorServiceClient(cc grpc.ClientConnInterface) OrchestratorServiceClient {
	return &orchestratorServiceClient{cc}
}

func (c *orchestratorServiceClient) Hello(ctx context.Context, in *HelloRequest, opts ...grpc.CallOption) (*HelloResponse, error) {
	out := new(HelloResponse)
	if err := c.cc.Invoke(ctx, OrchestratorService_Hello_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orchestratorServiceClient) AttachCompleted(ctx context.Context, in *AttachCompletedRequest, opts ...grpc.CallOption) (*AttachCompletedResponse, error) {
	out := new(AttachCompletedResponse)
	if err := c.cc.Invoke(ctx, OrchestratorService_AttachCompleted_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orchestratorServiceClient) ReportPipResults(ctx context.Context, in *ReportPipResultsRequest, opts ...grpc.CallOption) (*ReportPipResultsResponse, error) {
	out := new(ReportPipResultsResponse)
	if err := c.cc.Invoke(ctx, OrchestratorService_ReportPipResults_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orchestratorServiceClient) ReportExecutionLog(ctx context.Context, in *ReportExecutionLogRequest, opts ...grpc.CallOption) (*ReportExecutionLogResponse, error) {
	out := new(ReportExecutionLogResponse)
	if err := c.cc.Invoke(ctx, OrchestratorService_ReportExecutionLog_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// OrchestratorServiceServer is the interface the orchestrator process implements.
type OrchestratorServiceServer interface {
	Hello(context.Context, *HelloRequest) (*HelloResponse, error)
	AttachCompleted(context.Context, *AttachCompletedRequest) (*AttachCompletedResponse, error)
	ReportPipResults(context.Context, *ReportPipResultsRequest) (*ReportPipResultsResponse, error)
	ReportExecutionLog(context.Context, *ReportExecutionLogRequest) (*ReportExecutionLogResponse, error)
	mustEmbedUnimplementedOrchestratorServiceServer()
}

type UnimplementedOrchestratorServiceServer struct{}

func (UnimplementedOrchestratorServiceServer) Hello(context.Context, *HelloRequest) (*HelloResponse, error) {
	return nil, errUnimplemented("Hello")
}
func (UnimplementedOrchestratorServiceServer) AttachCompleted(context.Context, *AttachCompletedRequest) (*AttachCompletedResponse, error) {
	return nil, errUnimplemented("AttachCompleted")
}
func (UnimplementedOrchestratorServiceServer) ReportPipResults(context.Context, *ReportPipResultsRequest) (*ReportPipResultsResponse, error) {
	return nil, errUnimplemented("ReportPipResults")
}
func (UnimplementedOrchestratorServiceServer) ReportExecutionLog(context.Context, *ReportExecutionLogRequest) (*ReportExecutionLogResponse, error) {
	return nil, errUnimplemented("ReportExecutionLog")
}
func (UnimplementedOrchestratorServiceServer) mustEmbedUnimplementedOrchestratorServiceServer() {}

func RegisterOrchestratorServiceServer(s grpc.ServiceRegistrar, srv OrchestratorServiceServer) {
	s.RegisterService(&OrchestratorService_ServiceDesc, srv)
}

func _OrchestratorService_Hello_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HelloRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServiceServer).Hello(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OrchestratorService_Hello_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorServiceServer).Hello(ctx, req.(*HelloRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrchestratorService_AttachCompleted_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AttachCompletedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServiceServer).AttachCompleted(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OrchestratorService_AttachCompleted_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorServiceServer).AttachCompleted(ctx, req.(*AttachCompletedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrchestratorService_ReportPipResults_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReportPipResultsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServiceServer).ReportPipResults(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OrchestratorService_ReportPipResults_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorServiceServer).ReportPipResults(ctx, req.(*ReportPipResultsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrchestratorService_ReportExecutionLog_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReportExecutionLogRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServiceServer).ReportExecutionLog(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OrchestratorService_ReportExecutionLog_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorServiceServer).ReportExecutionLog(ctx, req.(*ReportExecutionLogRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// OrchestratorService_ServiceDesc is the grpc.ServiceDesc for OrchestratorService.
var OrchestratorService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "distrun.v1.OrchestratorService",
	HandlerType: (*OrchestratorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Hello", Handler: _OrchestratorService_Hello_Handler},
		{MethodName: "AttachCompleted", Handler: _OrchestratorService_AttachCompleted_Handler},
		{MethodName: "ReportPipResults", Handler: _OrchestratorService_ReportPipResults_Handler},
		{MethodName: "ReportExecutionLog", Handler: _OrchestratorService_ReportExecutionLog_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "distrun.proto",
}

func errUnimplemented(method string) error {
	return fmt.Errorf("method %s not implemented", method)
}
