package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "resumeai.v1.ResumeAI"

// Full method names.
const (
	MethodGenerate            = "/" + ServiceName + "/Generate"
	MethodScore               = "/" + ServiceName + "/Score"
	MethodOptimize            = "/" + ServiceName + "/Optimize"
	MethodParseJobDescription = "/" + ServiceName + "/ParseJobDescription"
	MethodParseResume         = "/" + ServiceName + "/ParseResume"
)

// ResumeAIServer is the server API for the ResumeAI service. Requests and
// responses are google.protobuf.Struct messages.
type ResumeAIServer interface {
	Generate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Score(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Optimize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ParseJobDescription(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ParseResume(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ResumeAIServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ResumeAIServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ResumeAIServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the ResumeAI service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResumeAIServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: unaryHandler(MethodGenerate, ResumeAIServer.Generate)},
		{MethodName: "Score", Handler: unaryHandler(MethodScore, ResumeAIServer.Score)},
		{MethodName: "Optimize", Handler: unaryHandler(MethodOptimize, ResumeAIServer.Optimize)},
		{MethodName: "ParseJobDescription", Handler: unaryHandler(MethodParseJobDescription, ResumeAIServer.ParseJobDescription)},
		{MethodName: "ParseResume", Handler: unaryHandler(MethodParseResume, ResumeAIServer.ParseResume)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "resumeai/v1/resumeai.proto",
}

// RegisterResumeAIServer registers srv with s.
func RegisterResumeAIServer(s grpc.ServiceRegistrar, srv ResumeAIServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ResumeAIClient is a thin client for the ResumeAI service.
type ResumeAIClient struct {
	cc grpc.ClientConnInterface
}

// NewResumeAIClient creates a client over cc.
func NewResumeAIClient(cc grpc.ClientConnInterface) *ResumeAIClient {
	return &ResumeAIClient{cc: cc}
}

func (c *ResumeAIClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ResumeAIClient) Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodGenerate, in, opts...)
}

func (c *ResumeAIClient) Score(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodScore, in, opts...)
}

func (c *ResumeAIClient) Optimize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodOptimize, in, opts...)
}

func (c *ResumeAIClient) ParseJobDescription(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodParseJobDescription, in, opts...)
}

func (c *ResumeAIClient) ParseResume(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodParseResume, in, opts...)
}
