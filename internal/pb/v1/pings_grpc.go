package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// PingService method names.
//
//nolint:revive,stylecheck // Mirrors protoc naming.
const (
	PingServiceName                             = "pingbot.v1.PingService"
	PingService_ListPings_FullMethodName        = "/pingbot.v1.PingService/ListPings"
	PingService_GetAlarm_FullMethodName         = "/pingbot.v1.PingService/GetAlarm"
	PingService_ResetSubscribers_FullMethodName = "/pingbot.v1.PingService/ResetSubscribers"
)

// PingServiceClient is the client API for PingService.
type PingServiceClient interface {
	// ListPings returns the active pings as {"pings": [...]}.
	ListPings(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// GetAlarm returns when the summary alarm fires next.
	GetAlarm(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*timestamppb.Timestamp, error)
	// ResetSubscribers removes every subscriber.
	ResetSubscribers(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type pingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPingServiceClient creates a client on top of cc.
//
//nolint:ireturn // Mirrors protoc output.
func NewPingServiceClient(cc grpc.ClientConnInterface) PingServiceClient {
	return &pingServiceClient{cc: cc}
}

func (c *pingServiceClient) ListPings(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PingService_ListPings_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *pingServiceClient) GetAlarm(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*timestamppb.Timestamp, error) {
	out := new(timestamppb.Timestamp)
	if err := c.cc.Invoke(ctx, PingService_GetAlarm_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *pingServiceClient) ResetSubscribers(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, PingService_ResetSubscribers_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// PingServiceServer is the server API for PingService.
type PingServiceServer interface {
	ListPings(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	GetAlarm(ctx context.Context, in *emptypb.Empty) (*timestamppb.Timestamp, error)
	ResetSubscribers(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error)
}

// UnimplementedPingServiceServer answers Unimplemented for every method.
// Embed it by value for forward compatibility.
type UnimplementedPingServiceServer struct{}

func (UnimplementedPingServiceServer) ListPings(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPings not implemented")
}

func (UnimplementedPingServiceServer) GetAlarm(context.Context, *emptypb.Empty) (*timestamppb.Timestamp, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAlarm not implemented")
}

func (UnimplementedPingServiceServer) ResetSubscribers(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method ResetSubscribers not implemented")
}

// RegisterPingServiceServer registers srv on s.
func RegisterPingServiceServer(s grpc.ServiceRegistrar, srv PingServiceServer) {
	s.RegisterService(&PingService_ServiceDesc, srv)
}

// unaryHandler builds a grpc.MethodDesc handler for a method taking Empty.
func unaryHandler(
	fullMethod string,
	call func(srv PingServiceServer, ctx context.Context, in *emptypb.Empty) (any, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, ok := srv.(PingServiceServer)
		if !ok {
			return nil, status.Error(codes.Internal, "server does not implement PingService")
		}

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "unexpected request type")
			}

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// PingService_ServiceDesc is the grpc.ServiceDesc for PingService.
//
//nolint:gochecknoglobals,revive,stylecheck // Mirrors protoc output.
var PingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: PingServiceName,
	HandlerType: (*PingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListPings",
			Handler: unaryHandler(PingService_ListPings_FullMethodName,
				func(srv PingServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return srv.ListPings(ctx, in)
				}),
		},
		{
			MethodName: "GetAlarm",
			Handler: unaryHandler(PingService_GetAlarm_FullMethodName,
				func(srv PingServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return srv.GetAlarm(ctx, in)
				}),
		},
		{
			MethodName: "ResetSubscribers",
			Handler: unaryHandler(PingService_ResetSubscribers_FullMethodName,
				func(srv PingServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return srv.ResetSubscribers(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pingbot/v1/pings.proto",
}
