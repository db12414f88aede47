package pings

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/oshokin/pingbot/internal/domain/alarm"
	"github.com/oshokin/pingbot/internal/domain/ping"
	"github.com/oshokin/pingbot/internal/logger"
	pb "github.com/oshokin/pingbot/internal/pb/v1"
)

// Service abstracts the State Actor operations the transport layer depends on.
type Service interface {
	GetPostbackData(ctx context.Context) []ping.Event
	AlarmState() alarm.State
	RemoveAllUsers(ctx context.Context) error
}

// Server implements the PingService gRPC API.
type Server struct {
	pb.UnimplementedPingServiceServer

	// service provides the State Actor operations.
	service Service
	// demoActive gates ListPings; with the demo off no pings are exposed.
	demoActive bool
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service, demoActive bool) *Server {
	return &Server{
		service:    service,
		demoActive: demoActive,
	}
}

// ListPings returns the active pings, compacting the store as a side effect.
func (s *Server) ListPings(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if !s.demoActive {
		return EncodeRecords(nil)
	}

	events := s.service.GetPostbackData(ctx)

	result, err := EncodeRecords(ToRecords(events))
	if err != nil {
		logger.ErrorKV(ctx, "Cannot encode pings", "error", err)

		return nil, status.Error(codes.Internal, "unable to encode pings")
	}

	return result, nil
}

// GetAlarm returns when the summary alarm fires next, the zero timestamp when disarmed.
func (s *Server) GetAlarm(_ context.Context, _ *emptypb.Empty) (*timestamppb.Timestamp, error) {
	state := s.service.AlarmState()
	if !state.IsEnabled || state.Next.IsZero() {
		return new(timestamppb.Timestamp), nil
	}

	return timestamppb.New(state.Next), nil
}

// ResetSubscribers removes every subscriber.
func (s *Server) ResetSubscribers(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.service.RemoveAllUsers(ctx); err != nil {
		logger.ErrorKV(ctx, "Cannot reset subscribers", "error", err)

		return nil, status.Error(codes.Internal, "unable to reset subscribers")
	}

	return new(emptypb.Empty), nil
}
