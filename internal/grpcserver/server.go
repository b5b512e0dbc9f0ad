// Package grpcserver exposes the edit workflow over gRPC next to the standard
// health service. Messages are google.protobuf.Struct values, so no generated
// stubs are needed.
package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
	"pdfedit/internal/service"
)

const ServiceName = "pdfedit.v1.EditService"

type EditService interface {
	Apply(ctx context.Context, req service.ApplyRequest) (*service.ApplyResult, error)
	ListVersions(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error)
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	edits  EditService
	logger *logrus.Logger
}

func New(edits EditService, logger *logrus.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		edits:  edits,
		logger: logger,
	}

	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.grpc.RegisterService(&editServiceDesc, s)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve marks the server healthy and blocks until it stops.
func (s *Server) Serve(lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s.grpc.Serve(lis)
}

// GracefulStop reports NOT_SERVING to health checkers, then drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	entry := s.logger.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"code":     status.Code(err).String(),
		"duration": time.Since(start).String(),
	})
	if err != nil && status.Code(err) == codes.Internal {
		entry.WithError(err).Error("gRPC call failed")
	} else {
		entry.Info("gRPC call")
	}
	return resp, err
}

var codeByType = map[apperr.Type]codes.Code{
	apperr.TypeValidation: codes.InvalidArgument,
	apperr.TypeNotFound:   codes.NotFound,
	apperr.TypeConflict:   codes.Aborted,
	apperr.TypeProcessing: codes.FailedPrecondition,
	apperr.TypeUpstream:   codes.Unavailable,
	apperr.TypeNetwork:    codes.Unavailable,
	apperr.TypeInternal:   codes.Internal,
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	appErr, ok := apperr.As(err)
	if !ok {
		return status.Error(codes.Internal, "internal server error")
	}
	code, ok := codeByType[appErr.Type]
	if !ok || code == codes.Internal {
		return status.Error(codes.Internal, appErr.Message)
	}
	msg := appErr.Message
	if appErr.Details != "" {
		msg += ": " + appErr.Details
	}
	return status.Error(code, msg)
}
