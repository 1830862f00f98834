package grpchealth

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"crew-tracker/internal/tracker"
)

const Service = "crew-tracker"

// Server exposes grpc.health.v1 for the tracker.
type Server struct {
	hs     *health.Server
	grpc   *grpc.Server
	logger *slog.Logger
}

func New(lg *slog.Logger) *Server {
	hs := health.NewServer()
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &Server{hs: hs, grpc: gs, logger: lg.With("component", "grpchealth")}
}

// Update is registered with tracker.OnState.
func (s *Server) Update(st tracker.State) {
	s.hs.SetServingStatus(Service, StatusFor(st))
}

// StatusFor is SERVING only while connected with no outstanding error.
func StatusFor(st tracker.State) healthpb.HealthCheckResponse_ServingStatus {
	if st.Connected && !st.IsError {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

func (s *Server) Health() healthpb.HealthServer { return s.hs }

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("grpchealth: listen :%s: %w", port, err)
	}
	s.logger.Info("gRPC health listening", "port", port)
	return s.grpc.Serve(lis)
}

func (s *Server) Stop() {
	s.hs.Shutdown()
	s.grpc.GracefulStop()
}
