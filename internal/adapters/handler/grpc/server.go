package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/services"
)

const defaultSyncInterval = 15 * time.Second

// Server exposes the standard gRPC health protocol, mirroring HealthService.
type Server struct {
	health *services.HealthService
	hs     *health.Server
	grpc   *grpc.Server

	SyncInterval time.Duration
}

func NewServer(healthSvc *services.HealthService) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return &Server{
		health:       healthSvc,
		hs:           hs,
		grpc:         gs,
		SyncInterval: defaultSyncInterval,
	}
}

// Health returns the health service implementation.
func (s *Server) Health() healthpb.HealthServer {
	return s.hs
}

// Sync runs every probe once and publishes the result. The overall
// service ("") stays SERVING while the report is only degraded.
func (s *Server) Sync(ctx context.Context) {
	report := s.health.CheckHealth(ctx)

	overall := healthpb.HealthCheckResponse_SERVING
	if report.Status == services.HealthStatusUnhealthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.hs.SetServingStatus("", overall)

	for name, c := range report.Components {
		st := healthpb.HealthCheckResponse_SERVING
		if c.Status != services.HealthStatusHealthy {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.hs.SetServingStatus(name, st)
	}
}

// Serve listens on addr and keeps health in sync until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.Sync(ctx)
	go s.syncLoop(ctx)

	go func() {
		<-ctx.Done()
		s.hs.Shutdown()
		s.grpc.GracefulStop()
	}()

	logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

func (s *Server) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}
