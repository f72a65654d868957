package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"flowbit.dev/internal/obs"
)

// HealthServer publishes readiness over grpc.health.v1 for both the empty
// service name and serviceName.
type HealthServer struct {
	*health.Server
	readiness Checker
	interval  time.Duration
}

// NewHealthServer creates the gRPC health service. Status starts as
// NOT_SERVING until the first readiness check.
func NewHealthServer(r Checker, interval time.Duration) *HealthServer {
	if r == nil {
		r = ReadyProbe{}
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s := &HealthServer{Server: health.NewServer(), readiness: r, interval: interval}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register attaches the health service to srv.
func (s *HealthServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.Server)
}

// Refresh runs one readiness check and publishes its outcome.
func (s *HealthServer) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	err := s.readiness.Check(ctx)
	obs.SetReady(err == nil)
	if err != nil {
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Run refreshes readiness on an interval until ctx is done, then marks the
// service as shutting down.
func (s *HealthServer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			obs.Logger().Warn().Err(err).Msg("readiness_check_failed")
		}
		select {
		case <-ctx.Done():
			s.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

func (s *HealthServer) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.SetServingStatus("", st)
	s.SetServingStatus(serviceName, st)
}
