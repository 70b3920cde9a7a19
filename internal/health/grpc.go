package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported next to the
// server-wide "" entry.
const ServiceName = "delivery"

// GRPCServer mirrors the monitor status on the standard gRPC health service.
type GRPCServer struct {
	monitor  *Monitor
	health   *grpchealth.Server
	server   *grpc.Server
	addr     string
	interval time.Duration
	log      *slog.Logger
}

// NewGRPCServer creates a gRPC health server listening on port.
func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	s := &GRPCServer{
		monitor:  monitor,
		health:   grpchealth.NewServer(),
		server:   grpc.NewServer(),
		addr:     fmt.Sprintf(":%d", port),
		interval: 10 * time.Second,
		log:      slog.Default().With("component", "grpc-health"),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	return s
}

// Start serves until Stop is called, refreshing the status every interval.
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()

	s.log.Info("gRPC health server listening", "addr", s.addr)
	return s.server.Serve(lis)
}

// Refresh copies the current monitor status into the health service.
func (s *GRPCServer) Refresh(ctx context.Context) {
	report := s.monitor.CheckHealth(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if report.SystemStatus == StatusCritical {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks every service as not serving and stops the server.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
