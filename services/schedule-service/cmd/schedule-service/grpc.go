package main

import (
	"context"
	"log/slog"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/md-rashed-zaman/artistcal/libs/config"
	"github.com/md-rashed-zaman/artistcal/libs/grpcx"
	"github.com/md-rashed-zaman/artistcal/libs/runtime"
)

// startGRPC serves grpc.health.v1 on GRPC_PORT and, when IDENTITY_GRPC_ADDR is set, returns a
// readiness check against the identity service's health endpoint.
func startGRPC(ctx context.Context, logger *slog.Logger) ([]runtime.ReadyCheck, error) {
	port, err := config.Port("GRPC_PORT", "9095")
	if err != nil {
		return nil, err
	}
	srv, hs := grpcx.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() {
		if err := grpcx.Serve(ctx, srv, ":"+port, logger); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	addr := config.String("IDENTITY_GRPC_ADDR", "")
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return []runtime.ReadyCheck{{Name: "identity", Check: grpcx.HealthReadyCheck(conn, "")}}, nil
}
