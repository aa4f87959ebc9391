package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
)

// New builds a gRPC server with the pipeline, health and reflection services.
func New(svc ReceiptPipelineServer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogging(logger)))
	RegisterReceiptPipelineServer(gs, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(gs)
	return gs, hs
}

// Serve runs gs on lis until ctx is done, then stops gracefully.
func Serve(ctx context.Context, gs *grpc.Server, hs *health.Server, lis net.Listener, logger *slog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("grpc.serving", "addr", lis.Addr().String())
		errc <- gs.Serve(lis)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("grpc.shutdown")
	hs.Shutdown()
	gs.GracefulStop()
	return nil
}

func unaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := incomingRequestID(ctx)
		ctx = common.WithRequestID(ctx, reqID)
		reqLogger := logger.With("method", info.FullMethod, "request_id", common.RequestIDFromContext(ctx))
		resp, err := handler(common.WithLogger(ctx, reqLogger), req)
		if err != nil {
			reqLogger.Warn("grpc.request.failed",
				"code", status.Code(err).String(),
				"elapsed_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			return resp, err
		}
		reqLogger.Info("grpc.request.ok", "elapsed_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}

// incomingRequestID honours a caller-supplied x-request-id.
func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("x-request-id"); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}
