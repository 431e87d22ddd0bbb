package telemetry

import (
	"context"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
)

// GRPCServerInterceptor logs the end of every unary and streaming call.
func GRPCServerInterceptor() grpc.ServerOption {
	l := grpcServerLogger(slog.Default())
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}

	return grpc.ChainUnaryInterceptor(
		logging.UnaryServerInterceptor(l, opts...),
	)
}

// GRPCStreamInterceptor is the streaming counterpart of GRPCServerInterceptor.
func GRPCStreamInterceptor() grpc.ServerOption {
	return grpc.ChainStreamInterceptor(
		logging.StreamServerInterceptor(grpcServerLogger(slog.Default()),
			logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
		),
	)
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), "grpc: "+msg, fields...)
	})
}
