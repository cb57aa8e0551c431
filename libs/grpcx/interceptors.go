package grpcx

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDMetadataKey is lowercase per gRPC metadata conventions.
const RequestIDMetadataKey = "x-request-id"

type ctxKey struct{}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

func requestID(ctx context.Context) (context.Context, string) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, ctxKey{}, id), id
}

// UnaryServerRequestIDInterceptor adopts or mints a request id and echoes it
// in the response header.
func UnaryServerRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, id := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(ctx, req)
	}
}

// UnaryServerLoggingInterceptor logs every unary call. Health probes are
// logged at debug so orchestrator polling does not drown the log.
func UnaryServerLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, logger, info.FullMethod, err, start)
		return resp, err
	}
}

// StreamServerLoggingInterceptor logs a stream once it ends.
func StreamServerLoggingInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), logger, info.FullMethod, err, start)
		return err
	}
}

func logCall(ctx context.Context, logger *slog.Logger, method string, err error, start time.Time) {
	code := status.Code(err)
	level := slog.LevelInfo
	switch {
	case code == codes.Internal || code == codes.Unknown || code == codes.DataLoss:
		level = slog.LevelError
	case strings.HasPrefix(method, "/grpc.health.v1.Health/"):
		level = slog.LevelDebug
	}
	logger.Log(ctx, level, "grpc request",
		"request_id", RequestIDFromContext(ctx),
		"method", method,
		"code", code.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
