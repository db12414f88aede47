package pings

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/pingbot/internal/logger"
)

// Metadata keys read by the interceptor.
const (
	AuthorizationKey = "authorization"
	ActorKey         = "x-pingbot-actor"
)

// UnaryAuthInterceptor requires "authorization: Bearer <token>" on every call
// when token is set, and tags the call logger with the caller's actor.
func UnaryAuthInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)

		ctx = logger.WithKV(ctx, "method", info.FullMethod)
		if actors := md.Get(ActorKey); len(actors) > 0 {
			ctx = logger.WithKV(ctx, "actor", actors[0])
		}

		if token != "" && !authorized(md.Get(AuthorizationKey), token) {
			logger.Warn(ctx, "Rejected unauthenticated query")

			return nil, status.Error(codes.Unauthenticated, "valid bearer token is required")
		}

		logger.Debug(ctx, "Query accepted")

		return handler(ctx, req)
	}
}

// authorized reports whether any header value carries the expected bearer token.
func authorized(values []string, token string) bool {
	for _, v := range values {
		scheme, presented, ok := strings.Cut(v, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			continue
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
			return true
		}
	}

	return false
}
