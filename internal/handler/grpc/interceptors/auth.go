package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	domainErrors "github.com/realmforge/token-service/internal/domain/errors"
	"github.com/realmforge/token-service/internal/domain/models"
)

const (
	authorizationHeader = "authorization"
	bearerPrefix        = "bearer "
)

type ctxKey string

const verifiedTokenKey ctxKey = "verified_token"

// TokenVerifier is the slice of the token manager the interceptor needs.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string, expectedType models.TokenType) (*models.VerifiedToken, error)
}

// Auth returns a unary interceptor that requires a valid bearer access
// token on every method except the listed ones. The verified token is
// injected into the handler context.
func Auth(verifier TokenVerifier, logger *zap.Logger, skipMethods ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]struct{}, len(skipMethods))
	for _, m := range skipMethods {
		skip[m] = struct{}{}
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := skip[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		raw := bearerTokenFromContext(ctx)
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}

		verified, err := verifier.VerifyToken(ctx, raw, models.TokenTypeAccess)
		if err != nil {
			if domainErrors.IsSecurity(err) || errors.Is(err, domainErrors.ErrUserHasNoRoles) {
				logger.Warn("rejected bearer token",
					zap.String("method", info.FullMethod), zap.Error(err))
				return nil, status.Error(codes.Unauthenticated, "invalid token")
			}
			logger.Error("token verification failed",
				zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Internal, "token verification failed")
		}

		return handler(context.WithValue(ctx, verifiedTokenKey, verified), req)
	}
}

// VerifiedFromContext returns the token the Auth interceptor validated.
func VerifiedFromContext(ctx context.Context) (*models.VerifiedToken, bool) {
	verified, ok := ctx.Value(verifiedTokenKey).(*models.VerifiedToken)
	return verified, ok
}

func bearerTokenFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return ""
	}
	value := values[0]
	if !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(value[len(bearerPrefix):])
}
