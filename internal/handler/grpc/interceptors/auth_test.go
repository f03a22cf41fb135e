package interceptors

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	domainErrors "github.com/realmforge/token-service/internal/domain/errors"
	"github.com/realmforge/token-service/internal/domain/models"
)

type stubVerifier struct {
	verified *models.VerifiedToken
	err      error
	gotRaw   string
}

func (s *stubVerifier) VerifyToken(_ context.Context, raw string, _ models.TokenType) (*models.VerifiedToken, error) {
	s.gotRaw = raw
	if s.err != nil {
		return nil, s.err
	}
	return s.verified, nil
}

func invoke(t *testing.T, interceptor grpc.UnaryServerInterceptor, ctx context.Context, method string, handler grpc.UnaryHandler) (interface{}, error) {
	t.Helper()
	return interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
}

func bearerContext(token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestAuthPassesVerifiedTokenToHandler(t *testing.T) {
	verified := &models.VerifiedToken{
		UserID: uuid.New(),
		Roles:  []string{"user"},
	}
	verifier := &stubVerifier{verified: verified}
	interceptor := Auth(verifier, zap.NewNop())

	resp, err := invoke(t, interceptor, bearerContext("raw-token"), "/tokens.v1.TokenService/Verify",
		func(ctx context.Context, _ interface{}) (interface{}, error) {
			fromCtx, ok := VerifiedFromContext(ctx)
			require.True(t, ok)
			assert.Equal(t, verified, fromCtx)
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, "raw-token", verifier.gotRaw)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	interceptor := Auth(&stubVerifier{}, zap.NewNop())

	cases := []context.Context{
		context.Background(),
		metadata.NewIncomingContext(context.Background(), metadata.MD{}),
		metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic dXNlcg==")),
	}
	for _, ctx := range cases {
		_, err := invoke(t, interceptor, ctx, "/tokens.v1.TokenService/Verify",
			func(context.Context, interface{}) (interface{}, error) {
				t.Fatal("handler must not run")
				return nil, nil
			})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	}
}

func TestAuthMapsSecurityErrorsToUnauthenticated(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"suspicious token", domainErrors.SuspiciousToken("token hash mismatch"), codes.Unauthenticated},
		{"replay", domainErrors.NewReplayError(uuid.New(), uuid.New()), codes.Unauthenticated},
		{"no roles", domainErrors.ErrUserHasNoRoles, codes.Unauthenticated},
		{"infrastructure failure", errors.New("connection refused"), codes.Internal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			interceptor := Auth(&stubVerifier{err: tc.err}, zap.NewNop())
			_, err := invoke(t, interceptor, bearerContext("raw-token"), "/tokens.v1.TokenService/Verify",
				func(context.Context, interface{}) (interface{}, error) {
					t.Fatal("handler must not run")
					return nil, nil
				})
			assert.Equal(t, tc.want, status.Code(err))
		})
	}
}

func TestAuthSkipsListedMethods(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("must not be called")}
	interceptor := Auth(verifier, zap.NewNop(), "/grpc.health.v1.Health/Check")

	resp, err := invoke(t, interceptor, context.Background(), "/grpc.health.v1.Health/Check",
		func(context.Context, interface{}) (interface{}, error) {
			return "healthy", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp)
	assert.Empty(t, verifier.gotRaw)
}

func TestBearerTokenIsCaseInsensitive(t *testing.T) {
	verifier := &stubVerifier{verified: &models.VerifiedToken{UserID: uuid.New()}}
	interceptor := Auth(verifier, zap.NewNop())

	md := metadata.Pairs("authorization", "bearer lowercase-token")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	_, err := invoke(t, interceptor, ctx, "/tokens.v1.TokenService/Verify",
		func(context.Context, interface{}) (interface{}, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, "lowercase-token", verifier.gotRaw)
}
