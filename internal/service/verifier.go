package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/realmforge/token-service/internal/domain/errors"
	"github.com/realmforge/token-service/internal/domain/models"
	"github.com/realmforge/token-service/internal/domain/repository"
	"github.com/realmforge/token-service/internal/infrastructure/security"
)

// TokenVerifier decodes and validates presented tokens and cross-checks
// them against the persisted-token store for token types with persistence
// enabled.
type TokenVerifier struct {
	codec       *TokenCodec
	validator   *ClaimsValidator
	identity    repository.IdentityStore
	tokens      repository.TokenRepository
	blacklist   repository.TokenBlacklist
	persistence map[models.TokenType]bool
	logger      *zap.Logger
	now         func() time.Time
}

// NewTokenVerifier builds a verifier. blacklist may be nil when no access
// token revocation side channel is configured.
func NewTokenVerifier(
	codec *TokenCodec,
	validator *ClaimsValidator,
	identity repository.IdentityStore,
	tokens repository.TokenRepository,
	blacklist repository.TokenBlacklist,
	persistence map[models.TokenType]bool,
	logger *zap.Logger,
) *TokenVerifier {
	return &TokenVerifier{
		codec:       codec,
		validator:   validator,
		identity:    identity,
		tokens:      tokens,
		blacklist:   blacklist,
		persistence: persistence,
		logger:      logger,
		now:         time.Now,
	}
}

// Verify decodes the raw token and runs VerifyDecoded on the result.
func (v *TokenVerifier) Verify(ctx context.Context, raw string, expectedType models.TokenType) (*models.VerifiedToken, error) {
	if raw == "" {
		return nil, domainErrors.SuspiciousToken("empty token")
	}
	decoded, err := v.codec.Decode(raw)
	if err != nil {
		return nil, domainErrors.SuspiciousToken(err.Error())
	}
	return v.VerifyDecoded(ctx, decoded, expectedType)
}

// VerifyDecoded validates an already-decoded token. Preconditions fail fast
// in a fixed order so every rejection carries a distinct reason.
func (v *TokenVerifier) VerifyDecoded(ctx context.Context, decoded *models.DecodedToken, expectedType models.TokenType) (*models.VerifiedToken, error) {
	if decoded.Raw == "" {
		return nil, domainErrors.SuspiciousToken("empty token")
	}
	userID, ok := decoded.Subject()
	if !ok {
		return nil, domainErrors.SuspiciousToken("subject claim is missing or malformed")
	}
	tokenID, ok := decoded.TokenID()
	if !ok {
		return nil, domainErrors.SuspiciousToken("token id claim is missing or malformed")
	}
	tokenType, ok := decoded.TokenType()
	if !ok {
		return nil, domainErrors.SuspiciousToken("token type claim is missing")
	}

	// Roles are resolved fresh so role changes take effect immediately,
	// without waiting for the token to expire.
	roles, err := v.identity.FindRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles for user %s: %w", userID, err)
	}
	if len(roles) == 0 {
		return nil, domainErrors.ErrUserHasNoRoles
	}

	if tokenType != expectedType {
		return nil, domainErrors.SuspiciousToken(
			fmt.Sprintf("token type %q where %q expected", tokenType, expectedType))
	}
	if !v.validator.Validate(decoded, expectedType, nil) {
		return nil, domainErrors.SuspiciousToken("claims validation failed")
	}

	if v.persistence[expectedType] {
		if err := v.checkPersisted(ctx, decoded, tokenID, userID); err != nil {
			return nil, err
		}
	} else if expectedType == models.TokenTypeAccess && v.blacklist != nil {
		blacklisted, err := v.blacklist.Contains(ctx, tokenID.String())
		if err != nil {
			return nil, fmt.Errorf("check token blacklist: %w", err)
		}
		if blacklisted {
			return nil, domainErrors.SuspiciousToken("token has been revoked")
		}
	}

	return &models.VerifiedToken{
		UserID:  userID,
		TokenID: tokenID,
		Type:    tokenType,
		Roles:   roles,
		Claims:  decoded.Claims,
	}, nil
}

// checkPersisted cross-checks a decoded token against its durable record.
// A valid signature is not enough: the record defends against tampered or
// duplicated rows and carries the revocation state.
func (v *TokenVerifier) checkPersisted(ctx context.Context, decoded *models.DecodedToken, tokenID, userID uuid.UUID) error {
	record, err := v.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return domainErrors.SuspiciousToken("token record not found")
		}
		return fmt.Errorf("load token record %s: %w", tokenID, err)
	}
	if record.UserID != userID {
		v.logger.Warn("token subject does not match stored owner",
			zap.String("token_id", tokenID.String()),
			zap.String("claimed_user_id", userID.String()),
			zap.String("stored_user_id", record.UserID.String()),
		)
		return domainErrors.SuspiciousToken("token owner mismatch")
	}
	if record.IsExpired(v.now()) {
		return domainErrors.SuspiciousToken("token record has expired")
	}
	if !security.TokenHashMatches(decoded.Raw, record.TokenHash) {
		return domainErrors.SuspiciousToken("token hash mismatch")
	}
	if record.Revoked {
		return domainErrors.SuspiciousToken("token has been revoked")
	}
	return nil
}
