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
	"github.com/realmforge/token-service/internal/events"
	"github.com/realmforge/token-service/internal/infrastructure/security"
	"github.com/realmforge/token-service/internal/utils/metrics"
)

// TokenServiceConfig carries the validity windows and persistence flags for
// one realm's token manager.
type TokenServiceConfig struct {
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	PersistAccessTokens bool
	// Refresh tokens are always persisted; rotation state lives in the
	// persisted record.
}

const bearerTokenType = "Bearer"

// TokenService orchestrates the token lifecycle: it mints pairs through the
// issuer, checks incoming tokens through the verifier, and drives the
// rotation/replay state machine against the persisted-token store.
//
// A refresh token's state is derived from its record: Active
// (first_used_at null, not revoked), Used (first_used_at set), Revoked
// (terminal). MarkUsedIfUnused is the only Active->Used transition and is
// atomic in the store, so concurrent redemptions of the same token resolve
// to exactly one winner; the rest land in the grace-period/replay branch.
type TokenService struct {
	issuer    *TokenIssuer
	verifier  *TokenVerifier
	codec     *TokenCodec
	tokens    repository.TokenRepository
	blacklist repository.TokenBlacklist
	publisher events.Publisher
	policy    models.RotationPolicy
	cfg       TokenServiceConfig

	persistence map[models.TokenType]bool
	logger      *zap.Logger
	now         func() time.Time
}

// NewTokenService wires the manager. publisher may be nil; events are then
// dropped. blacklist may be nil when access token revocation is not needed.
func NewTokenService(
	issuer *TokenIssuer,
	verifier *TokenVerifier,
	codec *TokenCodec,
	tokens repository.TokenRepository,
	blacklist repository.TokenBlacklist,
	publisher events.Publisher,
	policy models.RotationPolicy,
	cfg TokenServiceConfig,
	logger *zap.Logger,
) *TokenService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TokenService{
		issuer:    issuer,
		verifier:  verifier,
		codec:     codec,
		tokens:    tokens,
		blacklist: blacklist,
		publisher: publisher,
		policy:    policy,
		cfg:       cfg,
		persistence: map[models.TokenType]bool{
			models.TokenTypeAccess:  cfg.PersistAccessTokens,
			models.TokenTypeRefresh: true,
		},
		logger: logger,
		now:    time.Now,
	}
}

// IssueNewTokens mints a fresh access/refresh pair for a new login session.
// The refresh token becomes the root of a new rotation family: its record
// carries no family column and defines the family by its own ID.
func (s *TokenService) IssueNewTokens(ctx context.Context, userID uuid.UUID) (models.TokenPair, error) {
	pair, refreshID, err := s.mintPair(ctx, userID, nil, nil)
	if err != nil {
		return models.TokenPair{}, err
	}

	s.publish(ctx, events.Event{
		Type:    events.TypeTokenPairIssued,
		Subject: userID.String(),
		Data:    events.TokenPairIssuedPayload{UserID: userID, RefreshTokenID: refreshID},
	})
	s.logger.Info("issued new token pair",
		zap.String("user_id", userID.String()),
		zap.String("refresh_token_id", refreshID.String()),
	)
	return pair, nil
}

// RefreshTokens redeems a refresh token for a new pair. With rotation
// enabled the presented token transitions Active->Used exactly once; late
// re-redemptions are tolerated inside the grace window and treated as
// replays beyond it. With rotation disabled the legacy single-use flow
// applies: the record is deleted and a fresh family is started.
func (s *TokenService) RefreshTokens(ctx context.Context, userID uuid.UUID, refreshToken string) (models.TokenPair, error) {
	verified, err := s.verifier.Verify(ctx, refreshToken, models.TokenTypeRefresh)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		return models.TokenPair{}, err
	}

	record, err := s.tokens.FindByID(ctx, verified.TokenID)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		if domainErrors.IsNotFound(err) {
			return models.TokenPair{}, domainErrors.ErrTokenNotFound
		}
		return models.TokenPair{}, fmt.Errorf("load refresh token record: %w", err)
	}
	if record.UserID != userID {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		return models.TokenPair{}, domainErrors.SuspiciousToken("refresh token owner mismatch")
	}

	if !s.policy.Enabled {
		return s.refreshLegacy(ctx, userID, record)
	}
	return s.refreshWithRotation(ctx, userID, record)
}

// refreshLegacy is the rotation-disabled flow: single use by deletion. A
// replayed legacy token fails verification with "record not found" rather
// than a replay signal; that distinction is deliberate.
func (s *TokenService) refreshLegacy(ctx context.Context, userID uuid.UUID, record *models.PersistedToken) (models.TokenPair, error) {
	if err := s.tokens.Delete(ctx, record.ID); err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return models.TokenPair{}, fmt.Errorf("delete redeemed refresh token: %w", err)
	}

	pair, refreshID, err := s.mintPair(ctx, userID, nil, nil)
	if err != nil {
		return models.TokenPair{}, err
	}
	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	s.publish(ctx, events.Event{
		Type:    events.TypeTokenRefreshed,
		Subject: userID.String(),
		Data:    events.TokenPairIssuedPayload{UserID: userID, RefreshTokenID: refreshID},
	})
	return pair, nil
}

func (s *TokenService) refreshWithRotation(ctx context.Context, userID uuid.UUID, record *models.PersistedToken) (models.TokenPair, error) {
	now := s.now()
	won, err := s.tokens.MarkUsedIfUnused(ctx, record.ID, now)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return models.TokenPair{}, fmt.Errorf("mark refresh token used: %w", err)
	}
	if won {
		return s.rotate(ctx, userID, record)
	}

	// Lost the race: someone redeemed this token before us. Re-read the
	// record for the authoritative first-use timestamp; the grace window
	// is measured from first use, never from the latest retry.
	current, err := s.tokens.FindByID(ctx, record.ID)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		if domainErrors.IsNotFound(err) {
			return models.TokenPair{}, domainErrors.ErrTokenNotFound
		}
		return models.TokenPair{}, fmt.Errorf("reload refresh token record: %w", err)
	}
	if current.FirstUsedAt == nil {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		return models.TokenPair{}, domainErrors.SuspiciousToken("refresh token usage state is inconsistent")
	}

	graceEnd := current.FirstUsedAt.Add(s.policy.GracePeriod)
	if now.Before(graceEnd) {
		// Benign duplicate retry inside the grace window: re-issue a new
		// child pair, keeping the recorded first use.
		if err := s.tokens.TouchLastUsed(ctx, record.ID, now); err != nil {
			s.logger.Warn("failed to update last-use timestamp",
				zap.String("token_id", record.ID.String()), zap.Error(err))
		}
		return s.rotate(ctx, userID, current)
	}

	if s.policy.DetectReplayAttacks {
		return models.TokenPair{}, s.handleReplay(ctx, userID, current)
	}

	// Detection explicitly opted out: proceed as a success.
	return s.rotate(ctx, userID, current)
}

// rotate issues the next pair in the chain: a fresh access token (never
// part of a family) and a child refresh token inheriting the parent's
// family with the parent recorded.
func (s *TokenService) rotate(ctx context.Context, userID uuid.UUID, parent *models.PersistedToken) (models.TokenPair, error) {
	family := parent.Family()
	pair, refreshID, err := s.mintPair(ctx, userID, &family, &parent.ID)
	if err != nil {
		return models.TokenPair{}, err
	}

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	s.publish(ctx, events.Event{
		Type:    events.TypeTokenRefreshed,
		Subject: userID.String(),
		Data: events.TokenPairIssuedPayload{
			UserID:         userID,
			RefreshTokenID: refreshID,
			TokenFamily:    &family,
		},
	})
	s.logger.Info("rotated refresh token",
		zap.String("user_id", userID.String()),
		zap.String("token_family", family.String()),
		zap.String("parent_token_id", parent.ID.String()),
		zap.String("child_token_id", refreshID.String()),
	)
	return pair, nil
}

// handleReplay revokes the family (when the policy says so) before
// returning the replay error: the caller can never observe the error
// without the revocation having happened.
func (s *TokenService) handleReplay(ctx context.Context, userID uuid.UUID, record *models.PersistedToken) error {
	family := record.Family()
	metrics.ReplaysDetectedTotal.Inc()
	metrics.TokenRefreshTotal.WithLabelValues("replay").Inc()
	s.logger.Warn("refresh token replay detected",
		zap.String("user_id", userID.String()),
		zap.String("token_id", record.ID.String()),
		zap.String("token_family", family.String()),
	)

	if s.policy.RevokeOnReplay {
		marked, err := s.tokens.RevokeFamily(ctx, family)
		if err != nil {
			return fmt.Errorf("revoke token family %s: %w", family, err)
		}
		metrics.FamiliesRevokedTotal.Inc()
		s.publish(ctx, events.Event{
			Type:    events.TypeFamilyRevoked,
			Subject: userID.String(),
			Data:    events.FamilyRevokedPayload{TokenFamily: family, TokensMarked: marked},
		})
	}

	s.publish(ctx, events.Event{
		Type:    events.TypeReplayDetected,
		Subject: userID.String(),
		Data: events.ReplayDetectedPayload{
			UserID:          userID,
			TokenFamily:     family,
			OriginalTokenID: record.ID,
			FamilyRevoked:   s.policy.RevokeOnReplay,
		},
	})
	return domainErrors.NewReplayError(family, record.ID)
}

// VerifyToken decodes and fully validates a presented token.
func (s *TokenService) VerifyToken(ctx context.Context, raw string, expectedType models.TokenType) (*models.VerifiedToken, error) {
	verified, err := s.verifier.Verify(ctx, raw, expectedType)
	if err != nil {
		metrics.TokenVerificationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.TokenVerificationsTotal.WithLabelValues("ok").Inc()
	return verified, nil
}

// RevokeToken revokes a single token. Decoding is enough to locate the
// record; full verification is not required for a self-service or
// administrative revocation. Non-persisted access tokens are blacklisted
// until their natural expiry instead.
func (s *TokenService) RevokeToken(ctx context.Context, raw string, deleteRecord bool) error {
	decoded, err := s.codec.Decode(raw)
	if err != nil {
		return domainErrors.SuspiciousToken(err.Error())
	}
	tokenID, ok := decoded.TokenID()
	if !ok {
		return domainErrors.SuspiciousToken("token id claim is missing or malformed")
	}

	tokenType, _ := decoded.TokenType()
	if !s.persistence[tokenType] {
		return s.blacklistAccessToken(ctx, decoded, tokenID)
	}

	if err := s.tokens.Revoke(ctx, tokenID); err != nil {
		if domainErrors.IsNotFound(err) {
			return domainErrors.ErrTokenNotFound
		}
		return fmt.Errorf("revoke token %s: %w", tokenID, err)
	}
	if deleteRecord {
		if err := s.tokens.Delete(ctx, tokenID); err != nil {
			return fmt.Errorf("delete token %s: %w", tokenID, err)
		}
	}

	s.publish(ctx, events.Event{
		Type:    events.TypeTokenRevoked,
		Subject: tokenID.String(),
		Data:    events.TokenRevokedPayload{TokenID: tokenID, Deleted: deleteRecord},
	})
	return nil
}

// RevokeTokensForUser marks every persisted token owned by the user as
// revoked, e.g. on password change or "log out everywhere".
func (s *TokenService) RevokeTokensForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	marked, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens for user %s: %w", userID, err)
	}
	s.publish(ctx, events.Event{
		Type:    events.TypeUserTokensRevoked,
		Subject: userID.String(),
		Data:    events.UserTokensRevokedPayload{UserID: userID, TokensMarked: marked},
	})
	s.logger.Info("revoked all tokens for user",
		zap.String("user_id", userID.String()), zap.Int64("tokens_marked", marked))
	return marked, nil
}

func (s *TokenService) blacklistAccessToken(ctx context.Context, decoded *models.DecodedToken, tokenID uuid.UUID) error {
	if s.blacklist == nil {
		return nil
	}
	expiresAt, ok := decoded.ExpiresAt()
	if !ok {
		return domainErrors.SuspiciousToken("expiry claim is missing")
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		// Already expired, nothing to blacklist.
		return nil
	}
	if err := s.blacklist.Add(ctx, tokenID.String(), ttl); err != nil {
		return fmt.Errorf("blacklist token %s: %w", tokenID, err)
	}
	s.publish(ctx, events.Event{
		Type:    events.TypeTokenRevoked,
		Subject: tokenID.String(),
		Data:    events.TokenRevokedPayload{TokenID: tokenID},
	})
	return nil
}

// mintPair issues and, where persistence applies, stores an access/refresh
// pair. family and parent apply to the refresh token only; access tokens
// never join a rotation family.
func (s *TokenService) mintPair(ctx context.Context, userID uuid.UUID, family, parent *uuid.UUID) (models.TokenPair, uuid.UUID, error) {
	access, err := s.issuer.Issue(ctx, userID, s.cfg.AccessTokenTTL, models.TokenTypeAccess, nil)
	if err != nil {
		return models.TokenPair{}, uuid.Nil, err
	}

	refreshOpts := make([]IssueOption, 0, 2)
	if family != nil {
		refreshOpts = append(refreshOpts, WithTokenFamily(*family))
	}
	if parent != nil {
		refreshOpts = append(refreshOpts, WithParentToken(*parent))
	}
	refresh, err := s.issuer.Issue(ctx, userID, s.cfg.RefreshTokenTTL, models.TokenTypeRefresh, nil, refreshOpts...)
	if err != nil {
		return models.TokenPair{}, uuid.Nil, err
	}

	if s.persistence[models.TokenTypeAccess] {
		if err := s.persistToken(ctx, access, userID, models.TokenTypeAccess, s.cfg.AccessTokenTTL, nil, nil); err != nil {
			return models.TokenPair{}, uuid.Nil, err
		}
	}
	if err := s.persistToken(ctx, refresh, userID, models.TokenTypeRefresh, s.cfg.RefreshTokenTTL, family, parent); err != nil {
		return models.TokenPair{}, uuid.Nil, err
	}

	metrics.TokensIssuedTotal.WithLabelValues(string(models.TokenTypeAccess)).Inc()
	metrics.TokensIssuedTotal.WithLabelValues(string(models.TokenTypeRefresh)).Inc()

	return models.TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		TokenType:    bearerTokenType,
	}, refresh.ID, nil
}

func (s *TokenService) persistToken(ctx context.Context, generated models.GeneratedToken, userID uuid.UUID, tokenType models.TokenType, ttl time.Duration, family, parent *uuid.UUID) error {
	now := s.now()
	record := &models.PersistedToken{
		ID:            generated.ID,
		UserID:        userID,
		TokenHash:     security.HashToken(generated.Token),
		Type:          tokenType,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		TokenFamily:   family,
		ParentTokenID: parent,
	}
	if err := s.tokens.Store(ctx, record); err != nil {
		return fmt.Errorf("store %s token %s: %w", tokenType, generated.ID, err)
	}
	return nil
}

func (s *TokenService) publish(ctx context.Context, event events.Event) {
	if event.Time.IsZero() {
		event.Time = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish domain event",
			zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
