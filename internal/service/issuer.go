package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/realmforge/token-service/internal/domain/errors"
	"github.com/realmforge/token-service/internal/domain/models"
	"github.com/realmforge/token-service/internal/domain/repository"
)

// Claim keys only rotation chains use.
const (
	claimKeyTokenFamily = "token_family"
	claimKeyParentToken = "parent_token_id"
)

// IssueOption customizes a single issuance.
type IssueOption func(*issueOptions)

type issueOptions struct {
	family *uuid.UUID
	parent *uuid.UUID
}

// WithTokenFamily stamps the rotation family the token belongs to.
func WithTokenFamily(family uuid.UUID) IssueOption {
	return func(o *issueOptions) { o.family = &family }
}

// WithParentToken records the token this one was rotated from.
func WithParentToken(parent uuid.UUID) IssueOption {
	return func(o *issueOptions) { o.parent = &parent }
}

// TokenIssuer mints signed tokens for a realm. Construction is pure: the
// issuer never touches the persisted-token store.
type TokenIssuer struct {
	realm    models.Realm
	codec    *TokenCodec
	identity repository.IdentityStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenIssuer builds an issuer. A realm without issuer or audience is a
// configuration error surfaced here, at startup, not at issuance time.
func NewTokenIssuer(realm models.Realm, codec *TokenCodec, identity repository.IdentityStore, logger *zap.Logger) (*TokenIssuer, error) {
	if realm.Issuer == "" || realm.Audience == "" {
		return nil, fmt.Errorf("%w: issuer and audience are required", domainErrors.ErrMissingRealmConfig)
	}
	if realm.Owner == "" {
		return nil, fmt.Errorf("%w: realm owner is required", domainErrors.ErrMissingRealmConfig)
	}
	return &TokenIssuer{
		realm:    realm,
		codec:    codec,
		identity: identity,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Issue produces a fresh signed token for the user. Roles are resolved from
// the identity store when not supplied by the caller.
func (i *TokenIssuer) Issue(ctx context.Context, userID uuid.UUID, validity time.Duration, tokenType models.TokenType, roles []string, opts ...IssueOption) (models.GeneratedToken, error) {
	var options issueOptions
	for _, opt := range opts {
		opt(&options)
	}

	if roles == nil {
		resolved, err := i.identity.FindRoles(ctx, userID)
		if err != nil {
			return models.GeneratedToken{}, fmt.Errorf("resolve roles for user %s: %w", userID, err)
		}
		roles = resolved
	}

	tokenID := uuid.New()
	claims := []models.Claim{
		models.IssuerClaim{Issuer: i.realm.Issuer},
		models.AudienceClaim{Audience: i.realm.Audience},
		models.SubjectClaim{UserID: userID},
		models.TokenIDClaim{ID: tokenID},
		models.TokenTypeClaim{Type: tokenType},
		models.RolesClaim{Roles: roles},
		models.RealmClaim{Realm: i.realm.Owner},
		models.ExpiresAtClaim{ExpiresAt: i.now().Add(validity)},
	}
	for _, name := range sortedClaimNames(i.realm.CustomClaims) {
		claims = append(claims, models.CustomClaim{Name: name, Value: i.realm.CustomClaims[name]})
	}
	if options.family != nil {
		claims = append(claims, models.UnknownClaim{Name: claimKeyTokenFamily, Raw: options.family.String()})
	}
	if options.parent != nil {
		claims = append(claims, models.UnknownClaim{Name: claimKeyParentToken, Raw: options.parent.String()})
	}

	signed, err := i.codec.Encode(claims)
	if err != nil {
		return models.GeneratedToken{}, fmt.Errorf("encode %s token: %w", tokenType, err)
	}

	i.logger.Debug("issued token",
		zap.String("token_id", tokenID.String()),
		zap.String("user_id", userID.String()),
		zap.String("token_type", string(tokenType)),
	)
	return models.GeneratedToken{ID: tokenID, Token: signed}, nil
}

func sortedClaimNames(custom map[string]string) []string {
	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
