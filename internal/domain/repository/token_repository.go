package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/realmforge/token-service/internal/domain/models"
)

// TokenRepository is the durable record keeper for issued tokens.
//
// MarkUsedIfUnused is the engine's only Active->Used mutator and must be a
// single atomic conditional update: of N concurrent callers for the same ID,
// exactly one observes true.
type TokenRepository interface {
	Store(ctx context.Context, token *models.PersistedToken) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PersistedToken, error)
	MarkUsedIfUnused(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, now time.Time) error
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeFamily(ctx context.Context, family uuid.UUID) (int64, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// IdentityStore is the read-only identity dependency: user existence and
// current role assignments.
type IdentityStore interface {
	FindRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
	FindByEmail(ctx context.Context, email string) (*models.UserRecord, error)
	FindByPhone(ctx context.Context, phone string) (*models.UserRecord, error)
}

// TokenBlacklist holds revoked access-token IDs until their natural expiry.
// Access tokens are not persisted, so revocation needs a side channel.
type TokenBlacklist interface {
	Add(ctx context.Context, tokenID string, ttl time.Duration) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}
