package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	domainErrors "github.com/realmforge/token-service/internal/domain/errors"
	"github.com/realmforge/token-service/internal/domain/models"
	"github.com/realmforge/token-service/internal/utils/metrics"
)

const uniqueViolationCode = "23505"

// TokenRepositoryPostgres implements repository.TokenRepository on
// PostgreSQL via pgx.
//
// Expected schema:
//
//	CREATE TABLE persisted_tokens (
//	    id              UUID PRIMARY KEY,
//	    user_id         UUID NOT NULL,
//	    token_hash      TEXT NOT NULL UNIQUE,
//	    token_type      TEXT NOT NULL,
//	    revoked         BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    expires_at      TIMESTAMPTZ NOT NULL,
//	    token_family    UUID,
//	    parent_token_id UUID,
//	    first_used_at   TIMESTAMPTZ,
//	    last_used_at    TIMESTAMPTZ
//	);
type TokenRepositoryPostgres struct {
	pool *pgxpool.Pool
}

// NewTokenRepositoryPostgres creates a new TokenRepositoryPostgres.
func NewTokenRepositoryPostgres(pool *pgxpool.Pool) *TokenRepositoryPostgres {
	return &TokenRepositoryPostgres{pool: pool}
}

const tokenColumns = `id, user_id, token_hash, token_type, revoked, created_at, expires_at, token_family, parent_token_id, first_used_at, last_used_at`

// Store persists a new token record.
func (r *TokenRepositoryPostgres) Store(ctx context.Context, token *models.PersistedToken) error {
	defer observe("store")()
	query := `
		INSERT INTO persisted_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.Type, token.Revoked,
		token.CreatedAt, token.ExpiresAt, token.TokenFamily, token.ParentTokenID,
		token.FirstUsedAt, token.LastUsedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("token %s already stored: %w", token.ID, domainErrors.ErrDuplicateValue)
		}
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// FindByID loads a token record by ID.
func (r *TokenRepositoryPostgres) FindByID(ctx context.Context, id uuid.UUID) (*models.PersistedToken, error) {
	defer observe("find_by_id")()
	query := `SELECT ` + tokenColumns + ` FROM persisted_tokens WHERE id = $1`
	token := &models.PersistedToken{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.Type, &token.Revoked,
		&token.CreatedAt, &token.ExpiresAt, &token.TokenFamily, &token.ParentTokenID,
		&token.FirstUsedAt, &token.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find token by id: %w", err)
	}
	return token, nil
}

// MarkUsedIfUnused atomically transitions a token from Active to Used. The
// conditional UPDATE is the entire race-safety story: of N concurrent
// callers exactly one sees an affected row.
func (r *TokenRepositoryPostgres) MarkUsedIfUnused(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	defer observe("mark_used_if_unused")()
	query := `
		UPDATE persisted_tokens
		SET first_used_at = $2, last_used_at = $2
		WHERE id = $1 AND first_used_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TouchLastUsed records a repeat redemption inside the grace window.
func (r *TokenRepositoryPostgres) TouchLastUsed(ctx context.Context, id uuid.UUID, now time.Time) error {
	defer observe("touch_last_used")()
	query := `UPDATE persisted_tokens SET last_used_at = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, now); err != nil {
		return fmt.Errorf("touch last used: %w", err)
	}
	return nil
}

// Revoke marks a single token as revoked.
func (r *TokenRepositoryPostgres) Revoke(ctx context.Context, id uuid.UUID) error {
	defer observe("revoke")()
	query := `UPDATE persisted_tokens SET revoked = TRUE WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

// RevokeFamily marks every token of a rotation family as revoked in one
// statement. The root token of a family carries no family column and is
// matched by its own ID.
func (r *TokenRepositoryPostgres) RevokeFamily(ctx context.Context, family uuid.UUID) (int64, error) {
	defer observe("revoke_family")()
	query := `
		UPDATE persisted_tokens
		SET revoked = TRUE
		WHERE token_family = $1 OR id = $1
	`
	tag, err := r.pool.Exec(ctx, query, family)
	if err != nil {
		return 0, fmt.Errorf("revoke token family: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RevokeAllForUser marks every token owned by the user as revoked.
func (r *TokenRepositoryPostgres) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer observe("revoke_all_for_user")()
	query := `UPDATE persisted_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`
	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a token record by ID.
func (r *TokenRepositoryPostgres) Delete(ctx context.Context, id uuid.UUID) error {
	defer observe("delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM persisted_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

// DeleteByHash removes a token record by its stored hash.
func (r *TokenRepositoryPostgres) DeleteByHash(ctx context.Context, tokenHash string) error {
	defer observe("delete_by_hash")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM persisted_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete token by hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

// DeleteExpired removes records whose expiry lies more than retention in
// the past. Never called by the engine itself; cleanup is an operator
// concern.
func (r *TokenRepositoryPostgres) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	defer observe("delete_expired")()
	cutoff := time.Now().Add(-retention)
	tag, err := r.pool.Exec(ctx, `DELETE FROM persisted_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func observe(operation string) func() {
	timer := prometheus.NewTimer(metrics.StoreOperationDuration.WithLabelValues(operation))
	return func() { timer.ObserveDuration() }
}
