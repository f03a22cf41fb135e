package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenType enumerates the token kinds the engine issues.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// GeneratedToken is the issuer's output: a freshly signed token and its ID.
// Persisting it is the caller's responsibility.
type GeneratedToken struct {
	ID    uuid.UUID
	Token string
}

// PersistedToken is the durable record backing an issued token. Only a
// one-way hash of the raw value is ever stored.
type PersistedToken struct {
	ID            uuid.UUID  `db:"id"`
	UserID        uuid.UUID  `db:"user_id"`
	TokenHash     string     `db:"token_hash"`
	Type          TokenType  `db:"token_type"`
	Revoked       bool       `db:"revoked"`
	CreatedAt     time.Time  `db:"created_at"`
	ExpiresAt     time.Time  `db:"expires_at"`
	TokenFamily   *uuid.UUID `db:"token_family"`
	ParentTokenID *uuid.UUID `db:"parent_token_id"`
	FirstUsedAt   *time.Time `db:"first_used_at"`
	LastUsedAt    *time.Time `db:"last_used_at"`
}

// Family returns the rotation family this token belongs to. The root token
// of a chain carries no family column and defines its own family by ID.
func (t *PersistedToken) Family() uuid.UUID {
	if t.TokenFamily != nil {
		return *t.TokenFamily
	}
	return t.ID
}

// IsExpired reports whether the record's validity window has elapsed.
func (t *PersistedToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsUsed reports whether the token has been redeemed at least once.
func (t *PersistedToken) IsUsed() bool {
	return t.FirstUsedAt != nil
}

// IsActive reports whether the token can still be presented for rotation.
func (t *PersistedToken) IsActive(at time.Time) bool {
	return !t.Revoked && !t.IsUsed() && !t.IsExpired(at)
}

// TokenPair is returned on login and on each successful rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// VerifiedToken is the verifier's output. Roles are the ones freshly
// resolved from the identity store, not the ones embedded at issuance.
type VerifiedToken struct {
	UserID  uuid.UUID
	TokenID uuid.UUID
	Type    TokenType
	Roles   []string
	Claims  []Claim
}
