package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPersistedTokenFamily(t *testing.T) {
	root := PersistedToken{ID: uuid.New()}
	assert.Equal(t, root.ID, root.Family(), "root defines its own family")

	family := uuid.New()
	child := PersistedToken{ID: uuid.New(), TokenFamily: &family}
	assert.Equal(t, family, child.Family())
}

func TestPersistedTokenState(t *testing.T) {
	now := time.Now()
	token := PersistedToken{
		ID:        uuid.New(),
		ExpiresAt: now.Add(time.Hour),
	}

	assert.False(t, token.IsUsed())
	assert.False(t, token.IsExpired(now))
	assert.True(t, token.IsActive(now))

	used := now
	token.FirstUsedAt = &used
	assert.True(t, token.IsUsed())
	assert.False(t, token.IsActive(now))

	token.FirstUsedAt = nil
	token.Revoked = true
	assert.False(t, token.IsActive(now))

	token.Revoked = false
	assert.True(t, token.IsExpired(now.Add(time.Hour)), "expiry instant itself counts as expired")
	assert.False(t, token.IsActive(now.Add(2*time.Hour)))
}
