package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashToken(t *testing.T) {
	hash := HashToken("header.payload.signature")

	// SHA-256 hex digest: 64 lowercase hex characters, deterministic.
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashToken("header.payload.signature"))
	assert.NotEqual(t, hash, HashToken("header.payload.signature2"))
}

func TestTokenHashMatches(t *testing.T) {
	raw := "some.raw.token"
	hash := HashToken(raw)

	assert.True(t, TokenHashMatches(raw, hash))
	assert.False(t, TokenHashMatches("other.raw.token", hash))
	assert.False(t, TokenHashMatches(raw, "not-a-digest"))
	assert.False(t, TokenHashMatches(raw, ""))
}
