package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realmforge/token-service/internal/domain/models"
	"github.com/realmforge/token-service/internal/infrastructure/security"
)

func testRealm() models.Realm {
	return models.Realm{
		Owner:    "acme",
		Issuer:   "https://id.acme.test",
		Audience: "acme-api",
		CustomClaims: map[string]string{
			"tenant_tier": "gold",
		},
	}
}

func testSecrets(t *testing.T) *security.SecretSet {
	t.Helper()
	set, err := security.NewSecretSet([]security.SecretEntry{
		{KeyID: "k1", Secret: []byte("first-secret-first-secret-first!")},
		{KeyID: "k2", Secret: []byte("second-secret-second-secret-sec!")},
	}, "k2")
	require.NoError(t, err)
	return set
}

func testClaims(userID, tokenID uuid.UUID, expiresAt time.Time) []models.Claim {
	return []models.Claim{
		models.IssuerClaim{Issuer: "https://id.acme.test"},
		models.AudienceClaim{Audience: "acme-api"},
		models.SubjectClaim{UserID: userID},
		models.TokenIDClaim{ID: tokenID},
		models.TokenTypeClaim{Type: models.TokenTypeAccess},
		models.RolesClaim{Roles: []string{"user", "admin"}},
		models.RealmClaim{Realm: "acme"},
		models.ExpiresAtClaim{ExpiresAt: expiresAt},
		models.CustomClaim{Name: "tenant_tier", Value: "gold"},
	}
}

func TestTokenCodecRoundTrip(t *testing.T) {
	codec := NewTokenCodec(testRealm(), testSecrets(t))
	userID := uuid.New()
	tokenID := uuid.New()
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)

	raw, err := codec.Encode(testClaims(userID, tokenID, expiresAt))
	require.NoError(t, err)
	assert.Len(t, strings.Split(raw, "."), 3)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded.Raw)

	sub, ok := decoded.Subject()
	require.True(t, ok)
	assert.Equal(t, userID, sub)

	jti, ok := decoded.TokenID()
	require.True(t, ok)
	assert.Equal(t, tokenID, jti)

	tokenType, ok := decoded.TokenType()
	require.True(t, ok)
	assert.Equal(t, models.TokenTypeAccess, tokenType)

	assert.Equal(t, []string{"user", "admin"}, decoded.Roles())

	exp, ok := decoded.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(expiresAt))

	realm, ok := decoded.Realm()
	require.True(t, ok)
	assert.Equal(t, "acme", realm)

	tier, ok := decoded.Custom("tenant_tier")
	require.True(t, ok)
	assert.Equal(t, "gold", tier)
}

func TestTokenCodecKeyRotation(t *testing.T) {
	realm := testRealm()
	oldSet, err := security.NewSecretSet([]security.SecretEntry{
		{KeyID: "k1", Secret: []byte("first-secret-first-secret-first!")},
	}, "k1")
	require.NoError(t, err)

	// Sign with the old key, then verify with a set where a newer key is
	// current but the old key is still configured.
	oldCodec := NewTokenCodec(realm, oldSet)
	raw, err := oldCodec.Encode(testClaims(uuid.New(), uuid.New(), time.Now().Add(time.Hour)))
	require.NoError(t, err)

	rotatedCodec := NewTokenCodec(realm, testSecrets(t))
	decoded, err := rotatedCodec.Decode(raw)
	require.NoError(t, err)
	_, ok := decoded.TokenID()
	assert.True(t, ok)
}

func TestTokenCodecRejectsUnknownKeyID(t *testing.T) {
	realm := testRealm()
	foreign, err := security.NewSecretSet([]security.SecretEntry{
		{KeyID: "other", Secret: []byte("foreign-secret-foreign-secret-f!")},
	}, "other")
	require.NoError(t, err)

	raw, err := NewTokenCodec(realm, foreign).Encode(testClaims(uuid.New(), uuid.New(), time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = NewTokenCodec(realm, testSecrets(t)).Decode(raw)
	assert.ErrorIs(t, err, ErrUnknownSigningKey)
}

func TestTokenCodecRejectsTamperedSignature(t *testing.T) {
	codec := NewTokenCodec(testRealm(), testSecrets(t))
	raw, err := codec.Encode(testClaims(uuid.New(), uuid.New(), time.Now().Add(time.Hour)))
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + parts[2][:len(parts[2])-4] + "AAAA"

	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenCodecRejectsWeakerSigningMethod(t *testing.T) {
	secrets := testSecrets(t)
	entry := secrets.Current()

	// A token signed HS256 with a known secret and key id must still be
	// rejected: only HS512 is acceptable.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(),
		"jti": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = entry.KeyID
	raw, err := token.SignedString(entry.Secret)
	require.NoError(t, err)

	_, err = NewTokenCodec(testRealm(), secrets).Decode(raw)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenCodecPreservesUnknownClaims(t *testing.T) {
	codec := NewTokenCodec(testRealm(), testSecrets(t))
	claims := append(testClaims(uuid.New(), uuid.New(), time.Now().Add(time.Hour)),
		models.UnknownClaim{Name: "device_id", Raw: "sensor-7"},
	)

	raw, err := codec.Encode(claims)
	require.NoError(t, err)
	decoded, err := codec.Decode(raw)
	require.NoError(t, err)

	var found bool
	for _, c := range decoded.Claims {
		if u, ok := c.(models.UnknownClaim); ok && u.Name == "device_id" {
			assert.Equal(t, "sensor-7", u.Raw)
			found = true
		}
	}
	assert.True(t, found, "unknown claim should survive the round trip")
}

func TestTokenCodecMalformedTokens(t *testing.T) {
	codec := NewTokenCodec(testRealm(), testSecrets(t))
	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := codec.Decode(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestHashTokenNeverStoresRaw(t *testing.T) {
	raw := "some.signed.token"
	hash := security.HashToken(raw)
	assert.NotEqual(t, raw, hash)
	assert.NotContains(t, hash, raw)
	assert.True(t, security.TokenHashMatches(raw, hash))
	assert.False(t, security.TokenHashMatches(raw+"x", hash))
}
