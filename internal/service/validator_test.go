package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/realmforge/token-service/internal/domain/models"
)

func TestClaimsValidator(t *testing.T) {
	realm := testRealm()
	userID := uuid.New()
	tokenID := uuid.New()
	base := time.Now().Truncate(time.Second)

	goodClaims := func() []models.Claim {
		return []models.Claim{
			models.IssuerClaim{Issuer: realm.Issuer},
			models.AudienceClaim{Audience: realm.Audience},
			models.SubjectClaim{UserID: userID},
			models.TokenIDClaim{ID: tokenID},
			models.TokenTypeClaim{Type: models.TokenTypeAccess},
			models.RolesClaim{Roles: []string{"user", "admin"}},
			models.RealmClaim{Realm: realm.Owner},
			models.ExpiresAtClaim{ExpiresAt: base.Add(time.Hour)},
			models.CustomClaim{Name: "tenant_tier", Value: "gold"},
		}
	}

	// replace swaps out the claim with the same key.
	replace := func(claims []models.Claim, with models.Claim) []models.Claim {
		out := make([]models.Claim, 0, len(claims))
		for _, c := range claims {
			if c.Key() == with.Key() {
				out = append(out, with)
				continue
			}
			out = append(out, c)
		}
		return out
	}
	// drop removes the claim with the given key.
	drop := func(claims []models.Claim, key string) []models.Claim {
		out := make([]models.Claim, 0, len(claims))
		for _, c := range claims {
			if c.Key() != key {
				out = append(out, c)
			}
		}
		return out
	}

	tests := []struct {
		name          string
		claims        []models.Claim
		expectedType  models.TokenType
		expectedRoles []string
		want          bool
	}{
		{
			name:         "valid token",
			claims:       goodClaims(),
			expectedType: models.TokenTypeAccess,
			want:         true,
		},
		{
			name:          "valid with role subset expected",
			claims:        goodClaims(),
			expectedType:  models.TokenTypeAccess,
			expectedRoles: []string{"admin"},
			want:          true,
		},
		{
			name:         "expired",
			claims:       replace(goodClaims(), models.ExpiresAtClaim{ExpiresAt: base.Add(-time.Second)}),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "expiry exactly now",
			claims:       replace(goodClaims(), models.ExpiresAtClaim{ExpiresAt: base}),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "missing expiry",
			claims:       drop(goodClaims(), models.ClaimKeyExpiresAt),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "wrong issuer",
			claims:       replace(goodClaims(), models.IssuerClaim{Issuer: "https://evil.test"}),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "missing issuer",
			claims:       drop(goodClaims(), models.ClaimKeyIssuer),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "wrong audience",
			claims:       replace(goodClaims(), models.AudienceClaim{Audience: "other-api"}),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:          "missing expected role",
			claims:        goodClaims(),
			expectedType:  models.TokenTypeAccess,
			expectedRoles: []string{"superadmin"},
			want:          false,
		},
		{
			name:         "missing token id",
			claims:       drop(goodClaims(), models.ClaimKeyTokenID),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "wrong token type",
			claims:       goodClaims(),
			expectedType: models.TokenTypeRefresh,
			want:         false,
		},
		{
			name:         "missing subject",
			claims:       drop(goodClaims(), models.ClaimKeySubject),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "wrong realm",
			claims:       replace(goodClaims(), models.RealmClaim{Realm: "globex"}),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "missing realm",
			claims:       drop(goodClaims(), models.ClaimKeyRealm),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "custom claim mismatch",
			claims:       replace(goodClaims(), models.CustomClaim{Name: "tenant_tier", Value: "bronze"}),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name:         "custom claim missing",
			claims:       drop(goodClaims(), "tenant_tier"),
			expectedType: models.TokenTypeAccess,
			want:         false,
		},
		{
			name: "unknown claims are tolerated",
			claims: append(goodClaims(),
				models.UnknownClaim{Name: "device_id", Raw: "sensor-7"}),
			expectedType: models.TokenTypeAccess,
			want:         true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewClaimsValidator(realm)
			v.now = func() time.Time { return base }
			token := &models.DecodedToken{Raw: "raw", Claims: tc.claims}
			assert.Equal(t, tc.want, v.Validate(token, tc.expectedType, tc.expectedRoles))
		})
	}
}
