package service

import (
	"time"

	"github.com/realmforge/token-service/internal/domain/models"
)

// ClaimsValidator is the pure predicate over a decoded claim set. It does
// no network or storage access; everything it needs lives in the realm
// configuration and the claims themselves.
type ClaimsValidator struct {
	realm models.Realm
	now   func() time.Time
}

// NewClaimsValidator builds a validator for one realm.
func NewClaimsValidator(realm models.Realm) *ClaimsValidator {
	return &ClaimsValidator{realm: realm, now: time.Now}
}

// Validate reports whether the decoded claims are acceptable for the
// expected token type and role set. Every check must hold:
//
//   - expiry present and strictly in the future
//   - issuer and audience match the realm configuration
//   - roles claim is a superset of expectedRoles
//   - token id and subject parse as identifiers
//   - token type claim equals expectedType
//   - realm claim equals the tenant owner
//   - every configured custom claim is present and equal
//
// Unknown claims are always accepted.
func (v *ClaimsValidator) Validate(token *models.DecodedToken, expectedType models.TokenType, expectedRoles []string) bool {
	expiresAt, ok := token.ExpiresAt()
	if !ok || !expiresAt.After(v.now()) {
		return false
	}
	if issuer, ok := token.Issuer(); !ok || issuer != v.realm.Issuer {
		return false
	}
	if audience, ok := token.Audience(); !ok || audience != v.realm.Audience {
		return false
	}
	if !rolesContainAll(token.Roles(), expectedRoles) {
		return false
	}
	if _, ok := token.TokenID(); !ok {
		return false
	}
	if tokenType, ok := token.TokenType(); !ok || tokenType != expectedType {
		return false
	}
	if _, ok := token.Subject(); !ok {
		return false
	}
	if realm, ok := token.Realm(); !ok || realm != v.realm.Owner {
		return false
	}
	for name, want := range v.realm.CustomClaims {
		got, ok := token.Custom(name)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func rolesContainAll(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, r := range have {
		set[r] = struct{}{}
	}
	for _, r := range want {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
