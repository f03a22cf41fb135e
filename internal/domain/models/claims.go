package models

import (
	"time"

	"github.com/google/uuid"
)

// Claim keys as they appear in the signed payload.
const (
	ClaimKeyIssuer    = "iss"
	ClaimKeyAudience  = "aud"
	ClaimKeySubject   = "sub"
	ClaimKeyTokenID   = "jti"
	ClaimKeyTokenType = "token_type"
	ClaimKeyRoles     = "roles"
	ClaimKeyRealm     = "realm"
	ClaimKeyExpiresAt = "exp"
)

// Claim is one decoded payload field. The set of implementations is closed
// except for UnknownClaim, which preserves fields this service does not
// understand so they survive a decode/encode round trip.
type Claim interface {
	Key() string
}

// SubjectClaim carries the user ID the token was issued to.
type SubjectClaim struct {
	UserID uuid.UUID
}

func (SubjectClaim) Key() string { return ClaimKeySubject }

// TokenIDClaim carries the unique ID of the token itself.
type TokenIDClaim struct {
	ID uuid.UUID
}

func (TokenIDClaim) Key() string { return ClaimKeyTokenID }

// TokenTypeClaim distinguishes access tokens from refresh tokens.
type TokenTypeClaim struct {
	Type TokenType
}

func (TokenTypeClaim) Key() string { return ClaimKeyTokenType }

// RolesClaim carries the role names embedded at issuance time.
type RolesClaim struct {
	Roles []string
}

func (RolesClaim) Key() string { return ClaimKeyRoles }

// RealmClaim names the tenant the token belongs to.
type RealmClaim struct {
	Realm string
}

func (RealmClaim) Key() string { return ClaimKeyRealm }

// IssuerClaim carries the configured issuer.
type IssuerClaim struct {
	Issuer string
}

func (IssuerClaim) Key() string { return ClaimKeyIssuer }

// AudienceClaim carries the configured audience.
type AudienceClaim struct {
	Audience string
}

func (AudienceClaim) Key() string { return ClaimKeyAudience }

// ExpiresAtClaim carries the expiry instant (epoch seconds on the wire).
type ExpiresAtClaim struct {
	ExpiresAt time.Time
}

func (ExpiresAtClaim) Key() string { return ClaimKeyExpiresAt }

// CustomClaim is a tenant-configured string claim the realm requires.
type CustomClaim struct {
	Name  string
	Value string
}

func (c CustomClaim) Key() string { return c.Name }

// UnknownClaim holds any payload field that did not map to a known variant.
// Kept verbatim for forward compatibility.
type UnknownClaim struct {
	Name string
	Raw  interface{}
}

func (c UnknownClaim) Key() string { return c.Name }

// DecodedToken is the result of parsing and signature-checking a raw token.
// Claims keep their decode order; the raw string is retained so the stored
// token hash can be compared against what the client actually presented.
type DecodedToken struct {
	Raw    string
	Claims []Claim
}

// Subject returns the parsed subject claim, if present.
func (t *DecodedToken) Subject() (uuid.UUID, bool) {
	for _, c := range t.Claims {
		if s, ok := c.(SubjectClaim); ok {
			return s.UserID, true
		}
	}
	return uuid.Nil, false
}

// TokenID returns the parsed token ID claim, if present.
func (t *DecodedToken) TokenID() (uuid.UUID, bool) {
	for _, c := range t.Claims {
		if id, ok := c.(TokenIDClaim); ok {
			return id.ID, true
		}
	}
	return uuid.Nil, false
}

// TokenType returns the token type claim, if present.
func (t *DecodedToken) TokenType() (TokenType, bool) {
	for _, c := range t.Claims {
		if tt, ok := c.(TokenTypeClaim); ok {
			return tt.Type, true
		}
	}
	return "", false
}

// Roles returns the embedded role names. Nil when the claim is absent.
func (t *DecodedToken) Roles() []string {
	for _, c := range t.Claims {
		if r, ok := c.(RolesClaim); ok {
			return r.Roles
		}
	}
	return nil
}

// ExpiresAt returns the expiry claim, if present.
func (t *DecodedToken) ExpiresAt() (time.Time, bool) {
	for _, c := range t.Claims {
		if e, ok := c.(ExpiresAtClaim); ok {
			return e.ExpiresAt, true
		}
	}
	return time.Time{}, false
}

// Issuer returns the issuer claim, if present.
func (t *DecodedToken) Issuer() (string, bool) {
	for _, c := range t.Claims {
		if i, ok := c.(IssuerClaim); ok {
			return i.Issuer, true
		}
	}
	return "", false
}

// Audience returns the audience claim, if present.
func (t *DecodedToken) Audience() (string, bool) {
	for _, c := range t.Claims {
		if a, ok := c.(AudienceClaim); ok {
			return a.Audience, true
		}
	}
	return "", false
}

// Realm returns the realm claim, if present.
func (t *DecodedToken) Realm() (string, bool) {
	for _, c := range t.Claims {
		if r, ok := c.(RealmClaim); ok {
			return r.Realm, true
		}
	}
	return "", false
}

// Custom returns the value of a tenant-configured claim by name.
func (t *DecodedToken) Custom(name string) (string, bool) {
	for _, c := range t.Claims {
		if cc, ok := c.(CustomClaim); ok && cc.Name == name {
			return cc.Value, true
		}
	}
	return "", false
}
