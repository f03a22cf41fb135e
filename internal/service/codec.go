package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/realmforge/token-service/internal/domain/models"
	"github.com/realmforge/token-service/internal/infrastructure/security"
)

var (
	// ErrMalformedToken is returned when the wire format or signature of a
	// presented token is broken.
	ErrMalformedToken = errors.New("malformed token")
	// ErrUnknownSigningKey is returned when the token's key id matches no
	// configured secret.
	ErrUnknownSigningKey = errors.New("unknown signing key")
)

const headerKeyID = "kid"

// TokenCodec serializes, signs, parses and signature-checks the wire token
// format: three dot-separated base64url segments, HMAC-SHA-512 over
// header+payload, with the signing secret selected by key id so secrets can
// rotate without invalidating outstanding tokens.
//
// The codec does no claims validation; that belongs to ClaimsValidator.
type TokenCodec struct {
	realm   models.Realm
	secrets *security.SecretSet
	parser  *jwt.Parser
}

// NewTokenCodec builds a codec for one realm's secret set.
func NewTokenCodec(realm models.Realm, secrets *security.SecretSet) *TokenCodec {
	return &TokenCodec{
		realm:   realm,
		secrets: secrets,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Encode signs the given claims with the current secret and returns the
// compact wire form.
func (c *TokenCodec) Encode(claims []models.Claim) (string, error) {
	payload := jwt.MapClaims{}
	for _, claim := range claims {
		switch v := claim.(type) {
		case models.SubjectClaim:
			payload[models.ClaimKeySubject] = v.UserID.String()
		case models.TokenIDClaim:
			payload[models.ClaimKeyTokenID] = v.ID.String()
		case models.TokenTypeClaim:
			payload[models.ClaimKeyTokenType] = string(v.Type)
		case models.RolesClaim:
			payload[models.ClaimKeyRoles] = v.Roles
		case models.RealmClaim:
			payload[models.ClaimKeyRealm] = v.Realm
		case models.IssuerClaim:
			payload[models.ClaimKeyIssuer] = v.Issuer
		case models.AudienceClaim:
			payload[models.ClaimKeyAudience] = v.Audience
		case models.ExpiresAtClaim:
			payload[models.ClaimKeyExpiresAt] = v.ExpiresAt.Unix()
		case models.CustomClaim:
			payload[v.Name] = v.Value
		case models.UnknownClaim:
			payload[v.Name] = v.Raw
		default:
			return "", fmt.Errorf("unsupported claim %T", claim)
		}
	}

	entry := c.secrets.Current()
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, payload)
	token.Header[headerKeyID] = entry.KeyID
	signed, err := token.SignedString(entry.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode parses a raw token, checks its signature against the secret named
// by the header key id, and maps the payload onto the claim union. Fields
// that do not parse into a known variant come back as UnknownClaim rather
// than being dropped.
func (c *TokenCodec) Decode(raw string) (*models.DecodedToken, error) {
	parsed, err := c.parser.Parse(raw, c.keyFunc)
	if err != nil {
		if errors.Is(err, ErrUnknownSigningKey) {
			return nil, ErrUnknownSigningKey
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformedToken
	}
	return &models.DecodedToken{Raw: raw, Claims: c.mapClaims(payload)}, nil
}

func (c *TokenCodec) keyFunc(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header[headerKeyID].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", ErrUnknownSigningKey)
	}
	secret, ok := c.secrets.Lookup(kid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSigningKey, kid)
	}
	return secret, nil
}

// mapClaims converts a decoded payload into the ordered claim list. Known
// keys come first in a fixed order, the remainder in key order so the
// result is deterministic.
func (c *TokenCodec) mapClaims(payload jwt.MapClaims) []models.Claim {
	claims := make([]models.Claim, 0, len(payload))
	consumed := make(map[string]struct{}, len(payload))
	take := func(key string) (interface{}, bool) {
		v, ok := payload[key]
		if ok {
			consumed[key] = struct{}{}
		}
		return v, ok
	}

	if v, ok := take(models.ClaimKeyIssuer); ok {
		if s, ok := v.(string); ok {
			claims = append(claims, models.IssuerClaim{Issuer: s})
		} else {
			claims = append(claims, models.UnknownClaim{Name: models.ClaimKeyIssuer, Raw: v})
		}
	}
	if v, ok := take(models.ClaimKeyAudience); ok {
		if s, ok := v.(string); ok {
			claims = append(claims, models.AudienceClaim{Audience: s})
		} else {
			claims = append(claims, models.UnknownClaim{Name: models.ClaimKeyAudience, Raw: v})
		}
	}
	if v, ok := take(models.ClaimKeySubject); ok {
		if id, ok := parseUUIDClaim(v); ok {
			claims = append(claims, models.SubjectClaim{UserID: id})
		} else {
			claims = append(claims, models.UnknownClaim{Name: models.ClaimKeySubject, Raw: v})
		}
	}
	if v, ok := take(models.ClaimKeyTokenID); ok {
		if id, ok := parseUUIDClaim(v); ok {
			claims = append(claims, models.TokenIDClaim{ID: id})
		} else {
			claims = append(claims, models.UnknownClaim{Name: models.ClaimKeyTokenID, Raw: v})
		}
	}
	if v, ok := take(models.ClaimKeyTokenType); ok {
		if s, ok := v.(string); ok {
			claims = append(claims, models.TokenTypeClaim{Type: models.TokenType(s)})
		} else {
			claims = append(claims, models.UnknownClaim{Name: models.ClaimKeyTokenType, Raw: v})
		}
	}
	if v, ok := take(models.ClaimKeyRoles); ok {
		if roles, ok := parseStringSlice(v); ok {
			claims = append(claims, models.RolesClaim{Roles: roles})
		} else {
			claims = append(claims, models.UnknownClaim{Name: models.ClaimKeyRoles, Raw: v})
		}
	}
	if v, ok := take(models.ClaimKeyRealm); ok {
		if s, ok := v.(string); ok {
			claims = append(claims, models.RealmClaim{Realm: s})
		} else {
			claims = append(claims, models.UnknownClaim{Name: models.ClaimKeyRealm, Raw: v})
		}
	}
	if v, ok := take(models.ClaimKeyExpiresAt); ok {
		if ts, ok := parseUnixClaim(v); ok {
			claims = append(claims, models.ExpiresAtClaim{ExpiresAt: ts})
		} else {
			claims = append(claims, models.UnknownClaim{Name: models.ClaimKeyExpiresAt, Raw: v})
		}
	}

	rest := make([]string, 0, len(payload))
	for key := range payload {
		if _, done := consumed[key]; done {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		v := payload[key]
		if _, isCustom := c.realm.CustomClaims[key]; isCustom {
			if s, ok := v.(string); ok {
				claims = append(claims, models.CustomClaim{Name: key, Value: s})
				continue
			}
		}
		claims = append(claims, models.UnknownClaim{Name: key, Raw: v})
	}
	return claims
}

func parseUUIDClaim(v interface{}) (uuid.UUID, bool) {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parseStringSlice(v interface{}) ([]string, bool) {
	switch vals := v.(type) {
	case []string:
		out := make([]string, len(vals))
		copy(out, vals)
		return out, true
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func parseUnixClaim(v interface{}) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), true
	case int64:
		return time.Unix(n, 0), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(i, 0), true
	default:
		return time.Time{}, false
	}
}
