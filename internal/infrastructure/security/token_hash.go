package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken digests a raw token value with SHA-256 and returns the hex
// encoding. Only this digest is ever persisted; the raw token is not.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokenHashMatches compares a raw token against a stored digest in
// constant time.
func TokenHashMatches(raw, storedHash string) bool {
	computed := HashToken(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
