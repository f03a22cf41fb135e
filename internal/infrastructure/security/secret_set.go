package security

import (
	"errors"
	"fmt"
)

// SecretEntry pairs an HMAC signing secret with its key identifier.
type SecretEntry struct {
	KeyID  string
	Secret []byte
}

// SecretSet is an ordered set of signing secrets supporting zero-downtime
// key rotation: new tokens are signed with the current secret, while
// verification accepts any configured key ID.
type SecretSet struct {
	entries []SecretEntry
	current int
}

var (
	ErrNoSecrets      = errors.New("secret set is empty")
	ErrUnknownKeyID   = errors.New("unknown key id")
	ErrDuplicateKeyID = errors.New("duplicate key id")
)

// NewSecretSet builds a SecretSet from ordered entries. currentKeyID names
// the signing secret; it must be one of the entries.
func NewSecretSet(entries []SecretEntry, currentKeyID string) (*SecretSet, error) {
	if len(entries) == 0 {
		return nil, ErrNoSecrets
	}
	seen := make(map[string]struct{}, len(entries))
	current := -1
	for i, e := range entries {
		if e.KeyID == "" || len(e.Secret) == 0 {
			return nil, fmt.Errorf("secret entry %d: key id and secret are required", i)
		}
		if _, dup := seen[e.KeyID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKeyID, e.KeyID)
		}
		seen[e.KeyID] = struct{}{}
		if e.KeyID == currentKeyID {
			current = i
		}
	}
	if current < 0 {
		return nil, fmt.Errorf("%w: current key %q not in set", ErrUnknownKeyID, currentKeyID)
	}
	set := &SecretSet{entries: make([]SecretEntry, len(entries)), current: current}
	copy(set.entries, entries)
	return set, nil
}

// Current returns the entry new tokens are signed with.
func (s *SecretSet) Current() SecretEntry {
	return s.entries[s.current]
}

// Lookup resolves a key ID to its secret for verification.
func (s *SecretSet) Lookup(keyID string) ([]byte, bool) {
	for _, e := range s.entries {
		if e.KeyID == keyID {
			return e.Secret, true
		}
	}
	return nil, false
}

// KeyIDs returns the configured key identifiers in order.
func (s *SecretSet) KeyIDs() []string {
	ids := make([]string, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.KeyID
	}
	return ids
}
