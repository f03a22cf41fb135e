package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecretSet(t *testing.T) {
	entries := []SecretEntry{
		{KeyID: "2024-01", Secret: []byte("old-secret")},
		{KeyID: "2024-06", Secret: []byte("new-secret")},
	}

	set, err := NewSecretSet(entries, "2024-06")
	require.NoError(t, err)
	assert.Equal(t, "2024-06", set.Current().KeyID)
	assert.Equal(t, []string{"2024-01", "2024-06"}, set.KeyIDs())

	secret, ok := set.Lookup("2024-01")
	require.True(t, ok)
	assert.Equal(t, []byte("old-secret"), secret)

	_, ok = set.Lookup("2023-01")
	assert.False(t, ok)
}

func TestNewSecretSetRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		entries []SecretEntry
		current string
		wantErr error
	}{
		{
			name:    "empty set",
			entries: nil,
			current: "k1",
			wantErr: ErrNoSecrets,
		},
		{
			name: "duplicate key id",
			entries: []SecretEntry{
				{KeyID: "k1", Secret: []byte("a")},
				{KeyID: "k1", Secret: []byte("b")},
			},
			current: "k1",
			wantErr: ErrDuplicateKeyID,
		},
		{
			name: "current not in set",
			entries: []SecretEntry{
				{KeyID: "k1", Secret: []byte("a")},
			},
			current: "k2",
			wantErr: ErrUnknownKeyID,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSecretSet(tc.entries, tc.current)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNewSecretSetRejectsEmptyEntry(t *testing.T) {
	_, err := NewSecretSet([]SecretEntry{{KeyID: "", Secret: []byte("a")}}, "")
	assert.Error(t, err)
	_, err = NewSecretSet([]SecretEntry{{KeyID: "k1"}}, "k1")
	assert.Error(t, err)
}

func TestNewSecretSetCopiesEntries(t *testing.T) {
	entries := []SecretEntry{{KeyID: "k1", Secret: []byte("a")}}
	set, err := NewSecretSet(entries, "k1")
	require.NoError(t, err)

	entries[0].KeyID = "mutated"
	assert.Equal(t, "k1", set.Current().KeyID)
}
