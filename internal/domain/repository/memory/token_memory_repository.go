package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/realmforge/token-service/internal/domain/errors"
	"github.com/realmforge/token-service/internal/domain/models"
)

// TokenRepositoryMemory is a mutex-guarded in-memory implementation of
// repository.TokenRepository. It backs tests and local development; the
// mutex gives MarkUsedIfUnused the same at-most-one-winner guarantee the
// Postgres conditional UPDATE provides.
type TokenRepositoryMemory struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*models.PersistedToken
}

// NewTokenRepositoryMemory creates an empty in-memory store.
func NewTokenRepositoryMemory() *TokenRepositoryMemory {
	return &TokenRepositoryMemory{tokens: make(map[uuid.UUID]*models.PersistedToken)}
}

func (r *TokenRepositoryMemory) Store(_ context.Context, token *models.PersistedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tokens[token.ID]; exists {
		return domainErrors.ErrDuplicateValue
	}
	for _, existing := range r.tokens {
		if existing.TokenHash == token.TokenHash {
			return domainErrors.ErrDuplicateValue
		}
	}
	clone := *token
	r.tokens[token.ID] = &clone
	return nil
}

func (r *TokenRepositoryMemory) FindByID(_ context.Context, id uuid.UUID) (*models.PersistedToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	clone := *token
	return &clone, nil
}

func (r *TokenRepositoryMemory) MarkUsedIfUnused(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok {
		return false, domainErrors.ErrNotFound
	}
	if token.FirstUsedAt != nil {
		return false, nil
	}
	used := now
	token.FirstUsedAt = &used
	token.LastUsedAt = &used
	return true, nil
}

func (r *TokenRepositoryMemory) TouchLastUsed(_ context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok {
		return domainErrors.ErrNotFound
	}
	used := now
	token.LastUsedAt = &used
	return nil
}

func (r *TokenRepositoryMemory) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok {
		return domainErrors.ErrNotFound
	}
	token.Revoked = true
	return nil
}

func (r *TokenRepositoryMemory) RevokeFamily(_ context.Context, family uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var marked int64
	for _, token := range r.tokens {
		if token.Family() == family {
			token.Revoked = true
			marked++
		}
	}
	return marked, nil
}

func (r *TokenRepositoryMemory) RevokeAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var marked int64
	for _, token := range r.tokens {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			marked++
		}
	}
	return marked, nil
}

func (r *TokenRepositoryMemory) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[id]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(r.tokens, id)
	return nil
}

func (r *TokenRepositoryMemory) DeleteByHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, token := range r.tokens {
		if token.TokenHash == tokenHash {
			delete(r.tokens, id)
			return nil
		}
	}
	return domainErrors.ErrNotFound
}

func (r *TokenRepositoryMemory) DeleteExpired(_ context.Context, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	var removed int64
	for id, token := range r.tokens {
		if token.ExpiresAt.Before(cutoff) {
			delete(r.tokens, id)
			removed++
		}
	}
	return removed, nil
}
