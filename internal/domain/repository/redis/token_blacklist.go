package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistKeyPrefix = "token:blacklist:"

// TokenBlacklist keeps revoked access-token IDs in Redis until their
// natural expiry. Access tokens carry no persisted record, so revocation
// needs this side channel.
type TokenBlacklist struct {
	client *redis.Client
	logger *zap.Logger
}

// NewTokenBlacklist creates a new TokenBlacklist.
func NewTokenBlacklist(client *redis.Client, logger *zap.Logger) *TokenBlacklist {
	return &TokenBlacklist{client: client, logger: logger}
}

// Add blacklists a token ID for the remaining token lifetime.
func (b *TokenBlacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	key := blacklistKeyPrefix + tokenID
	if err := b.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		b.logger.Error("failed to blacklist token",
			zap.String("token_id", tokenID), zap.Error(err))
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// Contains reports whether a token ID has been blacklisted.
func (b *TokenBlacklist) Contains(ctx context.Context, tokenID string) (bool, error) {
	key := blacklistKeyPrefix + tokenID
	err := b.client.Get(ctx, key).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return true, nil
}
