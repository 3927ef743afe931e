package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const denylistKeyPrefix = "auth:denylist:"

// TokenDenylist records revoked admin token IDs until their natural
// expiry, so a logged-out token fails closed on every instance.
type TokenDenylist struct {
	client *redis.Client
	logger *zap.Logger
}

func NewTokenDenylist(client *redis.Client, logger *zap.Logger) *TokenDenylist {
	return &TokenDenylist{
		client: client,
		logger: logger.Named("TokenDenylist"),
	}
}

func (d *TokenDenylist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired; nothing to deny.
		return nil
	}

	if err := d.client.Set(ctx, denylistKeyPrefix+jti, 1, ttl).Err(); err != nil {
		d.logger.Error("Failed to denylist token", zap.String("jti", jti), zap.Error(err))
		return fmt.Errorf("redis error denylisting token: %w", err)
	}
	return nil
}

func (d *TokenDenylist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+jti).Result()
	if err != nil {
		d.logger.Error("Failed to check token denylist", zap.String("jti", jti), zap.Error(err))
		return false, fmt.Errorf("redis error checking token denylist: %w", err)
	}
	return n > 0, nil
}
