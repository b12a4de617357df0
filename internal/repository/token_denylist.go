package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist records revoked token ids until they would have expired anyway.
type TokenDenylist interface {
	// Revoke reports whether this call was the one that revoked tokenID.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type redisTokenDenylist struct {
	client *redis.Client
	prefix string
}

// NewTokenDenylist returns a Redis-backed denylist. A nil client yields a
// denylist that never reports revocations.
func NewTokenDenylist(client *redis.Client, prefix string) TokenDenylist {
	if prefix == "" {
		prefix = "edu:revoked"
	}
	return &redisTokenDenylist{client: client, prefix: prefix}
}

func (d *redisTokenDenylist) key(tokenID string) string {
	return d.prefix + ":" + tokenID
}

func (d *redisTokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if d.client == nil || tokenID == "" || ttl <= 0 {
		return true, nil
	}
	return d.client.SetNX(ctx, d.key(tokenID), "1", ttl).Result()
}

func (d *redisTokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if d.client == nil || tokenID == "" {
		return false, nil
	}
	err := d.client.Get(ctx, d.key(tokenID)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
