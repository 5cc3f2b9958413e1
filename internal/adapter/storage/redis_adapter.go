package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "token:"

	// Labels are printed per physical unit and never re-enter
	// circulation; 30 days comfortably outlives one.
	defaultTokenTTL = 30 * 24 * time.Hour
)

// RedisAdapter implements port.TokenRegistry. SETNX gives the
// mark-once semantics: whoever sets the key first owns the consume.
type RedisAdapter struct {
	client   *redis.Client
	tokenTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, tokenTTL time.Duration) *RedisAdapter {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &RedisAdapter{client: client, tokenTTL: tokenTTL}
}

func (r *RedisAdapter) IsConsumed(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return n > 0, nil
}

func (r *RedisAdapter) MarkConsumed(ctx context.Context, token string) (bool, error) {
	ok, err := r.client.SetNX(ctx, tokenKeyPrefix+token, 1, r.tokenTTL).Result()
	if err != nil {
		return false, fmt.Errorf("mark token: %w", err)
	}
	return ok, nil
}
