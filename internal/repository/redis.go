package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const suppressedPrefix = "push:endpoint:suppressed:"

// RedisRepository remembers endpoints the push service reported as gone so a
// queued event does not hit them again before the row is gone everywhere.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// IsSuppressed returns true if the endpoint is currently marked as gone.
func (r *RedisRepository) IsSuppressed(ctx context.Context, endpoint string) (bool, error) {
	exists, err := r.client.Exists(ctx, suppressedPrefix+endpoint).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// Suppress marks endpoint as gone for ttl, or the repository default when ttl <= 0.
func (r *RedisRepository) Suppress(ctx context.Context, endpoint string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	return r.client.SetEX(ctx, suppressedPrefix+endpoint, "1", ttl).Err()
}

// Release clears the mark, used when a client subscribes the same endpoint again.
func (r *RedisRepository) Release(ctx context.Context, endpoint string) error {
	return r.client.Del(ctx, suppressedPrefix+endpoint).Err()
}
