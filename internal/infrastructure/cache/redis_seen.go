package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tenderwatch/internal/ports"
)

const keyPrefix = "tenderwatch:seen:"

// RedisSeenCache is the optional duplicate fast-path. Entries expire; the
// database stays the authority.
type RedisSeenCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.SeenCache = (*RedisSeenCache)(nil)

// NewRedisSeenCache connects to Redis and verifies the connection.
func NewRedisSeenCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisSeenCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisSeenCache{client: client, ttl: ttl}, nil
}

// Seen reports whether the key was marked before.
func (c *RedisSeenCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records the key with the configured TTL.
func (c *RedisSeenCache) MarkSeen(ctx context.Context, key string) error {
	if err := c.client.Set(ctx, keyPrefix+key, "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *RedisSeenCache) Close() error {
	return c.client.Close()
}
