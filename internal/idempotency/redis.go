package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMarker implements Marker with SET key 1 NX PX ttl.
type RedisMarker struct {
	rdb redis.Cmdable
}

func NewRedisMarker(rdb redis.Cmdable) *RedisMarker {
	return &RedisMarker{rdb: rdb}
}

func (m *RedisMarker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

func (m *RedisMarker) Release(ctx context.Context, key string) error {
	if err := m.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
