package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock is a SETNX lock with no release: a broadcast lock must outlive
// the send so the same review cannot be sent twice.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, "lock:"+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}
