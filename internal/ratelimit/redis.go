package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window keys carry the unix second they belong to, so the TTL is pure
// garbage collection; a late EXPIRE cannot stretch a window.
const windowKeyTTL = 3 * time.Second

// RedisLimiter counts account requests in Redis so the one-second window is
// shared across replicas and survives restarts.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter. The prefix namespaces window
// keys when the Redis database is shared with other services.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Allow counts the request against the account's current one-second window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if l == nil || l.client == nil || key == "" || limit <= 0 {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	windowKey := l.windowKey(key, sec)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, windowKeyTTL)
	if _, errExec := pipe.Exec(ctx); errExec != nil {
		return Result{}, fmt.Errorf("rate limit redis: count window: %w", errExec)
	}

	reset := time.Unix(sec+1, 0).UTC()
	taken := int(count.Val())
	if taken > limit {
		return Result{Allowed: false, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: limit - taken, Reset: reset}, nil
}

func (l *RedisLimiter) windowKey(key string, sec int64) string {
	if l.prefix == "" {
		return fmt.Sprintf("%s:%d", key, sec)
	}
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, sec)
}
