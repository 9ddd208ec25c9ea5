package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter is a fixed-window counter in Redis, shared by all
// instances
type DistributedRateLimiter struct {
	redis  redis.Cmdable
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(client redis.Cmdable, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  client,
		config: config,
		prefix: prefix,
	}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow increments the window counter for key
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := rl.key(key)
	limit := rl.config.capacity()

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true, Limit: limit}, fmt.Errorf("redis error: %w", err)
	}
	// the first request of a window starts its clock
	if incr.Val() == 1 || ttl.Val() < 0 {
		if err := rl.redis.PExpire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return Result{Allowed: true, Limit: limit}, fmt.Errorf("redis error: %w", err)
		}
	}

	count := int(incr.Val())
	res := Result{Limit: limit, Allowed: count <= limit}
	if res.Allowed {
		res.Remaining = limit - count
		return res, nil
	}
	res.RetryAfter = ttl.Val()
	if res.RetryAfter <= 0 {
		res.RetryAfter = rl.config.WindowDuration
	}
	return res, nil
}

// TTL returns the time until the window for key resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.key(key)).Result()
}

// Reset clears the counter for key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// HealthCheck verifies Redis connectivity for rate limiting
func (rl *DistributedRateLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}
