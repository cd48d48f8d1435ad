package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed-window counters across replicas.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := l.prefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.window)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = l.window
	}
	return result(incr.Val(), l.limit, remaining), nil
}

// FallbackLimiter uses primary and switches to secondary while primary errors.
type FallbackLimiter struct {
	primary   Limiter
	secondary Limiter
	onError   func(error)
}

func NewFallbackLimiter(primary, secondary Limiter, onError func(error)) *FallbackLimiter {
	return &FallbackLimiter{primary: primary, secondary: secondary, onError: onError}
}

func (l *FallbackLimiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := l.primary.Allow(ctx, key)
	if err == nil {
		return res, nil
	}
	if l.onError != nil {
		l.onError(err)
	}
	return l.secondary.Allow(ctx, key)
}
