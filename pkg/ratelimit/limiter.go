package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func result(count int64, limit int, ttl time.Duration) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: count <= int64(limit), Limit: limit, Remaining: remaining}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}
