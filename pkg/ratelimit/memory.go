package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryLimiter keeps counters in process memory. Each instance enforces its
// own window, so it is only exact for a single replica.
type MemoryLimiter struct {
	mu     sync.Mutex
	cache  *cache.Cache
	limit  int
	window time.Duration
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  cache.New(window, 2*window),
		limit:  limit,
		window: window,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Add only succeeds for a fresh window.
	_ = l.cache.Add(key, int64(0), l.window)
	count, err := l.cache.IncrementInt64(key, 1)
	if err != nil {
		return Result{}, err
	}

	ttl := l.window
	if _, expiresAt, found := l.cache.GetWithExpiration(key); found && !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
	}
	return result(count, l.limit, ttl), nil
}
