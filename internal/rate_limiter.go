package internal

import (
	"context"
	"sync"
	"time"

	"github.com/lychee-technology/tabula"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// counterStore is the part of *redis.Client the limiter needs.
type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

type rateLimiter struct {
	store       counterStore
	fallback    *slidingWindow
	maxRequests int
	window      time.Duration
	keyPrefix   string
	timeout     time.Duration
}

// NewRateLimiter limits requests per origin with a Redis fixed window. Without a
// store, or when the store fails, an in-process sliding window is used instead.
func NewRateLimiter(store counterStore, config tabula.RateLimitConfig) tabula.RateLimiter {
	return &rateLimiter{
		store:       store,
		fallback:    newSlidingWindow(config.MaxRequests, config.Window),
		maxRequests: config.MaxRequests,
		window:      config.Window,
		keyPrefix:   config.KeyPrefix,
		timeout:     200 * time.Millisecond,
	}
}

func (l *rateLimiter) Allow(ctx context.Context, origin string) (bool, error) {
	if l.store == nil {
		return l.allowLocal(ctx, origin), nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := l.keyPrefix + origin
	count, err := l.store.Incr(ctx, key).Result()
	if err != nil {
		zap.S().Warnw("rate limit store unavailable, using in-memory window", "origin", origin, "error", err)
		return l.allowLocal(ctx, origin), nil
	}
	// Set TTL on the first request of the window
	if count == 1 {
		l.expire(ctx, key)
	}

	if count > int64(l.maxRequests) {
		// a counter without TTL (failed EXPIRE) would block the origin forever
		if ttl, err := l.store.TTL(ctx, key).Result(); err == nil && ttl < 0 {
			l.expire(ctx, key)
		}
		EmitRateLimited(ctx, "redis")
		return false, nil
	}
	return true, nil
}

func (l *rateLimiter) expire(ctx context.Context, key string) {
	if err := l.store.Expire(ctx, key, l.window).Err(); err != nil {
		zap.S().Warnw("failed to set rate limit window", "key", key, "error", err)
	}
}

func (l *rateLimiter) allowLocal(ctx context.Context, origin string) bool {
	if !l.fallback.allow(origin) {
		EmitRateLimited(ctx, "memory")
		return false
	}
	return true
}

// slidingWindow is a lightweight in-memory per-key request window.
// Keys idle for a whole window are swept at most once per window.
type slidingWindow struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (w *slidingWindow) allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)
	if now.Sub(w.lastSweep) >= w.window {
		w.sweep(cutoff)
		w.lastSweep = now
	}
	hits := w.requests[key]
	// drop requests outside the window
	i := 0
	for ; i < len(hits); i++ {
		if hits[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		hits = append([]time.Time{}, hits[i:]...)
	}

	if len(hits) >= w.limit {
		w.requests[key] = hits
		return false
	}
	w.requests[key] = append(hits, now)
	return true
}

func (w *slidingWindow) sweep(cutoff time.Time) {
	for key, hits := range w.requests {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(w.requests, key)
		}
	}
}
