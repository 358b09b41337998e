package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lychee-technology/tabula"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounters struct {
	counts    map[string]int64
	expires   map[string]time.Duration
	err       error
	expireErr error
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounters) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounters) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounters) TTL(ctx context.Context, key string) *redis.DurationCmd {
	ttl, ok := f.expires[key]
	if !ok {
		ttl = -1
	}
	return redis.NewDurationResult(ttl, nil)
}

func TestRateLimiterRedisWindow(t *testing.T) {
	store := newFakeCounters()
	limiter := NewRateLimiter(store, tabula.DefaultConfig().RateLimit)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Minute, store.expires["ratelimit:10.0.0.1"])
}

func TestRateLimiterRepairsMissingTTL(t *testing.T) {
	store := newFakeCounters()
	store.expireErr = errors.New("i/o timeout")
	cfg := tabula.DefaultConfig().RateLimit
	cfg.MaxRequests = 1
	limiter := NewRateLimiter(store, cfg)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "origin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotContains(t, store.expires, "ratelimit:origin")

	store.expireErr = nil
	ok, err = limiter.Allow(ctx, "origin")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, store.expires["ratelimit:origin"])
}

func TestRateLimiterFallsBackToMemory(t *testing.T) {
	store := newFakeCounters()
	store.err = errors.New("dial tcp: connection refused")
	cfg := tabula.DefaultConfig().RateLimit
	cfg.MaxRequests = 2
	limiter := NewRateLimiter(store, cfg)
	ctx := context.Background()

	for range 2 {
		ok, err := limiter.Allow(ctx, "origin")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "origin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimiterWithoutStore(t *testing.T) {
	cfg := tabula.DefaultConfig().RateLimit
	cfg.MaxRequests = 1
	limiter := NewRateLimiter(nil, cfg)

	ok, _ := limiter.Allow(context.Background(), "a")
	assert.True(t, ok)
	ok, _ = limiter.Allow(context.Background(), "a")
	assert.False(t, ok)
}

func TestSlidingWindowExpires(t *testing.T) {
	w := newSlidingWindow(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	assert.True(t, w.allow("k"))
	assert.True(t, w.allow("k"))
	assert.False(t, w.allow("k"))

	now = now.Add(61 * time.Second)
	assert.True(t, w.allow("k"))
	assert.Len(t, w.requests["k"], 1)
}

func TestSlidingWindowEvictsIdleKeys(t *testing.T) {
	w := newSlidingWindow(5, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		assert.True(t, w.allow(key))
	}
	assert.Len(t, w.requests, 3)

	now = now.Add(2 * time.Minute)
	assert.True(t, w.allow("d"))
	assert.Len(t, w.requests, 1)
	assert.Contains(t, w.requests, "d")
}
