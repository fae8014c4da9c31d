package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewSlidingWindowLimiter(client, &Config{Requests: 2, Window: time.Minute, Prefix: "test"})
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }

	ctx := context.Background()
	ok, _ := limiter.Allow(ctx, "user-1")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "user-1")
	assert.True(t, ok)

	ok, wait := limiter.Allow(ctx, "user-1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	ok, _ = limiter.Allow(ctx, "user-2")
	assert.True(t, ok, "keys are independent")

	limiter.now = func() time.Time { return base.Add(61 * time.Second) }
	ok, _ = limiter.Allow(ctx, "user-1")
	assert.True(t, ok, "window slid past the first requests")
}

func TestSlidingWindowLimiter_NoRedis(t *testing.T) {
	limiter := NewSlidingWindowLimiter(nil, nil)
	ok, wait := limiter.Allow(context.Background(), "anyone")
	assert.True(t, ok)
	assert.Zero(t, wait)
}
