// Package ratelimit limits how often a caller may start expensive work.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter configuration.
type Config struct {
	Requests int           // requests allowed per window
	Window   time.Duration // window size
	Prefix   string        // redis key prefix
}

// DefaultConfig allows 10 classify requests per minute per user.
func DefaultConfig() *Config {
	return &Config{
		Requests: 10,
		Window:   time.Minute,
		Prefix:   "ratelimit:classify",
	}
}

// slidingWindow keeps one sorted-set member per accepted request. It returns
// 1 when the request is accepted and the negative wait in ms otherwise.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest > 0 then
		return -(tonumber(oldest[2]) + window_ms - now)
	end
	return 0
`)

// SlidingWindowLimiter implements sliding window rate limiting using Redis.
type SlidingWindowLimiter struct {
	redis  *redis.Client
	config *Config
	now    func() time.Time
	seq    atomic.Uint64
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(redisClient *redis.Client, config *Config) *SlidingWindowLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &SlidingWindowLimiter{redis: redisClient, config: config, now: time.Now}
}

// Allow reports whether the request for key may proceed, and how long to
// wait if it may not. Without Redis, or when Redis fails, requests pass.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l == nil || l.redis == nil {
		return true, 0
	}

	now := l.now()
	windowStart := now.Add(-l.config.Window)
	redisKey := fmt.Sprintf("%s:%s", l.config.Prefix, key)

	result, err := slidingWindow.Run(ctx, l.redis, []string{redisKey},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		l.config.Requests,
		l.config.Window.Milliseconds(),
		fmt.Sprintf("%d-%d", now.UnixNano(), l.seq.Add(1)),
	).Int64()
	if err != nil {
		return true, 0
	}

	if result == 1 {
		return true, 0
	}
	if result < 0 {
		return false, time.Duration(-result) * time.Millisecond
	}
	return false, l.config.Window
}
