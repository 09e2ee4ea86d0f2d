package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request under key fits in the window.
// remaining and reset feed the X-RateLimit-* headers.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, reset time.Time, err error)
}

// InMemoryRateLimiter implements a fixed-window limiter local to one process
type InMemoryRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	count     int
	resetTime time.Time
}

// NewInMemoryRateLimiter creates a limiter and starts its cleanup loop.
// Call Stop to end the loop.
func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	limiter := &InMemoryRateLimiter{
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}

	go limiter.cleanup(time.Minute)

	return limiter
}

// Allow checks if a request is allowed for the given key
func (l *InMemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	b, exists := l.buckets[key]
	if !exists || now.After(b.resetTime) {
		b = &bucket{resetTime: now.Add(window)}
		l.buckets[key] = b
	}

	if b.count < limit {
		b.count++
		return true, limit - b.count, b.resetTime, nil
	}

	return false, 0, b.resetTime, nil
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *InMemoryRateLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// cleanup removes expired buckets periodically
func (l *InMemoryRateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, b := range l.buckets {
				if now.After(b.resetTime) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// fixedWindowScript increments the counter and starts the window on the
// first hit, returning the count and the window's remaining milliseconds.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// RedisRateLimiter shares fixed-window counters between instances
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRateLimiter creates a limiter on client. Keys are stored under
// prefix, "summer:ratelimit:" when empty.
func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "summer:ratelimit:"
	}
	return &RedisRateLimiter{client: client, prefix: prefix}
}

// Allow checks if a request is allowed for the given key
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return false, 0, time.Time{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	reset := time.Now().Add(ttl)

	if count > limit {
		return false, 0, reset, nil
	}
	return true, limit - count, reset, nil
}
