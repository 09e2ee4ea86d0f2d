package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gravelight-studio/summer/annotations"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "generated ids are UUIDs")
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-42")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "upstream-42", seen)
	assert.Equal(t, "upstream-42", w.Header().Get(RequestIDHeader))
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestAccessLogMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestIDMiddleware(AccessLogMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/pot", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/pot", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["bytes"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := TimeoutMiddleware(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestInMemoryRateLimiter(t *testing.T) {
	limiter := NewInMemoryRateLimiter()
	defer limiter.Stop()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 1-i, remaining)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.True(t, reset.After(time.Now()))

	allowed, _, _, err = limiter.Allow(ctx, "other", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "keys are independent")

	limiter.Stop()
}

func TestInMemoryRateLimiter_WindowResets(t *testing.T) {
	limiter := NewInMemoryRateLimiter()
	defer limiter.Stop()
	ctx := context.Background()

	allowed, _, _, _ := limiter.Allow(ctx, "k", 1, 20*time.Millisecond)
	assert.True(t, allowed)
	allowed, _, _, _ = limiter.Allow(ctx, "k", 1, 20*time.Millisecond)
	assert.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, _, _, _ = limiter.Allow(ctx, "k", 1, 20*time.Millisecond)
	assert.True(t, allowed)
}

// failingLimiter reports an unreachable backend
type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, assert.AnError
}

func TestRateLimitMiddleware_LimiterFailureLetsRequestThrough(t *testing.T) {
	config := &annotations.RateLimitConfig{Count: 1, Period: time.Minute}
	h := RateLimitMiddleware(config, failingLimiter{}, "test.Route", zap.NewNop())(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitMiddleware_KeysByRoute(t *testing.T) {
	limiter := NewInMemoryRateLimiter()
	defer limiter.Stop()
	config := &annotations.RateLimitConfig{Count: 1, Period: time.Minute}

	a := RateLimitMiddleware(config, limiter, "a.Route", zap.NewNop())(okHandler())
	b := RateLimitMiddleware(config, limiter, "b.Route", zap.NewNop())(okHandler())

	for _, h := range []http.Handler{a, b} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	a.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, w.Body.String())
}

func TestRedisRateLimiter(t *testing.T) {
	addr := os.Getenv("SUMMER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SUMMER_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	prefix := "summer:test:" + uuid.NewString() + ":"
	limiter := NewRedisRateLimiter(client, prefix)

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, _, reset, err := limiter.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.WithinDuration(t, time.Now().Add(time.Minute), reset, 5*time.Second)

	require.NoError(t, client.Del(ctx, prefix+"k").Err())
}

func TestBuildMiddlewareChain(t *testing.T) {
	limiter := NewInMemoryRateLimiter()
	defer limiter.Stop()

	d := &Descriptor{
		Controller: "c.C", Action: "A",
		Auth:      annotations.AuthRequired,
		RateLimit: &annotations.RateLimitConfig{Count: 1, Period: time.Minute},
		CORS:      &annotations.CORSConfig{AllowedOrigins: []string{"*"}},
		Timeout:   time.Second,
	}
	assert.Len(t, buildMiddlewareChain(d, limiter, zap.NewNop()), 4)
	assert.Len(t, buildMiddlewareChain(d, nil, zap.NewNop()), 3, "no limiter, no rate limiting")
	assert.Empty(t, buildMiddlewareChain(&Descriptor{Auth: annotations.AuthNone}, limiter, zap.NewNop()))
}
