package router

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gravelight-studio/summer/annotations"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// CORSMiddleware creates CORS middleware for the given origins
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", RequestIDHeader},
		ExposedHeaders:   []string{"Link", RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// AuthMiddleware enforces the presence of a Bearer token
func AuthMiddleware(authType annotations.AuthType, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			switch authType {
			case annotations.AuthRequired:
				if authHeader == "" {
					logger.Warn("Missing authorization header", zap.String("path", r.URL.Path))
					writeError(w, http.StatusUnauthorized, "Authorization required")
					return
				}
				if !strings.HasPrefix(authHeader, "Bearer ") || strings.TrimSpace(authHeader[7:]) == "" {
					logger.Warn("Invalid authorization format", zap.String("path", r.URL.Path))
					writeError(w, http.StatusUnauthorized, "Invalid authorization format")
					return
				}
			case annotations.AuthOptional:
				if authHeader != "" {
					logger.Debug("Optional auth token present", zap.String("path", r.URL.Path))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware limits requests per client address on one route.
// A limiter failure lets the request through.
func RateLimitMiddleware(config *annotations.RateLimitConfig, limiter Limiter, route string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + ":" + r.RemoteAddr

			allowed, remaining, resetTime, err := limiter.Allow(r.Context(), key, config.Count, config.Period)
			if err != nil {
				logger.Error("Rate limiter unavailable", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Count))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				logger.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.String("path", r.URL.Path))

				retry := int(time.Until(resetTime).Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TimeoutMiddleware puts a deadline on the request context. The action
// runs on the serving goroutine, so it must watch ctx.Done() itself.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an incoming X-Request-ID or generates one
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// GetRequestID returns the id set by RequestIDMiddleware, or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// AccessLogMiddleware logs one line per request
func AccessLogMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", GetRequestID(r.Context())))
		})
	}
}

// buildMiddlewareChain creates the per-route chain from a descriptor's policy
func buildMiddlewareChain(d *Descriptor, limiter Limiter, logger *zap.Logger) []func(http.Handler) http.Handler {
	var middlewares []func(http.Handler) http.Handler

	if d.CORS != nil {
		middlewares = append(middlewares, CORSMiddleware(d.CORS.AllowedOrigins))
	}

	if d.Auth != "" && d.Auth != annotations.AuthNone {
		middlewares = append(middlewares, AuthMiddleware(d.Auth, logger))
	}

	if d.RateLimit != nil && limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(d.RateLimit, limiter, d.Name(), logger))
	}

	if d.Timeout > 0 {
		middlewares = append(middlewares, TimeoutMiddleware(d.Timeout))
	}

	return middlewares
}

// applyMiddleware applies middleware chain to handler
func applyMiddleware(handler http.Handler, middlewares []func(http.Handler) http.Handler) http.Handler {
	// Apply middleware in reverse order (last middleware wraps first)
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
