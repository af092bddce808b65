// Package ratelimit provides Redis-based rate limiting for API endpoints
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a rate limit is exceeded
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter throttles HTTP requests per client IP using Redis counters.
type Limiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewLimiter creates a rate limiter allowing limit requests per window
// for each client IP. A nil Redis client disables limiting entirely.
func NewLimiter(redis *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{redis: redis, limit: limit, window: window}
}

// Allow reports whether the client identified by ip may make another
// request. Redis being unavailable fails open for availability.
func (l *Limiter) Allow(ctx context.Context, ip string) error {
	if l == nil || l.redis == nil || ip == "" {
		return nil
	}

	key := fmt.Sprintf("ratelimit:http:ip:%s", ip)

	// INCR atomically increments the counter; first hit sets the expiry.
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		// Fail-open on Redis errors to maintain availability
		return nil
	}
	if count == 1 {
		l.redis.Expire(ctx, key, l.window)
	}

	if int(count) > l.limit {
		return ErrRateLimited
	}
	return nil
}

// Remaining returns how many requests the client has left in the window.
func (l *Limiter) Remaining(ctx context.Context, ip string) (int, error) {
	if l == nil || l.redis == nil {
		return l.limit, nil
	}

	key := fmt.Sprintf("ratelimit:http:ip:%s", ip)
	count, err := l.redis.Get(ctx, key).Int()
	if err == redis.Nil {
		return l.limit, nil
	}
	if err != nil {
		return l.limit, err
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Middleware rejects over-limit requests with 429 before they reach the
// router's handlers.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if err := l.Allow(r.Context(), ip); err != nil {
			log.Printf("[RateLimit] IP %s exceeded request limit", ip)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Too many requests, please try again later."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client address, honoring X-Forwarded-For from a
// reverse proxy.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
