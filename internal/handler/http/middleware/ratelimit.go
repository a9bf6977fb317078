package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/handler/http/httpx"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimiter is a fixed-window counter per key kept in Redis, so every
// replica of the service shares the same budget.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	logger *zap.Logger
}

func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow counts one hit against key and reports whether it is within the
// limit, plus how long until the current window resets.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := rateLimitKeyPrefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, 0, fmt.Errorf("rate limit incr for %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return true, 0, fmt.Errorf("rate limit expire for %s: %w", key, err)
		}
	}
	if count <= int64(l.limit) {
		return true, 0, nil
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return false, l.window, nil
	}
	if ttl < 0 {
		// the expire after the first hit was lost; start a fresh window
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
		ttl = l.window
	}
	return false, ttl, nil
}

// Middleware limits each authenticated caller. Requests without a caller are
// passed through; Redis errors fail open.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := Caller(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		allowed, reset, err := l.Allow(r.Context(), strconv.FormatInt(caller.ID, 10))
		if err != nil {
			l.logger.Warn("Rate limiter unavailable, letting request through", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			l.logger.Warn("Rate limit exceeded", zap.Int64("caller_id", caller.ID))
			w.Header().Set("Retry-After", strconv.Itoa(int((reset+time.Second-1)/time.Second)))
			httpx.WriteError(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
