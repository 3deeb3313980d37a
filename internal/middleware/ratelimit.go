package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter counts requests per client IP in fixed redis windows. Without
// redis every request is allowed.
type RateLimiter struct {
	redis  *redis.Client
	logger *zap.Logger
}

func NewRateLimiter(redisClient *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{redis: redisClient, logger: logger.Named("ratelimit")}
}

// Limit allows at most limit requests per IP within window for the named endpoint.
func (rl *RateLimiter) Limit(name string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.redis == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := rateLimitPrefix + name + ":" + clientIP(r)
			count, err := rl.redis.Incr(r.Context(), key).Result()
			if err != nil {
				rl.logger.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				if err := rl.redis.Expire(r.Context(), key, window).Err(); err != nil {
					rl.logger.Warn("failed to set rate limit window", zap.String("key", key), zap.Error(err))
				}
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				rl.logger.Info("rate limit exceeded", zap.String("endpoint", name), zap.String("ip", clientIP(r)))
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeError(w, fmt.Sprintf("Too many requests, try again in %s", window), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
