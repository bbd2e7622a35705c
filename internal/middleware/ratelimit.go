package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

const (
	// RateLimitWindow is the length of one counting window.
	RateLimitWindow = 60 * time.Second
	// RateLimitMaxRequests is the number of requests allowed per IP in the window.
	RateLimitMaxRequests = 120
	// RateLimitKeyPrefix is the Redis key prefix for request counters.
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs.
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked after exceeding the limit.
	BlockedIPDuration = 15 * time.Minute
)

// RateLimiter is a fixed-window per-IP limiter backed by Redis, shared by every instance.
// Redis failures let the request through.
type RateLimiter struct {
	rdb      redis.Cmdable
	window   time.Duration
	max      int64
	blockFor time.Duration
	log      *logger.Logger
}

func NewRateLimiter(rdb redis.Cmdable, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:      rdb,
		window:   RateLimitWindow,
		max:      RateLimitMaxRequests,
		blockFor: BlockedIPDuration,
		log:      log.Component("ratelimit"),
	}
}

// WithLimits overrides the window, request budget and block duration.
func (l *RateLimiter) WithLimits(window time.Duration, max int64, blockFor time.Duration) *RateLimiter {
	l.window, l.max, l.blockFor = window, max, blockFor
	return l
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFrom(r)
		ctx := r.Context()

		blocked, err := l.IsBlocked(ctx, ip)
		if err != nil {
			l.log.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if blocked {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.blockFor.Seconds())))
			response.JSON(w, http.StatusTooManyRequests, response.ErrorBody{
				Code:    "RATE_LIMITED",
				Message: "Your IP has been temporarily blocked due to excessive requests. Please try again later.",
			})
			return
		}

		key := RateLimitKeyPrefix + ip
		count, err := l.rdb.Incr(ctx, key).Result()
		if err == nil && count == 1 {
			err = l.rdb.Expire(ctx, key, l.window).Err()
		}
		if err != nil {
			l.log.Warn().Err(err).Msg("rate limit counter failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		if count > l.max {
			if err := l.rdb.Set(ctx, BlockedIPKeyPrefix+ip, "1", l.blockFor).Err(); err != nil {
				l.log.Warn().Err(err).Str("ip", ip).Msg("failed to block ip")
			} else {
				l.log.Warn().Str("ip", ip).Int64("count", count).Msg("ip blocked for exceeding rate limit")
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(l.blockFor.Seconds())))
			response.JSON(w, http.StatusTooManyRequests, response.ErrorBody{
				Code:    "RATE_LIMITED",
				Message: "Rate limit exceeded. Please try again later.",
			})
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.max, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(l.max-count, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(l.window).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}

// Unblock removes an IP from the blocked list.
func (l *RateLimiter) Unblock(ctx context.Context, ip string) error {
	return l.rdb.Del(ctx, BlockedIPKeyPrefix+ip).Err()
}

func (l *RateLimiter) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := l.rdb.Exists(ctx, BlockedIPKeyPrefix+ip).Result()
	return n > 0, err
}
