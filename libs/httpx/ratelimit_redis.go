package httpx

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter approximates a sliding window from two fixed-window
// counters in Redis, so every replica draws on the same budget and a burst
// straddling a window edge is still caught.
type RedisRateLimiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix, now: time.Now}
}

// Middleware limits requests in scope by client address. With failOpen, a
// Redis error lets the request through; otherwise the client gets a 503.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool, scope Scope) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := scope.key(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			used, err := rl.hit(r.Context(), key)
			if err != nil {
				logger.WarnContext(r.Context(), "redis rate limiter error", "err", err)
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, http.StatusServiceUnavailable, "rate_limiter_unavailable", "rate limiter unavailable")
				return
			}
			remaining := max(rl.limit-int(math.Ceil(used)), 0)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if used > float64(rl.limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.untilNextWindow().Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RedisRateLimiter) bucket(key string, n int64) string {
	return rl.prefix + ":" + key + ":" + strconv.FormatInt(n, 10)
}

func (rl *RedisRateLimiter) untilNextWindow() time.Duration {
	w := rl.window.Milliseconds()
	return time.Duration(w-rl.now().UnixMilli()%w) * time.Millisecond
}

// hit counts this request and returns the weighted use: the current window's
// count plus the previous window's, scaled by how much of it still overlaps.
func (rl *RedisRateLimiter) hit(ctx context.Context, key string) (float64, error) {
	nowMs := rl.now().UnixMilli()
	w := rl.window.Milliseconds()
	n := nowMs / w
	elapsed := float64(nowMs%w) / float64(w)

	var cur *redis.IntCmd
	var prev *redis.StringCmd
	_, err := rl.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		cur = p.Incr(ctx, rl.bucket(key, n))
		p.PExpire(ctx, rl.bucket(key, n), 2*rl.window)
		prev = p.Get(ctx, rl.bucket(key, n-1))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}
	previous, err := prev.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return float64(cur.Val()) + float64(previous)*(1-elapsed), nil
}
