package locks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock shared by every booking-service instance. A lease
// expires after ttl even if the holder dies, so ttl must exceed the longest
// booking transaction.
type Redis struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

func NewRedis(rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Redis{rdb: rdb, ttl: ttl, retry: 25 * time.Millisecond, logger: logger}
}

// Acquire polls until the lease is taken or ctx ends.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(r.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the request context is already cancelled.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.rdb, []string{key}, token).Err(); err != nil {
				r.logger.Warn("redis lock release failed", "key", key, "err", err)
			}
		})
	}, nil
}
