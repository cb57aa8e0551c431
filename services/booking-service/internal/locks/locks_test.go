package locks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalExcludesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, Key("biz-1", "2026-03-10"))
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected mutual exclusion, saw %d holders", maxSeen)
	}
	if l.held() != 0 {
		t.Fatalf("expected no leaked keys, got %d", l.held())
	}
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	r1, err := l.Acquire(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer r1()

	ctx2, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	r2, err := l.Acquire(ctx2, "b")
	if err != nil {
		t.Fatalf("different key blocked: %v", err)
	}
	r2()
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	l := NewLocal()
	release, _ := l.Acquire(context.Background(), "a")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	release()
	release()
	if l.held() != 0 {
		t.Fatalf("expected no leaked keys, got %d", l.held())
	}
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	key := Key("biz-test", time.Now().Format("2006-01-02T15:04:05.000000000"))
	l := NewRedis(rdb, 2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	release, err := l.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(waitCtx, key); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	release()

	again, err := l.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again()
}
