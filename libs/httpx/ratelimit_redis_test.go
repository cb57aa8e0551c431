package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterCarriesPreviousWindow(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	// Align to a window boundary far from the wall clock so keys never collide.
	now := time.UnixMilli(0).Add(1000 * time.Hour)
	rl := NewRedisRateLimiter(rdb, 4, time.Minute, "test:"+uuid.NewString())
	rl.now = func() time.Time { return now }
	h := rl.Middleware(slog.New(slog.NewTextHandler(io.Discard, nil)), false, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)
	send := func() *httptest.ResponseRecorder {
		rw := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		h.ServeHTTP(rw, req)
		return rw
	}

	for i := 0; i < 4; i++ {
		if rw := send(); rw.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rw.Code)
		}
	}
	if rw := send(); rw.Code != http.StatusTooManyRequests || rw.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", rw.Code)
	}

	// A quarter into the next window, 75% of the previous five still count.
	now = now.Add(time.Minute + 15*time.Second)
	if rw := send(); rw.Code != http.StatusTooManyRequests {
		t.Fatalf("expected previous window to weigh in, got %d", rw.Code)
	}
	now = now.Add(40 * time.Second)
	if rw := send(); rw.Code != http.StatusNoContent {
		t.Fatalf("expected budget to recover late in the window, got %d", rw.Code)
	}
}
