package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so the first middleware sees the request first. Nil entries
// are skipped, which lets callers switch optional layers off inline.
func Chain(h http.Handler, m ...Middleware) http.Handler {
	wrapped := h
	for i := range m {
		if mw := m[len(m)-1-i]; mw != nil {
			wrapped = mw(wrapped)
		}
	}
	return wrapped
}

// WithBodyLimit caps request bodies. A declared Content-Length above the cap
// is refused up front; chunked bodies fail on read inside the handler.
func WithBodyLimit(limitBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limitBytes {
				WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large",
					fmt.Sprintf("request body exceeds %d bytes", limitBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			next.ServeHTTP(w, r)
		})
	}
}

const timeoutBody = `{"error":"timeout","message":"request timed out"}`

// WithTimeout bounds handler run time; the handler's context is cancelled
// when d elapses and the client gets a JSON 503.
func WithTimeout(d time.Duration) Middleware {
	if d <= 0 {
		return nil
	}
	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, d, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handler headers replace this on success; it only survives on timeout.
			w.Header().Set("Content-Type", "application/json")
			th.ServeHTTP(w, r)
		})
	}
}

// WithRecover turns a handler panic into a 500. http.ErrAbortHandler is
// re-raised so net/http can drop the connection quietly.
func WithRecover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.LogAttrs(r.Context(), slog.LevelError, "handler panic",
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				WriteError(w, http.StatusInternalServerError, "internal", "internal error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
