package runtime

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Closer is a named shutdown step.
type Closer struct {
	Name  string
	Close func(context.Context) error
}

// Shutdown runs closers in order, sharing one deadline. Errors are logged, not returned.
func Shutdown(logger *slog.Logger, timeout time.Duration, closers ...Closer) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, c := range closers {
		if c.Close == nil {
			continue
		}
		if err := c.Close(ctx); err != nil {
			logger.Error("shutdown step failed", "step", c.Name, "err", err)
		}
	}
}
