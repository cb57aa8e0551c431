package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
)

// AsyncDispatcher runs the fan-out for each event on its own goroutine,
// detached from the request that produced it.
type AsyncDispatcher struct {
	coord   *Coordinator
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(coord *Coordinator, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncDispatcher{coord: coord, timeout: timeout}
}

func (d *AsyncDispatcher) Dispatch(ctx context.Context, evt events.Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		d.coord.Fanout(runCtx, evt)
	}()
}

// Close waits for in-flight fan-outs or until ctx ends.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandlePayload decodes a relayed event and fans it out. Only undecodable
// payloads return an error.
func (c *Coordinator) HandlePayload(ctx context.Context, payload []byte) error {
	evt, err := events.Unmarshal(payload)
	if err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}
	c.Fanout(ctx, evt)
	return nil
}
