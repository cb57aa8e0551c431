package outbox

import (
	"context"
	"log/slog"

	"github.com/salonbook/bookingengine/libs/db"
	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
)

// Dispatcher records committed booking events in the outbox. The row is
// written after the booking commit, so a crash between the two loses the
// notification but never the booking.
type Dispatcher struct {
	pool   *db.Pool
	repo   *Repository
	logger *slog.Logger
}

func NewDispatcher(pool *db.Pool, repo *Repository, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{pool: pool, repo: repo, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, evt events.Event) {
	payload, err := evt.Marshal()
	if err != nil {
		d.logger.ErrorContext(ctx, "outbox: marshal event failed", "event_id", evt.ID, "err", err)
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := d.repo.Insert(ctx, d.pool, FromEvent(evt, payload)); err != nil {
		d.logger.ErrorContext(ctx, "outbox: enqueue event failed",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"appointment_id", evt.Appointment.ID,
			"err", err,
		)
	}
}

func FromEvent(evt events.Event, payload []byte) Event {
	return Event{
		EventID:       evt.ID,
		AggregateType: "appointment",
		AggregateID:   evt.Appointment.ID,
		EventType:     string(evt.Type),
		Payload:       payload,
	}
}
