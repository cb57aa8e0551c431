package booking

import (
	"context"

	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	bookings    metric.Int64Counter
	conflicts   metric.Int64Counter
	transitions metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter("booking-service/booking")
	bookings, err := meter.Int64Counter("booking.requests",
		metric.WithDescription("Booking requests by outcome."))
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("booking.commit_conflicts",
		metric.WithDescription("Bookings that lost the commit-time slot check."))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("booking.status_transitions",
		metric.WithDescription("Status transitions by target status and outcome."))
	if err != nil {
		return nil, err
	}
	return &metrics{bookings: bookings, conflicts: conflicts, transitions: transitions}, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

func (m *metrics) booked(ctx context.Context, err error) {
	m.bookings.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func (m *metrics) conflict(ctx context.Context) {
	m.conflicts.Add(ctx, 1)
}

func (m *metrics) transitioned(ctx context.Context, to model.Status, err error) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(to)),
		attribute.String("outcome", outcome(err)),
	))
}
