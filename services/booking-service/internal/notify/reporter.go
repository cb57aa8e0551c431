package notify

import (
	"context"
	"log/slog"

	"github.com/salonbook/bookingengine/libs/db"
	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Reporter is the observability collaborator that sees every delivery outcome.
type Reporter interface {
	Report(ctx context.Context, evt events.Event, out Outcome)
}

type NopReporter struct{}

func (NopReporter) Report(context.Context, events.Event, Outcome) {}

// Reporters fans one outcome out to several reporters.
type Reporters []Reporter

func (rs Reporters) Report(ctx context.Context, evt events.Event, out Outcome) {
	for _, r := range rs {
		r.Report(ctx, evt, out)
	}
}

// OtelReporter records a span event per delivery and counts outcomes.
type OtelReporter struct {
	deliveries metric.Int64Counter
}

func NewOtelReporter() (*OtelReporter, error) {
	counter, err := otel.Meter("booking-service/notify").Int64Counter(
		"notification.deliveries",
		metric.WithDescription("Notification deliveries by channel, template and status."),
	)
	if err != nil {
		return nil, err
	}
	return &OtelReporter{deliveries: counter}, nil
}

func (r *OtelReporter) Report(ctx context.Context, evt events.Event, out Outcome) {
	attrs := []attribute.KeyValue{
		attribute.String("notification.channel", string(out.Delivery.Channel)),
		attribute.String("notification.role", string(out.Delivery.Role)),
		attribute.String("notification.template", out.Delivery.Template),
		attribute.String("notification.status", out.Status()),
	}
	r.deliveries.Add(ctx, 1, metric.WithAttributes(attrs...))

	span := trace.SpanFromContext(ctx)
	span.AddEvent("notification.delivery", trace.WithAttributes(append(attrs,
		attribute.String("event.id", evt.ID),
		attribute.String("appointment.id", evt.Appointment.ID),
	)...))
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "notification delivery failed")
	}
}

// DeliveryLog persists every outcome to notification_deliveries.
type DeliveryLog struct {
	pool   *db.Pool
	logger *slog.Logger
}

func NewDeliveryLog(pool *db.Pool, logger *slog.Logger) *DeliveryLog {
	return &DeliveryLog{pool: pool, logger: logger}
}

func (l *DeliveryLog) Report(ctx context.Context, evt events.Event, out Outcome) {
	var errText *string
	if out.Err != nil {
		s := out.Err.Error()
		errText = &s
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (appointment_id, business_id, event_type, channel, recipient, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evt.Appointment.ID, evt.Appointment.BusinessID, string(evt.Type), string(out.Delivery.Channel),
		out.Delivery.Recipient, out.Status(), errText)
	if err != nil {
		l.logger.WarnContext(ctx, "failed to persist notification delivery", "err", err, "appointment_id", evt.Appointment.ID)
	}
}
