package outbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/salonbook/bookingengine/libs/kafkax"
	otelx "github.com/salonbook/bookingengine/libs/otel"
	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestFromEventKeysByAppointment(t *testing.T) {
	evt := events.New(events.TypeAppointmentConfirmed, model.Appointment{ID: "appt-1", BusinessID: "biz-1"}, time.Now())
	payload, err := evt.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	row := FromEvent(evt, payload)
	if row.EventID != evt.ID || row.AggregateID != "appt-1" || row.EventType != "booking.appointment.confirmed.v1" {
		t.Fatalf("unexpected outbox row: %+v", row)
	}
}

func TestToMessageCarriesEventHeaders(t *testing.T) {
	msg := ToMessage(context.Background(), Record{
		ID:          7,
		EventID:     "evt-1",
		AggregateID: "appt-1",
		EventType:   string(events.TypeBookingCreated),
		Payload:     []byte(`{}`),
	})
	if msg.Topic != string(events.TypeBookingCreated) || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected message routing: topic=%s key=%s", msg.Topic, msg.Key)
	}
	env := kafkax.Open(msg)
	if env.ID != "evt-1" || env.Type != string(events.TypeBookingCreated) {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestToMessageResumesStoredTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	const parent = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"

	msg := ToMessage(context.Background(), Record{
		EventID:     "evt-2",
		AggregateID: "appt-2",
		EventType:   string(events.TypeAppointmentCancelled),
		Payload:     []byte(`{}`),
		Trace:       otelx.Carrier{Traceparent: parent},
	})
	got := kafkax.Headers(msg.Headers).Get("traceparent")
	if !strings.Contains(got, "0af7651916cd43dd8448eb211c80319c") {
		t.Fatalf("trace id not propagated, traceparent=%q", got)
	}
}
