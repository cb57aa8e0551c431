package kafkax

import (
	"context"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{ID: "evt-1", Type: "booking.appointment.created.v1", Key: "appt-1", Payload: []byte(`{"a":1}`)}
	msg := env.Message(context.Background())
	if msg.Topic != env.Type || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected routing topic=%q key=%q", msg.Topic, msg.Key)
	}
	got := Open(msg)
	if got.ID != env.ID || got.Type != env.Type || string(got.Payload) != `{"a":1}` {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestOpenFallsBackToKeyAndTopic(t *testing.T) {
	got := Open(kafka.Message{Topic: "t", Key: []byte("k")})
	if got.ID != "k" || got.Type != "t" {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka:9092, ,kafka2:9092 kafka3:9092")
	if strings.Join(got, "|") != "kafka:9092|kafka2:9092|kafka3:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if len(SplitBrokers("")) != 0 {
		t.Fatal("empty input should give no brokers")
	}
}

func TestHeadersSetOverwrites(t *testing.T) {
	var h Headers
	h.Set("traceparent", "a")
	h.Set("traceparent", "b")
	if len(h) != 1 || h.Get("traceparent") != "b" {
		t.Fatalf("unexpected headers %+v", h)
	}
}

func TestTraceSurvivesTheWire(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	msg := Envelope{ID: "evt-1", Type: "t"}.Message(parent)
	got := trace.SpanContextFromContext(ContextFrom(context.Background(), msg))
	if got.TraceID() != traceID || !got.IsRemote() {
		t.Fatalf("unexpected span context %+v", got)
	}
}
