package otelx

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestDisabledSetupStillPropagates(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false, ServiceName: "test"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	carrier := Capture(ctx)
	if carrier.Empty() {
		t.Fatal("expected traceparent to be injected")
	}
	restored := trace.SpanContextFromContext(carrier.Resume(context.Background()))
	if restored.TraceID() != sc.TraceID() {
		t.Fatalf("trace id mismatch: %s != %s", restored.TraceID(), sc.TraceID())
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_PERCENT", "25")
	t.Setenv("OTEL_METRIC_INTERVAL", "10s")
	cfg := ConfigFromEnv("booking-service")
	if cfg.Enabled || cfg.SampleRatio != 0.25 || cfg.ServiceName != "booking-service" || cfg.MetricInterval != 10*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestEmptyCarrierLeavesContextAlone(t *testing.T) {
	ctx := context.Background()
	if got := Capture(ctx); !got.Empty() {
		t.Fatalf("expected empty carrier, got %+v", got)
	}
	if (Carrier{}).Resume(ctx) != ctx {
		t.Fatal("empty carrier should return ctx unchanged")
	}
}
