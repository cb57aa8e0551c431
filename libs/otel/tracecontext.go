package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Carrier is a W3C trace context detached from any context.Context, for work
// that is persisted now and resumed by another process later.
type Carrier struct {
	Traceparent string
	Tracestate  string
}

// Capture returns the trace context of ctx. It is empty when ctx has no span.
func Capture(ctx context.Context) Carrier {
	m := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, m)
	return Carrier{Traceparent: m.Get("traceparent"), Tracestate: m.Get("tracestate")}
}

func (c Carrier) Empty() bool {
	return c.Traceparent == ""
}

// Resume returns ctx with c as the remote parent span.
func (c Carrier) Resume(ctx context.Context) context.Context {
	if c.Empty() {
		return ctx
	}
	m := propagation.MapCarrier{"traceparent": c.Traceparent}
	if c.Tracestate != "" {
		m["tracestate"] = c.Tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, m)
}
