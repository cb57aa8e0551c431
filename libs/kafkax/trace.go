package kafkax

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Headers lets the OTel propagator read and write kafka-go headers directly.
type Headers []kafka.Header

var _ propagation.TextMapCarrier = (*Headers)(nil)

func (h Headers) Get(key string) string {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Key == key {
			return string(h[i].Value)
		}
	}
	return ""
}

func (h *Headers) Set(key, value string) {
	for i, hdr := range *h {
		if hdr.Key == key {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

func (h Headers) Keys() []string {
	keys := make([]string, len(h))
	for i, hdr := range h {
		keys[i] = hdr.Key
	}
	return keys
}

// InjectTrace writes the span context of ctx into msg's headers.
func InjectTrace(ctx context.Context, msg *kafka.Message) {
	h := Headers(msg.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &h)
	msg.Headers = h
}

// ContextFrom returns ctx carrying the remote span context found on msg, if any.
func ContextFrom(ctx context.Context, msg kafka.Message) context.Context {
	h := Headers(msg.Headers)
	return otel.GetTextMapPropagator().Extract(ctx, &h)
}
