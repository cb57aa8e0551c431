package otelx

import (
	"context"
	"errors"
	"time"

	"github.com/salonbook/bookingengine/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Config struct {
	Enabled        bool
	MetricsEnabled bool
	ServiceName    string
	OTLPEndpoint   string // host:port, e.g. otel-collector:4317
	SampleRatio    float64
	MetricInterval time.Duration
}

func ConfigFromEnv(serviceName string) Config {
	ratio := 1.0
	if v := config.Int("OTEL_SAMPLING_PERCENT", 100); v >= 0 && v <= 100 {
		ratio = float64(v) / 100
	}
	return Config{
		Enabled:        config.Bool("OTEL_ENABLED", true),
		MetricsEnabled: config.Bool("OTEL_METRICS_ENABLED", true),
		ServiceName:    serviceName,
		OTLPEndpoint:   config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		SampleRatio:    ratio,
		MetricInterval: config.Duration("OTEL_METRIC_INTERVAL", 30*time.Second),
	}
}

// Setup installs the global propagator and, when enabled, OTLP trace and
// metric providers. The returned func flushes and stops both.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	shutdowns := []func(context.Context) error{tp.Shutdown}

	if cfg.MetricsEnabled {
		metricExp, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithTimeout(3*time.Second),
		)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, err
		}
		interval := cfg.MetricInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(interval))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}, nil
}
