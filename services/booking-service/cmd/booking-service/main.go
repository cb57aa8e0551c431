package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/salonbook/bookingengine/libs/config"
	"github.com/salonbook/bookingengine/libs/grpcx"
	"github.com/salonbook/bookingengine/libs/httpx"
	otelx "github.com/salonbook/bookingengine/libs/otel"
	"github.com/salonbook/bookingengine/libs/runtime"
	"github.com/salonbook/bookingengine/services/booking-service/internal/booking"
	"github.com/salonbook/bookingengine/services/booking-service/internal/clock"
	"github.com/salonbook/bookingengine/services/booking-service/internal/handlers"
	"github.com/salonbook/bookingengine/services/booking-service/internal/policy"
	"github.com/salonbook/bookingengine/services/booking-service/internal/scheduling"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotenv(config.List("DOTENV_FILES", ".env")...); err != nil {
		slog.Error("load dotenv", "err", err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	port, err := config.Port("PORT", "8083")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9083")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = func(context.Context) error { return nil }
	}

	backend, err := openDeps(ctx, logger)
	if err != nil {
		logger.Error("dependency setup failed", "err", err)
		os.Exit(1)
	}

	clk := clock.New()
	hours, err := scheduling.NewWorkingHours(clk, scheduling.HoursConfig{
		Open:            config.String("BUSINESS_OPEN", "09:00"),
		Close:           config.String("BUSINESS_CLOSE", "18:00"),
		SlotStepMinutes: config.Int("SLOT_STEP_MINUTES", 15),
		ClosedDays:      config.List("CLOSED_DAYS", ""),
	})
	if err != nil {
		logger.Error("invalid working hours", "err", err)
		os.Exit(1)
	}
	assign, err := policy.New(config.String("ASSIGNMENT_POLICY", policy.NameFirstAvailable))
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	dispatcher, err := newDispatcher(ctx, logger, backend)
	if err != nil {
		logger.Error("notification setup failed", "err", err)
		os.Exit(1)
	}

	engine, err := booking.NewEngine(backend.store, backend.dir, logger, booking.Options{
		Policy:     assign,
		Locker:     backend.locker,
		Dispatcher: dispatcher,
		Hours:      hours,
		Clock:      clk,
	})
	if err != nil {
		logger.Error("engine setup failed", "err", err)
		os.Exit(1)
	}

	ready := runtime.NewReadiness(backend.readyChecks...)
	mux := runtime.NewBaseMux(ready)
	handlers.NewBookingHandler(engine, logger).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		rateLimit(logger, backend),
		httpx.WithBodyLimit(int64(config.Int("HTTP_MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	grpcLis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc health server starting", "addr", grpcLis.Addr().String())
		if err := grpcSrv.Serve(grpcLis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	grpcSrv.SetServing(service, true)

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store", backend.kind, "policy", assign.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	ready.Drain()
	grpcSrv.SetServing(service, false)
	closers := []runtime.Closer{
		{Name: "http", Close: srv.Shutdown},
		{Name: "grpc", Close: func(context.Context) error { grpcSrv.GracefulStop(); return nil }},
	}
	if c, ok := dispatcher.(interface{ Close(context.Context) error }); ok {
		closers = append(closers, runtime.Closer{Name: "notifications", Close: c.Close})
	}
	closers = append(closers, backend.closers...)
	closers = append(closers, runtime.Closer{Name: "otel", Close: otelShutdown})
	runtime.Shutdown(logger, config.Duration("SHUTDOWN_TIMEOUT", 10*time.Second), closers...)
	logger.Info("stopped")
}

// rateLimit guards the anonymous booking endpoints. Redis makes the budget
// shared across replicas.
func rateLimit(logger *slog.Logger, d *deps) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 0)
	if limit <= 0 {
		return nil
	}
	scope := httpx.Scope{"/api/v1/public/"}
	if d.redis != nil {
		return httpx.NewRedisRateLimiter(d.redis, limit, time.Minute, "booking:rl").
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true), scope)
	}
	return httpx.NewRateLimiter(limit, config.Int("RATE_LIMIT_BURST", limit)).Middleware(scope)
}
