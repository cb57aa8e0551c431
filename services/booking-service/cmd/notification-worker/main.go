package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/salonbook/bookingengine/libs/config"
	"github.com/salonbook/bookingengine/libs/db"
	"github.com/salonbook/bookingengine/libs/httpx"
	"github.com/salonbook/bookingengine/libs/kafkax"
	otelx "github.com/salonbook/bookingengine/libs/otel"
	"github.com/salonbook/bookingengine/libs/runtime"
	"github.com/salonbook/bookingengine/services/booking-service/internal/consumer"
	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
	"github.com/salonbook/bookingengine/services/booking-service/internal/inbox"
	"github.com/salonbook/bookingengine/services/booking-service/internal/notify"
	"github.com/salonbook/bookingengine/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// notification-worker consumes booking events relayed from the outbox and
// runs the same fan-out the booking service runs inline.
func main() {
	if err := config.LoadDotenv(config.List("DOTENV_FILES", ".env")...); err != nil {
		slog.Error("load dotenv", "err", err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "notification-worker")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	port, err := config.Port("PORT", "8085")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
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

	pool, err := db.Open(ctx, dbURL, db.Options{
		ApplicationName: service,
		MaxConns:        int32(config.Int("DB_MAX_CONNS", 10)),
		ConnectAttempts: config.Int("DB_CONNECT_ATTEMPTS", 5),
		TraceQueries:    config.Bool("DB_TRACE_QUERIES", false),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}

	var email notify.EmailSender = notify.NewLogSender(logger)
	if host := config.String("SMTP_HOST", ""); host != "" {
		email = notify.NewSMTPSender(host, config.String("SMTP_PORT", "1025"), config.String("SMTP_FROM", "no-reply@bookings.local"))
	}
	otelReporter, err := notify.NewOtelReporter()
	if err != nil {
		logger.Error("metrics setup failed", "err", err)
		os.Exit(1)
	}
	coord := notify.NewCoordinator(
		storage.NewPostgresDirectory(pool),
		notify.NewChannelNotifier(email, notify.NewPostgresInApp(pool)),
		notify.Reporters{otelReporter, notify.NewDeliveryLog(pool, logger)},
		logger,
		notify.CoordinatorConfig{DeliveryTimeout: config.Duration("NOTIFY_DELIVERY_TIMEOUT", 10*time.Second)},
	)

	topics := make([]string, 0, len(events.Topics))
	for _, t := range events.Topics {
		topics = append(topics, string(t))
	}
	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "kafka:9092"))
	claims := inbox.NewRepository(pool)
	eventConsumer := consumer.New(logger, claims, consumer.Config{
		Brokers:     brokers,
		GroupID:     config.String("KAFKA_GROUP_ID", service),
		Topics:      topics,
		MaxAttempts: config.Int("CONSUMER_MAX_ATTEMPTS", 5),
		MaxBackoff:  config.Duration("CONSUMER_MAX_BACKOFF", 30*time.Second),
	}, func(ctx context.Context, env kafkax.Envelope) error {
		return coord.HandlePayload(ctx, env.Payload)
	})
	go eventConsumer.Run(ctx)
	go pruneInbox(ctx, logger, claims, config.Duration("INBOX_RETENTION", 7*24*time.Hour))

	ready := runtime.NewReadiness(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux := runtime.NewBaseMux(ready)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(httpx.Chain(mux, httpx.WithRequestID, httpx.WithAccessLog(logger)), "notification-worker"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "topics", topics)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	ready.Drain()
	runtime.Shutdown(logger, config.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		runtime.Closer{Name: "http", Close: srv.Shutdown},
		runtime.Closer{Name: "db", Close: func(context.Context) error { pool.Close(); return nil }},
		runtime.Closer{Name: "otel", Close: otelShutdown},
	)
	logger.Info("stopped")
}

func pruneInbox(ctx context.Context, logger *slog.Logger, claims *inbox.Repository, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := claims.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Warn("inbox prune failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("inbox pruned", "rows", n)
			}
		}
	}
}
