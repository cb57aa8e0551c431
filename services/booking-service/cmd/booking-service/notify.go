package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/salonbook/bookingengine/libs/config"
	"github.com/salonbook/bookingengine/libs/kafkax"
	"github.com/salonbook/bookingengine/libs/runtime"
	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
	"github.com/salonbook/bookingengine/services/booking-service/internal/notify"
	"github.com/salonbook/bookingengine/services/booking-service/internal/outbox"
)

// newDispatcher picks how post-commit events leave the process.
//
//	NOTIFY_MODE=inline  fan out on a goroutine inside this service (default)
//	NOTIFY_MODE=outbox  write to the outbox and relay to Kafka; notification-worker delivers
//	NOTIFY_MODE=off     drop events
func newDispatcher(ctx context.Context, logger *slog.Logger, d *deps) (events.Dispatcher, error) {
	mode := strings.ToLower(config.String("NOTIFY_MODE", "inline"))
	switch mode {
	case "off":
		return events.Discard, nil
	case "inline":
		coord, err := newCoordinator(logger, d)
		if err != nil {
			return nil, err
		}
		return notify.NewAsyncDispatcher(coord, config.Duration("NOTIFY_FANOUT_TIMEOUT", 30*time.Second)), nil
	case "outbox":
		if d.pool == nil {
			return nil, fmt.Errorf("NOTIFY_MODE=outbox requires STORE=postgres")
		}
		brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
		repo := outbox.NewRepository(d.pool)
		pub := outbox.NewPublisher(d.pool, repo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
			Retention: config.Duration("OUTBOX_RETENTION", 7*24*time.Hour),
		})
		go pub.Run(ctx)
		d.readyChecks = append(d.readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		return outbox.NewDispatcher(d.pool, repo, logger), nil
	default:
		return nil, fmt.Errorf("NOTIFY_MODE must be inline, outbox or off (got %q)", mode)
	}
}

func newCoordinator(logger *slog.Logger, d *deps) (*notify.Coordinator, error) {
	var email notify.EmailSender = notify.NewLogSender(logger)
	if host := config.String("SMTP_HOST", ""); host != "" {
		port, err := config.Port("SMTP_PORT", "1025")
		if err != nil {
			return nil, err
		}
		email = notify.NewSMTPSender(host, port, config.String("SMTP_FROM", "no-reply@bookings.local"))
	}

	otelReporter, err := notify.NewOtelReporter()
	if err != nil {
		return nil, err
	}
	reporters := notify.Reporters{otelReporter}

	var inApp notify.InAppStore = notify.NewMemoryInApp()
	if d.pool != nil {
		inApp = notify.NewPostgresInApp(d.pool)
		reporters = append(reporters, notify.NewDeliveryLog(d.pool, logger))
	}

	return notify.NewCoordinator(d.dir, notify.NewChannelNotifier(email, inApp), reporters, logger, notify.CoordinatorConfig{
		DeliveryTimeout: config.Duration("NOTIFY_DELIVERY_TIMEOUT", 10*time.Second),
	}), nil
}
