// Package consumer reads booking events from Kafka and hands each one to a
// handler at most once per event id.
package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/salonbook/bookingengine/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, env kafkax.Envelope) error

type Inbox interface {
	Claim(ctx context.Context, eventID, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
	// MaxAttempts bounds handler retries for one event before it is dropped.
	MaxAttempts int
	// MaxBackoff caps the pause between fetch or handler retries.
	MaxBackoff time.Duration
}

type Consumer struct {
	reader      reader
	logger      *slog.Logger
	inbox       Inbox
	handler     Handler
	tracer      trace.Tracer
	maxAttempts int
	maxBackoff  time.Duration
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, logger, inbox, handler, cfg)
}

func newConsumer(r reader, logger *slog.Logger, inbox Inbox, handler Handler, cfg Config) *Consumer {
	return &Consumer{
		reader:      r,
		logger:      logger,
		inbox:       inbox,
		handler:     handler,
		tracer:      otel.Tracer("booking-service/consumer"),
		maxAttempts: max(cfg.MaxAttempts, 1),
		maxBackoff:  cfg.MaxBackoff,
	}
}

const initialBackoff = 250 * time.Millisecond

// Run fetches until ctx ends. A message's offset is committed once it is
// handled, recognised as a duplicate, or has used up its attempts; a crash
// before that replays it.
func (c *Consumer) Run(ctx context.Context) {
	backoff := min(initialBackoff, c.maxBackoff)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			c.logger.Error("kafka fetch failed", "err", err, "retry_in", backoff)
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}
		backoff = min(initialBackoff, c.maxBackoff)

		if !c.deliver(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// deliver retries process for one message. It returns false only when ctx
// ended first and the offset must stay uncommitted.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) bool {
	backoff := min(initialBackoff, c.maxBackoff)
	for attempt := 1; ; attempt++ {
		if c.process(ctx, msg) {
			return true
		}
		if attempt >= c.maxAttempts {
			c.logger.Error("event dropped after retries",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "attempts", attempt)
			return true
		}
		if !c.sleep(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// process reports whether msg is done with and its offset may be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	env := kafkax.Open(msg)
	ctx, span := c.tracer.Start(kafkax.ContextFrom(ctx, msg), "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.destination.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.message.id", env.ID),
		),
	)
	defer span.End()
	log := c.logger.With("event_id", env.ID, "event_type", env.Type)

	fresh, err := c.inbox.Claim(ctx, env.ID, env.Type)
	if err != nil {
		log.Error("inbox claim failed", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox claim failed")
		return false
	}
	if !fresh {
		log.Info("duplicate event skipped")
		span.SetAttributes(attribute.Bool("messaging.duplicate", true))
		return true
	}

	if err := c.handler(ctx, env); err != nil {
		log.Error("event handler failed", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		if err := c.inbox.Release(ctx, env.ID); err != nil {
			log.Warn("inbox release failed", "err", err)
		}
		return false
	}
	return true
}
