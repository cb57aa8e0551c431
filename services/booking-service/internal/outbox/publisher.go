package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonbook/bookingengine/libs/db"
	"github.com/salonbook/bookingengine/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher relays unpublished outbox rows to Kafka. Rows are locked with
// SKIP LOCKED so several instances can run side by side.
type Publisher struct {
	pool       *db.Pool
	repo       *Repository
	logger     *slog.Logger
	brokers    []string
	pollEvery  time.Duration
	batchSize  int
	retention  time.Duration
	purgeEvery time.Duration
}

type PublisherConfig struct {
	Brokers   []string
	PollEvery time.Duration
	BatchSize int
	// Retention is how long published rows are kept before purging. Zero keeps them.
	Retention time.Duration
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:       pool,
		repo:       repo,
		logger:     logger,
		brokers:    cfg.Brokers,
		pollEvery:  cfg.PollEvery,
		batchSize:  cfg.BatchSize,
		retention:  cfg.Retention,
		purgeEvery: time.Hour,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}
	p.observeBacklog()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	poll := time.NewTicker(p.pollEvery)
	defer poll.Stop()
	purge := time.NewTicker(p.purgeEvery)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			// Drain: keep going while full batches come back.
			for {
				n, err := p.PublishBatch(ctx, writer)
				if err != nil {
					p.logger.Error("outbox publish failed", "err", err)
					break
				}
				if n > 0 {
					p.logger.Debug("outbox batch published", "count", n)
				}
				if n < p.batchSize || ctx.Err() != nil {
					break
				}
			}
		case <-purge.C:
			p.purge(ctx)
		}
	}
}

// PublishBatch ships one batch and marks it published in the same
// transaction. When the write fails the attempt is recorded and the rows
// stay queued.
func (p *Publisher) PublishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	var (
		published int
		writeErr  error
	)
	err := p.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, ToMessage(ctx, r))
			ids = append(ids, r.ID)
		}
		if writeErr = writer.WriteMessages(ctx, msgs...); writeErr != nil {
			return p.repo.MarkFailed(ctx, tx, ids, writeErr.Error())
		}
		published = len(records)
		return p.repo.MarkPublished(ctx, tx, ids)
	})
	if err != nil {
		return 0, err
	}
	if writeErr != nil {
		return 0, fmt.Errorf("write to kafka: %w", writeErr)
	}
	return published, nil
}

func (p *Publisher) purge(ctx context.Context) {
	if p.retention <= 0 {
		return
	}
	n, err := p.repo.PurgePublished(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.logger.Error("outbox purge failed", "err", err)
		return
	}
	if n > 0 {
		p.logger.Info("outbox purged", "rows", n, "retention", p.retention.String())
	}
}

// observeBacklog exports the unpublished row count as a gauge.
func (p *Publisher) observeBacklog() {
	_, err := otel.Meter("booking-service/outbox").Int64ObservableGauge("outbox.backlog",
		metric.WithDescription("Outbox events not yet relayed to Kafka"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			n, err := p.repo.Backlog(ctx)
			if err != nil {
				return err
			}
			o.Observe(n)
			return nil
		}),
	)
	if err != nil {
		p.logger.Warn("outbox backlog gauge not registered", "err", err)
	}
}

// ToMessage rebuilds the Kafka message for r under the trace that wrote it.
func ToMessage(ctx context.Context, r Record) kafka.Message {
	env := kafkax.Envelope{ID: r.EventID, Type: r.EventType, Key: r.AggregateID, Payload: r.Payload}
	return env.Message(r.Trace.Resume(ctx))
}
