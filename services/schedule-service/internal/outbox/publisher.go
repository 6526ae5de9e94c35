package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/artistcal/libs/db"
	"github.com/md-rashed-zaman/artistcal/libs/kafkax"
	otelx "github.com/md-rashed-zaman/artistcal/libs/otel"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	retention time.Duration
	newWriter func([]string) MessageWriter
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// Retention of published rows; zero keeps them forever.
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
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		retention: cfg.Retention,
		newWriter: func(brokers []string) MessageWriter { return kafkax.NewWriter(brokers) },
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := p.newWriter(p.brokers)
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	lastPurge := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
			if p.retention > 0 && time.Since(lastPurge) > time.Hour {
				lastPurge = time.Now()
				p.purge(ctx)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer MessageWriter) error {
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, ToMessage(ctx, r))
			ids = append(ids, r.ID)
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
			return err
		}
		p.logger.Debug("outbox batch published", "count", len(records))
		return nil
	})
}

func (p *Publisher) purge(ctx context.Context) {
	var n int64
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = p.repo.Purge(ctx, tx, time.Now().Add(-p.retention))
		return err
	})
	if err != nil {
		p.logger.Error("outbox purge failed", "err", err)
		return
	}
	if n > 0 {
		p.logger.Info("outbox purged", "rows", n)
	}
}

// ToMessage renders a stored row as a Kafka message, continuing the trace of the request that
// wrote it.
func ToMessage(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.TraceContext{Parent: r.Traceparent, State: r.Tracestate}.Resume(ctx)
	meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}
	if r.AggregateType == AggregateArtist {
		meta.ArtistID = r.AggregateID
	}
	return kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.InjectTraceHeaders(msgCtx, meta.Headers()),
	}
}
