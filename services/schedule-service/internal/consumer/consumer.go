package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/md-rashed-zaman/artistcal/libs/httpx"
	"github.com/md-rashed-zaman/artistcal/libs/kafkax"
	otelx "github.com/md-rashed-zaman/artistcal/libs/otel"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/inbox"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader  MessageReader
	logger  *slog.Logger
	inbox   inbox.Recorder
	handler Handler
	backoff time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, inboxRepo inbox.Recorder, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewWithReader(logger, inboxRepo, reader, handler)
}

func NewWithReader(logger *slog.Logger, inboxRepo inbox.Recorder, reader MessageReader, handler Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxRepo,
		handler: handler,
		backoff: time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	meta := kafkax.ExtractEventMeta(msg)
	ctx = httpx.ContextWithRequestID(kafkax.ExtractTraceContext(ctx, msg), meta.EventID)
	ctx, span := otelx.Start(ctx, "kafka", "kafka.consume",
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", msg.Topic),
		attribute.String("messaging.message.id", meta.EventID),
	)

	ok, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		otelx.End(span, err)
		return
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		otelx.End(span, nil)
		return
	}

	err = c.handler(ctx, msg)
	if err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
	}
	otelx.End(span, err)
}
