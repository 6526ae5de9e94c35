package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

const DefaultExchange = "schedule.events"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes ScheduleChanged to a topic exchange with routing key
// "schedule.changed.<artist id>".
type AMQPSink struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	logger   *slog.Logger
	mu       sync.Mutex
}

func NewAMQPSink(url, exchange string, logger *slog.Logger) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	s := newAMQPSink(ch, exchange, logger)
	s.conn = conn
	s.logger.Info("rabbitmq sink connected", "exchange", exchange)
	return s, nil
}

func newAMQPSink(ch amqpChannel, exchange string, logger *slog.Logger) *AMQPSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPSink{ch: ch, exchange: exchange, logger: logger}
}

func RoutingKey(artistID string) string {
	return "schedule.changed." + artistID
}

func (s *AMQPSink) Deliver(ctx context.Context, evt model.ScheduleChanged) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.PublishWithContext(ctx, s.exchange, RoutingKey(evt.ArtistID), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.EventID,
		Type:         model.EventScheduleChanged,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ch.Close(); err != nil {
		s.logger.Warn("closing rabbitmq channel", "err", err)
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
