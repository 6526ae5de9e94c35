package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/md-rashed-zaman/artistcal/libs/kafkax"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/inbox"
)

// sliceReader replays msgs then blocks until ctx is cancelled.
type sliceReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *sliceReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func msg(id string) kafka.Message {
	return kafka.Message{
		Topic:   "booking.created.v1",
		Headers: kafkax.EventMeta{EventID: id, EventType: "booking.created.v1"}.Headers(),
	}
}

func TestConsumerDeduplicatesThroughInbox(t *testing.T) {
	reader := &sliceReader{msgs: []kafka.Message{msg("e1"), msg("e2"), msg("e1"), msg("e3")}}

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	handler := func(_ context.Context, m kafka.Message) error {
		id := kafkax.ExtractEventMeta(m).EventID
		seen = append(seen, id)
		if id == "e3" {
			cancel()
		}
		if id == "e2" {
			return errors.New("boom")
		}
		return nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewWithReader(logger, inbox.NewMemory(), reader, handler)
	c.Run(ctx)

	assert.Equal(t, []string{"e1", "e2", "e3"}, seen)
	assert.True(t, reader.closed)
}
