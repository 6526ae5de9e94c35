// Package notify fans committed ScheduleChanged events out to live subscribers (the SSE stream)
// and to external sinks such as RabbitMQ.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

type Sink interface {
	Deliver(ctx context.Context, evt model.ScheduleChanged) error
}

type Subscription struct {
	C <-chan model.ScheduleChanged

	ch       chan model.ScheduleChanged
	artistID string
	hub      *Hub
	once     sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub delivers to subscribers without blocking: a subscriber whose buffer is full misses the
// event and is expected to refetch the week.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	sinks  []Sink
	buffer int
	logger *slog.Logger
}

func NewHub(logger *slog.Logger, buffer int, sinks ...Sink) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[string]map[*Subscription]struct{}{}, sinks: sinks, buffer: buffer, logger: logger}
}

// Subscribe listens for one artist, or for everyone when artistID is empty.
func (h *Hub) Subscribe(artistID string) *Subscription {
	ch := make(chan model.ScheduleChanged, h.buffer)
	s := &Subscription{C: ch, ch: ch, artistID: artistID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[artistID] == nil {
		h.subs[artistID] = map[*Subscription]struct{}{}
	}
	h.subs[artistID][s] = struct{}{}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[s.artistID], s)
	if len(h.subs[s.artistID]) == 0 {
		delete(h.subs, s.artistID)
	}
	close(s.ch)
}

func (h *Hub) Publish(ctx context.Context, evt model.ScheduleChanged) {
	h.mu.RLock()
	for _, key := range []string{evt.ArtistID, ""} {
		for s := range h.subs[key] {
			select {
			case s.ch <- evt:
			default:
				h.logger.Warn("subscriber lagging, event dropped", "artist_id", evt.ArtistID, "event_id", evt.EventID)
			}
		}
	}
	h.mu.RUnlock()

	for _, sink := range h.sinks {
		if err := sink.Deliver(ctx, evt); err != nil {
			h.logger.Error("notify sink failed", "artist_id", evt.ArtistID, "event_id", evt.EventID, "err", err)
		}
	}
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.subs {
		n += len(m)
	}
	return n
}
