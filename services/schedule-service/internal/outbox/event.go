package outbox

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

const AggregateArtist = "artist"

// Event is the envelope written to the outbox table in the mutation's transaction.
// The Kafka topic name equals EventType and the message key is AggregateID.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func ScheduleChangedEvent(evt model.ScheduleChanged) (Event, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Event{}, fmt.Errorf("marshal schedule changed: %w", err)
	}
	return Event{
		EventID:       evt.EventID,
		AggregateType: AggregateArtist,
		AggregateID:   evt.ArtistID,
		EventType:     model.EventScheduleChanged,
		Payload:       payload,
	}, nil
}
