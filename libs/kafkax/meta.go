package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
	HeaderArtistID  = "artist_id"
)

// EventMeta is the metadata carried on every schedule Kafka message.
type EventMeta struct {
	EventID   string
	EventType string
	ArtistID  string
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, HeaderEventID),
		EventType: HeaderValue(msg.Headers, HeaderEventType),
		ArtistID:  HeaderValue(msg.Headers, HeaderArtistID),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

// Headers renders meta as Kafka headers, skipping empty values.
func (m EventMeta) Headers() []kafka.Header {
	var out []kafka.Header
	for _, kv := range [][2]string{{HeaderEventID, m.EventID}, {HeaderEventType, m.EventType}, {HeaderArtistID, m.ArtistID}} {
		if kv[1] != "" {
			out = append(out, kafka.Header{Key: kv[0], Value: []byte(kv[1])})
		}
	}
	return out
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
