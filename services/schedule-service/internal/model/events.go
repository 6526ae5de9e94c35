package model

import "time"

const EventScheduleChanged = "schedule.changed.v1"

// ScheduleChanged is emitted after every committed mutation. Recurring is set when the change
// affects every week (working slots, timezone), in which case WeekStart names the week compiled
// alongside the mutation.
type ScheduleChanged struct {
	EventID    string    `json:"event_id"`
	ArtistID   string    `json:"artist_id"`
	WeekStart  string    `json:"week_start,omitempty"`
	Recurring  bool      `json:"recurring"`
	Reason     string    `json:"reason"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}
