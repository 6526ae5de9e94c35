package model

import (
	"fmt"
	"strings"
	"time"
)

// MinutesPerDay bounds WorkingSlot time-of-day values. 1440 means 24:00.
const MinutesPerDay = 24 * 60

type SlotKind string

const (
	SlotWorking  SlotKind = "working"
	SlotOverride SlotKind = "override"
	SlotBlocked  SlotKind = "blocked"
)

func ParseSlotKind(raw string) (SlotKind, error) {
	switch k := SlotKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case SlotWorking, SlotOverride, SlotBlocked:
		return k, nil
	default:
		return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown slot kind %q", raw)}
	}
}

// WorkingSlot recurs every week on Weekday between StartMinute and EndMinute, local time.
// EndMinute <= StartMinute means the slot runs past midnight into the next day.
type WorkingSlot struct {
	ID          string
	ArtistID    string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Note        string
}

func (s WorkingSlot) Validate() error {
	if s.StartMinute < 0 || s.StartMinute >= MinutesPerDay {
		return &ValidationError{Field: "startTime", Reason: "must be within 00:00..23:59"}
	}
	if s.EndMinute < 0 || s.EndMinute > MinutesPerDay {
		return &ValidationError{Field: "endTime", Reason: "must be within 00:00..24:00"}
	}
	if s.EndMinute == s.StartMinute {
		return &ValidationError{Field: "endTime", Reason: "must differ from startTime"}
	}
	if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
		return &ValidationError{Field: "weekday", Reason: "unknown weekday"}
	}
	return nil
}

func (s WorkingSlot) SpansMidnight() bool {
	return s.EndMinute < s.StartMinute
}

// On instantiates the slot on the local calendar date of day, in loc. Wall-clock boundaries are
// kept across DST changes, so the absolute length may differ from EndMinute-StartMinute.
func (s WorkingSlot) On(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, s.StartMinute, 0, 0, loc)
	endDay := d
	if s.SpansMidnight() {
		endDay++
	}
	end := time.Date(y, m, endDay, 0, s.EndMinute, 0, 0, loc)
	return start, end
}

// DatedSlot is an OverrideSlot or a BlockedSlot: an absolute range tied to calendar dates.
type DatedSlot struct {
	ID       string
	ArtistID string
	Kind     SlotKind
	Start    time.Time
	End      time.Time
	Note     string
}

func (s DatedSlot) Validate() error {
	if s.Start.IsZero() || s.End.IsZero() {
		return &ValidationError{Field: "start", Reason: "start and end are required"}
	}
	if !s.Start.Before(s.End) {
		return &ValidationError{Field: "end", Reason: "must be after start"}
	}
	if s.Kind != SlotOverride && s.Kind != SlotBlocked {
		return &ValidationError{Field: "kind", Reason: "dated slots are override or blocked"}
	}
	return nil
}

var weekdayCodes = [...]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

func WeekdayCode(d time.Weekday) string {
	if d < time.Sunday || d > time.Saturday {
		return ""
	}
	return weekdayCodes[d]
}

// ParseWeekday accepts MON..SUN (any case) or the full English name.
func ParseWeekday(raw string) (time.Weekday, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	for i, code := range weekdayCodes {
		if v == code || v == strings.ToUpper(time.Weekday(i).String()) {
			return time.Weekday(i), nil
		}
	}
	return 0, &ValidationError{Field: "weekday", Reason: fmt.Sprintf("unknown weekday %q", raw)}
}

// ParseClock parses HH:MM into minutes since midnight; "24:00" is accepted as end of day.
func ParseClock(raw string) (int, error) {
	t := strings.TrimSpace(raw)
	if t == "24:00" {
		return MinutesPerDay, nil
	}
	parsed, err := time.Parse("15:04", t)
	if err != nil {
		return 0, &ValidationError{Field: "time", Reason: fmt.Sprintf("invalid time of day %q, want HH:MM", raw)}
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
