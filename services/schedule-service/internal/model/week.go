package model

import (
	"time"
)

const DateLayout = "2006-01-02"

// ParseWeekStart parses a YYYY-MM-DD local Monday. Empty input yields the current week.
func ParseWeekStart(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if raw == "" {
		return WeekOf(now, loc), nil
	}
	t, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "weekStart", Reason: "want YYYY-MM-DD"}
	}
	if t.Weekday() != time.Monday {
		return time.Time{}, &ValidationError{Field: "weekStart", Reason: "must be a Monday"}
	}
	return t, nil
}

// WeekOf returns local midnight of the Monday on or before t.
func WeekOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// WeekEnd returns local midnight of the Monday after weekStart.
func WeekEnd(weekStart time.Time) time.Time {
	return AddDays(weekStart, 7)
}

// AddDays moves n calendar days keeping local midnight, so a week across DST is not 168h.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// WeeksBetween lists the week starts overlapped by [from, to).
func WeeksBetween(from, to time.Time, loc *time.Location) []time.Time {
	if !from.Before(to) {
		return nil
	}
	var weeks []time.Time
	for w := WeekOf(from, loc); w.Before(to); w = WeekEnd(w) {
		weeks = append(weeks, w)
	}
	return weeks
}
