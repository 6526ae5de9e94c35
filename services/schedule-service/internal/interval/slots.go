package interval

import "time"

// StartTimes returns the start instants, stepping by step from the beginning of each free
// interval, at which a booking of length duration fits entirely inside free without touching
// busy. Starts before now are skipped.
func StartTimes(free, busy []Interval, duration, step time.Duration, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}

	var starts []time.Time
	for _, window := range Coalesce(free, Available) {
		if window.Start.Add(duration).After(window.End) {
			continue
		}
		for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
			if t.Before(now) {
				continue
			}
			if _, hit := OverlapsAny(Interval{Start: t, End: t.Add(duration)}, busy); !hit {
				starts = append(starts, t)
			}
		}
	}
	return starts
}
