// Package compiler turns an artist's recurring working pattern, dated overrides and blocks, and
// bookings into concrete per-day intervals for one week.
//
// The final schedule is built by an explicit pipeline, each stage layering on the previous one:
//
//	working  -> AVAILABLE intervals instantiated in the artist's zone
//	override -> OVERRIDE intervals unioned in (re-labelling covered working time)
//	blocked  -> BLOCKED intervals subtracted from everything available
//	booking  -> BOOKED markers overlaid; they never consume available time
//
// Every rendered interval is split at local midnight and attributed to the day it falls in.
package compiler

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/interval"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

// Mode controls how overrides combine with the working pattern.
type Mode string

const (
	// ModeUnion adds override time on top of working time.
	ModeUnion Mode = "union"
	// ModeReplace drops the working intervals of every local date carrying an override, so an
	// override can also narrow a day.
	ModeReplace Mode = "replace"
)

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "", ModeUnion:
		return ModeUnion, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("unknown override mode %q", raw)
	}
}

// Inputs is everything the compiler reads. Bookings should already be reduced to the ones
// occupying time (see package pending); cancelled bookings are ignored regardless.
type Inputs struct {
	Working   []model.WorkingSlot
	Overrides []model.DatedSlot
	Blocks    []model.DatedSlot
	Bookings  []model.Booking
}

type Day struct {
	Date      string              `json:"date"`
	Weekday   string              `json:"weekday"`
	Intervals []interval.Interval `json:"intervals"`
}

type Week struct {
	ArtistID  string `json:"artistId"`
	Timezone  string `json:"timezone"`
	WeekStart string `json:"weekStart"`
	Days      []Day  `json:"days"`
}

type Compiler struct {
	mode Mode
}

func New(mode Mode) *Compiler {
	if mode == "" {
		mode = ModeUnion
	}
	return &Compiler{mode: mode}
}

func (c *Compiler) Mode() Mode { return c.mode }

// Original renders the working pattern alone.
func (c *Compiler) Original(artist model.Artist, loc *time.Location, weekStart time.Time, in Inputs) Week {
	end := model.WeekEnd(weekStart)
	return render(artist, loc, weekStart, InstantiateWorking(in.Working, loc, weekStart, end))
}

// Final renders the full pipeline.
func (c *Compiler) Final(artist model.Artist, loc *time.Location, weekStart time.Time, in Inputs) Week {
	end := model.WeekEnd(weekStart)
	l := c.layers(loc, weekStart, end, in)
	all := make([]interval.Interval, 0, len(l.available)+len(l.blocked))
	all = append(all, l.available...)
	all = append(all, l.blocked...)
	// One marker per booking, even when bookings touch.
	return render(artist, loc, weekStart, append(interval.Normalize(all), l.booked...))
}

// Available is the bookable union over [from, to): working and override time minus blocks,
// merged regardless of kind. Bookings do not reduce it.
func (c *Compiler) Available(loc *time.Location, from, to time.Time, in Inputs) []interval.Interval {
	return interval.Coalesce(c.layers(loc, from, to, in).available, interval.Available)
}

type layers struct {
	available []interval.Interval
	blocked   []interval.Interval
	booked    []interval.Interval
}

func (c *Compiler) layers(loc *time.Location, from, to time.Time, in Inputs) layers {
	window := interval.Interval{Start: from, End: to}

	working := InstantiateWorking(in.Working, loc, from, to)

	overrides := interval.Normalize(interval.Clip(dated(in.Overrides, interval.Override), window))
	if c.mode == ModeReplace && len(overrides) > 0 {
		working = interval.Subtract(working, localDays(overrides, loc))
	}
	available := interval.Union(interval.Subtract(working, overrides), overrides)

	blocked := interval.Normalize(interval.Clip(dated(in.Blocks, interval.Blocked), window))
	available = interval.Subtract(available, blocked)

	booked := interval.Clip(bookings(in.Bookings), window)
	slices.SortFunc(booked, interval.Compare)

	return layers{available: available, blocked: blocked, booked: booked}
}

// InstantiateWorking materialises slots over [from, to) in loc. The day before from is included
// so a slot running past midnight contributes its tail.
func InstantiateWorking(slots []model.WorkingSlot, loc *time.Location, from, to time.Time) []interval.Interval {
	if len(slots) == 0 || !from.Before(to) {
		return nil
	}
	var out []interval.Interval
	for day := model.AddDays(localMidnight(from, loc), -1); day.Before(to); day = model.AddDays(day, 1) {
		for _, s := range slots {
			if s.Weekday != day.Weekday() {
				continue
			}
			start, end := s.On(day, loc)
			out = append(out, interval.New(start, end, interval.Available, s.ID))
		}
	}
	return interval.Normalize(interval.Clip(out, interval.Interval{Start: from, End: to}))
}

func dated(slots []model.DatedSlot, kind interval.Kind) []interval.Interval {
	out := make([]interval.Interval, 0, len(slots))
	for _, s := range slots {
		out = append(out, interval.New(s.Start, s.End, kind, s.ID))
	}
	return out
}

func bookings(bs []model.Booking) []interval.Interval {
	out := make([]interval.Interval, 0, len(bs))
	for _, b := range bs {
		if b.Status == model.BookingCancelled {
			continue
		}
		out = append(out, interval.New(b.Start, b.End, interval.Booked, b.ID))
	}
	return out
}

// localDays returns the whole local days touched by xs.
func localDays(xs []interval.Interval, loc *time.Location) []interval.Interval {
	var days []interval.Interval
	for _, x := range xs {
		for d := localMidnight(x.Start, loc); d.Before(x.End); d = model.AddDays(d, 1) {
			days = append(days, interval.Interval{Start: d, End: model.AddDays(d, 1)})
		}
	}
	return days
}

func localMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func render(artist model.Artist, loc *time.Location, weekStart time.Time, xs []interval.Interval) Week {
	week := Week{
		ArtistID:  artist.ID,
		Timezone:  loc.String(),
		WeekStart: weekStart.Format(model.DateLayout),
		Days:      make([]Day, 7),
	}
	midnights := make([]time.Time, 0, 6)
	for i := range week.Days {
		d := model.AddDays(weekStart, i)
		week.Days[i] = Day{
			Date:      d.Format(model.DateLayout),
			Weekday:   model.WeekdayCode(d.Weekday()),
			Intervals: []interval.Interval{},
		}
		if i > 0 {
			midnights = append(midnights, d)
		}
	}

	for _, x := range interval.SplitAt(xs, midnights) {
		date := x.Start.In(loc).Format(model.DateLayout)
		for i := range week.Days {
			if week.Days[i].Date == date {
				x.Start, x.End = x.Start.In(loc), x.End.In(loc)
				week.Days[i].Intervals = append(week.Days[i].Intervals, x)
				break
			}
		}
	}
	for i := range week.Days {
		slices.SortFunc(week.Days[i].Intervals, interval.Compare)
	}
	return week
}

// Intervals flattens the week back into one list, used by exporters.
func (w Week) Intervals() []interval.Interval {
	var out []interval.Interval
	for _, d := range w.Days {
		out = append(out, d.Intervals...)
	}
	return out
}
