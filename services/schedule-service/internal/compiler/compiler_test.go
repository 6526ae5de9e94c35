package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/interval"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

var artist = model.Artist{ID: "artist-1", Timezone: "UTC"}

// monday is the week compiled by most tests.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func working(id string, day time.Weekday, from, to string) model.WorkingSlot {
	start, err := model.ParseClock(from)
	if err != nil {
		panic(err)
	}
	end, err := model.ParseClock(to)
	if err != nil {
		panic(err)
	}
	return model.WorkingSlot{ID: id, ArtistID: artist.ID, Weekday: day, StartMinute: start, EndMinute: end}
}

func on(day int, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func datedSlot(id string, kind model.SlotKind, start, end time.Time) model.DatedSlot {
	return model.DatedSlot{ID: id, ArtistID: artist.ID, Kind: kind, Start: start, End: end}
}

func span(start, end time.Time, kind interval.Kind, source string) interval.Interval {
	return interval.Interval{Start: start, End: end, Kind: kind, Source: source}
}

func TestFinalEqualsOriginalWithoutExceptions(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	in := Inputs{Working: []model.WorkingSlot{
		working("w-mon", time.Monday, "09:00", "17:00"),
		working("w-wed", time.Wednesday, "22:00", "02:00"),
		working("w-sun", time.Sunday, "22:00", "03:00"),
		working("w-sat", time.Saturday, "00:00", "24:00"),
	}}

	c := New(ModeUnion)
	a := model.Artist{ID: "artist-1", Timezone: loc.String()}
	assert.Equal(t, c.Original(a, loc, weekStart, in), c.Final(a, loc, weekStart, in))
}

func TestRendersAllSevenDays(t *testing.T) {
	week := New(ModeUnion).Final(artist, time.UTC, monday, Inputs{})
	require.Len(t, week.Days, 7)
	assert.Equal(t, "2026-01-05", week.WeekStart)
	assert.Equal(t, "2026-01-05", week.Days[0].Date)
	assert.Equal(t, "MON", week.Days[0].Weekday)
	assert.Equal(t, "2026-01-11", week.Days[6].Date)
	assert.Equal(t, "SUN", week.Days[6].Weekday)
	for _, d := range week.Days {
		assert.NotNil(t, d.Intervals)
		assert.Empty(t, d.Intervals)
	}
}

func TestMidnightSpanningSlotsAreSplitPerDay(t *testing.T) {
	in := Inputs{Working: []model.WorkingSlot{
		working("w-sun", time.Sunday, "22:00", "03:00"),
		working("w-fri", time.Friday, "22:00", "02:00"),
	}}
	week := New(ModeUnion).Original(artist, time.UTC, monday, in)

	// The previous Sunday's slot spills into this Monday.
	assert.Equal(t, []interval.Interval{span(on(0, 0, 0), on(0, 3, 0), interval.Available, "w-sun")}, week.Days[0].Intervals)
	assert.Equal(t, []interval.Interval{span(on(4, 22, 0), on(5, 0, 0), interval.Available, "w-fri")}, week.Days[4].Intervals)
	assert.Equal(t, []interval.Interval{span(on(5, 0, 0), on(5, 2, 0), interval.Available, "w-fri")}, week.Days[5].Intervals)
	// This Sunday's slot is cut at the end of the week.
	assert.Equal(t, []interval.Interval{span(on(6, 22, 0), on(7, 0, 0), interval.Available, "w-sun")}, week.Days[6].Intervals)
}

func TestOverrideRelabelsCoveredWorkingTime(t *testing.T) {
	in := Inputs{
		Working:   []model.WorkingSlot{working("w1", time.Monday, "09:00", "17:00")},
		Overrides: []model.DatedSlot{datedSlot("o1", model.SlotOverride, on(0, 16, 0), on(0, 19, 0))},
	}
	week := New(ModeUnion).Final(artist, time.UTC, monday, in)
	assert.Equal(t, []interval.Interval{
		span(on(0, 9, 0), on(0, 16, 0), interval.Available, "w1"),
		span(on(0, 16, 0), on(0, 19, 0), interval.Override, "o1"),
	}, week.Days[0].Intervals)
}

func TestBlockCoveringOverrideRendersBlocked(t *testing.T) {
	in := Inputs{
		Working:   []model.WorkingSlot{working("w1", time.Tuesday, "08:00", "12:00")},
		Overrides: []model.DatedSlot{datedSlot("o1", model.SlotOverride, on(1, 14, 0), on(1, 16, 0))},
		Blocks:    []model.DatedSlot{datedSlot("b1", model.SlotBlocked, on(1, 13, 0), on(1, 17, 0))},
	}
	week := New(ModeUnion).Final(artist, time.UTC, monday, in)
	assert.Equal(t, []interval.Interval{
		span(on(1, 8, 0), on(1, 12, 0), interval.Available, "w1"),
		span(on(1, 13, 0), on(1, 17, 0), interval.Blocked, "b1"),
	}, week.Days[1].Intervals)

	for _, x := range week.Days[1].Intervals {
		if x.Kind == interval.Available || x.Kind == interval.Override {
			assert.False(t, interval.Overlaps(x, span(on(1, 14, 0), on(1, 16, 0), "", "")))
		}
	}
}

func TestReplaceModeNarrowsDay(t *testing.T) {
	in := Inputs{
		Working:   []model.WorkingSlot{working("w1", time.Monday, "09:00", "17:00"), working("w2", time.Tuesday, "09:00", "17:00")},
		Overrides: []model.DatedSlot{datedSlot("o1", model.SlotOverride, on(0, 12, 0), on(0, 14, 0))},
	}

	replaced := New(ModeReplace).Final(artist, time.UTC, monday, in)
	assert.Equal(t, []interval.Interval{span(on(0, 12, 0), on(0, 14, 0), interval.Override, "o1")}, replaced.Days[0].Intervals)
	assert.Len(t, replaced.Days[1].Intervals, 1, "days without overrides keep their pattern")

	unioned := New(ModeUnion).Final(artist, time.UTC, monday, in)
	assert.Equal(t, []interval.Interval{
		span(on(0, 9, 0), on(0, 12, 0), interval.Available, "w1"),
		span(on(0, 12, 0), on(0, 14, 0), interval.Override, "o1"),
		span(on(0, 14, 0), on(0, 17, 0), interval.Available, "w1"),
	}, unioned.Days[0].Intervals)
}

func TestBookingsAreMarkersOnly(t *testing.T) {
	in := Inputs{
		Working: []model.WorkingSlot{working("w1", time.Monday, "09:00", "17:00")},
		Bookings: []model.Booking{
			{ID: "bk1", Start: on(0, 10, 0), End: on(0, 11, 0), Status: model.BookingConfirmed},
			{ID: "bk2", Start: on(0, 12, 0), End: on(0, 13, 0), Status: model.BookingCancelled},
		},
	}
	c := New(ModeUnion)
	week := c.Final(artist, time.UTC, monday, in)
	assert.Equal(t, []interval.Interval{
		span(on(0, 9, 0), on(0, 17, 0), interval.Available, "w1"),
		span(on(0, 10, 0), on(0, 11, 0), interval.Booked, "bk1"),
	}, week.Days[0].Intervals)

	assert.Equal(t, []interval.Interval{span(on(0, 9, 0), on(0, 17, 0), interval.Available, "")},
		c.Available(time.UTC, monday, model.WeekEnd(monday), in))
}

func TestAdjacentBookingsKeepTheirOwnMarkers(t *testing.T) {
	in := Inputs{
		Working: []model.WorkingSlot{working("w1", time.Monday, "09:00", "17:00")},
		Bookings: []model.Booking{
			{ID: "bk2", Start: on(0, 10, 0), End: on(0, 11, 0), Status: model.BookingPending},
			{ID: "bk1", Start: on(0, 9, 0), End: on(0, 10, 0), Status: model.BookingConfirmed},
		},
	}
	week := New(ModeUnion).Final(artist, time.UTC, monday, in)
	assert.Equal(t, []interval.Interval{
		span(on(0, 9, 0), on(0, 17, 0), interval.Available, "w1"),
		span(on(0, 9, 0), on(0, 10, 0), interval.Booked, "bk1"),
		span(on(0, 10, 0), on(0, 11, 0), interval.Booked, "bk2"),
	}, week.Days[0].Intervals)
}

func TestAvailableIsCoalescedUnion(t *testing.T) {
	in := Inputs{
		Working:   []model.WorkingSlot{working("w1", time.Monday, "09:00", "12:00")},
		Overrides: []model.DatedSlot{datedSlot("o1", model.SlotOverride, on(0, 12, 0), on(0, 14, 0))},
		Blocks:    []model.DatedSlot{datedSlot("b1", model.SlotBlocked, on(0, 10, 0), on(0, 11, 0))},
	}
	got := New(ModeUnion).Available(time.UTC, monday, model.WeekEnd(monday), in)
	assert.Equal(t, []interval.Interval{
		span(on(0, 9, 0), on(0, 10, 0), interval.Available, ""),
		span(on(0, 11, 0), on(0, 14, 0), interval.Available, ""),
	}, got)
}

func TestWallClockPreservedAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	var slots []model.WorkingSlot
	for d := time.Sunday; d <= time.Saturday; d++ {
		slots = append(slots, working("w", d, "09:00", "17:00"))
	}
	week := New(ModeUnion).Original(model.Artist{ID: "a", Timezone: loc.String()}, loc, weekStart, Inputs{Working: slots})

	require.Len(t, week.Days, 7)
	for _, d := range week.Days {
		require.Len(t, d.Intervals, 1, d.Date)
		x := d.Intervals[0]
		assert.Equal(t, 9, x.Start.Hour(), d.Date)
		assert.Equal(t, 17, x.End.Hour(), d.Date)
		assert.Equal(t, 8*time.Hour, x.Duration(), d.Date)
	}
	// 2026-03-08 09:00 EDT is 13:00 UTC, the Monday before is 14:00 UTC.
	assert.Equal(t, 13, week.Days[6].Intervals[0].Start.UTC().Hour())
	assert.Equal(t, 14, week.Days[0].Intervals[0].Start.UTC().Hour())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeUnion, m)
	m, err = ParseMode("REPLACE")
	require.NoError(t, err)
	assert.Equal(t, ModeReplace, m)
	_, err = ParseMode("merge")
	assert.Error(t, err)
}
