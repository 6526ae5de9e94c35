// Package icalexport renders a compiled week as an iCalendar feed.
package icalexport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/compiler"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/interval"
)

const productID = "-//artistcal//Schedule Export//EN"

var summaries = map[interval.Kind]string{
	interval.Available: "Available",
	interval.Override:  "Available (override)",
	interval.Blocked:   "Blocked",
	interval.Booked:    "Booked",
}

func Calendar(week compiler.Week, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText("X-WR-TIMEZONE", week.Timezone)

	for _, x := range week.Intervals() {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, uid(week.ArtistID, x))
		event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, x.Start.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, x.End.UTC())
		event.Props.SetText(ical.PropSummary, summaries[x.Kind])
		event.Props.SetText(ical.PropCategories, string(x.Kind))

		transp := "OPAQUE"
		if x.Kind == interval.Available || x.Kind == interval.Override {
			transp = "TRANSPARENT"
		}
		event.Props.SetText(ical.PropTransparency, transp)
		cal.Children = append(cal.Children, event.Component)
	}
	return cal
}

func Encode(w io.Writer, week compiler.Week, now time.Time) error {
	if err := ical.NewEncoder(w).Encode(Calendar(week, now)); err != nil {
		return fmt.Errorf("encode icalendar: %w", err)
	}
	return nil
}

func uid(artistID string, x interval.Interval) string {
	src := x.Source
	if src == "" {
		src = "pattern"
	}
	return fmt.Sprintf("%s-%s-%s-%d@artistcal", artistID, strings.ToLower(string(x.Kind)), src, x.Start.Unix())
}
