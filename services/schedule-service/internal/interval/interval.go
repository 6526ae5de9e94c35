// Package interval implements the half-open [Start, End) time interval algebra the schedule
// compiler is built on. All functions are pure and never mutate their inputs.
package interval

import (
	"slices"
	"time"
)

type Kind string

const (
	Available Kind = "AVAILABLE"
	Override  Kind = "OVERRIDE"
	Blocked   Kind = "BLOCKED"
	Booked    Kind = "BOOKED"
)

// rank orders kinds for stable output when intervals share a start.
func (k Kind) rank() int {
	switch k {
	case Available:
		return 0
	case Override:
		return 1
	case Blocked:
		return 2
	case Booked:
		return 3
	default:
		return 4
	}
}

type Interval struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Kind   Kind      `json:"kind"`
	Source string    `json:"sourceId,omitempty"`
}

func New(start, end time.Time, kind Kind, source string) Interval {
	return Interval{Start: start, End: end, Kind: kind, Source: source}
}

func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	if i.Empty() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Overlaps is true when a and b share at least one instant. Touching intervals do not overlap.
func Overlaps(a, b Interval) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// OverlapsAny returns the first interval in set that overlaps x.
func OverlapsAny(x Interval, set []Interval) (Interval, bool) {
	for _, s := range set {
		if Overlaps(x, s) {
			return s, true
		}
	}
	return Interval{}, false
}

// Compare orders by start, then kind (AVAILABLE, OVERRIDE, BLOCKED, BOOKED), then end and source.
func Compare(a, b Interval) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	if c := a.Kind.rank() - b.Kind.rank(); c != 0 {
		return c
	}
	if c := a.End.Compare(b.End); c != 0 {
		return c
	}
	switch {
	case a.Source < b.Source:
		return -1
	case a.Source > b.Source:
		return 1
	}
	return 0
}

// Normalize drops empty intervals, sorts by start and merges overlapping or touching intervals
// of the same kind. A merged interval keeps the Source of its earliest part. Intervals of
// different kinds are left as they are and may overlap each other.
func Normalize(xs []Interval) []Interval {
	in := make([]Interval, 0, len(xs))
	for _, x := range xs {
		if !x.Empty() {
			in = append(in, x)
		}
	}
	if len(in) == 0 {
		return nil
	}
	slices.SortFunc(in, Compare)

	out := make([]Interval, 0, len(in))
	// open holds, per kind, the index in out of the last interval of that kind.
	open := map[Kind]int{}
	for _, x := range in {
		if idx, ok := open[x.Kind]; ok && !x.Start.After(out[idx].End) {
			if x.End.After(out[idx].End) {
				out[idx].End = x.End
			}
			continue
		}
		open[x.Kind] = len(out)
		out = append(out, x)
	}
	return out
}

// Union merges a and b.
func Union(a, b []Interval) []Interval {
	all := make([]Interval, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return Normalize(all)
}

// Subtract removes every instant covered by remove (of any kind) from base. Pieces keep the
// kind and source of the base interval they came from.
func Subtract(base, remove []Interval) []Interval {
	cut := Coalesce(remove, "")
	var out []Interval
	for _, b := range Normalize(base) {
		pieces := []Interval{b}
		for _, r := range cut {
			if !r.Start.Before(b.End) {
				break
			}
			pieces = subtractOne(pieces, r)
		}
		out = append(out, pieces...)
	}
	return Normalize(out)
}

func subtractOne(pieces []Interval, r Interval) []Interval {
	var out []Interval
	for _, p := range pieces {
		if !Overlaps(p, r) {
			out = append(out, p)
			continue
		}
		if p.Start.Before(r.Start) {
			left := p
			left.End = r.Start
			out = append(out, left)
		}
		if r.End.Before(p.End) {
			right := p
			right.Start = r.End
			out = append(out, right)
		}
	}
	return out
}

// Coalesce merges xs ignoring kind and relabels the result as kind with no source.
func Coalesce(xs []Interval, kind Kind) []Interval {
	relabelled := make([]Interval, 0, len(xs))
	for _, x := range xs {
		relabelled = append(relabelled, Interval{Start: x.Start, End: x.End, Kind: kind})
	}
	return Normalize(relabelled)
}

// Contains reports whether x is fully covered by the union of set, whatever the kinds.
func Contains(set []Interval, x Interval) bool {
	if x.Empty() {
		return false
	}
	for _, c := range Coalesce(set, "") {
		if !c.Start.After(x.Start) && !c.End.Before(x.End) {
			return true
		}
	}
	return false
}

// Clip restricts xs to window, dropping what falls outside.
func Clip(xs []Interval, window Interval) []Interval {
	var out []Interval
	for _, x := range xs {
		if !Overlaps(x, window) {
			continue
		}
		if x.Start.Before(window.Start) {
			x.Start = window.Start
		}
		if x.End.After(window.End) {
			x.End = window.End
		}
		out = append(out, x)
	}
	return out
}

// SplitAt cuts every interval at each boundary strictly inside it. boundaries must be sorted.
func SplitAt(xs []Interval, boundaries []time.Time) []Interval {
	var out []Interval
	for _, x := range xs {
		for _, b := range boundaries {
			if x.Start.Before(b) && b.Before(x.End) {
				head := x
				head.End = b
				out = append(out, head)
				x.Start = b
			}
		}
		if !x.Empty() {
			out = append(out, x)
		}
	}
	return out
}
