// Package validator gates every schedule mutation. A change is rejected when it is malformed,
// collides with a sibling slot, or would leave an active booking outside the artist's
// availability. Checks read through the caller's transaction and never write.
package validator

import (
	"context"
	"slices"
	"time"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/compiler"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/interval"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/pending"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/storage"
)

type Op string

const (
	Create Op = "create"
	Update Op = "update"
	Delete Op = "delete"
)

type Validator struct {
	compiler *compiler.Compiler
	pending  *pending.Reader
}

func New(c *compiler.Compiler, p *pending.Reader) *Validator {
	return &Validator{compiler: c, pending: p}
}

// Working checks a working slot change and returns the stored slot for update/delete.
func (v *Validator) Working(ctx context.Context, tx storage.Reader, artist model.Artist, loc *time.Location, op Op, slot model.WorkingSlot) (model.WorkingSlot, error) {
	var prev model.WorkingSlot
	if op != Create {
		p, err := tx.GetWorkingSlot(ctx, artist.ID, slot.ID)
		if err != nil {
			return prev, err
		}
		prev = p
	}

	siblings, err := tx.ListWorkingSlots(ctx, artist.ID)
	if err != nil {
		return prev, err
	}

	if op != Delete {
		if err := slot.Validate(); err != nil {
			return prev, err
		}
		for _, s := range siblings {
			if s.ID != slot.ID && s.Weekday == slot.Weekday && workingOverlap(s, slot) {
				return prev, &model.OverlapError{Kind: string(model.SlotWorking), ConflictingID: s.ID}
			}
		}
	}

	bookings, err := v.protected(ctx, tx, artist.ID, nil)
	if err != nil || len(bookings) == 0 {
		return prev, err
	}
	before, err := v.load(ctx, tx, artist.ID, bookings)
	if err != nil {
		return prev, err
	}
	before.Working = siblings
	after := before
	after.Working = applyWorking(siblings, op, slot)

	return prev, v.stranded(bookings, loc, before, loc, after)
}

// Dated checks an override or blocked slot change and returns the stored slot for
// update/delete.
func (v *Validator) Dated(ctx context.Context, tx storage.Reader, artist model.Artist, loc *time.Location, op Op, slot model.DatedSlot) (model.DatedSlot, error) {
	var prev model.DatedSlot
	if op != Create {
		p, err := tx.GetDatedSlot(ctx, artist.ID, slot.Kind, slot.ID)
		if err != nil {
			return prev, err
		}
		prev = p
	}

	// Removing a block only ever adds availability.
	if op == Delete && slot.Kind == model.SlotBlocked {
		return prev, nil
	}

	if op != Delete {
		if err := slot.Validate(); err != nil {
			return prev, err
		}
		if err := v.datedSiblings(ctx, tx, artist.ID, slot); err != nil {
			return prev, err
		}
	}

	var touched []interval.Interval
	if op != Create {
		touched = append(touched, interval.New(prev.Start, prev.End, "", prev.ID))
	}
	if op != Delete {
		touched = append(touched, interval.New(slot.Start, slot.End, "", slot.ID))
	}
	if slot.Kind == model.SlotOverride && v.compiler.Mode() == compiler.ModeReplace {
		touched = wholeDays(touched, loc)
	}

	bookings, err := v.protected(ctx, tx, artist.ID, touched)
	if err != nil || len(bookings) == 0 {
		return prev, err
	}
	before, err := v.load(ctx, tx, artist.ID, bookings)
	if err != nil {
		return prev, err
	}
	after := before
	if slot.Kind == model.SlotOverride {
		after.Overrides = applyDated(before.Overrides, op, slot)
	} else {
		after.Blocks = applyDated(before.Blocks, op, slot)
	}
	return prev, v.stranded(bookings, loc, before, loc, after)
}

// datedSiblings enforces no same-kind overlap and no override/blocked overlap.
func (v *Validator) datedSiblings(ctx context.Context, tx storage.Reader, artistID string, slot model.DatedSlot) error {
	other := model.SlotBlocked
	if slot.Kind == model.SlotBlocked {
		other = model.SlotOverride
	}
	for _, kind := range []model.SlotKind{slot.Kind, other} {
		existing, err := tx.ListDatedSlots(ctx, artistID, kind, slot.Start, slot.End)
		if err != nil {
			return err
		}
		for _, s := range existing {
			if s.ID != slot.ID {
				return &model.OverlapError{Kind: string(kind), ConflictingID: s.ID}
			}
		}
	}
	return nil
}

// Timezone checks that re-instantiating the working pattern in next strands no booking.
func (v *Validator) Timezone(ctx context.Context, tx storage.Reader, artist model.Artist, current, next *time.Location) error {
	bookings, err := v.protected(ctx, tx, artist.ID, nil)
	if err != nil || len(bookings) == 0 {
		return err
	}
	in, err := v.load(ctx, tx, artist.ID, bookings)
	if err != nil {
		return err
	}
	return v.stranded(bookings, current, in, next, in)
}

// Booking checks a new (or newly confirmed) booking: well formed, in the future, clear of other
// active bookings and inside the available union.
func (v *Validator) Booking(ctx context.Context, tx storage.Reader, artist model.Artist, loc *time.Location, b model.Booking) error {
	if b.Start.IsZero() || !b.Start.Before(b.End) {
		return &model.ValidationError{Field: "end", Reason: "must be after start"}
	}
	if !b.Start.After(v.pending.Now()) {
		return &model.ValidationError{Field: "start", Reason: "must be in the future"}
	}

	others, err := tx.ListBookings(ctx, artist.ID, b.Start, b.End, model.ActiveStatuses...)
	if err != nil {
		return err
	}
	for _, o := range others {
		if o.ID != b.ID && (o.Status == model.BookingConfirmed || v.pending.Live(o)) {
			return &model.OverlapError{Kind: "booking", ConflictingID: o.ID}
		}
	}

	in, err := v.load(ctx, tx, artist.ID, []model.Booking{b})
	if err != nil {
		return err
	}
	avail := v.compiler.Available(loc, b.Start, b.End, in)
	if !interval.Contains(avail, interval.New(b.Start, b.End, interval.Booked, b.ID)) {
		return &model.OutsideAvailabilityError{Start: b.Start, End: b.End}
	}
	return nil
}

// protected returns the active, not yet finished bookings overlapping any of ranges, or all of
// them when ranges is nil.
func (v *Validator) protected(ctx context.Context, tx storage.Reader, artistID string, ranges []interval.Interval) ([]model.Booking, error) {
	now := v.pending.Now()
	if ranges == nil {
		bs, err := tx.ListBookings(ctx, artistID, now, time.Time{}, model.ActiveStatuses...)
		if err != nil {
			return nil, err
		}
		return v.pending.Protected(bs), nil
	}

	seen := map[string]bool{}
	var out []model.Booking
	for _, r := range ranges {
		bs, err := tx.ListBookings(ctx, artistID, r.Start, r.End, model.ActiveStatuses...)
		if err != nil {
			return nil, err
		}
		for _, b := range v.pending.Protected(bs) {
			if !seen[b.ID] {
				seen[b.ID] = true
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// load reads the slots needed to compute availability around bookings.
func (v *Validator) load(ctx context.Context, tx storage.Reader, artistID string, bookings []model.Booking) (compiler.Inputs, error) {
	from, to := span(bookings)
	// A whole day of margin covers replace-mode overrides on the bookings' local dates.
	from, to = from.Add(-24*time.Hour), to.Add(24*time.Hour)

	var in compiler.Inputs
	var err error
	if in.Working, err = tx.ListWorkingSlots(ctx, artistID); err != nil {
		return in, err
	}
	if in.Overrides, err = tx.ListDatedSlots(ctx, artistID, model.SlotOverride, from, to); err != nil {
		return in, err
	}
	if in.Blocks, err = tx.ListDatedSlots(ctx, artistID, model.SlotBlocked, from, to); err != nil {
		return in, err
	}
	return in, nil
}

// stranded rejects the change when a booking covered before is no longer covered after.
func (v *Validator) stranded(bookings []model.Booking, beforeLoc *time.Location, before compiler.Inputs, afterLoc *time.Location, after compiler.Inputs) error {
	from, to := span(bookings)
	availBefore := v.compiler.Available(beforeLoc, from, to, before)
	availAfter := v.compiler.Available(afterLoc, from, to, after)

	var ids []string
	for _, b := range bookings {
		x := interval.New(b.Start, b.End, interval.Booked, b.ID)
		if interval.Contains(availBefore, x) && !interval.Contains(availAfter, x) {
			ids = append(ids, b.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	return &model.BookingConflictError{BookingIDs: ids}
}

func span(bookings []model.Booking) (time.Time, time.Time) {
	var from, to time.Time
	for i, b := range bookings {
		if i == 0 || b.Start.Before(from) {
			from = b.Start
		}
		if i == 0 || b.End.After(to) {
			to = b.End
		}
	}
	return from, to
}

// workingOverlap compares two slots of the same weekday on a common reference date.
func workingOverlap(a, b model.WorkingSlot) bool {
	ref := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	as, ae := a.On(ref, time.UTC)
	bs, be := b.On(ref, time.UTC)
	return interval.Overlaps(interval.New(as, ae, "", ""), interval.New(bs, be, "", ""))
}

func applyWorking(slots []model.WorkingSlot, op Op, slot model.WorkingSlot) []model.WorkingSlot {
	out := make([]model.WorkingSlot, 0, len(slots)+1)
	for _, s := range slots {
		if s.ID != slot.ID {
			out = append(out, s)
		}
	}
	if op != Delete {
		out = append(out, slot)
	}
	return out
}

func applyDated(slots []model.DatedSlot, op Op, slot model.DatedSlot) []model.DatedSlot {
	out := make([]model.DatedSlot, 0, len(slots)+1)
	for _, s := range slots {
		if s.ID != slot.ID {
			out = append(out, s)
		}
	}
	if op != Delete {
		out = append(out, slot)
	}
	return out
}

func wholeDays(xs []interval.Interval, loc *time.Location) []interval.Interval {
	out := make([]interval.Interval, 0, len(xs))
	for _, x := range xs {
		y, m, d := x.Start.In(loc).Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		end := start
		for end.Before(x.End) {
			end = model.AddDays(end, 1)
		}
		out = append(out, interval.New(start, end, x.Kind, x.Source))
	}
	return out
}
