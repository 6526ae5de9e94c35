// Package pending folds PENDING bookings into occupancy. A pending booking holds its time like a
// confirmed one until it is cancelled, or, when a hold TTL is configured, until the hold expires.
// Expired holds are only ignored at read time; nothing is deleted.
package pending

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

// BookingLister is the booking collaborator. Zero from/to means unbounded.
type BookingLister interface {
	ListBookings(ctx context.Context, artistID string, from, to time.Time, statuses ...model.BookingStatus) ([]model.Booking, error)
}

// DefaultHoldTTL keeps pending holds until the booking leaves PENDING. A positive TTL is an
// explicit opt-in that lets stale holds stop occupying time.
const DefaultHoldTTL time.Duration = 0

type Reader struct {
	holdTTL time.Duration
	now     func() time.Time
}

// NewReader returns a Reader; holdTTL <= 0 means pending holds never expire.
func NewReader(holdTTL time.Duration) *Reader {
	return &Reader{holdTTL: holdTTL, now: time.Now}
}

// WithClock is used by tests.
func (r *Reader) WithClock(now func() time.Time) *Reader {
	cp := *r
	cp.now = now
	return &cp
}

func (r *Reader) Now() time.Time { return r.now() }

// Live reports whether a pending booking still holds its slot.
func (r *Reader) Live(b model.Booking) bool {
	if b.Status != model.BookingPending {
		return false
	}
	if r.holdTTL <= 0 || b.CreatedAt.IsZero() {
		return true
	}
	return r.now().Before(b.CreatedAt.Add(r.holdTTL))
}

// Pending lists the artist's live pending bookings overlapping [from, to).
func (r *Reader) Pending(ctx context.Context, src BookingLister, artistID string, from, to time.Time) ([]model.Booking, error) {
	bs, err := src.ListBookings(ctx, artistID, from, to, model.BookingPending)
	if err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(bs))
	for _, b := range bs {
		if r.Live(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Occupancy keeps what the compiler should render as BOOKED: confirmed and completed bookings
// plus live pending holds.
func (r *Reader) Occupancy(bs []model.Booking) []model.Booking {
	out := make([]model.Booking, 0, len(bs))
	for _, b := range bs {
		switch b.Status {
		case model.BookingConfirmed, model.BookingCompleted:
			out = append(out, b)
		case model.BookingPending:
			if r.Live(b) {
				out = append(out, b)
			}
		}
	}
	return out
}

// Protected keeps the bookings a schedule change must not strand: confirmed or live pending,
// and not yet over.
func (r *Reader) Protected(bs []model.Booking) []model.Booking {
	now := r.now()
	out := make([]model.Booking, 0, len(bs))
	for _, b := range bs {
		if !b.End.After(now) {
			continue
		}
		if b.Status == model.BookingConfirmed || r.Live(b) {
			out = append(out, b)
		}
	}
	return out
}

// OccupancyStatuses is what to fetch before calling Occupancy.
var OccupancyStatuses = []model.BookingStatus{model.BookingPending, model.BookingConfirmed, model.BookingCompleted}
