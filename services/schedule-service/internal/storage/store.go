// Package storage persists artists, slots and bookings. Postgres is the production backend; Memory
// serves local runs and tests with the same transactional semantics.
package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/outbox"
)

// Reader is the read side shared by the store and its transactions. Lookups of missing rows
// return *model.NotFoundError. Zero from/to bounds are open ended; ranges select rows
// overlapping [from, to).
type Reader interface {
	GetArtist(ctx context.Context, artistID string) (model.Artist, error)
	ListWorkingSlots(ctx context.Context, artistID string) ([]model.WorkingSlot, error)
	GetWorkingSlot(ctx context.Context, artistID, id string) (model.WorkingSlot, error)
	ListDatedSlots(ctx context.Context, artistID string, kind model.SlotKind, from, to time.Time) ([]model.DatedSlot, error)
	GetDatedSlot(ctx context.Context, artistID string, kind model.SlotKind, id string) (model.DatedSlot, error)
	ListBookings(ctx context.Context, artistID string, from, to time.Time, statuses ...model.BookingStatus) ([]model.Booking, error)
	GetBooking(ctx context.Context, artistID, id string) (model.Booking, error)
}

// Tx is one atomic unit of a schedule mutation. Nothing is visible to other readers before
// Commit; Rollback after Commit is a no-op.
type Tx interface {
	Reader

	// UpsertArtist creates the artist at version 0 or updates its timezone.
	UpsertArtist(ctx context.Context, a model.Artist) error

	InsertWorkingSlot(ctx context.Context, s model.WorkingSlot) error
	UpdateWorkingSlot(ctx context.Context, s model.WorkingSlot) error
	DeleteWorkingSlot(ctx context.Context, artistID, id string) error

	InsertDatedSlot(ctx context.Context, s model.DatedSlot) error
	UpdateDatedSlot(ctx context.Context, s model.DatedSlot) error
	DeleteDatedSlot(ctx context.Context, artistID string, kind model.SlotKind, id string) error

	InsertBooking(ctx context.Context, b model.Booking) error
	UpdateBookingStatus(ctx context.Context, artistID, id string, status model.BookingStatus, at time.Time) error

	// BumpVersion moves the artist from expected to expected+1. Any other current version
	// yields *model.ConcurrencyConflictError.
	BumpVersion(ctx context.Context, artistID string, expected int64) (int64, error)

	AppendEvent(ctx context.Context, evt outbox.Event) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Store interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
}

func overlapsRange(start, end, from, to time.Time) bool {
	if !to.IsZero() && !start.Before(to) {
		return false
	}
	if !from.IsZero() && !end.After(from) {
		return false
	}
	return true
}

func hasStatus(s model.BookingStatus, statuses []model.BookingStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
