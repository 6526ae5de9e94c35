package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

type listerFunc func(ctx context.Context, artistID string, from, to time.Time, statuses ...model.BookingStatus) ([]model.Booking, error)

func (f listerFunc) ListBookings(ctx context.Context, artistID string, from, to time.Time, statuses ...model.BookingStatus) ([]model.Booking, error) {
	return f(ctx, artistID, from, to, statuses...)
}

var now = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

func booking(id string, status model.BookingStatus, created time.Time, startH int) model.Booking {
	start := now.Add(time.Duration(startH) * time.Hour)
	return model.Booking{ID: id, Status: status, CreatedAt: created, Start: start, End: start.Add(time.Hour)}
}

func TestPendingFiltersExpiredHolds(t *testing.T) {
	fresh := booking("fresh", model.BookingPending, now.Add(-5*time.Minute), 2)
	stale := booking("stale", model.BookingPending, now.Add(-20*time.Minute), 3)

	var gotStatuses []model.BookingStatus
	src := listerFunc(func(_ context.Context, artistID string, _, _ time.Time, statuses ...model.BookingStatus) ([]model.Booking, error) {
		assert.Equal(t, "a1", artistID)
		gotStatuses = statuses
		return []model.Booking{fresh, stale}, nil
	})

	r := NewReader(15 * time.Minute).WithClock(func() time.Time { return now })
	got, err := r.Pending(context.Background(), src, "a1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []model.Booking{fresh}, got)
	assert.Equal(t, []model.BookingStatus{model.BookingPending}, gotStatuses)

	noTTL := NewReader(0).WithClock(func() time.Time { return now })
	got, err = noTTL.Pending(context.Background(), src, "a1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPendingPropagatesErrors(t *testing.T) {
	src := listerFunc(func(context.Context, string, time.Time, time.Time, ...model.BookingStatus) ([]model.Booking, error) {
		return nil, errors.New("db down")
	})
	_, err := NewReader(0).Pending(context.Background(), src, "a1", time.Time{}, time.Time{})
	assert.EqualError(t, err, "db down")
}

func TestOccupancyAndProtected(t *testing.T) {
	r := NewReader(15*time.Minute).WithClock(func() time.Time { return now })
	bs := []model.Booking{
		booking("confirmed", model.BookingConfirmed, now.Add(-time.Hour), 1),
		booking("completed", model.BookingCompleted, now.Add(-time.Hour), -3),
		booking("live", model.BookingPending, now.Add(-time.Minute), 2),
		booking("expired", model.BookingPending, now.Add(-time.Hour), 3),
		booking("cancelled", model.BookingCancelled, now.Add(-time.Minute), 4),
		booking("past", model.BookingConfirmed, now.Add(-48*time.Hour), -5),
	}

	var occ []string
	for _, b := range r.Occupancy(bs) {
		occ = append(occ, b.ID)
	}
	assert.Equal(t, []string{"confirmed", "completed", "live", "past"}, occ)

	var prot []string
	for _, b := range r.Protected(bs) {
		prot = append(prot, b.ID)
	}
	assert.Equal(t, []string{"confirmed", "live"}, prot)
}
