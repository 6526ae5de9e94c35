package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/outbox"
)

var day = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func seedArtist(t *testing.T, m *Memory, id string) {
	t.Helper()
	ctx := context.Background()
	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertArtist(ctx, model.Artist{ID: id, Timezone: "UTC"}))
	require.NoError(t, tx.Commit(ctx))
}

func TestMemoryTxIsolationAndCommit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedArtist(t, m, "a1")

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertDatedSlot(ctx, model.DatedSlot{
		ID: "o1", ArtistID: "a1", Kind: model.SlotOverride, Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour),
	}))
	require.NoError(t, tx.AppendEvent(ctx, outbox.Event{EventID: "e1", AggregateID: "a1"}))

	inTx, err := tx.ListDatedSlots(ctx, "a1", model.SlotOverride, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, inTx, 1)

	outside, err := m.ListDatedSlots(ctx, "a1", model.SlotOverride, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, outside, "uncommitted writes are invisible")
	assert.Empty(t, m.Events())

	v, err := tx.BumpVersion(ctx, "a1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	require.NoError(t, tx.Commit(ctx))

	committed, err := m.ListDatedSlots(ctx, "a1", model.SlotOverride, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, committed, 1)
	assert.Len(t, m.Events(), 1)

	a, err := m.GetArtist(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Version)
}

func TestMemoryRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedArtist(t, m, "a1")

	tx, _ := m.Begin(ctx)
	require.NoError(t, tx.InsertWorkingSlot(ctx, model.WorkingSlot{ID: "w1", ArtistID: "a1", Weekday: time.Monday, StartMinute: 60, EndMinute: 120}))
	require.NoError(t, tx.Rollback(ctx))
	assert.Error(t, tx.Commit(ctx))

	slots, err := m.ListWorkingSlots(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestMemoryConcurrentCommitConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedArtist(t, m, "a1")

	tx1, _ := m.Begin(ctx)
	tx2, _ := m.Begin(ctx)
	a1, err := tx1.GetArtist(ctx, "a1")
	require.NoError(t, err)
	a2, err := tx2.GetArtist(ctx, "a1")
	require.NoError(t, err)

	_, err = tx1.BumpVersion(ctx, "a1", a1.Version)
	require.NoError(t, err)
	_, err = tx2.BumpVersion(ctx, "a1", a2.Version)
	require.NoError(t, err)

	require.NoError(t, tx1.Commit(ctx))
	var conflict *model.ConcurrencyConflictError
	assert.True(t, errors.As(tx2.Commit(ctx), &conflict))
}

func TestMemoryBumpVersionMismatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedArtist(t, m, "a1")

	tx, _ := m.Begin(ctx)
	_, err := tx.BumpVersion(ctx, "a1", 5)
	var conflict *model.ConcurrencyConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedArtist(t, m, "a1")

	_, err := m.GetArtist(ctx, "nobody")
	var nf *model.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "artist", nf.Entity)

	tx, _ := m.Begin(ctx)
	require.NoError(t, tx.InsertDatedSlot(ctx, model.DatedSlot{ID: "b1", ArtistID: "a1", Kind: model.SlotBlocked, Start: day, End: day.Add(time.Hour)}))
	_, err = tx.GetDatedSlot(ctx, "a1", model.SlotOverride, "b1")
	assert.True(t, errors.As(err, &nf), "kind must match")
	assert.True(t, errors.As(tx.DeleteWorkingSlot(ctx, "a1", "missing"), &nf))
	assert.True(t, errors.As(tx.UpdateBookingStatus(ctx, "a1", "missing", model.BookingCancelled, day), &nf))
}

func TestMemoryListBookingsFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedArtist(t, m, "a1")

	tx, _ := m.Begin(ctx)
	for i, status := range []model.BookingStatus{model.BookingPending, model.BookingConfirmed, model.BookingCancelled} {
		start := day.Add(time.Duration(10+i) * time.Hour)
		require.NoError(t, tx.InsertBooking(ctx, model.Booking{
			ID: string(status), ArtistID: "a1", Start: start, End: start.Add(time.Hour), Status: status,
		}))
	}
	require.NoError(t, tx.Commit(ctx))

	active, err := m.ListBookings(ctx, "a1", time.Time{}, time.Time{}, model.ActiveStatuses...)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "PENDING", active[0].ID)
	assert.Equal(t, "CONFIRMED", active[1].ID)

	// [11:00, 11:30) overlaps only the confirmed booking; the pending one ends exactly at 11:00.
	ranged, err := m.ListBookings(ctx, "a1", day.Add(11*time.Hour), day.Add(11*time.Hour+30*time.Minute))
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "CONFIRMED", ranged[0].ID)
}

func TestMemoryWorkingSlotsMondayFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedArtist(t, m, "a1")

	tx, _ := m.Begin(ctx)
	require.NoError(t, tx.InsertWorkingSlot(ctx, model.WorkingSlot{ID: "sun", ArtistID: "a1", Weekday: time.Sunday, StartMinute: 60, EndMinute: 120}))
	require.NoError(t, tx.InsertWorkingSlot(ctx, model.WorkingSlot{ID: "mon-late", ArtistID: "a1", Weekday: time.Monday, StartMinute: 600, EndMinute: 700}))
	require.NoError(t, tx.InsertWorkingSlot(ctx, model.WorkingSlot{ID: "mon-early", ArtistID: "a1", Weekday: time.Monday, StartMinute: 60, EndMinute: 120}))
	require.NoError(t, tx.Commit(ctx))

	slots, err := m.ListWorkingSlots(ctx, "a1")
	require.NoError(t, err)
	var ids []string
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"mon-early", "mon-late", "sun"}, ids)
}
