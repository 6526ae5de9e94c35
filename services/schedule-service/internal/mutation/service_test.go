package mutation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/cache"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/compiler"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/interval"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/pending"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/storage"
)

var (
	now    = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
)

func at(day, hour int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

type recorder struct {
	mu     sync.Mutex
	events []model.ScheduleChanged
}

func (r *recorder) Publish(_ context.Context, evt model.ScheduleChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

type countingCache struct {
	cache.Nop
	mu          sync.Mutex
	invalidated int
}

func (c *countingCache) Invalidate(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	return nil
}

type noLock struct{}

func (noLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

type harness struct {
	svc   *Service
	store *storage.Memory
	rec   *recorder
	cache *countingCache
}

func newHarness(t *testing.T, store storage.Store, opts Options) harness {
	t.Helper()
	mem, _ := store.(*storage.Memory)
	rec := &recorder{}
	cc := &countingCache{}
	opts.Notifier = rec
	opts.Cache = cc
	pr := pending.NewReader(0).WithClock(func() time.Time { return now })
	return harness{
		svc:   NewService(store, compiler.New(compiler.ModeUnion), pr, opts),
		store: mem,
		rec:   rec,
		cache: cc,
	}
}

// withWorkingMonday gives a1 Monday 09:00-17:00 UTC.
func withWorkingMonday(t *testing.T, h harness) model.WorkingSlot {
	t.Helper()
	slot, _, err := h.svc.CreateWorking(context.Background(), "a1", model.WorkingSlot{
		Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60,
	})
	require.NoError(t, err)
	return slot
}

func TestCreateWorkingCreatesArtistAndPublishes(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()

	slot, res, err := h.svc.CreateWorking(ctx, "a1", model.WorkingSlot{
		Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, slot.ID)

	assert.Equal(t, int64(1), res.Event.Version)
	assert.True(t, res.Event.Recurring)
	assert.Equal(t, "working.created", res.Event.Reason)
	assert.Equal(t, "2025-12-29", res.Event.WeekStart)
	require.Len(t, res.Week.Days, 7)
	require.Len(t, res.Week.Days[0].Intervals, 1)
	assert.Equal(t, interval.Available, res.Week.Days[0].Intervals[0].Kind)

	artist, err := h.store.GetArtist(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "UTC", artist.Timezone)
	assert.Equal(t, int64(1), artist.Version)

	events := h.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventScheduleChanged, events[0].EventType)
	assert.Equal(t, "a1", events[0].AggregateID)
	assert.Len(t, h.rec.events, 1)
	assert.Equal(t, 1, h.cache.invalidated)
}

func TestWorkingResizeStrandingConfirmedBookingIsRejected(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()
	slot := withWorkingMonday(t, h)

	b, _, err := h.svc.CreateBooking(ctx, "a1", BookingRequest{
		CustomerID: "c1", Start: at(0, 15), End: at(0, 16), Status: model.BookingConfirmed,
	})
	require.NoError(t, err)
	eventsBefore := len(h.store.Events())

	slot.EndMinute = 12 * 60
	_, _, err = h.svc.UpdateWorking(ctx, "a1", slot)
	var conflict *model.BookingConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{b.ID}, conflict.BookingIDs)

	stored, err := h.store.GetWorkingSlot(ctx, "a1", slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 17*60, stored.EndMinute, "rejected change leaves no trace")
	assert.Len(t, h.store.Events(), eventsBefore)
}

func TestConcurrentOverlappingOverridesOneWins(t *testing.T) {
	for name, opts := range map[string]Options{
		"keyed lock":       {},
		"version backstop": {Locker: noLock{}},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, storage.NewMemory(), opts)
			withWorkingMonday(t, h)

			reqs := []model.DatedSlot{
				{Kind: model.SlotOverride, Start: at(1, 18), End: at(1, 20)},
				{Kind: model.SlotOverride, Start: at(1, 19), End: at(1, 21)},
			}
			errs := make([]error, len(reqs))
			var wg sync.WaitGroup
			for i := range reqs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, _, errs[i] = h.svc.CreateDated(context.Background(), "a1", reqs[i])
				}(i)
			}
			wg.Wait()

			var ok, overlaps int
			for _, err := range errs {
				var overlap *model.OverlapError
				switch {
				case err == nil:
					ok++
				case assert.ErrorAs(t, err, &overlap):
					overlaps++
				}
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, 1, overlaps)

			overrides, err := h.store.ListDatedSlots(context.Background(), "a1", model.SlotOverride, time.Time{}, time.Time{})
			require.NoError(t, err)
			assert.Len(t, overrides, 1)
		})
	}
}

func TestBookingOutsideWorkingHoursLeavesNoRecord(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()
	withWorkingMonday(t, h)

	_, _, err := h.svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c1", Start: at(0, 18), End: at(0, 19)})
	var outside *model.OutsideAvailabilityError
	require.ErrorAs(t, err, &outside)

	bs, err := h.store.ListBookings(ctx, "a1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, bs)
}

func TestBlockDeleteSkipsBookingCheck(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()
	withWorkingMonday(t, h)

	block, _, err := h.svc.CreateDated(ctx, "a1", model.DatedSlot{Kind: model.SlotBlocked, Start: at(0, 12), End: at(0, 13)})
	require.NoError(t, err)
	_, _, err = h.svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c1", Start: at(0, 13), End: at(0, 14), Status: model.BookingConfirmed})
	require.NoError(t, err)

	res, err := h.svc.DeleteDated(ctx, "a1", model.SlotBlocked, block.ID)
	require.NoError(t, err)
	assert.Equal(t, "blocked.deleted", res.Event.Reason)
	assert.Equal(t, "2026-01-05", res.Event.WeekStart)
	assert.False(t, res.Event.Recurring)

	_, err = h.svc.DeleteDated(ctx, "a1", model.SlotBlocked, block.ID)
	var nf *model.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestBlockOverOverrideRendersBlocked(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()
	withWorkingMonday(t, h)

	_, _, err := h.svc.CreateDated(ctx, "a1", model.DatedSlot{Kind: model.SlotBlocked, Start: at(0, 10), End: at(0, 11)})
	require.NoError(t, err)
	_, res, err := h.svc.CreateDated(ctx, "a1", model.DatedSlot{Kind: model.SlotOverride, Start: at(0, 18), End: at(0, 19)})
	require.NoError(t, err)

	var kinds []interval.Kind
	for _, x := range res.Week.Days[0].Intervals {
		kinds = append(kinds, x.Kind)
	}
	assert.Contains(t, kinds, interval.Blocked)
	assert.Contains(t, kinds, interval.Override)
}

type flakyStore struct {
	*storage.Memory
	mu       sync.Mutex
	failures int
	begins   int
}

func (f *flakyStore) Begin(ctx context.Context) (storage.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begins++
	tx, err := f.Memory.Begin(ctx)
	if err != nil || f.failures == 0 {
		return tx, err
	}
	f.failures--
	return conflictTx{tx}, nil
}

type conflictTx struct{ storage.Tx }

func (c conflictTx) Commit(ctx context.Context) error {
	_ = c.Tx.Rollback(ctx)
	return &model.ConcurrencyConflictError{ArtistID: "a1"}
}

func TestConcurrencyConflictRetriedOnce(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory(), failures: 1}
	h := newHarness(t, store, Options{})

	_, res, err := h.svc.CreateWorking(context.Background(), "a1", model.WorkingSlot{Weekday: time.Friday, StartMinute: 600, EndMinute: 700})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Event.Version)
	assert.Equal(t, 2, store.begins)

	store.failures = 2
	_, _, err = h.svc.CreateWorking(context.Background(), "a1", model.WorkingSlot{Weekday: time.Saturday, StartMinute: 600, EndMinute: 700})
	var cc *model.ConcurrencyConflictError
	assert.ErrorAs(t, err, &cc)
	assert.Equal(t, 4, store.begins)
	assert.Len(t, h.rec.events, 1)
}

func TestIdempotentBookingReplay(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()
	withWorkingMonday(t, h)

	req := BookingRequest{CustomerID: "c1", Start: at(0, 10), End: at(0, 11), IdempotencyKey: "k-1"}
	first, replayed, err := h.svc.CreateBooking(ctx, "a1", req)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := h.svc.CreateBooking(ctx, "a1", req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	bs, err := h.store.ListBookings(ctx, "a1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bs, 1)
}

func TestBookingStatusLifecycle(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()
	withWorkingMonday(t, h)

	b, _, err := h.svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c1", Start: at(0, 10), End: at(0, 11)})
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)

	b, err = h.svc.SetBookingStatus(ctx, "a1", b.ID, model.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, b.Status)

	b, err = h.svc.SetBookingStatus(ctx, "a1", b.ID, model.BookingCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, b.Status)

	_, err = h.svc.SetBookingStatus(ctx, "a1", b.ID, model.BookingCancelled)
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = h.svc.SetBookingStatus(ctx, "a1", "missing", model.BookingCancelled)
	var nf *model.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, _, err = h.svc.CreateBooking(ctx, "a1", BookingRequest{Start: at(0, 12), End: at(0, 13), Status: model.BookingCompleted})
	assert.ErrorAs(t, err, &ve)
}

func TestCancelledBookingFreesTheSlot(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()
	withWorkingMonday(t, h)

	b, _, err := h.svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c1", Start: at(0, 10), End: at(0, 11)})
	require.NoError(t, err)

	_, _, err = h.svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c2", Start: at(0, 10), End: at(0, 11)})
	var overlap *model.OverlapError
	require.ErrorAs(t, err, &overlap)

	_, err = h.svc.SetBookingStatus(ctx, "a1", b.ID, model.BookingCancelled)
	require.NoError(t, err)
	_, _, err = h.svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c2", Start: at(0, 10), End: at(0, 11)})
	assert.NoError(t, err)
}

func TestSetTimezone(t *testing.T) {
	h := newHarness(t, storage.NewMemory(), Options{})
	ctx := context.Background()
	withWorkingMonday(t, h)

	artist, res, err := h.svc.SetTimezone(ctx, "a1", "Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", artist.Timezone)
	assert.Equal(t, int64(2), artist.Version)
	assert.Equal(t, "timezone.changed", res.Event.Reason)

	_, _, err = h.svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c1", Start: at(0, 8), End: at(0, 9), Status: model.BookingConfirmed})
	require.NoError(t, err, "09:00 Berlin is 08:00 UTC")

	_, _, err = h.svc.SetTimezone(ctx, "a1", "UTC")
	var conflict *model.BookingConflictError
	assert.ErrorAs(t, err, &conflict)

	_, _, err = h.svc.SetTimezone(ctx, "a1", "Mars/Olympus")
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPendingHoldOutlivesDecisionWindowByDefault(t *testing.T) {
	clock := now
	pr := pending.NewReader(pending.DefaultHoldTTL).WithClock(func() time.Time { return clock })
	store := storage.NewMemory()
	svc := NewService(store, compiler.New(compiler.ModeUnion), pr, Options{})
	ctx := context.Background()

	_, _, err := svc.CreateWorking(ctx, "a1", model.WorkingSlot{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60})
	require.NoError(t, err)
	held, _, err := svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c1", Start: at(0, 10), End: at(0, 11)})
	require.NoError(t, err)
	require.Equal(t, model.BookingPending, held.Status)

	clock = clock.Add(48 * time.Hour)

	_, _, err = svc.CreateBooking(ctx, "a1", BookingRequest{CustomerID: "c2", Start: at(0, 10), End: at(0, 11), Status: model.BookingConfirmed})
	var overlap *model.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, held.ID, overlap.ConflictingID)

	_, _, err = svc.CreateDated(ctx, "a1", model.DatedSlot{Kind: model.SlotBlocked, Start: at(0, 10), End: at(0, 12)})
	var conflict *model.BookingConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{held.ID}, conflict.BookingIDs)
}
