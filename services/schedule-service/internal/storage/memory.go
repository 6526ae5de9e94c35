package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/outbox"
)

var errTxDone = errors.New("transaction already finished")

// Memory keeps everything in process. Transactions work on a private copy of each artist they
// touch and are checked against the committed version at Commit, mirroring the optimistic
// version check of the Postgres store.
type Memory struct {
	mu      sync.RWMutex
	artists map[string]*artistState
	events  []outbox.Event
}

type artistState struct {
	artist   model.Artist
	exists   bool
	working  map[string]model.WorkingSlot
	dated    map[string]model.DatedSlot
	bookings map[string]model.Booking
}

func newArtistState(id string) *artistState {
	return &artistState{
		artist:   model.Artist{ID: id},
		working:  map[string]model.WorkingSlot{},
		dated:    map[string]model.DatedSlot{},
		bookings: map[string]model.Booking{},
	}
}

func (s *artistState) clone() *artistState {
	return &artistState{
		artist:   s.artist,
		exists:   s.exists,
		working:  maps.Clone(s.working),
		dated:    maps.Clone(s.dated),
		bookings: maps.Clone(s.bookings),
	}
}

func NewMemory() *Memory {
	return &Memory{artists: map[string]*artistState{}}
}

func (m *Memory) Ping(context.Context) error { return nil }

// Events returns every committed outbox event, oldest first.
func (m *Memory) Events() []outbox.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}

// snapshot returns a private copy of the artist's committed state.
func (m *Memory) snapshot(artistID string) *artistState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.artists[artistID]; ok {
		return st.clone()
	}
	return newArtistState(artistID)
}

func (m *Memory) read(artistID string) stateReader {
	return stateReader{st: m.snapshot(artistID)}
}

func (m *Memory) GetArtist(_ context.Context, artistID string) (model.Artist, error) {
	return m.read(artistID).artist()
}

func (m *Memory) ListWorkingSlots(_ context.Context, artistID string) ([]model.WorkingSlot, error) {
	return m.read(artistID).listWorking(), nil
}

func (m *Memory) GetWorkingSlot(_ context.Context, artistID, id string) (model.WorkingSlot, error) {
	return m.read(artistID).working(id)
}

func (m *Memory) ListDatedSlots(_ context.Context, artistID string, kind model.SlotKind, from, to time.Time) ([]model.DatedSlot, error) {
	return m.read(artistID).listDated(kind, from, to), nil
}

func (m *Memory) GetDatedSlot(_ context.Context, artistID string, kind model.SlotKind, id string) (model.DatedSlot, error) {
	return m.read(artistID).dated(kind, id)
}

func (m *Memory) ListBookings(_ context.Context, artistID string, from, to time.Time, statuses ...model.BookingStatus) ([]model.Booking, error) {
	return m.read(artistID).listBookings(from, to, statuses), nil
}

func (m *Memory) GetBooking(_ context.Context, artistID, id string) (model.Booking, error) {
	return m.read(artistID).booking(id)
}

func (m *Memory) Begin(context.Context) (Tx, error) {
	return &memTx{
		store: m,
		views: map[string]*artistState{},
		base:  map[string]int64{},
		dirty: map[string]bool{},
	}, nil
}

type stateReader struct {
	st *artistState
}

func (r stateReader) artist() (model.Artist, error) {
	if !r.st.exists {
		return model.Artist{}, &model.NotFoundError{Entity: "artist", ID: r.st.artist.ID}
	}
	return r.st.artist, nil
}

func (r stateReader) listWorking() []model.WorkingSlot {
	out := slices.Collect(maps.Values(r.st.working))
	slices.SortFunc(out, func(a, b model.WorkingSlot) int {
		// Monday first.
		if c := (int(a.Weekday)+6)%7 - (int(b.Weekday)+6)%7; c != 0 {
			return c
		}
		return a.StartMinute - b.StartMinute
	})
	return out
}

func (r stateReader) working(id string) (model.WorkingSlot, error) {
	s, ok := r.st.working[id]
	if !ok {
		return model.WorkingSlot{}, &model.NotFoundError{Entity: string(model.SlotWorking), ID: id}
	}
	return s, nil
}

func (r stateReader) listDated(kind model.SlotKind, from, to time.Time) []model.DatedSlot {
	var out []model.DatedSlot
	for _, s := range r.st.dated {
		if s.Kind == kind && overlapsRange(s.Start, s.End, from, to) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b model.DatedSlot) int { return a.Start.Compare(b.Start) })
	return out
}

func (r stateReader) dated(kind model.SlotKind, id string) (model.DatedSlot, error) {
	s, ok := r.st.dated[id]
	if !ok || s.Kind != kind {
		return model.DatedSlot{}, &model.NotFoundError{Entity: string(kind), ID: id}
	}
	return s, nil
}

func (r stateReader) listBookings(from, to time.Time, statuses []model.BookingStatus) []model.Booking {
	var out []model.Booking
	for _, b := range r.st.bookings {
		if hasStatus(b.Status, statuses) && overlapsRange(b.Start, b.End, from, to) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b model.Booking) int { return a.Start.Compare(b.Start) })
	return out
}

func (r stateReader) booking(id string) (model.Booking, error) {
	b, ok := r.st.bookings[id]
	if !ok {
		return model.Booking{}, &model.NotFoundError{Entity: "booking", ID: id}
	}
	return b, nil
}

type memTx struct {
	store  *Memory
	views  map[string]*artistState
	base   map[string]int64
	dirty  map[string]bool
	events []outbox.Event
	done   bool
}

func (tx *memTx) view(artistID string) *artistState {
	if st, ok := tx.views[artistID]; ok {
		return st
	}
	st := tx.store.snapshot(artistID)
	tx.views[artistID] = st
	tx.base[artistID] = st.artist.Version
	return st
}

func (tx *memTx) write(artistID string) (*artistState, error) {
	if tx.done {
		return nil, errTxDone
	}
	tx.dirty[artistID] = true
	return tx.view(artistID), nil
}

func (tx *memTx) read(artistID string) stateReader {
	return stateReader{st: tx.view(artistID)}
}

func (tx *memTx) GetArtist(_ context.Context, artistID string) (model.Artist, error) {
	return tx.read(artistID).artist()
}

func (tx *memTx) ListWorkingSlots(_ context.Context, artistID string) ([]model.WorkingSlot, error) {
	return tx.read(artistID).listWorking(), nil
}

func (tx *memTx) GetWorkingSlot(_ context.Context, artistID, id string) (model.WorkingSlot, error) {
	return tx.read(artistID).working(id)
}

func (tx *memTx) ListDatedSlots(_ context.Context, artistID string, kind model.SlotKind, from, to time.Time) ([]model.DatedSlot, error) {
	return tx.read(artistID).listDated(kind, from, to), nil
}

func (tx *memTx) GetDatedSlot(_ context.Context, artistID string, kind model.SlotKind, id string) (model.DatedSlot, error) {
	return tx.read(artistID).dated(kind, id)
}

func (tx *memTx) ListBookings(_ context.Context, artistID string, from, to time.Time, statuses ...model.BookingStatus) ([]model.Booking, error) {
	return tx.read(artistID).listBookings(from, to, statuses), nil
}

func (tx *memTx) GetBooking(_ context.Context, artistID, id string) (model.Booking, error) {
	return tx.read(artistID).booking(id)
}

func (tx *memTx) UpsertArtist(_ context.Context, a model.Artist) error {
	st, err := tx.write(a.ID)
	if err != nil {
		return err
	}
	st.artist.Timezone = a.Timezone
	st.exists = true
	return nil
}

func (tx *memTx) InsertWorkingSlot(_ context.Context, s model.WorkingSlot) error {
	st, err := tx.write(s.ArtistID)
	if err != nil {
		return err
	}
	if _, ok := st.working[s.ID]; ok {
		return fmt.Errorf("working slot %s already exists", s.ID)
	}
	st.working[s.ID] = s
	return nil
}

func (tx *memTx) UpdateWorkingSlot(_ context.Context, s model.WorkingSlot) error {
	st, err := tx.write(s.ArtistID)
	if err != nil {
		return err
	}
	if _, ok := st.working[s.ID]; !ok {
		return &model.NotFoundError{Entity: string(model.SlotWorking), ID: s.ID}
	}
	st.working[s.ID] = s
	return nil
}

func (tx *memTx) DeleteWorkingSlot(_ context.Context, artistID, id string) error {
	st, err := tx.write(artistID)
	if err != nil {
		return err
	}
	if _, ok := st.working[id]; !ok {
		return &model.NotFoundError{Entity: string(model.SlotWorking), ID: id}
	}
	delete(st.working, id)
	return nil
}

func (tx *memTx) InsertDatedSlot(_ context.Context, s model.DatedSlot) error {
	st, err := tx.write(s.ArtistID)
	if err != nil {
		return err
	}
	if _, ok := st.dated[s.ID]; ok {
		return fmt.Errorf("%s slot %s already exists", s.Kind, s.ID)
	}
	st.dated[s.ID] = s
	return nil
}

func (tx *memTx) UpdateDatedSlot(_ context.Context, s model.DatedSlot) error {
	st, err := tx.write(s.ArtistID)
	if err != nil {
		return err
	}
	if cur, ok := st.dated[s.ID]; !ok || cur.Kind != s.Kind {
		return &model.NotFoundError{Entity: string(s.Kind), ID: s.ID}
	}
	st.dated[s.ID] = s
	return nil
}

func (tx *memTx) DeleteDatedSlot(_ context.Context, artistID string, kind model.SlotKind, id string) error {
	st, err := tx.write(artistID)
	if err != nil {
		return err
	}
	if cur, ok := st.dated[id]; !ok || cur.Kind != kind {
		return &model.NotFoundError{Entity: string(kind), ID: id}
	}
	delete(st.dated, id)
	return nil
}

func (tx *memTx) InsertBooking(_ context.Context, b model.Booking) error {
	st, err := tx.write(b.ArtistID)
	if err != nil {
		return err
	}
	if _, ok := st.bookings[b.ID]; ok {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	st.bookings[b.ID] = b
	return nil
}

func (tx *memTx) UpdateBookingStatus(_ context.Context, artistID, id string, status model.BookingStatus, at time.Time) error {
	st, err := tx.write(artistID)
	if err != nil {
		return err
	}
	b, ok := st.bookings[id]
	if !ok {
		return &model.NotFoundError{Entity: "booking", ID: id}
	}
	b.Status = status
	b.UpdatedAt = at
	st.bookings[id] = b
	return nil
}

func (tx *memTx) BumpVersion(_ context.Context, artistID string, expected int64) (int64, error) {
	st, err := tx.write(artistID)
	if err != nil {
		return 0, err
	}
	if !st.exists || st.artist.Version != expected {
		return 0, &model.ConcurrencyConflictError{ArtistID: artistID}
	}
	st.artist.Version++
	return st.artist.Version, nil
}

func (tx *memTx) AppendEvent(_ context.Context, evt outbox.Event) error {
	if tx.done {
		return errTxDone
	}
	tx.events = append(tx.events, evt)
	return nil
}

func (tx *memTx) Commit(context.Context) error {
	if tx.done {
		return errTxDone
	}
	tx.done = true

	m := tx.store
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range tx.dirty {
		var committed int64
		if cur, ok := m.artists[id]; ok {
			committed = cur.artist.Version
		}
		if committed != tx.base[id] {
			return &model.ConcurrencyConflictError{ArtistID: id}
		}
	}
	for id := range tx.dirty {
		m.artists[id] = tx.views[id]
	}
	m.events = append(m.events, tx.events...)
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	tx.done = true
	return nil
}
