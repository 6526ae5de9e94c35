package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/artistcal/libs/db"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/outbox"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the production store. Exclusion constraints on dated_slots and bookings back up
// the validator; schedule_version on artists is the optimistic lock.
type Postgres struct {
	pgReader
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgres(pool *db.Pool, outboxRepo *outbox.Repository) *Postgres {
	return &Postgres{pgReader: pgReader{q: pool}, pool: pool, outbox: outboxRepo}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{pgReader: pgReader{q: tx, lockArtist: true}, tx: tx, outbox: p.outbox}, nil
}

type pgReader struct {
	q querier
	// lockArtist makes GetArtist take the row lock inside a mutation tx, so writers from other
	// replicas queue behind it instead of failing at BumpVersion.
	lockArtist bool
}

const selectArtist = `
		SELECT id, timezone, schedule_version
		FROM artists
		WHERE id = $1`

func artistQuery(lock bool) string {
	if lock {
		return selectArtist + `
		FOR UPDATE`
	}
	return selectArtist
}

func (r pgReader) GetArtist(ctx context.Context, artistID string) (model.Artist, error) {
	var a model.Artist
	err := r.q.QueryRow(ctx, artistQuery(r.lockArtist), artistID).Scan(&a.ID, &a.Timezone, &a.Version)
	if err != nil {
		return model.Artist{}, notFound(err, "artist", artistID)
	}
	return a, nil
}

const workingColumns = `id, artist_id, weekday, start_minute, end_minute, note`

func scanWorking(row pgx.Row) (model.WorkingSlot, error) {
	var s model.WorkingSlot
	var weekday int16
	var start, end int16
	if err := row.Scan(&s.ID, &s.ArtistID, &weekday, &start, &end, &s.Note); err != nil {
		return model.WorkingSlot{}, err
	}
	s.Weekday = time.Weekday(weekday)
	s.StartMinute = int(start)
	s.EndMinute = int(end)
	return s, nil
}

func (r pgReader) ListWorkingSlots(ctx context.Context, artistID string) ([]model.WorkingSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+workingColumns+`
		FROM working_slots
		WHERE artist_id = $1
		ORDER BY (weekday + 6) % 7, start_minute
	`, artistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkingSlot
	for rows.Next() {
		s, err := scanWorking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r pgReader) GetWorkingSlot(ctx context.Context, artistID, id string) (model.WorkingSlot, error) {
	s, err := scanWorking(r.q.QueryRow(ctx, `
		SELECT `+workingColumns+`
		FROM working_slots
		WHERE artist_id = $1 AND id = $2
	`, artistID, id))
	if err != nil {
		return model.WorkingSlot{}, notFound(err, string(model.SlotWorking), id)
	}
	return s, nil
}

const datedColumns = `id, artist_id, kind, start_at, end_at, note`

func scanDated(row pgx.Row) (model.DatedSlot, error) {
	var s model.DatedSlot
	var kind string
	if err := row.Scan(&s.ID, &s.ArtistID, &kind, &s.Start, &s.End, &s.Note); err != nil {
		return model.DatedSlot{}, err
	}
	s.Kind = model.SlotKind(kind)
	return s, nil
}

func (r pgReader) ListDatedSlots(ctx context.Context, artistID string, kind model.SlotKind, from, to time.Time) ([]model.DatedSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+datedColumns+`
		FROM dated_slots
		WHERE artist_id = $1
			AND kind = $2
			AND ($4::timestamptz IS NULL OR start_at < $4)
			AND ($3::timestamptz IS NULL OR end_at > $3)
		ORDER BY start_at
	`, artistID, string(kind), nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DatedSlot
	for rows.Next() {
		s, err := scanDated(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r pgReader) GetDatedSlot(ctx context.Context, artistID string, kind model.SlotKind, id string) (model.DatedSlot, error) {
	s, err := scanDated(r.q.QueryRow(ctx, `
		SELECT `+datedColumns+`
		FROM dated_slots
		WHERE artist_id = $1 AND kind = $2 AND id = $3
	`, artistID, string(kind), id))
	if err != nil {
		return model.DatedSlot{}, notFound(err, string(kind), id)
	}
	return s, nil
}

const bookingColumns = `id, artist_id, customer_id, service_id, start_at, end_at, status, created_at, updated_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var status string
	if err := row.Scan(&b.ID, &b.ArtistID, &b.CustomerID, &b.ServiceID, &b.Start, &b.End, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	return b, nil
}

func (r pgReader) ListBookings(ctx context.Context, artistID string, from, to time.Time, statuses ...model.BookingStatus) ([]model.Booking, error) {
	statusFilter := make([]string, 0, len(statuses))
	for _, s := range statuses {
		statusFilter = append(statusFilter, string(s))
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE artist_id = $1
			AND ($4::timestamptz IS NULL OR start_at < $4)
			AND ($3::timestamptz IS NULL OR end_at > $3)
			AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY start_at
	`, artistID, statusFilter, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r pgReader) GetBooking(ctx context.Context, artistID, id string) (model.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE artist_id = $1 AND id = $2
	`, artistID, id))
	if err != nil {
		return model.Booking{}, notFound(err, "booking", id)
	}
	return b, nil
}

type pgTx struct {
	pgReader
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *pgTx) UpsertArtist(ctx context.Context, a model.Artist) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO artists (id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET timezone = EXCLUDED.timezone, updated_at = now()
	`, a.ID, a.Timezone)
	return err
}

func (t *pgTx) InsertWorkingSlot(ctx context.Context, s model.WorkingSlot) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO working_slots (id, artist_id, weekday, start_minute, end_minute, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.ArtistID, int16(s.Weekday), int16(s.StartMinute), int16(s.EndMinute), s.Note)
	return err
}

func (t *pgTx) UpdateWorkingSlot(ctx context.Context, s model.WorkingSlot) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE working_slots
		SET weekday = $3, start_minute = $4, end_minute = $5, note = $6, updated_at = now()
		WHERE artist_id = $1 AND id = $2
	`, s.ArtistID, s.ID, int16(s.Weekday), int16(s.StartMinute), int16(s.EndMinute), s.Note)
	return affected(tag, err, string(model.SlotWorking), s.ID)
}

func (t *pgTx) DeleteWorkingSlot(ctx context.Context, artistID, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM working_slots WHERE artist_id = $1 AND id = $2`, artistID, id)
	return affected(tag, err, string(model.SlotWorking), id)
}

func (t *pgTx) InsertDatedSlot(ctx context.Context, s model.DatedSlot) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO dated_slots (id, artist_id, kind, start_at, end_at, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.ArtistID, string(s.Kind), s.Start, s.End, s.Note)
	return overlap(err, string(s.Kind))
}

func (t *pgTx) UpdateDatedSlot(ctx context.Context, s model.DatedSlot) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE dated_slots
		SET start_at = $4, end_at = $5, note = $6, updated_at = now()
		WHERE artist_id = $1 AND kind = $2 AND id = $3
	`, s.ArtistID, string(s.Kind), s.ID, s.Start, s.End, s.Note)
	return affected(tag, overlap(err, string(s.Kind)), string(s.Kind), s.ID)
}

func (t *pgTx) DeleteDatedSlot(ctx context.Context, artistID string, kind model.SlotKind, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM dated_slots WHERE artist_id = $1 AND kind = $2 AND id = $3`, artistID, string(kind), id)
	return affected(tag, err, string(kind), id)
}

func (t *pgTx) InsertBooking(ctx context.Context, b model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (id, artist_id, customer_id, service_id, start_at, end_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, b.ID, b.ArtistID, b.CustomerID, b.ServiceID, b.Start, b.End, string(b.Status), b.CreatedAt)
	return overlap(err, "booking")
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, artistID, id string, status model.BookingStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = $3, updated_at = $4
		WHERE artist_id = $1 AND id = $2
	`, artistID, id, string(status), at)
	return affected(tag, overlap(err, "booking"), "booking", id)
}

func (t *pgTx) BumpVersion(ctx context.Context, artistID string, expected int64) (int64, error) {
	var next int64
	err := t.tx.QueryRow(ctx, `
		UPDATE artists
		SET schedule_version = schedule_version + 1, updated_at = now()
		WHERE id = $1 AND schedule_version = $2
		RETURNING schedule_version
	`, artistID, expected).Scan(&next)
	if db.IsNotFound(err) {
		return 0, &model.ConcurrencyConflictError{ArtistID: artistID}
	}
	return next, err
}

func (t *pgTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func notFound(err error, entity, id string) error {
	if db.IsNotFound(err) {
		return &model.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func affected(tag pgconn.CommandTag, err error, entity, id string) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// overlap maps an exclusion constraint hit to the domain error.
func overlap(err error, kind string) error {
	if db.IsExclusionViolation(err) {
		return &model.OverlapError{Kind: kind}
	}
	return err
}
