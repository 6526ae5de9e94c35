// Package query is the read side: compiled weeks (cached), slot listings, pending holds and
// open start times. Reads take no locks.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	otelx "github.com/md-rashed-zaman/artistcal/libs/otel"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/cache"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/compiler"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/interval"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/pending"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/storage"
)

const (
	ViewFinal    = "final"
	ViewOriginal = "original"
)

const tracerName = "schedule-service/query"

// Resolve loads the artist, falling back to defaultTZ for artists that have never written a
// schedule.
func Resolve(ctx context.Context, r storage.Reader, artistID, defaultTZ string) (model.Artist, *time.Location, error) {
	artist, err := r.GetArtist(ctx, artistID)
	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		artist = model.Artist{ID: artistID, Timezone: defaultTZ}
	} else if err != nil {
		return model.Artist{}, nil, err
	}
	loc, err := artist.Location()
	if err != nil {
		return model.Artist{}, nil, err
	}
	return artist, loc, nil
}

// Load reads the compiler inputs overlapping [from, to). The working pattern is always loaded
// whole; bookings are reduced to the ones occupying time.
func Load(ctx context.Context, r storage.Reader, pr *pending.Reader, artistID string, from, to time.Time) (compiler.Inputs, error) {
	var in compiler.Inputs
	var err error
	if in.Working, err = r.ListWorkingSlots(ctx, artistID); err != nil {
		return in, fmt.Errorf("list working slots: %w", err)
	}
	if in.Overrides, err = r.ListDatedSlots(ctx, artistID, model.SlotOverride, from, to); err != nil {
		return in, fmt.Errorf("list overrides: %w", err)
	}
	if in.Blocks, err = r.ListDatedSlots(ctx, artistID, model.SlotBlocked, from, to); err != nil {
		return in, fmt.Errorf("list blocks: %w", err)
	}
	bs, err := r.ListBookings(ctx, artistID, from, to, pending.OccupancyStatuses...)
	if err != nil {
		return in, fmt.Errorf("list bookings: %w", err)
	}
	in.Bookings = pr.Occupancy(bs)
	return in, nil
}

type Config struct {
	DefaultTimezone string
}

type Service struct {
	store     storage.Reader
	compiler  *compiler.Compiler
	pending   *pending.Reader
	cache     cache.WeekCache
	defaultTZ string
	logger    *slog.Logger
}

func NewService(store storage.Reader, c *compiler.Compiler, pr *pending.Reader, wc cache.WeekCache, cfg Config, logger *slog.Logger) *Service {
	if wc == nil {
		wc = cache.Nop{}
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, compiler: c, pending: pr, cache: wc, defaultTZ: cfg.DefaultTimezone, logger: logger}
}

func (s *Service) Artist(ctx context.Context, artistID string) (model.Artist, *time.Location, error) {
	return Resolve(ctx, s.store, artistID, s.defaultTZ)
}

func (s *Service) Final(ctx context.Context, artistID, weekStart string) (compiler.Week, error) {
	return s.week(ctx, artistID, weekStart, ViewFinal)
}

func (s *Service) Original(ctx context.Context, artistID, weekStart string) (compiler.Week, error) {
	return s.week(ctx, artistID, weekStart, ViewOriginal)
}

func (s *Service) week(ctx context.Context, artistID, raw, view string) (week compiler.Week, err error) {
	ctx, span := otelx.Start(ctx, tracerName, "query.week",
		attribute.String("artist_id", artistID), attribute.String("view", view))
	defer func() { otelx.End(span, err) }()

	artist, loc, err := s.Artist(ctx, artistID)
	if err != nil {
		return compiler.Week{}, err
	}
	start, err := model.ParseWeekStart(raw, loc, s.pending.Now())
	if err != nil {
		return compiler.Week{}, err
	}

	key := cache.Key{ArtistID: artistID, View: view, WeekStart: start.Format(model.DateLayout)}
	cached, stamp, ok := s.cache.Lookup(ctx, key)
	if ok && cached.Timezone == loc.String() {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cached, nil
	}

	in, err := Load(ctx, s.store, s.pending, artistID, start, model.WeekEnd(start))
	if err != nil {
		return compiler.Week{}, err
	}
	if view == ViewOriginal {
		week = s.compiler.Original(artist, loc, start, in)
	} else {
		week = s.compiler.Final(artist, loc, start, in)
	}
	s.cache.Store(ctx, key, stamp, week)
	return week, nil
}

func (s *Service) WorkingSlots(ctx context.Context, artistID string) ([]model.WorkingSlot, error) {
	return s.store.ListWorkingSlots(ctx, artistID)
}

// DatedSlots lists overrides or blocks overlapping [from, to); zero bounds are open.
func (s *Service) DatedSlots(ctx context.Context, artistID string, kind model.SlotKind, from, to time.Time) ([]model.DatedSlot, error) {
	if kind == model.SlotWorking {
		return nil, &model.ValidationError{Field: "kind", Reason: "working slots are not dated"}
	}
	return s.store.ListDatedSlots(ctx, artistID, kind, from, to)
}

// Pending returns live pending holds overlapping [from, to).
func (s *Service) Pending(ctx context.Context, artistID string, from, to time.Time) ([]model.Booking, error) {
	return s.pending.Pending(ctx, s.store, artistID, from, to)
}

func (s *Service) Booking(ctx context.Context, artistID, bookingID string) (model.Booking, error) {
	return s.store.GetBooking(ctx, artistID, bookingID)
}

// Openings lists the future start times in the week at which a booking of length duration fits
// the available union without touching an occupying booking.
func (s *Service) Openings(ctx context.Context, artistID, weekStart string, duration, step time.Duration) ([]time.Time, error) {
	if duration <= 0 {
		return nil, &model.ValidationError{Field: "duration", Reason: "must be positive"}
	}
	if step <= 0 {
		step = duration
	}
	_, loc, err := s.Artist(ctx, artistID)
	if err != nil {
		return nil, err
	}
	now := s.pending.Now()
	start, err := model.ParseWeekStart(weekStart, loc, now)
	if err != nil {
		return nil, err
	}
	end := model.WeekEnd(start)
	in, err := Load(ctx, s.store, s.pending, artistID, start, end)
	if err != nil {
		return nil, err
	}

	free := s.compiler.Available(loc, start, end, in)
	busy := make([]interval.Interval, 0, len(in.Bookings))
	for _, b := range in.Bookings {
		busy = append(busy, interval.New(b.Start, b.End, interval.Booked, b.ID))
	}
	starts := interval.StartTimes(free, busy, duration, step, now)
	for i := range starts {
		starts[i] = starts[i].In(loc)
	}
	return starts, nil
}
