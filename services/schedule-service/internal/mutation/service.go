// Package mutation is the only writer of schedules. Every change runs under the artist's lock in
// one transaction: validate, persist, append the ScheduleChanged outbox row, bump the artist
// version, compile the affected week and commit. Committed changes then invalidate the week cache
// and are published to live subscribers.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	otelx "github.com/md-rashed-zaman/artistcal/libs/otel"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/cache"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/compiler"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/lock"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/pending"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/query"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/storage"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/validator"
)

const tracerName = "schedule-service/mutation"

// Notifier receives committed changes.
type Notifier interface {
	Publish(ctx context.Context, evt model.ScheduleChanged)
}

type Options struct {
	DefaultTimezone string
	// Locker defaults to an in-process keyed lock.
	Locker   lock.Locker
	Cache    cache.WeekCache
	Notifier Notifier
	Logger   *slog.Logger
}

type Service struct {
	store     storage.Store
	compiler  *compiler.Compiler
	validator *validator.Validator
	pending   *pending.Reader
	locker    lock.Locker
	cache     cache.WeekCache
	notifier  Notifier
	defaultTZ string
	newID     func() string
	logger    *slog.Logger
}

func NewService(store storage.Store, c *compiler.Compiler, pr *pending.Reader, opts Options) *Service {
	if opts.Locker == nil {
		opts.Locker = lock.NewKeyed()
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:     store,
		compiler:  c,
		validator: validator.New(c, pr),
		pending:   pr,
		locker:    opts.Locker,
		cache:     opts.Cache,
		notifier:  opts.Notifier,
		defaultTZ: opts.DefaultTimezone,
		newID:     uuid.NewString,
		logger:    opts.Logger,
	}
}

// Result is what a committed change produced: the event and the affected week compiled inside
// the transaction.
type Result struct {
	Event model.ScheduleChanged
	Week  compiler.Week
}

// change is filled in by a mutation step. A nil change means nothing was written.
type change struct {
	reason    string
	recurring bool
	at        time.Time
	loc       *time.Location
}

type step func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error)

func (s *Service) mutate(ctx context.Context, artistID, op string, fn step) (res Result, err error) {
	ctx, span := otelx.Start(ctx, tracerName, "mutation."+op, attribute.String("artist_id", artistID))
	defer func() { otelx.End(span, err) }()

	if artistID == "" {
		return Result{}, &model.ValidationError{Field: "artistId", Reason: "required"}
	}

	release, err := s.locker.Acquire(ctx, artistID)
	if err != nil {
		return Result{}, fmt.Errorf("lock artist %s: %w", artistID, err)
	}
	defer release()

	for attempt := 0; ; attempt++ {
		res, err = s.attempt(ctx, artistID, fn)
		var cc *model.ConcurrencyConflictError
		if errors.As(err, &cc) && attempt == 0 {
			s.logger.Warn("schedule version moved, retrying", "artist_id", artistID, "op", op)
			span.SetAttributes(attribute.Bool("retried", true))
			continue
		}
		break
	}
	if err != nil || res.Event.EventID == "" {
		return res, err
	}

	if err := s.cache.Invalidate(ctx, artistID); err != nil {
		s.logger.Error("week cache invalidation failed", "artist_id", artistID, "err", err)
	}
	if s.notifier != nil {
		s.notifier.Publish(ctx, res.Event)
	}
	s.logger.Info("schedule changed",
		"artist_id", artistID,
		"reason", res.Event.Reason,
		"version", res.Event.Version,
		"week_start", res.Event.WeekStart,
	)
	return res, nil
}

func (s *Service) attempt(ctx context.Context, artistID string, fn step) (Result, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	artist, err := tx.GetArtist(ctx, artistID)
	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		artist = model.Artist{ID: artistID, Timezone: s.defaultTZ}
		if err := tx.UpsertArtist(ctx, artist); err != nil {
			return Result{}, fmt.Errorf("create artist: %w", err)
		}
	} else if err != nil {
		return Result{}, err
	}
	loc, err := artist.Location()
	if err != nil {
		return Result{}, err
	}

	ch, err := fn(ctx, tx, artist, loc)
	if err != nil || ch == nil {
		return Result{}, err
	}
	if ch.loc != nil {
		loc = ch.loc
		artist.Timezone = loc.String()
	}

	version, err := tx.BumpVersion(ctx, artistID, artist.Version)
	if err != nil {
		return Result{}, err
	}
	artist.Version = version

	weekStart := model.WeekOf(ch.at, loc)
	evt := model.ScheduleChanged{
		EventID:    s.newID(),
		ArtistID:   artistID,
		WeekStart:  weekStart.Format(model.DateLayout),
		Recurring:  ch.recurring,
		Reason:     ch.reason,
		Version:    version,
		OccurredAt: s.pending.Now().UTC(),
	}
	oe, err := outbox.ScheduleChangedEvent(evt)
	if err != nil {
		return Result{}, err
	}
	if err := tx.AppendEvent(ctx, oe); err != nil {
		return Result{}, fmt.Errorf("append outbox event: %w", err)
	}

	in, err := query.Load(ctx, tx, s.pending, artistID, weekStart, model.WeekEnd(weekStart))
	if err != nil {
		return Result{}, err
	}
	week := s.compiler.Final(artist, loc, weekStart, in)

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return Result{Event: evt, Week: week}, nil
}
