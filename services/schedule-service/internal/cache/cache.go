// Package cache keeps compiled weeks in Redis. Each artist has a generation counter that is
// bumped on every committed change; cached entries are keyed by generation, so invalidation is a
// single INCR and stale entries simply age out.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/compiler"
)

// Key names one cached week. View is "final" or "original".
type Key struct {
	ArtistID  string
	View      string
	WeekStart string
}

// Stamp is the generation observed before the week was compiled. Storing with a stale stamp
// writes under an already-invalidated generation.
type Stamp int64

// NoStamp disables Store; returned when the cache could not be read.
const NoStamp Stamp = -1

type WeekCache interface {
	Lookup(ctx context.Context, key Key) (compiler.Week, Stamp, bool)
	Store(ctx context.Context, key Key, stamp Stamp, week compiler.Week)
	Invalidate(ctx context.Context, artistID string) error
}

type Nop struct{}

func (Nop) Lookup(context.Context, Key) (compiler.Week, Stamp, bool) {
	return compiler.Week{}, NoStamp, false
}
func (Nop) Store(context.Context, Key, Stamp, compiler.Week) {}
func (Nop) Invalidate(context.Context, string) error        { return nil }

type RedisOptions struct {
	Prefix           string
	TTL              time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.Prefix == "" {
		o.Prefix = "schedule:week"
	}
	if o.TTL <= 0 {
		o.TTL = 10 * time.Minute
	}
	if o.FailureThreshold == 0 {
		o.FailureThreshold = 5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 30 * time.Second
	}
	return o
}

// Redis is a WeekCache on go-redis. Redis errors count against a circuit breaker; while it is
// open every lookup is a miss and nothing is written, so reads fall through to the database.
type Redis struct {
	rdb     redis.Cmdable
	opts    RedisOptions
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

func NewRedis(rdb redis.Cmdable, opts RedisOptions, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "week-cache",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Redis{rdb: rdb, opts: opts, breaker: breaker, logger: logger}
}

func (c *Redis) genKey(artistID string) string {
	return c.opts.Prefix + ":gen:" + artistID
}

func (c *Redis) weekKey(k Key, gen Stamp) string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", c.opts.Prefix, k.ArtistID, gen, k.View, k.WeekStart)
}

type lookup struct {
	gen  Stamp
	data []byte
}

func (c *Redis) Lookup(ctx context.Context, key Key) (compiler.Week, Stamp, bool) {
	res, err := c.breaker.Execute(func() (any, error) {
		gen, err := c.rdb.Get(ctx, c.genKey(key.ArtistID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		data, err := c.rdb.Get(ctx, c.weekKey(key, Stamp(gen))).Bytes()
		if errors.Is(err, redis.Nil) {
			return lookup{gen: Stamp(gen)}, nil
		}
		if err != nil {
			return nil, err
		}
		return lookup{gen: Stamp(gen), data: data}, nil
	})
	if err != nil {
		c.logger.Debug("week cache lookup failed", "artist_id", key.ArtistID, "err", err)
		return compiler.Week{}, NoStamp, false
	}
	l := res.(lookup)
	if l.data == nil {
		return compiler.Week{}, l.gen, false
	}
	var w compiler.Week
	if err := json.Unmarshal(l.data, &w); err != nil {
		c.logger.Warn("week cache entry unreadable", "artist_id", key.ArtistID, "err", err)
		return compiler.Week{}, l.gen, false
	}
	return w, l.gen, true
}

func (c *Redis) Store(ctx context.Context, key Key, stamp Stamp, week compiler.Week) {
	if stamp == NoStamp {
		return
	}
	data, err := json.Marshal(week)
	if err != nil {
		c.logger.Warn("week cache encode failed", "artist_id", key.ArtistID, "err", err)
		return
	}
	_, err = c.breaker.Execute(func() (any, error) {
		return nil, c.rdb.Set(ctx, c.weekKey(key, stamp), data, c.opts.TTL).Err()
	})
	if err != nil {
		c.logger.Debug("week cache store failed", "artist_id", key.ArtistID, "err", err)
	}
}

// Invalidate bypasses the breaker: a skipped invalidation would serve stale weeks.
func (c *Redis) Invalidate(ctx context.Context, artistID string) error {
	if err := c.rdb.Incr(ctx, c.genKey(artistID)).Err(); err != nil {
		return fmt.Errorf("invalidate week cache: %w", err)
	}
	return nil
}

func (c *Redis) State() gobreaker.State {
	return c.breaker.State()
}
