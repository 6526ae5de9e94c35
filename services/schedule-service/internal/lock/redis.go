package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type RedisOptions struct {
	Prefix string
	// TTL bounds how long a crashed holder can keep the lock.
	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.Prefix == "" {
		o.Prefix = "schedule:lock"
	}
	if o.TTL <= 0 {
		o.TTL = 10 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 5 * time.Second
	}
	if o.Retry <= 0 {
		o.Retry = 25 * time.Millisecond
	}
	return o
}

// Redis is a SET NX lock with a random token; only the token holder can release it.
type Redis struct {
	rdb    RedisClient
	opts   RedisOptions
	logger *slog.Logger
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedis(rdb RedisClient, opts RedisOptions, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{rdb: rdb, opts: opts.withDefaults(), logger: logger}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.opts.Prefix + ":" + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.Wait)
	defer cancel()

	ticker := time.NewTicker(r.opts.Retry)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(waitCtx, k, token, r.opts.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-waitCtx.Done():
			return nil, errors.Join(ErrNotAcquired, waitCtx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := unlockScript.Run(rctx, r.rdb, []string{k}, token).Err(); err != nil {
				r.logger.Warn("redis unlock failed", "key", k, "err", err)
			}
		})
	}, nil
}
