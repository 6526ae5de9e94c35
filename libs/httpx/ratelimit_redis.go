package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window limiter shared by every schedule-service replica. Writes
// are charged per token subject, reads per client IP; main wires one limiter for each.
type RedisRateLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
	keyFn  KeyFunc
}

// Hit is one charge against a window.
type Hit struct {
	Count   int64
	ResetIn time.Duration
}

// Returns the running count and the window's remaining TTL in ms.
var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string, keyFn KeyFunc) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	if keyFn == nil {
		keyFn = ClientIP
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix, keyFn: keyFn}
}

// Middleware enforces the limit and advertises it through X-RateLimit-* headers. With failOpen
// a Redis outage lets traffic through instead of answering 503.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hit, err := rl.Charge(r.Context(), rl.keyFn(r))
			if err != nil {
				if logger != nil {
					logger.Warn("redis rate limiter error", "prefix", rl.prefix, "err", err)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}
			remaining := int64(rl.limit) - hit.Count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if hit.Count > int64(rl.limit) {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(hit.ResetIn, rl.window)))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Charge counts one hit for key in the current window.
func (rl *RedisRateLimiter) Charge(ctx context.Context, key string) (Hit, error) {
	ms := rl.window.Milliseconds()
	if ms <= 0 {
		ms = int64(time.Minute / time.Millisecond)
	}
	res, err := redisFixedWindowScript.Run(ctx, rl.rdb, []string{rl.prefix + ":" + key}, ms).Result()
	if err != nil {
		return Hit{}, err
	}
	pair, ok := res.([]any)
	if !ok || len(pair) != 2 {
		return Hit{}, fmt.Errorf("unexpected redis script result %T", res)
	}
	count, err := toInt64(pair[0])
	if err != nil {
		return Hit{}, err
	}
	ttl, err := toInt64(pair[1])
	if err != nil {
		return Hit{}, err
	}
	return Hit{Count: count, ResetIn: time.Duration(ttl) * time.Millisecond}, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis script value type %T", v)
	}
}

// retryAfterSeconds rounds up; a key without TTL (-1/-2) falls back to the full window.
func retryAfterSeconds(resetIn, window time.Duration) int {
	if resetIn <= 0 {
		resetIn = window
	}
	return int((resetIn + time.Second - 1) / time.Second)
}
