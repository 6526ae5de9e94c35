package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedSerializesSameKey(t *testing.T) {
	k := NewKeyed()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(context.Background(), "a1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, k.entries)
}

func TestKeyedDifferentKeysAndCancel(t *testing.T) {
	k := NewKeyed()
	r1, err := k.Acquire(context.Background(), "a1")
	require.NoError(t, err)
	r2, err := k.Acquire(context.Background(), "a2")
	require.NoError(t, err)
	r2()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	r1()
	r1()
	r3, err := k.Acquire(context.Background(), "a1")
	require.NoError(t, err)
	r3()
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLockExclusive(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedis(rdb, RedisOptions{Wait: 50 * time.Millisecond, Retry: 5 * time.Millisecond}, nil)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("schedule:lock:a1"))

	_, err = l.Acquire(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	assert.False(t, mr.Exists("schedule:lock:a1"))

	again, err := l.Acquire(ctx, "a1")
	require.NoError(t, err)
	again()
}

func TestRedisReleaseKeepsForeignLock(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedis(rdb, RedisOptions{TTL: time.Second}, nil)

	release, err := l.Acquire(context.Background(), "a1")
	require.NoError(t, err)

	// Our lease expired and somebody else took the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("schedule:lock:a1", "other"))

	release()
	v, err := mr.Get("schedule:lock:a1")
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}

func TestChainReleasesInReverseOnFailure(t *testing.T) {
	_, rdb := newRedis(t)
	keyed := NewKeyed()
	remote := NewRedis(rdb, RedisOptions{Wait: 30 * time.Millisecond, Retry: 5 * time.Millisecond}, nil)

	holder, err := remote.Acquire(context.Background(), "a1")
	require.NoError(t, err)

	_, err = Chain(keyed, remote).Acquire(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Empty(t, keyed.entries, "keyed lock released after remote failure")

	holder()
	release, err := Chain(keyed, nil, remote).Acquire(context.Background(), "a1")
	require.NoError(t, err)
	release()
}
