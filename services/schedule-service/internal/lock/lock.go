// Package lock serializes schedule mutations per artist. Keyed covers one process; Redis covers
// every replica sharing the same Redis.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when a lock could not be taken before the caller gave up.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive access per key. release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// Keyed is an in-process mutex per key. Entries are dropped once nobody holds or waits on them.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyed() *Keyed {
	return &Keyed{entries: map[string]*keyedEntry{}}
}

func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, e)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.unref(key, e)
		})
	}, nil
}

func (k *Keyed) unref(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Chain acquires every locker in order and releases them in reverse.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

type chain []Locker

func (c chain) Acquire(ctx context.Context, key string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		if l == nil {
			continue
		}
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
