package services

import (
	"context"
	"sync"
	"time"

	"github.com/leasingborsen/listing-reconciler/internal/observability"
)

// ListingLocker serializes work on one listing. unlock must be called exactly once.
type ListingLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process ListingLocker. Entries are dropped when no one holds or waits.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: map[string]*keyedEntry{}}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

type chainLocker struct {
	lockers []ListingLocker
	names   []string
	metrics *observability.Metrics
}

// ChainLockers acquires every locker in order and releases in reverse.
// A nil locker in the list is skipped.
func ChainLockers(metrics *observability.Metrics, named map[string]ListingLocker, order ...string) ListingLocker {
	c := &chainLocker{metrics: metrics}
	for _, name := range order {
		if l := named[name]; l != nil {
			c.lockers = append(c.lockers, l)
			c.names = append(c.names, name)
		}
	}
	return c
}

func (c *chainLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlocks := make([]func(), 0, len(c.lockers))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for i, l := range c.lockers {
		start := time.Now()
		unlock, err := l.Lock(ctx, key)
		c.metrics.ObserveLockWait(c.names[i], time.Since(start))
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}
