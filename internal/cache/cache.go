// Package cache memoizes perceptual hashes for the lifetime of a run.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"glyphsim/internal/hash"
	"glyphsim/internal/models"
)

type entry struct {
	hash uint64
	err  error
}

// Cache holds one hash (or one failure) per item. Entries are never
// invalidated, so every caller sees the result of the first lookup.
type Cache struct {
	provider hash.Provider
	timeout  time.Duration

	mu      sync.RWMutex
	entries map[models.ItemID]entry
	flight  singleflight.Group

	lookups atomic.Int64
	misses  atomic.Int64
}

// Option configures a Cache
type Option func(*Cache)

// WithTimeout bounds each provider call
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.timeout = d
	}
}

// New creates a Cache backed by provider
func New(provider hash.Provider, opts ...Option) *Cache {
	c := &Cache{
		provider: provider,
		entries:  make(map[models.ItemID]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) load(id models.ItemID) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Get returns the hash for id, computing it on first use.
// Concurrent callers for the same id share one provider call.
func (c *Cache) Get(ctx context.Context, id models.ItemID) (uint64, error) {
	c.lookups.Add(1)
	if e, ok := c.load(id); ok {
		return e.hash, e.err
	}

	e := c.fetch(ctx, id)

	// A shared flight ends with its leader's cancellation. A caller whose own
	// context is still live looks the item up once more.
	if e.err != nil && ctx.Err() == nil &&
		(errors.Is(e.err, context.Canceled) || errors.Is(e.err, context.DeadlineExceeded)) {
		if _, cached := c.load(id); !cached {
			e = c.fetch(ctx, id)
		}
	}
	return e.hash, e.err
}

func (c *Cache) fetch(ctx context.Context, id models.ItemID) entry {
	v, _, _ := c.flight.Do(string(id), func() (any, error) {
		// A flight for id may have finished between load and Do.
		if e, ok := c.load(id); ok {
			return e, nil
		}

		c.misses.Add(1)
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		h, err := c.provider.Hash(callCtx, id)
		e := entry{hash: h, err: err}

		// A cancelled run is not a property of the item; leave it uncached.
		if err != nil && ctx.Err() != nil {
			return e, nil
		}

		c.mu.Lock()
		c.entries[id] = e
		c.mu.Unlock()
		return e, nil
	})
	return v.(entry)
}

// Len returns the number of cached entries, failures included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the total number of lookups and the number that reached the provider
func (c *Cache) Stats() (lookups, misses int64) {
	return c.lookups.Load(), c.misses.Load()
}

// Warm hashes every id in parallel using at most workers goroutines.
// Items whose hash cannot be computed are returned in skipped; both slices
// keep the order of ids. An error is returned only if ctx is done.
func (c *Cache) Warm(ctx context.Context, ids []models.ItemID, workers int, progress func(done, total int, current models.ItemID)) (available []models.ItemID, skipped []models.SkippedItem, err error) {
	if workers <= 0 {
		workers = 1
	}

	errs := make([]error, len(ids))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, errs[i] = c.Get(gctx, id)
			if err := gctx.Err(); err != nil {
				return err
			}
			n := done.Add(1)
			if progress != nil {
				progress(int(n), len(ids), id)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, id := range ids {
		if errs[i] != nil {
			skipped = append(skipped, models.SkippedItem{ID: id, Reason: errs[i].Error()})
			continue
		}
		available = append(available, id)
	}
	return available, skipped, nil
}
