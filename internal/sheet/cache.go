package sheet

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	appLog "choircal/internal/log"
)

// Entry is a cached export and the time it was stored.
type Entry struct {
	Value    []byte
	StoredAt time.Time
}

// Cache stores exports by source ID.
type Cache interface {
	Get(key string) (Entry, bool)
	Put(key string, e Entry)
	Delete(key string)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *MemoryCache) Put(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// FetchObserver is told how each CachedSource fetch was served.
type FetchObserver interface {
	ObserveFetch(source string, result string, d time.Duration)
}

// Fetch results reported to a FetchObserver.
const (
	ResultCache = "cache"
	ResultOK    = "ok"
	ResultError = "error"
)

// ErrTimeout is returned when the underlying source does not answer within
// the configured timeout.
var ErrTimeout = errors.New("sheet: fetch timed out")

// CachedSource serves a Source through a Cache with a freshness window.
// Concurrent misses share one upstream fetch.
type CachedSource struct {
	src      Source
	cache    Cache
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	observer FetchObserver

	group singleflight.Group
}

// CachedOption customizes a CachedSource.
type CachedOption func(*CachedSource)

// WithClock replaces time.Now for freshness checks.
func WithClock(now func() time.Time) CachedOption {
	return func(c *CachedSource) { c.now = now }
}

// WithTimeout bounds each upstream fetch. Zero means no extra bound.
func WithTimeout(d time.Duration) CachedOption {
	return func(c *CachedSource) { c.timeout = d }
}

// WithObserver reports fetch outcomes, e.g. to metrics.
func WithObserver(o FetchObserver) CachedOption {
	return func(c *CachedSource) { c.observer = o }
}

func NewCachedSource(src Source, cache Cache, ttl time.Duration, opts ...CachedOption) *CachedSource {
	c := &CachedSource{
		src:   src,
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedSource) ID() string { return c.src.ID() }

// Fetch returns the cached export while it is fresh and refetches
// otherwise.
func (c *CachedSource) Fetch(ctx context.Context) ([]byte, error) {
	key := c.src.ID()
	if e, ok := c.cache.Get(key); ok && c.now().Sub(e.StoredAt) < c.ttl {
		c.observe(ResultCache, 0)
		return e.Value, nil
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own ctx is done.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetch(fetchCtx, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			appLog.Debug("sheet fetch shared", "id", key)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *CachedSource) fetch(ctx context.Context, key string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.now()
	body, err := c.src.Fetch(ctx)
	elapsed := c.now().Sub(start)
	if err != nil {
		c.observe(ResultError, elapsed)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Join(ErrTimeout, err)
		}
		return nil, err
	}

	c.cache.Put(key, Entry{Value: body, StoredAt: c.now()})
	c.observe(ResultOK, elapsed)
	return body, nil
}

// Invalidate drops the cached export so the next Fetch goes upstream.
func (c *CachedSource) Invalidate() {
	c.cache.Delete(c.src.ID())
}

func (c *CachedSource) observe(result string, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveFetch(c.src.ID(), result, d)
	}
}
