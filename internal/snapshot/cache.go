package snapshot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheTTL is how long a loaded snapshot is considered fresh (spec.md
// §4.5).
const CacheTTL = 300 * time.Second

// Health mirrors the degraded/failure-tracking state every query primitive
// can surface through the router's health endpoint.
type Health struct {
	Degraded      bool
	Reason        string
	FailureCount  int
	LastError     string
	LastErrorAt   time.Time
	LastSuccessAt time.Time
}

// Cached wraps a Loader with the TTL and degraded-health bookkeeping of
// spec.md §4.5. Concurrent refresh misses are serialized through a single
// singleflight.Group call so a thundering herd of readers triggers exactly
// one loader.Load.
type Cached struct {
	loader *Loader
	ttl    time.Duration

	mu               sync.RWMutex
	snap             *Snapshot
	forceNextRefresh bool
	health           Health
	group            singleflight.Group
}

// NewCached returns a Cached snapshot wrapper with nothing loaded yet,
// using the default CacheTTL. The first EnsureFresh call performs the
// initial load.
func NewCached(loader *Loader) *Cached {
	return &Cached{loader: loader, snap: New(), ttl: CacheTTL}
}

// NewCachedWithTTL is NewCached with an explicit TTL override.
func NewCachedWithTTL(loader *Loader, ttl time.Duration) *Cached {
	return &Cached{loader: loader, snap: New(), ttl: ttl}
}

// expired reports whether the current snapshot needs reloading: never
// loaded (empty Teams map), past TTL, or a forced refresh is pending.
func (c *Cached) expired() bool {
	if c.forceNextRefresh {
		return true
	}
	if c.snap.Teams.Len() == 0 {
		return true
	}
	return time.Since(c.snap.LoadedAt) >= c.ttl
}

// EnsureFresh returns the current snapshot, triggering a reload first if it
// is expired. A failed reload leaves the prior snapshot in place and marks
// the cache degraded; EnsureFresh still returns the (stale) snapshot rather
// than an error, matching spec.md §4.3's "subsequent reads use the stale
// snapshot".
func (c *Cached) EnsureFresh(ctx context.Context) *Snapshot {
	c.mu.RLock()
	needsRefresh := c.expired()
	snap := c.snap
	c.mu.RUnlock()

	if !needsRefresh {
		return snap
	}

	result, _, _ := c.group.Do("refresh", func() (any, error) {
		c.refresh(ctx)
		return nil, nil
	})
	_ = result

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// ForceRefresh bypasses the TTL check and reloads unconditionally,
// returning the resulting health. This is refresh_cache(force=true) in
// spec.md §4.5.
func (c *Cached) ForceRefresh(ctx context.Context) Health {
	c.group.Do("refresh", func() (any, error) {
		c.refresh(ctx)
		return nil, nil
	})
	return c.Health()
}

// refresh performs one load attempt and updates snap/health accordingly.
// It must only be called from inside the singleflight group so concurrent
// callers collapse onto a single load.
func (c *Cached) refresh(ctx context.Context) {
	snap, err := c.loader.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.health.FailureCount++
		c.health.Degraded = true
		c.health.Reason = err.Error()
		c.health.LastError = err.Error()
		c.health.LastErrorAt = time.Now()
		// force_next_refresh is deliberately left set (or set here if it
		// wasn't already) so the very next read retries the load.
		c.forceNextRefresh = true
		return
	}

	c.snap = snap
	c.forceNextRefresh = false
	c.health.Degraded = false
	c.health.Reason = ""
	c.health.LastSuccessAt = time.Now()
}

// MarkStale sets force_next_refresh, so the next EnsureFresh call reloads
// regardless of TTL. The router calls this after a successful remote
// write, per spec.md §4.5.
func (c *Cached) MarkStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceNextRefresh = true
}

// Health returns the current degraded/failure-tracking state.
func (c *Cached) Health() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}
