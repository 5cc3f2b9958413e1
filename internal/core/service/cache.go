package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrPending signals that a fetch is throttled and no snapshot exists
// yet. Callers keep whatever state they were already rendering.
var ErrPending = errors.New("fetch pending: throttled with no cached snapshot")

var errThrottled = errors.New("fetch throttled")

type cacheEntry[V any] struct {
	value     V
	fetchedAt time.Time
}

// SnapshotCache is a read-through cache with TTL expiry and per-key
// fetch throttling. One instance per payload shape is shared by every
// caller in the process; callers must treat returned snapshots as
// read-only and mutate only through the guarded write path.
//
// Concurrent Gets for the same key share a single in-flight loader.
// The throttle bounds how often the backend is hit per key no matter
// how many components mount at once; it is independent of the TTL.
type SnapshotCache[V any] struct {
	ttl      time.Duration
	throttle time.Duration

	mu       sync.Mutex
	entries  map[string]cacheEntry[V]
	limiters map[string]*rate.Limiter
	group    singleflight.Group

	now func() time.Time
}

func NewSnapshotCache[V any](ttl, throttle time.Duration) *SnapshotCache[V] {
	return &SnapshotCache[V]{
		ttl:      ttl,
		throttle: throttle,
		entries:  make(map[string]cacheEntry[V]),
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// Get returns the cached snapshot when it is younger than the TTL.
// Otherwise it invokes loader, subject to the throttle: a throttled
// call serves the stale snapshot if one exists and ErrPending if not.
func (c *SnapshotCache[V]) Get(ctx context.Context, key string, loader func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		if !c.limiter(key).Allow() {
			return nil, errThrottled
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		if errors.Is(err, errThrottled) {
			// Stale beats empty: the refresh attempt was made and lost
			// to the throttle.
			if v, ok := c.Peek(key); ok {
				return v, nil
			}
			return zero, ErrPending
		}
		return zero, fmt.Errorf("load %q: %w", key, err)
	}
	return res.(V), nil
}

// Refresh bypasses the throttle. It is the write-triggered path: call
// it after a mutation changed the underlying collection.
func (c *SnapshotCache[V]) Refresh(ctx context.Context, key string, loader func(context.Context) (V, error)) (V, error) {
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		// Count the refresh as a fetch attempt so a read immediately
		// after does not hit the backend again.
		c.limiter(key).Allow()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("refresh %q: %w", key, err)
	}
	return res.(V), nil
}

// Peek returns the snapshot for key even when it is stale, without
// touching the backend.
func (c *SnapshotCache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.value, ok
}

// Invalidate drops the entry so the next Get bypasses the TTL. The
// throttle window still applies; use Refresh to force a reload.
func (c *SnapshotCache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *SnapshotCache[V]) store(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: v, fetchedAt: c.now()}
}

func (c *SnapshotCache[V]) limiter(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.throttle), 1)
		c.limiters[key] = l
	}
	return l
}
