// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"context"
	"math"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// FreshnessCache memoises the effective timestamp of each dependency URI
// for the duration of one run (spec.md §3/§4.4), guaranteeing the
// potentially expensive mtime(..., useHash=true) call runs at most once
// per URI per run. Per-key locks (spec.md §9) avoid serialising unrelated
// lookups behind one mutex.
type FreshnessCache struct {
	values cmap.ConcurrentMap[string, float64]

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NegInf is the "dependency absent but acceptable as empty" sentinel
// (spec.md §3).
var NegInf = math.Inf(-1)

func NewFreshnessCache() *FreshnessCache {
	return &FreshnessCache{
		values: cmap.New[float64](),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (c *FreshnessCache) keyLock(key string) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// Get returns the effective timestamp of u, computing it via resource at
// most once per URI for this cache's lifetime.
func (c *FreshnessCache) Get(ctx context.Context, u URI, resource Resource, credential string, useHash bool) (float64, error) {
	key := u.String()
	if v, ok := c.values.Get(key); ok {
		return v, nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Re-check: another goroutine may have populated it while we waited.
	if v, ok := c.values.Get(key); ok {
		return v, nil
	}

	t, err := resource.MTime(ctx, u, credential, useHash)
	if err != nil {
		if IsNotFound(err) {
			c.values.Set(key, NegInf)
			return NegInf, nil
		}
		return 0, err
	}

	c.values.Set(key, t)
	return t, nil
}

// Warm is identical to Get but discards the value, used to satisfy
// spec.md §4.4's "still warm the cache for every dependency" rule when a
// rule's target is found stale by NotFound without needing t_dep_max.
func (c *FreshnessCache) Warm(ctx context.Context, u URI, resource Resource, credential string, useHash bool) {
	_, _ = c.Get(ctx, u, resource, credential, useHash)
}

// lookupCount reports how many distinct URIs have been memoised — used by
// tests asserting the at-most-once contract (spec.md §8).
func (c *FreshnessCache) lookupCount() int {
	return c.values.Count()
}
