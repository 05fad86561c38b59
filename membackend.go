// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// memEntry is one record in an in-process "remote" resource.
type memEntry struct {
	mtime float64
}

// MemBackend is a demonstration resource backend for a non-"file" scheme
// (the demo host registers it under "mem"), standing in for a real remote
// store. It exists to exercise the plug-in contract with more than one
// implementation — spec.md's Non-goals exclude real remote storage
// backends, not a second implementation of the interface (SPEC_FULL.md §6).
// Calls are rate-limited, the way a real HTTP/S3-backed implementation
// would need to be to avoid hammering a remote endpoint.
type MemBackend struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	limiter *rate.Limiter
}

// NewMemBackend returns a MemBackend allowing up to ratePerSecond MTime/
// Remove calls per second, with a burst of ratePerSecond+1. A non-positive
// ratePerSecond means 50 calls per second.
func NewMemBackend(ratePerSecond float64) *MemBackend {
	if ratePerSecond <= 0 {
		ratePerSecond = 50
	}
	return &MemBackend{
		entries: make(map[string]memEntry),
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1),
	}
}

// Touch sets u's effective timestamp to now; TouchAt sets an explicit value.
func (m *MemBackend) Touch(u URI) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[u.String()] = memEntry{mtime: float64(time.Now().UnixNano()) / 1e9}
}

// TouchAt sets u's effective timestamp to an explicit value, for tests.
func (m *MemBackend) TouchAt(u URI, mtime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[u.String()] = memEntry{mtime: mtime}
}

func (m *MemBackend) MTime(ctx context.Context, u URI, _ string, _ bool) (float64, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return 0, newErr(KindIOError, u.String(), "rate limit wait: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[u.String()]
	if !ok {
		return 0, newErr(KindNotFound, u.String(), "no such object")
	}
	return e.mtime, nil
}

func (m *MemBackend) Remove(ctx context.Context, u URI, _ string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return newErr(KindIOError, u.String(), "rate limit wait: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, u.String())
	return nil
}
