// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"context"
	"math"
)

// evaluator decides whether a file-rule job must be executed (spec.md §4.4).
type evaluator struct {
	registry *Registry
	cache    *FreshnessCache
}

func newEvaluator(registry *Registry, cache *FreshnessCache) *evaluator {
	return &evaluator{registry: registry, cache: cache}
}

// stale reports whether job must run. Phony jobs and leaves with no
// recipe-equivalent action are the scheduler's concern, not this one's —
// callers only invoke stale for jobs with a real file-producing rule.
func (e *evaluator) stale(ctx context.Context, job *Job) (bool, error) {
	if job.isDryRunInherited() {
		return true, nil
	}

	uniqueDeps := job.UniqueDeps()

	tTarget := math.Inf(1)
	notFound := false
	for _, t := range job.Targets() {
		backend, cred, err := e.resourceFor(t)
		if err != nil {
			return false, err
		}
		// Any target lookup error — NotFound or otherwise — makes the
		// rule stale (spec.md §4.4).
		ts, err := backend.MTime(ctx, t, cred, false)
		if err != nil {
			notFound = true
			continue
		}
		if ts < tTarget {
			tTarget = ts
		}
	}

	if notFound {
		// Still warm the cache for every dependency so subsequent
		// evaluations see consistent values (spec.md §4.4).
		for _, d := range uniqueDeps {
			backend, cred, err := e.resourceFor(d)
			if err != nil {
				return false, err
			}
			e.cache.Warm(ctx, d, backend, cred, job.UseHash())
		}
		return true, nil
	}

	tDepMax := NegInf
	for _, d := range uniqueDeps {
		backend, cred, err := e.resourceFor(d)
		if err != nil {
			return false, err
		}
		v, err := e.cache.Get(ctx, d, backend, cred, job.UseHash())
		if err != nil {
			return false, err
		}
		if v > tDepMax {
			tDepMax = v
		}
	}

	return tDepMax > tTarget, nil
}

func (e *evaluator) resourceFor(u URI) (Resource, string, error) {
	backend, ok := e.registry.resources.lookup(u.Scheme)
	if !ok {
		return nil, "", newErr(KindIOError, u.String(), "no resource backend registered for scheme %q", u.Scheme)
	}
	return backend, e.registry.Credential(u), nil
}
