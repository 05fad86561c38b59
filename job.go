// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"context"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Job is the runtime instance of a rule inside one build invocation
// (spec.md §3 "Job").
type Job struct {
	ID       string // stable, derived from the rule's first target
	rule     *rule
	Priority int
	Serial   bool

	// nRest is the remaining-dependency counter. It starts at
	// len(unique deps), reaches 0 when ready, and is set to -1 as a
	// done sentinel (spec.md §3's Job lifecycle).
	nRest int64

	// dryRunInherited is set true when a completed upstream job ran (or
	// would have run) in dry-run mode, per spec.md §4.5 step 7.
	dryRunInherited atomic.Bool

	visited bool // graph-build only; single-threaded phase
}

// Targets returns the job's target URIs.
func (j *Job) Targets() []URI { return j.rule.targets }

// Deps returns the job's full (non-deduplicated) dependency list.
func (j *Job) Deps() []URI { return j.rule.deps }

// UniqueDeps returns Deps with duplicates removed.
func (j *Job) UniqueDeps() []URI { return j.rule.uniqueDeps() }

// Desc returns the rule's accumulated description lines.
func (j *Job) Desc() []string { return j.rule.desc }

// IsPhony reports whether this job's rule has no on-disk artifact.
func (j *Job) IsPhony() bool { return j.rule.isPhony }

// IsLeaf reports whether this job was synthesised for a pre-existing
// input or an otherwise-unregistered non-file URI (spec.md §4.3 step 3).
func (j *Job) IsLeaf() bool { return j.rule.isLeaf }

// UseHash reports whether content-hash augments mtime for this job's
// freshness decision.
func (j *Job) UseHash() bool { return j.rule.useHash }

// NRest returns the current remaining-dependency count (-1 once done).
func (j *Job) NRest() int64 { return atomic.LoadInt64(&j.nRest) }

// ready reports whether the counter has reached zero (but is not yet the
// -1 done sentinel).
func (j *Job) ready() bool { return atomic.LoadInt64(&j.nRest) == 0 }

// decrement atomically decrements nRest and returns the new value.
func (j *Job) decrement() int64 { return atomic.AddInt64(&j.nRest, -1) }

// markDone sets the -1 sentinel.
func (j *Job) markDone() { atomic.StoreInt64(&j.nRest, -1) }

func (j *Job) markDryRunInherited() { j.dryRunInherited.Store(true) }
func (j *Job) isDryRunInherited() bool { return j.dryRunInherited.Load() }

// invoke calls the underlying rule's action.
func (j *Job) invoke(ctx context.Context) error {
	return j.rule.action(ctx, j)
}

// DependentMap maps a dependency URI (by canonical string) to the jobs
// that depend on it, per spec.md §3/§4.3 step 5. Built once during graph
// construction (single-threaded), read concurrently during execution, so
// it is backed by a plain concurrent-map rather than extra locking.
type DependentMap struct {
	m cmap.ConcurrentMap[string, []*Job]
}

func newDependentMap() *DependentMap {
	return &DependentMap{m: cmap.New[[]*Job]()}
}

// add registers job as a dependent of dep. Graph-build time only.
func (d *DependentMap) add(dep URI, job *Job) {
	key := dep.String()
	d.m.Upsert(key, nil, func(exists bool, valueInMap []*Job, _ []*Job) []*Job {
		return append(valueInMap, job)
	})
}

// Dependents returns the jobs registered as depending on dep.
func (d *DependentMap) Dependents(dep URI) []*Job {
	v, ok := d.m.Get(dep.String())
	if !ok {
		return nil
	}
	return v
}
