// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// BuildGraph walks the registry from requested, synthesising leaf rules
// for pre-existing inputs, detecting cycles, and returning the dependent-
// of-each-target adjacency, the initial leaf frontier, and every job
// reached keyed by target URI text (spec.md §4.3) — the last of these is
// what the driver's --why mode and the scheduler's totalJobs count use.
func BuildGraph(registry *Registry, requested []URI) (*DependentMap, []*Job, map[string]*Job, error) {
	b := &graphBuilder{
		registry:  registry,
		jobOf:     make(map[string]*Job),
		dependent: newDependentMap(),
	}

	for _, t := range requested {
		if _, err := b.visit(t, nil); err != nil {
			return nil, nil, nil, err
		}
	}

	return b.dependent, b.leaves, b.jobOf, nil
}

type graphBuilder struct {
	registry  *Registry
	jobOf     map[string]*Job // target URI string -> job (populated as visited)
	dependent *DependentMap
	leaves    []*Job
}

// chainLink is a cons-list node for the current DFS call-chain, letting
// cycle detection run in O(depth) without copying a stack slice at every
// frame (spec.md §4.3 step 2 / §9).
type chainLink struct {
	uri  string
	prev *chainLink
}

func (c *chainLink) contains(key string) bool {
	for l := c; l != nil; l = l.prev {
		if l.uri == key {
			return true
		}
	}
	return false
}

func (c *chainLink) path(to string) []string {
	var out []string
	for l := c; l != nil; l = l.prev {
		out = append([]string{l.uri}, out...)
	}
	return append(out, to)
}

// visit depth-first visits u, returning its (possibly freshly built) job.
func (b *graphBuilder) visit(u URI, chain *chainLink) (*Job, error) {
	key := u.String()

	if chain.contains(key) {
		return nil, newErr(KindCycle, key, "dependency cycle: %s", strings.Join(chain.path(key), " -> "))
	}

	if j, ok := b.jobOf[key]; ok {
		return j, nil
	}

	rl, ok := b.registry.lookupRule(u)
	if !ok {
		leafRule, err := b.synthesiseLeaf(u)
		if err != nil {
			return nil, err
		}
		rl = leafRule
	}

	job := &Job{
		ID:       key,
		rule:     rl,
		Priority: rl.priority,
		Serial:   rl.serial,
	}
	b.jobOf[key] = job

	nextChain := &chainLink{uri: key, prev: chain}

	ordered := sortByProducerPriority(rl.deps, b.jobOf)
	added := make(map[string]bool, len(ordered))
	for _, d := range ordered {
		if _, err := b.visit(d, nextChain); err != nil {
			return nil, err
		}
		key := d.String()
		if added[key] {
			continue
		}
		added[key] = true
		b.dependent.add(d, job)
	}

	job.nRest = int64(len(job.UniqueDeps()))
	job.visited = true

	if job.nRest == 0 {
		b.leaves = append(b.leaves, job)
	}

	return job, nil
}

// synthesiseLeaf implements spec.md §4.3 step 3: a file://localhost URI
// whose path exists becomes a kept, never-invoked leaf; any other URI with
// no registered rule is accepted silently too (the open question in
// spec.md §9 is resolved toward the permissive variant), relying on the
// backend's mtime to surface absence at freshness time. A file URI whose
// path does not exist, with no registered rule, is NoRule.
func (b *graphBuilder) synthesiseLeaf(u URI) (*rule, error) {
	if u.IsLocalFile() {
		if _, err := os.Stat(u.Path); err != nil {
			return nil, newErr(KindNoRule, u.String(), "no rule to build %q", u.String())
		}
		_ = b.registry.Meta(u, "keep", true)
		return &rule{
			targets: []URI{u},
			isLeaf:  true,
			action:  neverInvoked,
		}, nil
	}

	return &rule{
		targets: []URI{u},
		isLeaf:  true,
		action:  neverInvoked,
	}, nil
}

// neverInvoked is installed on synthesised leaf rules; the scheduler must
// never call it — doing so indicates an engine bug (spec.md §4.3 step 3).
func neverInvoked(_ context.Context, job *Job) error {
	return fmt.Errorf("engine bug: invoked action of synthesised leaf %s", job.ID)
}
