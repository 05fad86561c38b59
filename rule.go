// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import "context"

// Action is the opaque body of a rule: whatever the host script wants run
// when the rule's targets are stale. Shelling out, if that's what the
// action does, is the host's concern — see spec.md §1's Out-of-scope list.
type Action func(ctx context.Context, job *Job) error

// noop is installed for phony rules declared without an action and is
// itself a legal, if pointless, action.
func noop(context.Context, *Job) error { return nil }

// Label builds the internal URI representation of a phony target name, for
// use as a dependency of another rule ("depend on the phony named x").
func Label(name string) URI {
	return URI{Scheme: "phony", Netloc: "localhost", Path: name}
}

// FileRule is a declared file-producing rule: one or more targets produced
// by one action from a list of dependencies (spec.md §3).
type FileRule struct {
	Targets  []URI
	Deps     []URI // ordered, may contain duplicates
	Action   Action
	Desc     []string
	Priority int
	Serial   bool
	UseHash  bool
}

// PhonyRule is a label-only rule; declaring the same label more than once
// accumulates Deps and Desc (spec.md §3's phony-merge invariant).
type PhonyRule struct {
	Label    string
	Deps     []URI
	Desc     []string
	Action   Action // optional; nil means "no action from this declaration"
	Priority int
}

func dedupeURIs(in []URI) []URI {
	seen := make(map[string]struct{}, len(in))
	out := make([]URI, 0, len(in))
	for _, u := range in {
		k := u.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, u)
	}
	return out
}

// rule is the internal sum type graph/scheduler code operates on, uniting
// FileRule and PhonyRule behind one shape.
type rule struct {
	targets  []URI // len==1 for phony
	deps     []URI
	action   Action
	desc     []string
	priority int
	serial   bool
	useHash  bool
	isPhony  bool
	isLeaf   bool // synthesised leaf, never actually invoked

	hasExplicitAction bool // phony only: an action was bound by some Phony() call
}

func (r *rule) uniqueDeps() []URI { return dedupeURIs(r.deps) }

func (r *rule) label() string {
	if len(r.targets) == 0 {
		return ""
	}
	return r.targets[0].Path
}
