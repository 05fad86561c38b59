// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import "sync"

// metaValue is the write-once-same-value entry for one (target, key) pair.
type metaValue struct {
	value any
}

// Registry collects file-rules and phony-rules declared by the host script
// (spec.md §4.2) and enforces target uniqueness across both.
type Registry struct {
	mu sync.Mutex

	byTarget map[string]*rule                // concrete target URI string -> owning rule
	phonies  map[string]*rule                // phony label text -> accumulating rule
	order    []*rule                         // declaration order, for stable introspection
	meta     map[string]map[string]metaValue // target URI string -> key -> value

	resources *schemeTable
}

// NewRegistry returns an empty registry with the local filesystem backend
// pre-registered for the "file" scheme.
func NewRegistry() *Registry {
	r := &Registry{
		byTarget:  make(map[string]*rule),
		phonies:   make(map[string]*rule),
		meta:      make(map[string]map[string]metaValue),
		resources: newSchemeTable(),
	}
	r.resources.Register("file", newLocalBackend(""))
	return r
}

// RegisterScheme installs backend as the handler for scheme, e.g. to add a
// remote or demonstration resource backend (spec.md §4.1's plug-in contract).
func (r *Registry) RegisterScheme(scheme string, backend Resource) {
	r.resources.Register(scheme, backend)
}

// File installs a file rule. Declaring a target URI already bound by
// another rule, or colliding with an existing phony label, is a
// RegistryConflict.
func (r *Registry) File(fr FileRule) error {
	if len(fr.Targets) == 0 {
		return newErr(KindRegistryConflict, "", "file rule must have at least one target")
	}
	action := fr.Action
	if action == nil {
		action = noop
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range fr.Targets {
		key := t.String()
		if _, ok := r.byTarget[key]; ok {
			return newErr(KindRegistryConflict, key, "target already bound by another rule")
		}
		if t.IsLocalFile() {
			if _, ok := r.phonies[t.Path]; ok {
				return newErr(KindRegistryConflict, key, "target collides with phony label %q", t.Path)
			}
		}
	}

	rl := &rule{
		targets:  append([]URI(nil), fr.Targets...),
		deps:     append([]URI(nil), fr.Deps...),
		action:   action,
		desc:     append([]string(nil), fr.Desc...),
		priority: fr.Priority,
		serial:   fr.Serial,
		useHash:  fr.UseHash,
	}
	for _, t := range fr.Targets {
		r.byTarget[t.String()] = rl
	}
	r.order = append(r.order, rl)
	return nil
}

// Phony appends pr.Deps/pr.Desc to pr.Label's accumulators (spec.md §4.2).
// Binding an action a second time for the same label is a RegistryConflict;
// the first binding is fine even if the label was declared earlier without
// one.
func (r *Registry) Phony(pr PhonyRule) error {
	if pr.Label == "" {
		return newErr(KindRegistryConflict, "", "phony rule must have a non-empty label")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fileKey := (URI{Scheme: "file", Netloc: "localhost", Path: pr.Label}).String()
	if _, ok := r.byTarget[fileKey]; ok {
		return newErr(KindRegistryConflict, pr.Label, "phony label collides with a file target")
	}

	rl, ok := r.phonies[pr.Label]
	if !ok {
		rl = &rule{
			targets: []URI{Label(pr.Label)},
			isPhony: true,
			action:  noop,
		}
		r.phonies[pr.Label] = rl
		r.order = append(r.order, rl)
	}

	rl.deps = append(rl.deps, pr.Deps...)
	rl.desc = append(rl.desc, pr.Desc...)
	if pr.Priority != 0 {
		rl.priority = pr.Priority
	}
	if pr.Action != nil {
		if rl.hasExplicitAction {
			return newErr(KindRegistryConflict, pr.Label, "phony %q already has an action", pr.Label)
		}
		rl.action = pr.Action
		rl.hasExplicitAction = true
	}
	return nil
}

// Meta sets metadata key=value for target. Rewriting the same value is
// idempotent; rewriting a different value is a RegistryConflict
// (spec.md §3 "Per-target metadata").
func (r *Registry) Meta(target URI, key string, value any) error {
	k := target.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	byKey, ok := r.meta[k]
	if !ok {
		byKey = make(map[string]metaValue)
		r.meta[k] = byKey
	}
	existing, ok := byKey[key]
	if ok && existing.value != value {
		return newErr(KindRegistryConflict, k, "metadata key %q already set to a different value", key)
	}
	byKey[key] = metaValue{value: value}
	return nil
}

// MetaGet returns the metadata value for (target, key), and whether it was set.
func (r *Registry) MetaGet(target URI, key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKey, ok := r.meta[target.String()]
	if !ok {
		return nil, false
	}
	v, ok := byKey[key]
	return v.value, ok
}

// Keep is a convenience accessor for the "keep" boolean metadata key.
func (r *Registry) Keep(target URI) bool {
	v, ok := r.MetaGet(target, "keep")
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Credential is a convenience accessor for the "credential" metadata key.
func (r *Registry) Credential(target URI) string {
	v, ok := r.MetaGet(target, "credential")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// lookupRule returns the rule bound to u, whether u names a phony (scheme
// "phony") or a concrete target.
func (r *Registry) lookupRule(u URI) (*rule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Scheme == "phony" {
		rl, ok := r.phonies[u.Path]
		return rl, ok
	}
	rl, ok := r.byTarget[u.String()]
	return rl, ok
}

// ResolveName turns a CLI-provided bare string into the URI the rest of the
// engine operates on: an exact match against a registered phony label wins,
// otherwise it's parsed as an ordinary URI/bare path (spec.md §4.6 "Driver").
func (r *Registry) ResolveName(name string) (URI, error) {
	r.mu.Lock()
	_, isPhony := r.phonies[name]
	r.mu.Unlock()
	if isPhony {
		return Label(name), nil
	}
	return ParseURI(name)
}

// rulesInOrder returns all registered rules (file + phony) in declaration
// order, for introspection.
func (r *Registry) rulesInOrder() []*rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*rule, len(r.order))
	copy(out, r.order)
	return out
}
