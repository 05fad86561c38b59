// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"fmt"
	"io"
)

// PrintDescriptions implements spec.md §4.6's "Descriptions" mode: for each
// rule in declaration order, print the path of its first target (the label,
// for a phony), then each description line indented.
func PrintDescriptions(w io.Writer, registry *Registry) error {
	for _, rl := range registry.rulesInOrder() {
		if _, err := fmt.Fprintln(w, rl.label()); err != nil {
			return err
		}
		for _, line := range rl.desc {
			if _, err := fmt.Fprintf(w, "\t%s\n", line); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrintDependenciesPlain implements spec.md §4.6's "Dependencies (plain)"
// mode: for each rule, each target on its own line, then each dependency
// indented, with a blank line between rules.
func PrintDependenciesPlain(w io.Writer, registry *Registry) error {
	rules := registry.rulesInOrder()
	for i, rl := range rules {
		for _, t := range rl.targets {
			if _, err := fmt.Fprintln(w, t.String()); err != nil {
				return err
			}
		}
		for _, d := range rl.uniqueDeps() {
			if _, err := fmt.Fprintf(w, "\t%s\n", d.String()); err != nil {
				return err
			}
		}
		if i < len(rules)-1 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrintDependenciesDot implements spec.md §4.6's "Dependencies (graph)"
// mode, following the teacher's PrintGraph structure: one circular "action"
// node per rule, target nodes labelled by URI pointing into the action
// node, the action node pointing out to dependency nodes, and the targets
// of one rule clustered as a subgraph (SPEC_FULL.md §4.9).
func PrintDependenciesDot(w io.Writer, registry *Registry) error {
	if _, err := fmt.Fprintln(w, "digraph taskgraph {"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "  rankdir=LR;"); err != nil {
		return err
	}

	for n, rl := range registry.rulesInOrder() {
		action := fmt.Sprintf("action_%d", n)
		if _, err := fmt.Fprintf(w, "  %q [shape=circle,label=%q];\n", action, rl.label()); err != nil {
			return err
		}

		if len(rl.targets) > 1 {
			if _, err := fmt.Fprintf(w, "  subgraph cluster_%d {\n", n); err != nil {
				return err
			}
			for _, t := range rl.targets {
				if _, err := fmt.Fprintf(w, "    %q;\n", t.String()); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(w, "  }"); err != nil {
				return err
			}
		}

		for _, t := range rl.targets {
			if _, err := fmt.Fprintf(w, "  %q -> %q;\n", t.String(), action); err != nil {
				return err
			}
		}
		for _, d := range rl.uniqueDeps() {
			if _, err := fmt.Fprintf(w, "  %q -> %q;\n", action, d.String()); err != nil {
				return err
			}
		}
	}

	if _, err := fmt.Fprintln(w, "}"); err != nil {
		return err
	}
	return nil
}
