// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

// Command taskgraph-demo is a host script exercising the engine end to
// end: a small C-like build (compile, link) plus a phony "all" and
// "clean", and the mem:// backend wired in alongside the local filesystem.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/marcelocantos/taskgraph"
)

func main() {
	registry := taskgraph.NewRegistry()
	registry.RegisterScheme("mem", taskgraph.NewMemBackend(0))

	mustFile(registry, taskgraph.FileRule{
		Targets: []taskgraph.URI{taskgraph.MustParseURI("build/main.o")},
		Deps:    []taskgraph.URI{taskgraph.MustParseURI("main.c")},
		Desc:    []string{"compile main.c"},
		Action:  compileAction("main.c", "build/main.o"),
	})

	mustFile(registry, taskgraph.FileRule{
		Targets: []taskgraph.URI{taskgraph.MustParseURI("build/app")},
		Deps:    []taskgraph.URI{taskgraph.MustParseURI("build/main.o")},
		Desc:    []string{"link build/app"},
		Action:  linkAction("build/app", "build/main.o"),
	})

	mustPhony(registry, taskgraph.PhonyRule{
		Label: "all",
		Deps:  []taskgraph.URI{taskgraph.MustParseURI("build/app")},
		Desc:  []string{"build everything"},
	})

	mustPhony(registry, taskgraph.PhonyRule{
		Label: "clean",
		Desc:  []string{"remove build artifacts"},
		Action: func(ctx context.Context, job *taskgraph.Job) error {
			return os.RemoveAll("build")
		},
	})

	driver := taskgraph.NewDriver(registry)
	os.Exit(driver.Run(os.Args[1:]))
}

func mustFile(r *taskgraph.Registry, fr taskgraph.FileRule) {
	if err := r.File(fr); err != nil {
		fmt.Fprintf(os.Stderr, "taskgraph-demo: %v\n", err)
		os.Exit(1)
	}
}

func mustPhony(r *taskgraph.Registry, pr taskgraph.PhonyRule) {
	if err := r.Phony(pr); err != nil {
		fmt.Fprintf(os.Stderr, "taskgraph-demo: %v\n", err)
		os.Exit(1)
	}
}

func compileAction(src, obj string) taskgraph.Action {
	return func(ctx context.Context, job *taskgraph.Job) error {
		if err := os.MkdirAll("build", 0o755); err != nil {
			return err
		}
		return exec.CommandContext(ctx, "cc", "-c", "-o", obj, src).Run()
	}
}

func linkAction(out string, objs ...string) taskgraph.Action {
	return func(ctx context.Context, job *taskgraph.Job) error {
		args := append([]string{"-o", out}, objs...)
		return exec.CommandContext(ctx, "cc", args...).Run()
	}
}
