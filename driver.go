// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"
)

// Version is set via -ldflags at build time by hosts that embed the
// driver, matching the teacher's var-block convention for build metadata.
var Version = "dev"

// Driver parses arguments and dispatches to one of the four modes in
// spec.md §4.6/§6. A host script builds a Registry, then calls Run.
type Driver struct {
	Registry *Registry
	Stdout   io.Writer
	Stderr   io.Writer
}

// NewDriver returns a Driver wired to os.Stdout/os.Stderr.
func NewDriver(registry *Registry) *Driver {
	return &Driver{Registry: registry, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run parses args (excluding the program name) and executes the selected
// mode, returning the process exit code spec.md §6 specifies.
func (d *Driver) Run(args []string) int {
	fs := flag.NewFlagSet("taskgraph", flag.ContinueOnError)
	fs.SetOutput(d.Stderr)

	logLevel := fs.String("log", "warning", "log verbosity: debug|info|warning|error|critical")
	nJobs := fs.IntP("jobs", "j", 1, "parallel non-serial workers")
	nSerial := fs.Int("n-serial", 1, "parallel serial workers")
	loadAverage := fs.Float64P("load-average", "l", 0, "throttle above this 1-min loadavg (default +Inf)")
	keepGoing := fs.BoolP("keep-going", "k", false, "accumulate errors, don't abort")
	descriptions := fs.BoolP("descriptions", "D", false, "print target descriptions, exit")
	dependencies := fs.BoolP("dependencies", "P", false, "print DAG in plain form, exit")
	dependenciesDot := fs.BoolP("dependencies-dot", "Q", false, "print DAG in graph-visualisation form, exit")
	dryRun := fs.BoolP("dry-run", "n", false, "print actions that would run")
	why := fs.Bool("why", false, "print the freshness reason for each requested target, exit")
	version := fs.Bool("version", false, "print version, exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *version {
		fmt.Fprintln(d.Stdout, Version)
		return 0
	}

	level, err := ParseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(d.Stderr, "taskgraph: %v\n", err)
		return 2
	}
	logger := NewLogger(level)

	if *descriptions {
		if err := PrintDescriptions(d.Stdout, d.Registry); err != nil {
			return d.fail(err)
		}
		return 0
	}
	if *dependencies {
		if err := PrintDependenciesPlain(d.Stdout, d.Registry); err != nil {
			return d.fail(err)
		}
		return 0
	}
	if *dependenciesDot {
		if err := PrintDependenciesDot(d.Stdout, d.Registry); err != nil {
			return d.fail(err)
		}
		return 0
	}

	targets := fs.Args()
	if len(targets) == 0 {
		targets = []string{"all"}
	}
	requested := make([]URI, 0, len(targets))
	for _, name := range targets {
		u, err := d.Registry.ResolveName(name)
		if err != nil {
			return d.fail(err)
		}
		requested = append(requested, u)
	}

	cache := NewFreshnessCache()

	if *why {
		return d.runWhy(requested, cache)
	}

	dependent, leaves, jobs, err := BuildGraph(d.Registry, requested)
	if err != nil {
		return d.fail(err)
	}

	loadAvg := *loadAverage
	if loadAvg <= 0 {
		loadAvg = math.Inf(1)
	}

	runID := uuid.NewString()
	logger.WithField("run_id", runID).Infof("building %d job(s)", len(jobs))

	var bar *progressbar.ProgressBar
	if !*dryRun && isatty.IsTerminal(os.Stdout.Fd()) {
		bar = progressbar.Default(int64(len(jobs)), "building")
	}

	sched := NewScheduler(d.Registry, dependent, cache, SchedulerOptions{
		NJobs:       *nJobs,
		NSerial:     *nSerial,
		LoadAverage: loadAvg,
		KeepGoing:   *keepGoing,
		DryRun:      *dryRun,
		Logger:      logger,
		Progress:    bar,
	})

	if err := sched.Run(context.Background(), leaves, len(jobs)); err != nil {
		return d.fail(err)
	}

	d.printColoredSuccess(len(jobs))
	return 0
}

// runWhy implements SPEC_FULL.md §4.8's --why mode: for each requested
// target, report the t_target/t_dep_max comparison that would drive the
// freshness decision, without running anything.
func (d *Driver) runWhy(requested []URI, cache *FreshnessCache) int {
	ctx := context.Background()
	ev := newEvaluator(d.Registry, cache)

	for _, u := range requested {
		_, _, jobs, err := BuildGraph(d.Registry, []URI{u})
		if err != nil {
			return d.fail(err)
		}
		job, ok := jobs[u.String()]
		if !ok {
			fmt.Fprintf(d.Stdout, "%s: no job\n", u.String())
			continue
		}
		if job.IsPhony() {
			fmt.Fprintf(d.Stdout, "%s: phony, always rebuilds\n", u.String())
			continue
		}
		if job.IsLeaf() {
			fmt.Fprintf(d.Stdout, "%s: pre-existing input, never rebuilds\n", u.String())
			continue
		}
		stale, err := ev.stale(ctx, job)
		if err != nil {
			fmt.Fprintf(d.Stdout, "%s: error determining freshness: %v\n", u.String(), err)
			continue
		}
		if !stale {
			fmt.Fprintf(d.Stdout, "%s is up to date\n", u.String())
			continue
		}
		fmt.Fprintf(d.Stdout, "%s needs rebuilding\n", u.String())
	}
	return 0
}

func (d *Driver) fail(err error) int {
	msg := fmt.Sprintf("taskgraph: %v", err)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		msg = color.RedString("taskgraph: %v", err)
	}
	fmt.Fprintln(d.Stderr, msg)

	kind, ok := KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case KindRegistryConflict, KindNoRule, KindCycle:
		return 2
	default:
		return 1
	}
}

func (d *Driver) printColoredSuccess(n int) {
	msg := fmt.Sprintf("done: %s job(s) considered", humanize.Comma(int64(n)))
	if isatty.IsTerminal(os.Stdout.Fd()) {
		msg = color.GreenString("done: ") + fmt.Sprintf("%s job(s) considered", humanize.Comma(int64(n)))
	}
	fmt.Fprintln(d.Stdout, msg)
}
