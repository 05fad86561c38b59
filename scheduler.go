// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var posInfVal = math.Inf(1)

// DeferredError is one (job, error) tuple accumulated when keep-going is
// enabled (spec.md §3 "Deferred error queue").
type DeferredError struct {
	Job *Job
	Err error
}

// SchedulerOptions configures one Scheduler run (spec.md §6's CLI table,
// minus the flags that belong to mode selection rather than execution).
type SchedulerOptions struct {
	NJobs       int           // -j, --jobs
	NSerial     int           // --n-serial
	LoadAverage float64       // -l, --load-average; +Inf disables throttling
	KeepGoing   bool          // -k, --keep-going
	DryRun      bool          // -n, --dry-run
	Logger      *logrus.Logger
	Metrics     *Metrics // optional; nil is a no-op
	Progress    *progressbar.ProgressBar // optional
	LoadSampler LoadSampler              // optional override, mainly for tests
}

// LoadSampler reports the current 1-minute load average. Production code
// uses gopsutilLoadSampler; tests inject a fake.
type LoadSampler interface {
	Load1() (float64, error)
}

// Scheduler is the priority-ordered concurrent worker pool described in
// spec.md §4.5.
type Scheduler struct {
	registry  *Registry
	dependent *DependentMap
	evaluator *evaluator
	cache     *FreshnessCache
	opts      SchedulerOptions
	logger    *logrus.Logger

	readyMu sync.Mutex
	ready   *jobHeap

	serialMu sync.Mutex
	serial   *jobHeap
	serialSem *semaphore.Weighted

	running   int64 // atomic
	workers   *guardedSet
	workerSeq int64 // atomic

	deferredMu sync.Mutex
	deferred   []DeferredError

	aborted    *guardedFlag
	abortErr   error
	abortOnce  sync.Once
	abortCh    chan struct{}

	RunID string

	wg sync.WaitGroup

	insertSeq int64 // atomic, for stable priority-queue ordering

	remaining int64 // atomic; jobs not yet done, for the progress bar and wait policy
}

// NewScheduler constructs a scheduler over the given graph.
func NewScheduler(registry *Registry, dependent *DependentMap, cache *FreshnessCache, opts SchedulerOptions) *Scheduler {
	if opts.NJobs <= 0 {
		opts.NJobs = 1
	}
	if opts.NSerial <= 0 {
		opts.NSerial = 1
	}
	if opts.LoadAverage == 0 {
		opts.LoadAverage = posInf()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.LoadSampler == nil {
		opts.LoadSampler = newGopsutilLoadSampler()
	}

	return &Scheduler{
		registry:  registry,
		dependent: dependent,
		evaluator: newEvaluator(registry, cache),
		cache:     cache,
		opts:      opts,
		logger:    opts.Logger,
		ready:     newJobHeap(),
		serial:    newJobHeap(),
		serialSem: semaphore.NewWeighted(int64(opts.NSerial)),
		workers:   newGuardedSet(),
		aborted:   &guardedFlag{},
		abortCh:   make(chan struct{}),
		RunID:     uuid.NewString(),
	}
}

func posInf() float64 { return posInfVal }

// Run drains leaves to completion, propagating readiness upward until
// every reachable job is done or known-failed, or the run aborts
// (spec.md §4.5's wait policy). It returns a non-nil error when the run
// should exit non-zero: either an abort error (non-keep-going failure or
// engine bug) or a summary error when the deferred queue is non-empty.
func (s *Scheduler) Run(ctx context.Context, leaves []*Job, totalJobs int) error {
	atomic.StoreInt64(&s.remaining, int64(totalJobs))
	if s.opts.Progress != nil {
		s.opts.Progress.ChangeMax(totalJobs)
	}

	for _, j := range leaves {
		s.push(j)
	}

	s.wg.Wait()

	if err := s.abortErrIfAny(); err != nil {
		return err
	}

	deferred := s.DeferredErrors()
	if len(deferred) > 0 {
		for _, de := range deferred {
			s.logger.WithField("target", de.Job.ID).Errorf("errors during execution: %v", de.Err)
		}
		return fmt.Errorf("%d job(s) failed (keep-going): see errors above", len(deferred))
	}
	return nil
}

func (s *Scheduler) abortErrIfAny() error {
	if s.aborted.isSet() {
		return s.abortErr
	}
	return nil
}

// DeferredErrors returns a snapshot of the deferred-error queue.
func (s *Scheduler) DeferredErrors() []DeferredError {
	s.deferredMu.Lock()
	defer s.deferredMu.Unlock()
	out := make([]DeferredError, len(s.deferred))
	copy(out, s.deferred)
	return out
}

// push enqueues job into its queue and, under a guard, spawns a new
// worker iff fewer than NJobs workers are running and either none are
// running yet or the current load average is acceptable (spec.md §4.5
// "Submission").
func (s *Scheduler) push(job *Job) {
	seq := atomic.AddInt64(&s.insertSeq, 1)
	entry := &jobHeapEntry{job: job, seq: seq}

	if job.Serial {
		s.serialMu.Lock()
		heap.Push(s.serial, entry)
		s.serialMu.Unlock()
	} else {
		s.readyMu.Lock()
		heap.Push(s.ready, entry)
		s.readyMu.Unlock()
	}

	s.opts.Metrics.SetQueueDepth(s.queueDepth())

	s.maybeSpawnWorker()
}

func (s *Scheduler) queueDepth() int {
	s.readyMu.Lock()
	n := s.ready.Len()
	s.readyMu.Unlock()
	s.serialMu.Lock()
	n += s.serial.Len()
	s.serialMu.Unlock()
	return n
}

func (s *Scheduler) maybeSpawnWorker() {
	s.workers.mu.Lock()
	defer s.workers.mu.Unlock()
	n := len(s.workers.vals)
	if n >= s.opts.NJobs {
		return
	}
	if n > 0 {
		load, err := s.opts.LoadSampler.Load1()
		if err == nil && load > s.opts.LoadAverage {
			return
		}
	}

	id := fmt.Sprintf("w%d", atomic.AddInt64(&s.workerSeq, 1))
	s.workers.vals[id] = struct{}{}
	s.wg.Add(1)
	go s.workerLoop(id)
}

// workerLoop is one worker's iteration loop (spec.md §4.5 "Worker loop").
func (s *Scheduler) workerLoop(id string) {
	defer s.wg.Done()
	defer s.workers.remove(id)

	log := s.logger.WithFields(logrus.Fields{"worker": id, "run_id": s.RunID})

	for {
		if s.aborted.isSet() {
			return
		}

		entry, gotSerial := s.tryPopSerial()
		if entry == nil {
			var ok bool
			entry, ok = s.popReadyWithTimeout(10 * time.Millisecond)
			if !ok {
				return
			}
		}

		job := entry.job
		if job.NRest() != 0 {
			s.fatal(newErr(KindEngineBug, job.ID, "worker picked job with n_rest=%d, want 0", job.NRest()))
			if gotSerial {
				s.serialSem.Release(1)
			}
			return
		}

		s.runOne(context.Background(), job, log)

		if gotSerial {
			s.serialSem.Release(1)
		}

		s.completeJob(job)

		if atomic.LoadInt64(&s.remaining) <= 0 {
			return
		}
	}
}

func (s *Scheduler) tryPopSerial() (*jobHeapEntry, bool) {
	if !s.serialSem.TryAcquire(1) {
		return nil, false
	}
	s.serialMu.Lock()
	defer s.serialMu.Unlock()
	if s.serial.Len() == 0 {
		s.serialSem.Release(1)
		return nil, false
	}
	e := heap.Pop(s.serial).(*jobHeapEntry)
	return e, true
}

func (s *Scheduler) popReadyWithTimeout(d time.Duration) (*jobHeapEntry, bool) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		s.readyMu.Lock()
		if s.ready.Len() > 0 {
			e := heap.Pop(s.ready).(*jobHeapEntry)
			s.readyMu.Unlock()
			return e, true
		}
		s.readyMu.Unlock()
		time.Sleep(time.Millisecond)
	}
	return nil, false
}

// runOne evaluates freshness and, if stale, runs (or prints, for dry-run)
// the job's action, handling the keep-going/abort failure policy
// (spec.md §4.5 step 4, §7).
func (s *Scheduler) runOne(ctx context.Context, job *Job, log *logrus.Entry) {
	if job.IsLeaf() {
		// A synthesised stand-in for a pre-existing input (or an accepted
		// absent non-file URI) is already satisfied; its action must
		// never be invoked (spec.md §4.3 step 3).
		return
	}
	if job.IsPhony() {
		// Phony rules have no freshness concept; they always run
		// (spec.md §4.4 applies "per file-rule" only).
		s.runStaleAction(ctx, job, true, log)
		return
	}

	stale, err := s.evaluator.stale(ctx, job)
	if err != nil {
		s.handleFailure(job, err, log)
		return
	}
	if !stale {
		return
	}
	s.runStaleAction(ctx, job, false, log)
}

func (s *Scheduler) runStaleAction(ctx context.Context, job *Job, skipThrottle bool, log *logrus.Entry) {
	if !skipThrottle {
		s.throttleOnLoad()
	}

	atomic.AddInt64(&s.running, 1)
	s.opts.Metrics.SetRunning(int(atomic.LoadInt64(&s.running)))
	defer func() {
		atomic.AddInt64(&s.running, -1)
		s.opts.Metrics.SetRunning(int(atomic.LoadInt64(&s.running)))
	}()

	if s.opts.DryRun {
		s.printDryRun(job)
		s.markDryRunDependents(job)
		return
	}

	log.WithField("target", job.ID).Debug("building")
	if err := job.invoke(ctx); err != nil {
		s.handleFailure(job, newErr(KindActionError, job.ID, "action failed: %w", err), log)
	}
}

// throttleOnLoad implements spec.md §4.5 step 4a: while running jobs exist
// and the load average exceeds the finite threshold, sleep and re-check.
func (s *Scheduler) throttleOnLoad() {
	threshold := s.opts.LoadAverage
	if threshold == posInfVal {
		return
	}
	for atomic.LoadInt64(&s.running) > 0 {
		load, err := s.opts.LoadSampler.Load1()
		if err != nil || load <= threshold {
			return
		}
		time.Sleep(time.Second)
	}
}

func (s *Scheduler) printDryRun(job *Job) {
	fmt.Println()
	for _, t := range job.Targets() {
		fmt.Println(t.String())
	}
	for _, d := range job.UniqueDeps() {
		fmt.Println("  " + d.String())
	}
	fmt.Println()
}

func (s *Scheduler) markDryRunDependents(job *Job) {
	for _, t := range job.Targets() {
		for _, dj := range s.dependent.Dependents(t) {
			dj.markDryRunInherited()
		}
	}
}

// handleFailure implements spec.md §7's ActionError propagation: remove
// targets (unless kept), then defer or abort.
func (s *Scheduler) handleFailure(job *Job, err error, log *logrus.Entry) {
	log.WithField("target", job.ID).Errorf("%v", err)

	s.removeTargets(job)

	if s.opts.KeepGoing {
		s.deferredMu.Lock()
		s.deferred = append(s.deferred, DeferredError{Job: job, Err: err})
		s.deferredMu.Unlock()
		s.opts.Metrics.IncDeferredErrors()
		// A failed job's dependents never become ready (its completion
		// never happens, so their counters never reach zero); account for
		// it so the progress bar and wait policy terminate correctly.
		s.accountUnreachable(job)
		return
	}

	s.fatal(err)
}

func (s *Scheduler) fatal(err error) {
	s.abortOnce.Do(func() {
		s.abortErr = err
		s.aborted.mark()
		close(s.abortCh)
	})
}

func (s *Scheduler) removeTargets(job *Job) {
	if job.IsPhony() || job.IsLeaf() {
		return
	}
	for _, t := range job.Targets() {
		if s.registry.Keep(t) {
			continue
		}
		backend, ok := s.registry.resources.lookup(t.Scheme)
		if !ok {
			continue
		}
		_ = backend.Remove(context.Background(), t, s.registry.Credential(t))
	}
}

// accountUnreachable decrements the outstanding-job counter for job and,
// transitively, for every dependent that can now never become ready
// because job failed under keep-going.
func (s *Scheduler) accountUnreachable(job *Job) {
	atomic.AddInt64(&s.remaining, -1)
	if s.opts.Progress != nil {
		s.opts.Progress.Add(1)
	}
	for _, t := range job.Targets() {
		for _, dj := range s.dependent.Dependents(t) {
			if dj.decrement() == 0 {
				// This dependent will never be pushed (its producer
				// failed); unwind it the same way recursively.
				s.accountUnreachable(dj)
			}
		}
	}
}

// completeJob implements spec.md §4.5 steps 6-8: mark done, notify
// dependents, push any that became ready.
func (s *Scheduler) completeJob(job *Job) {
	job.markDone()
	atomic.AddInt64(&s.remaining, -1)
	if s.opts.Progress != nil {
		s.opts.Progress.Add(1)
	}

	for _, t := range job.Targets() {
		for _, dj := range s.dependent.Dependents(t) {
			if dj.decrement() == 0 {
				s.push(dj)
			}
		}
	}
}

