// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the scheduler's Prometheus instrumentation
// (SPEC_FULL.md §3). A nil *Metrics is legal everywhere it's accepted —
// NewMetrics(nil) and a nil registerer both produce an inert Metrics that
// never touches a registry, so embedding the engine never forces a
// metrics HTTP server on the host script.
type Metrics struct {
	running        prometheus.Gauge
	readyQueue     prometheus.Gauge
	deferredErrors prometheus.Counter
}

// NewMetrics registers the engine's gauges/counters into reg. A nil reg
// is accepted and yields a working, unregistered Metrics (useful for
// hosts that don't run a metrics endpoint at all).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskgraph_jobs_running",
			Help: "Number of job actions currently executing.",
		}),
		readyQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskgraph_ready_queue_depth",
			Help: "Number of jobs currently queued (ready + serial).",
		}),
		deferredErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskgraph_deferred_errors_total",
			Help: "Number of job failures deferred under keep-going.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.running, m.readyQueue, m.deferredErrors)
	}
	return m
}

func (m *Metrics) SetRunning(n int) {
	if m == nil {
		return
	}
	m.running.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.readyQueue.Set(float64(n))
}

func (m *Metrics) IncDeferredErrors() {
	if m == nil {
		return
	}
	m.deferredErrors.Inc()
}
