package taskgraph

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetRunning(1)
		m.SetQueueDepth(2)
		m.IncDeferredErrors()
	})
}

func TestNewMetricsNilRegistererIsInert(t *testing.T) {
	m := NewMetrics(nil)
	assert.NotPanics(t, func() {
		m.SetRunning(1)
		m.SetQueueDepth(2)
		m.IncDeferredErrors()
	})
}

func TestNewMetricsRegistersIntoRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetRunning(3)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
