package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobCounterLifecycle(t *testing.T) {
	j := &Job{rule: &rule{}}
	j.nRest = 2

	assert.False(t, j.ready())
	assert.Equal(t, int64(1), j.decrement())
	assert.False(t, j.ready())
	assert.Equal(t, int64(0), j.decrement())
	assert.True(t, j.ready())

	j.markDone()
	assert.Equal(t, int64(-1), j.NRest())
}

func TestJobDryRunInheritedFlag(t *testing.T) {
	j := &Job{rule: &rule{}}
	assert.False(t, j.isDryRunInherited())
	j.markDryRunInherited()
	assert.True(t, j.isDryRunInherited())
}

func TestDependentMapAccumulatesPerDependency(t *testing.T) {
	dm := newDependentMap()
	dep := MustParseURI("dep")
	a := &Job{ID: "a"}
	b := &Job{ID: "b"}

	dm.add(dep, a)
	dm.add(dep, b)

	deps := dm.Dependents(dep)
	assert.ElementsMatch(t, []*Job{a, b}, deps)
	assert.Empty(t, dm.Dependents(MustParseURI("untouched")))
}
