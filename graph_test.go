package taskgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraphSimpleChain(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))

	r := NewRegistry()
	out := MustParseURI(filepath.Join(dir, "out.txt"))
	in := MustParseURI(input)
	require.NoError(t, r.File(FileRule{Targets: []URI{out}, Deps: []URI{in}}))

	_, leaves, jobs, err := BuildGraph(r, []URI{out})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	require.Len(t, leaves, 1)
	assert.True(t, leaves[0].IsLeaf())
	assert.Equal(t, in.String(), leaves[0].ID)
}

func TestBuildGraphDetectsCycle(t *testing.T) {
	r := NewRegistry()
	a := MustParseURI("a")
	b := MustParseURI("b")

	require.NoError(t, r.File(FileRule{Targets: []URI{a}, Deps: []URI{b}}))
	require.NoError(t, r.File(FileRule{Targets: []URI{b}, Deps: []URI{a}}))

	_, _, _, err := BuildGraph(r, []URI{a})
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindCycle, kind)
}

func TestBuildGraphNoRuleForMissingFile(t *testing.T) {
	r := NewRegistry()
	missing := MustParseURI("/nonexistent/path/does-not-exist")

	_, _, _, err := BuildGraph(r, []URI{missing})
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNoRule, kind)
}

func TestBuildGraphAcceptsUnregisteredNonFileURISilently(t *testing.T) {
	r := NewRegistry()
	remote := MustParseURI("mem://localhost/widget")

	_, leaves, jobs, err := BuildGraph(r, []URI{remote})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Len(t, leaves, 1)
	assert.True(t, leaves[0].IsLeaf())
}

func TestBuildGraphPopulatesDependentMap(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))

	r := NewRegistry()
	out := MustParseURI(filepath.Join(dir, "out.txt"))
	in := MustParseURI(input)
	require.NoError(t, r.File(FileRule{Targets: []URI{out}, Deps: []URI{in}}))

	dependent, _, jobs, err := BuildGraph(r, []URI{out})
	require.NoError(t, err)

	deps := dependent.Dependents(in)
	require.Len(t, deps, 1)
	assert.Equal(t, jobs[out.String()], deps[0])
}

func TestBuildGraphRepeatedDependencyRegisteredOnce(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	r := NewRegistry()
	out := MustParseURI(filepath.Join(dir, "out.txt"))
	in := MustParseURI(input)
	otherURI := MustParseURI(other)
	require.NoError(t, r.File(FileRule{Targets: []URI{out}, Deps: []URI{in, in, otherURI}}))

	dependent, _, jobs, err := BuildGraph(r, []URI{out})
	require.NoError(t, err)

	job := jobs[out.String()]
	require.Equal(t, int64(2), job.NRest())

	deps := dependent.Dependents(in)
	require.Len(t, deps, 1)
	assert.Equal(t, job, deps[0])
}

func TestBuildGraphDiamondDependencyIsSharedNotDuplicated(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "shared.txt")
	require.NoError(t, os.WriteFile(shared, []byte("x"), 0o644))

	r := NewRegistry()
	sharedURI := MustParseURI(shared)
	mid1 := MustParseURI(filepath.Join(dir, "mid1.txt"))
	mid2 := MustParseURI(filepath.Join(dir, "mid2.txt"))
	top := MustParseURI(filepath.Join(dir, "top.txt"))

	require.NoError(t, r.File(FileRule{Targets: []URI{mid1}, Deps: []URI{sharedURI}}))
	require.NoError(t, r.File(FileRule{Targets: []URI{mid2}, Deps: []URI{sharedURI}}))
	require.NoError(t, r.File(FileRule{Targets: []URI{top}, Deps: []URI{mid1, mid2}}))

	_, _, jobs, err := BuildGraph(r, []URI{top})
	require.NoError(t, err)

	// shared.txt's job is built exactly once despite two dependents.
	require.Len(t, jobs, 4)
}
