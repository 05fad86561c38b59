package taskgraph

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintDescriptions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.File(FileRule{
		Targets: []URI{MustParseURI("out.txt")},
		Desc:    []string{"builds out.txt", "from source"},
	}))

	var buf bytes.Buffer
	require.NoError(t, PrintDescriptions(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "out.txt")
	assert.Contains(t, out, "\tbuilds out.txt\n")
	assert.Contains(t, out, "\tfrom source\n")
}

func TestPrintDependenciesPlain(t *testing.T) {
	r := NewRegistry()
	target := MustParseURI("out.txt")
	dep := MustParseURI("in.txt")
	require.NoError(t, r.File(FileRule{Targets: []URI{target}, Deps: []URI{dep}}))

	var buf bytes.Buffer
	require.NoError(t, PrintDependenciesPlain(&buf, r))

	out := buf.String()
	assert.Contains(t, out, target.String()+"\n")
	assert.Contains(t, out, "\t"+dep.String()+"\n")
}

func TestPrintDependenciesDotClustersMultiTargetRule(t *testing.T) {
	r := NewRegistry()
	t1 := MustParseURI("out1.txt")
	t2 := MustParseURI("out2.txt")
	require.NoError(t, r.File(FileRule{Targets: []URI{t1, t2}}))

	var buf bytes.Buffer
	require.NoError(t, PrintDependenciesDot(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "digraph taskgraph {")
	assert.Contains(t, out, "subgraph cluster_0 {")
	assert.Contains(t, out, t1.String())
	assert.Contains(t, out, t2.String())
}
