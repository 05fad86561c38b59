package taskgraph

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverVersionModeExitsZero(t *testing.T) {
	r := NewRegistry()
	var out, errOut bytes.Buffer
	d := &Driver{Registry: r, Stdout: &out, Stderr: &errOut}

	code := d.Run([]string{"--version"})
	assert.Equal(t, 0, code)
	assert.Equal(t, Version+"\n", out.String())
}

func TestDriverDescriptionsModePrintsAndExits(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.File(FileRule{
		Targets: []URI{MustParseURI("out.txt")},
		Desc:    []string{"builds out.txt"},
	}))

	var out, errOut bytes.Buffer
	d := &Driver{Registry: r, Stdout: &out, Stderr: &errOut}

	code := d.Run([]string{"--descriptions"})
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "builds out.txt")
}

func TestDriverUnknownFlagFails(t *testing.T) {
	r := NewRegistry()
	var out, errOut bytes.Buffer
	d := &Driver{Registry: r, Stdout: &out, Stderr: &errOut}

	code := d.Run([]string{"--not-a-real-flag"})
	assert.Equal(t, 2, code)
}

func TestDriverWhyModeReportsUpToDate(t *testing.T) {
	res := newFakeResource()
	r := NewRegistry()
	r.RegisterScheme("fake", res)

	target := MustParseURI("fake://localhost/out")
	dep := MustParseURI("fake://localhost/in")
	res.Touch(dep, 1)
	res.Touch(target, 2)
	require.NoError(t, r.File(FileRule{Targets: []URI{target}, Deps: []URI{dep}}))

	var out, errOut bytes.Buffer
	d := &Driver{Registry: r, Stdout: &out, Stderr: &errOut}

	code := d.Run([]string{"--why", target.String()})
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "is up to date")
}
