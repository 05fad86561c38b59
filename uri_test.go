package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURIBareString(t *testing.T) {
	u, err := ParseURI("src/main.c")
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.Equal(t, "localhost", u.Netloc)
	assert.Equal(t, "src/main.c", u.Path)
	assert.Equal(t, "file://localhost/src/main.c", u.String())
}

func TestParseURIExplicitScheme(t *testing.T) {
	u, err := ParseURI("mem://localhost/widget")
	require.NoError(t, err)
	assert.Equal(t, "mem", u.Scheme)
	assert.Equal(t, "/widget", u.Path)
}

func TestParseURIRejectsNonLocalhostFile(t *testing.T) {
	_, err := ParseURI("file://remotehost/etc/passwd")
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindRegistryConflict, kind)
}

func TestParseURIDefaultsEmptyFileNetlocToLocalhost(t *testing.T) {
	u, err := ParseURI("file:///tmp/x")
	require.NoError(t, err)
	assert.True(t, u.IsLocalFile())
}

func TestSortByProducerPriority(t *testing.T) {
	a := MustParseURI("a")
	b := MustParseURI("b")
	c := MustParseURI("c")

	jobOf := map[string]*Job{
		a.String(): {Priority: 5},
		b.String(): {Priority: 1},
	}

	ordered := sortByProducerPriority([]URI{a, b, c}, jobOf)
	require.Len(t, ordered, 3)
	assert.Equal(t, b, ordered[0]) // priority 1 first
	assert.Equal(t, a, ordered[1]) // priority 5 second
	assert.Equal(t, c, ordered[2]) // no producer job, ranked last
}
