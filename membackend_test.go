package taskgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemBackendTouchAndMTime(t *testing.T) {
	b := NewMemBackend(1000)
	u := MustParseURI("mem://localhost/widget")

	_, err := b.MTime(context.Background(), u, "", false)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	b.TouchAt(u, 42)
	v, err := b.MTime(context.Background(), u, "", false)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v)
}

func TestMemBackendRemove(t *testing.T) {
	b := NewMemBackend(1000)
	u := MustParseURI("mem://localhost/widget")
	b.TouchAt(u, 1)

	require.NoError(t, b.Remove(context.Background(), u, ""))

	_, err := b.MTime(context.Background(), u, "", false)
	assert.True(t, IsNotFound(err))
}
