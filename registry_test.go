package taskgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFileRuleConflict(t *testing.T) {
	r := NewRegistry()
	target := MustParseURI("out.txt")

	require.NoError(t, r.File(FileRule{Targets: []URI{target}}))

	err := r.File(FileRule{Targets: []URI{target}})
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindRegistryConflict, kind)
}

func TestRegistryPhonyAccumulatesAcrossDeclarations(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Phony(PhonyRule{
		Label: "all",
		Deps:  []URI{MustParseURI("a.out")},
		Desc:  []string{"build a"},
	}))
	require.NoError(t, r.Phony(PhonyRule{
		Label: "all",
		Deps:  []URI{MustParseURI("b.out")},
		Desc:  []string{"build b"},
	}))

	rl, ok := r.lookupRule(Label("all"))
	require.True(t, ok)
	assert.Len(t, rl.deps, 2)
	assert.Equal(t, []string{"build a", "build b"}, rl.desc)
}

func TestRegistryPhonySecondActionIsConflict(t *testing.T) {
	r := NewRegistry()
	action := func(context.Context, *Job) error { return nil }

	require.NoError(t, r.Phony(PhonyRule{Label: "all", Action: action}))
	err := r.Phony(PhonyRule{Label: "all", Action: action})
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindRegistryConflict, kind)
}

func TestRegistryPhonyLabelCollidesWithFileTarget(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.File(FileRule{Targets: []URI{MustParseURI("all")}}))

	err := r.Phony(PhonyRule{Label: "all"})
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindRegistryConflict, kind)
}

func TestRegistryMetaWriteOnceSameValue(t *testing.T) {
	r := NewRegistry()
	target := MustParseURI("out.txt")

	require.NoError(t, r.Meta(target, "credential", "token-a"))
	require.NoError(t, r.Meta(target, "credential", "token-a")) // idempotent

	err := r.Meta(target, "credential", "token-b")
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindRegistryConflict, kind)
}

func TestRegistryResolveNamePrefersPhony(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Phony(PhonyRule{Label: "all"}))

	u, err := r.ResolveName("all")
	require.NoError(t, err)
	assert.Equal(t, "phony", u.Scheme)
	assert.Equal(t, "all", u.Path)
}
