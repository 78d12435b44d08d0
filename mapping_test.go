package statepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMappedBoundary(t *testing.T, e *Engine, bindings ...*BindingInfo) *Boundary {
	t.Helper()
	boundary := NewBoundary(NewStateRoot("card"), newNode("card", nil))
	require.NoError(t, e.Bind(boundary, "app", bindings...))
	return boundary
}

func TestOuterFromInnerSplicesDescendants(t *testing.T) {
	e := New()
	app := newTestRoot(t, e, "app", usersState())
	boundary := newMappedBoundary(t, e, &BindingInfo{PropPath: "user", StatePath: "users.0"})

	inner := boundary.Inner.RootPath(MustResolvePath("user.name"))
	outer, err := e.Mapper().OuterFromInner(boundary, inner)
	require.NoError(t, err)
	assert.Equal(t, "users.0.name", outer.Path.Path)
	assert.Same(t, app, outer.Root)

	again, err := e.Mapper().OuterFromInner(boundary, inner)
	require.NoError(t, err)
	assert.Same(t, outer, again)

	synthetic := boundary.SyntheticBinding(inner)
	require.NotNil(t, synthetic)
	assert.True(t, synthetic.Synthetic)
	assert.Equal(t, "user.name", synthetic.PropPath)
	assert.Equal(t, "users.0.name", synthetic.StatePath)
	assert.Equal(t, "app", synthetic.ScopeName)
	assert.Len(t, boundary.Bindings(), 2)
}

func TestOuterFromInnerPrimaryFastPath(t *testing.T) {
	e := New()
	newTestRoot(t, e, "app", usersState())
	boundary := newMappedBoundary(t, e, &BindingInfo{PropPath: "user", StatePath: "users.0"})

	inner := boundary.Inner.RootPath(MustResolvePath("user"))
	outer, err := e.Mapper().OuterFromInner(boundary, inner)
	require.NoError(t, err)
	assert.Equal(t, "users.0", outer.Path.Path)
	assert.Nil(t, boundary.SyntheticBinding(inner))
}

func TestOuterFromInnerWithoutAncestorFails(t *testing.T) {
	e := New()
	newTestRoot(t, e, "app", usersState())
	boundary := newMappedBoundary(t, e, &BindingInfo{PropPath: "user", StatePath: "users.0"})

	_, err := e.Mapper().OuterFromInner(boundary, boundary.Inner.RootPath(MustResolvePath("other")))
	require.ErrorIs(t, err, ErrNoMappingRule)
	assert.Contains(t, err.Error(), `"other"`)
	assert.Contains(t, err.Error(), `available: "user"`)

	_, err = e.Mapper().OuterFromInner(boundary, boundary.Inner.RootPath(MustResolvePath("other")))
	assert.ErrorIs(t, err, ErrNoMappingRule, "failures are not memoized")
}

func TestOuterFromInnerDuplicateRules(t *testing.T) {
	e := New()
	newTestRoot(t, e, "app", map[string]any{
		"users":  []any{map[string]any{"name": "Ann"}},
		"admins": []any{map[string]any{"name": "Root"}},
	})
	boundary := newMappedBoundary(t, e,
		&BindingInfo{PropPath: "user", StatePath: "users.0"},
		&BindingInfo{PropPath: "user", StatePath: "admins.0"},
	)

	_, err := e.Mapper().OuterFromInner(boundary, boundary.Inner.RootPath(MustResolvePath("user.name")))
	assert.ErrorIs(t, err, ErrDuplicateMappingRule)

	_, err = e.Mapper().OuterFromInner(boundary, boundary.Inner.RootPath(MustResolvePath("user")))
	assert.ErrorIs(t, err, ErrDuplicateMappingRule)
}

func TestOuterFromInnerRepeatedIdenticalDeclaration(t *testing.T) {
	e := New()
	newTestRoot(t, e, "app", usersState())
	boundary := newMappedBoundary(t, e,
		&BindingInfo{PropPath: "user", StatePath: "users.0"},
		&BindingInfo{PropPath: "user", StatePath: "users.0"},
	)

	outer, err := e.Mapper().OuterFromInner(boundary, boundary.Inner.RootPath(MustResolvePath("user")))
	require.NoError(t, err)
	assert.Equal(t, "users.0", outer.Path.Path)
}

func TestOuterFromInnerLongestRuleWins(t *testing.T) {
	e := New()
	newTestRoot(t, e, "app", map[string]any{
		"profile":  map[string]any{"address": map[string]any{"city": "Oslo"}},
		"shipping": map[string]any{"city": "Bergen"},
	})
	boundary := newMappedBoundary(t, e,
		&BindingInfo{PropPath: "user", StatePath: "profile"},
		&BindingInfo{PropPath: "user.address", StatePath: "shipping"},
	)

	outer, err := e.Mapper().OuterFromInner(boundary, boundary.Inner.RootPath(MustResolvePath("user.address.city")))
	require.NoError(t, err)
	assert.Equal(t, "shipping.city", outer.Path.Path)

	outer, err = e.Mapper().OuterFromInner(boundary, boundary.Inner.RootPath(MustResolvePath("user.name")))
	require.NoError(t, err)
	assert.Equal(t, "profile.name", outer.Path.Path)
}

func TestInnerFromOuterPrimaryOnly(t *testing.T) {
	e := New()
	app := newTestRoot(t, e, "app", usersState())
	boundary := newMappedBoundary(t, e, &BindingInfo{PropPath: "user", StatePath: "users.0"})

	inner := e.Mapper().InnerFromOuter(boundary, app.RootPath(MustResolvePath("users.0")))
	require.NotNil(t, inner)
	assert.Equal(t, "user", inner.Path.Path)
	assert.Same(t, boundary.Inner, inner.Root)

	_, err := e.Mapper().OuterFromInner(boundary, boundary.Inner.RootPath(MustResolvePath("user.name")))
	require.NoError(t, err)
	assert.Nil(t, e.Mapper().InnerFromOuter(boundary, app.RootPath(MustResolvePath("users.0.name"))))
}

func TestBuildPrimaryMappingRulesErrors(t *testing.T) {
	e := New()
	newTestRoot(t, e, "app", usersState())
	binding := &BindingInfo{PropPath: "user", StatePath: "users.0"}

	err := e.Mapper().BuildPrimaryMappingRules(NewBoundary(NewStateRoot("card"), nil), "app", nil)
	assert.ErrorIs(t, err, ErrEmptyBindings)

	err = e.Mapper().BuildPrimaryMappingRules(NewBoundary(nil, nil), "app", []*BindingInfo{binding})
	assert.ErrorIs(t, err, ErrScopeNotFound)

	err = e.Mapper().BuildPrimaryMappingRules(NewBoundary(NewStateRoot("card"), nil), "missing", []*BindingInfo{binding})
	assert.ErrorIs(t, err, ErrScopeNotFound)

	err = e.Mapper().BuildPrimaryMappingRules(NewBoundary(NewStateRoot("card"), nil), "app",
		[]*BindingInfo{{PropPath: "user..x", StatePath: "users.0"}})
	assert.ErrorIs(t, err, ErrMalformedPath)

	err = e.Mapper().BuildPrimaryMappingRules(NewBoundary(NewStateRoot("card"), nil), "app", []*BindingInfo{nil, nil})
	assert.ErrorIs(t, err, ErrEmptyBindings)
}

func TestBindSkipsNilBindings(t *testing.T) {
	e := New()
	newTestRoot(t, e, "app", usersState())
	first := &BindingInfo{PropPath: "first", StatePath: "users.0"}
	second := &BindingInfo{PropPath: "second", StatePath: "users.1"}

	boundary := NewBoundary(NewStateRoot("card"), nil)
	require.NoError(t, e.Bind(boundary, "app", nil, first, second))
	assert.Equal(t, []*BindingInfo{first, second}, boundary.Bindings())

	rules := boundary.Rules()
	require.Len(t, rules, 2)
	assert.Same(t, first, rules[0].Binding)
	assert.Same(t, second, rules[1].Binding)

	err := e.Bind(NewBoundary(NewStateRoot("card"), nil), "app", nil)
	assert.ErrorIs(t, err, ErrEmptyBindings)
}

func TestBuildPrimaryMappingRulesUsesBindingScope(t *testing.T) {
	e := New()
	newTestRoot(t, e, "app", usersState())
	session := newTestRoot(t, e, "session", map[string]any{"me": map[string]any{"name": "Cid"}})

	boundary := newMappedBoundary(t, e, &BindingInfo{PropPath: "viewer", StatePath: "me", ScopeName: "session"})
	rules := boundary.Rules()
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Primary)
	assert.Same(t, session, rules[0].Outer.Root)
	require.NotNil(t, rules[0].OuterAddress)
	assert.Equal(t, "session:me", rules[0].OuterAddress.String())
}
