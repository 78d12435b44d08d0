package statepath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionRegistryDeclare(t *testing.T) {
	registry := NewFunctionRegistry()
	require.NoError(t, registry.Declare(FunctionSpec{
		Name:  "clampQty",
		Arity: 2,
		Fn: func(args ...any) (any, error) {
			qty, _ := args[0].(int)
			limit, _ := args[1].(int)
			return min(qty, limit), nil
		},
	}))

	value, err := registry.Call("CLAMPQTY", 7, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, value)

	_, err = registry.Call("clampQty", 7)
	assert.ErrorIs(t, err, ErrFunctionArity)

	_, err = registry.Call("missing")
	assert.ErrorIs(t, err, ErrFunctionNotFound)

	assert.Equal(t, []string{"clampQty"}, registry.Names())

	err = registry.Register("ClampQty", func(...any) (any, error) { return nil, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), `already registered as "clampQty"`)

	assert.Error(t, registry.Register("", func(...any) (any, error) { return nil, nil }))
	assert.Error(t, registry.Register("nothing", nil))
}

func TestFunctionRegistryWrapsHelperErrors(t *testing.T) {
	boom := errors.New("boom")
	registry := NewFunctionRegistry()
	require.NoError(t, registry.Register("explode", func(...any) (any, error) { return nil, boom }))

	_, err := registry.Call("explode", 1, 2, 3)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "function explode")
}

func TestFunctionRegistryCloneIsolated(t *testing.T) {
	registry := NewFunctionRegistry()
	require.NoError(t, registry.Register("one", func(...any) (any, error) { return 1, nil }))

	clone := registry.Clone()
	require.NoError(t, registry.Register("two", func(...any) (any, error) { return 2, nil }))

	assert.Equal(t, []string{"one"}, clone.Names())
	_, ok := clone.Lookup("two")
	assert.False(t, ok)

	var nilRegistry *FunctionRegistry
	_, err := nilRegistry.Call("one")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestWithFunctionArityReachesEvaluator(t *testing.T) {
	e := New(WithFunction(FunctionSpec{
		Name:  "half",
		Arity: 1,
		Fn: func(args ...any) (any, error) {
			switch n := args[0].(type) {
			case int:
				return n / 2, nil
			case int64:
				return n / 2, nil
			}
			return nil, errors.New("not an int")
		},
	}))
	root := newTestRoot(t, e, "shop", shopState())
	require.NoError(t, root.DefineComputed(Computed{
		Path: "items.*.half",
		Expr: "half(price)",
		Deps: map[string]string{"price": "items.*.price"},
	}))
	require.NoError(t, root.DefineComputed(Computed{
		Path: "items.*.broken",
		Expr: "half(price, price)",
		Deps: map[string]string{"price": "items.*.price"},
	}))

	value, err := e.Get(itemAddress(root, "items.*.half", 0))
	require.NoError(t, err)
	assert.EqualValues(t, 1, value)

	_, err = e.Get(itemAddress(root, "items.*.broken", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong number of function arguments")
}
