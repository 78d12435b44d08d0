package statepath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "price * rate", RuleContext{Path: "products.1.tax", ListIndex: []int{1}}, base)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "expr", evalErr.Engine)
	assert.Equal(t, "price * rate", evalErr.Expr)
	assert.Equal(t, "products.1.tax", evalErr.Address)
	assert.Equal(t, []int{1}, evalErr.ListIndex)
	assert.ErrorIs(t, evalErr, base)
	assert.Equal(t, `statepath: expr evaluator expr="price * rate" address=products.1.tax index=[1]: boom`, err.Error())
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "rule", RuleContext{Path: "total"}, existing)
	require.ErrorIs(t, err, base)
	assert.Equal(t, "expr", existing.Engine, "existing engine should not be overwritten")
	assert.Equal(t, "rule", existing.Expr)
	assert.Equal(t, "total", existing.Address)
	assert.Nil(t, existing.ListIndex)
}

func TestComputedFailureReportsEvaluationSite(t *testing.T) {
	boom := errors.New("no rate for region")
	e := New(WithCustomFunction("rate", func(...any) (any, error) { return nil, boom }))
	root := newTestRoot(t, e, "shop", shopState())
	require.NoError(t, root.DefineComputed(Computed{
		Path: "items.*.tax",
		Expr: "price * rate(name)",
		Deps: map[string]string{"price": "items.*.price", "name": "items.*.name"},
	}))

	_, err := e.Get(itemAddress(root, "items.*.tax", 1))
	require.Error(t, err)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, EngineExpr, evalErr.Engine)
	assert.Equal(t, "price * rate(name)", evalErr.Expr)
	assert.Equal(t, "shop", evalErr.Root)
	assert.Equal(t, "items.*.tax", evalErr.Path)
	assert.Equal(t, "items.1.tax", evalErr.Address)
	assert.Equal(t, []int{1}, evalErr.ListIndex)
	assert.Contains(t, err.Error(), "address=items.1.tax index=[1]")

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "evaluate", resErr.Op)
}

func TestWrapResolutionErrorKeepsSentinel(t *testing.T) {
	err := wrapResolutionError("resolve-path", "a..b", "", ErrMalformedPath)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.ErrorIs(t, err, ErrMalformedPath)
	assert.Contains(t, err.Error(), `path="a..b"`)

	again := wrapResolutionError("outer", "ignored", "app", err)
	assert.Same(t, resErr, again)
	assert.Equal(t, "resolve-path", resErr.Op)
	assert.Equal(t, "app", resErr.Scope)
}
