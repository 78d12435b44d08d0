package statepath

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProgramCache struct {
	mu      sync.Mutex
	entries map[string]any
	hits    int
}

func newCountingProgramCache() *countingProgramCache {
	return &countingProgramCache{entries: map[string]any{}}
}

func (c *countingProgramCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return value, ok
}

func (c *countingProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func evaluatorFactories(cache ProgramCache, registry *FunctionRegistry) map[string]Evaluator {
	out := map[string]Evaluator{
		EngineExpr: NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)),
		EngineCEL:  NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)),
	}
	if js := NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)); js != nil {
		out[EngineJS] = js
	}
	return out
}

func TestEvaluatorsComputeFromVars(t *testing.T) {
	for name, evaluator := range evaluatorFactories(nil, nil) {
		t.Run(name, func(t *testing.T) {
			rule, err := evaluator.Compile("price * qty", CompileWithVars("price", "qty"))
			require.NoError(t, err)

			value, err := rule.Evaluate(RuleContext{Vars: map[string]any{"price": int64(4), "qty": int64(3)}})
			require.NoError(t, err)
			assert.EqualValues(t, 12, value)
		})
	}
}

func TestEvaluatorsExposeBuiltins(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := RuleContext{Path: "items.1.total", ListIndex: []int{1}, Now: &now}

	for name, evaluator := range evaluatorFactories(nil, nil) {
		t.Run(name, func(t *testing.T) {
			value, err := evaluator.Evaluate(ctx, "path")
			require.NoError(t, err)
			assert.Equal(t, "items.1.total", value)

			value, err = evaluator.Evaluate(ctx, "index[0]")
			require.NoError(t, err)
			assert.EqualValues(t, 1, value)
		})
	}
}

func TestEvaluatorsReuseCachedPrograms(t *testing.T) {
	cache := newCountingProgramCache()
	for name, evaluator := range evaluatorFactories(cache, nil) {
		t.Run(name, func(t *testing.T) {
			before := cache.hits
			for i := 0; i < 3; i++ {
				_, err := evaluator.Compile("a + 1", CompileWithVars("a"))
				require.NoError(t, err)
			}
			assert.Equal(t, before+2, cache.hits)
		})
	}

	var prefixes []string
	for key := range cache.entries {
		prefixes = append(prefixes, strings.SplitN(key, ":", 2)[0])
	}
	assert.Contains(t, prefixes, EngineExpr)
	assert.Contains(t, prefixes, EngineCEL)
}

func TestEvaluatorsCallRegisteredFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	require.NoError(t, registry.Register("greet", func(args ...any) (any, error) {
		name, _ := args[0].(string)
		return "hi " + name, nil
	}))

	evaluators := evaluatorFactories(nil, registry)
	ctx := RuleContext{Vars: map[string]any{"name": "Ann"}}

	value, err := evaluators[EngineExpr].Evaluate(ctx, `greet(name)`)
	require.NoError(t, err)
	assert.Equal(t, "hi Ann", value)

	value, err = evaluators[EngineCEL].Evaluate(ctx, `call("greet", [name])`)
	require.NoError(t, err)
	assert.Equal(t, "hi Ann", value)

	_, err = evaluators[EngineCEL].Evaluate(ctx, `call("missing", [name])`)
	assert.Error(t, err)
}

func TestEvaluatorsRejectEmptyExpressions(t *testing.T) {
	for name, evaluator := range evaluatorFactories(nil, nil) {
		t.Run(name, func(t *testing.T) {
			_, err := evaluator.Compile("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "expression must not be empty")
		})
	}
}

func TestEvaluatorSetLookup(t *testing.T) {
	set := newEvaluatorSet(applyOptions(nil))

	first, err := set.lookup("")
	require.NoError(t, err)
	assert.Equal(t, EngineExpr, evaluatorEngineName(first))

	again, err := set.lookup(EngineExpr)
	require.NoError(t, err)
	assert.Same(t, first, again)

	cel, err := set.lookup(EngineCEL)
	require.NoError(t, err)
	assert.Equal(t, EngineCEL, evaluatorEngineName(cel))

	_, err = set.lookup("lua")
	assert.Error(t, err)

	custom := NewCELEvaluator()
	set = newEvaluatorSet(applyOptions([]Option{WithEvaluator(custom)}))
	got, err := set.lookup("")
	require.NoError(t, err)
	assert.Same(t, custom, got)
}
