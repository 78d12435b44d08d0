package statepath

import (
	"fmt"
	"sync"
)

// JSEvaluatorOption configures the goja evaluator.
type JSEvaluatorOption func(*jsEvaluatorConfig)

type jsEvaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSWithProgramCache applies a ProgramCache to the JS evaluator.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry applies a FunctionRegistry to the JS evaluator.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		if registry != nil {
			cfg.registry = registry.Clone()
		}
	}
}

func applyJSEvaluatorOptions(opts []JSEvaluatorOption) jsEvaluatorConfig {
	cfg := jsEvaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// evaluatorSet resolves the evaluator named by a computed definition. Engines
// are built lazily and share the engine program cache and function registry.
type evaluatorSet struct {
	fallback Evaluator
	cache    ProgramCache
	registry *FunctionRegistry

	mu      sync.Mutex
	engines map[string]Evaluator
}

func newEvaluatorSet(cfg engineConfig) *evaluatorSet {
	return &evaluatorSet{
		fallback: cfg.evaluator,
		cache:    cfg.programCache,
		registry: cfg.functions,
		engines:  map[string]Evaluator{},
	}
}

func (s *evaluatorSet) lookup(engine string) (Evaluator, error) {
	if engine == "" {
		if s.fallback != nil {
			return s.fallback, nil
		}
		engine = EngineExpr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if evaluator, ok := s.engines[engine]; ok {
		return evaluator, nil
	}
	var evaluator Evaluator
	switch engine {
	case EngineExpr:
		evaluator = NewExprEvaluator(ExprWithProgramCache(s.cache), ExprWithFunctionRegistry(s.registry))
	case EngineCEL:
		evaluator = NewCELEvaluator(CELWithProgramCache(s.cache), CELWithFunctionRegistry(s.registry))
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("statepath: js evaluator requires the js_eval build tag")
		}
		evaluator = NewJSEvaluator(JSWithProgramCache(s.cache), JSWithFunctionRegistry(s.registry))
	default:
		return nil, fmt.Errorf("statepath: unknown evaluator engine %q", engine)
	}
	s.engines[engine] = evaluator
	return evaluator, nil
}
