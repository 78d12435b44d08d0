package statepath

import (
	"fmt"
	"time"
)

// RuleContext carries the inputs of one computed-path evaluation.
type RuleContext struct {
	// Vars holds dependency values bound under their declared variable names.
	Vars      map[string]any
	Path      string
	ListIndex []int
	Now       *time.Time
	Args      map[string]any
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Vars == nil {
		ctx.Vars = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.ListIndex == nil {
		ctx.ListIndex = []int{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

// builtins returns the names every evaluator binds besides Vars.
func (ctx RuleContext) builtins() map[string]any {
	return map[string]any{
		"now":   ctx.timestamp(),
		"args":  ctx.Args,
		"index": ctx.ListIndex,
		"path":  ctx.Path,
	}
}

// Evaluator executes computed-path expressions.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	vars []string
}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// CompileWithVars declares the variable names the expression may reference.
// Evaluators with a checked environment, such as CEL, need them up front.
func CompileWithVars(names ...string) CompileOption {
	return compileOptionFunc(func(cfg *compileConfig) {
		cfg.vars = append(cfg.vars, names...)
	})
}

func applyCompileOptions(opts []CompileOption) compileConfig {
	cfg := compileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	return cfg
}

// EngineExpr, EngineCEL and EngineJS name the built-in evaluators.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*statepath.exprEvaluator":
		return EngineExpr
	case "*statepath.celEvaluator":
		return EngineCEL
	case "*statepath.jsEvaluator":
		return EngineJS
	default:
		return "custom"
	}
}
