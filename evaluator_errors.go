package statepath

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError reports a failed computed-path evaluation. Path is the
// declared computed path; Address is the concrete path it was evaluated at,
// and ListIndex the loop positions that produced it. Compile failures carry
// no address.
type EvaluationError struct {
	Engine    string
	Expr      string
	Root      string
	Path      string
	Address   string
	ListIndex []int
	Err       error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "statepath: %s evaluator %s", e.Engine, describeExpression(e.Expr))
	if e.Root != "" {
		fmt.Fprintf(&b, " root=%s", e.Root)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Address != "" && e.Address != e.Path {
		fmt.Fprintf(&b, " address=%s", e.Address)
	}
	if len(e.ListIndex) > 0 {
		fmt.Fprintf(&b, " index=%v", e.ListIndex)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

// wrapEvaluatorError prefixes evaluator setup failures that are not tied to
// an expression.
func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "statepath:") {
		return err
	}
	return fmt.Errorf("statepath: %s evaluator: %w", engine, err)
}

// wrapEvaluationError attaches expr and the evaluation site in ctx to err.
// Fields already set on a wrapped EvaluationError are kept.
func wrapEvaluationError(engine, expr string, ctx RuleContext, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		evalErr = &EvaluationError{Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Address == "" {
		evalErr.Address = ctx.Path
	}
	if evalErr.ListIndex == nil && len(ctx.ListIndex) > 0 {
		evalErr.ListIndex = append([]int(nil), ctx.ListIndex...)
	}
	return evalErr
}

// annotateEvaluationError records the root and declared path of def on err.
// Errors that did not come from an evaluator are wrapped so every computed
// failure surfaces as an EvaluationError.
func annotateEvaluationError(err error, engine string, root string, def *computedPath, ctx RuleContext) error {
	if err == nil {
		return nil
	}
	wrapped := wrapEvaluationError(engine, def.def.Expr, ctx, err)
	var evalErr *EvaluationError
	if errors.As(wrapped, &evalErr) {
		if evalErr.Root == "" {
			evalErr.Root = root
		}
		if evalErr.Path == "" && def.desc != nil {
			evalErr.Path = def.desc.Path
		}
	}
	return wrapped
}
