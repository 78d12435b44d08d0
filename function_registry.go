package statepath

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrFunctionNotFound indicates a computed expression calling an
	// unregistered helper.
	ErrFunctionNotFound = errors.New("statepath: function not registered")
	// ErrFunctionArity indicates a helper called with the wrong argument count.
	ErrFunctionArity = errors.New("statepath: wrong number of function arguments")
)

// Function is a helper callable from computed expressions.
type Function func(args ...any) (any, error)

// FunctionSpec declares a helper. Arity is the exact argument count the
// helper takes; a negative Arity accepts any count.
type FunctionSpec struct {
	Name  string
	Arity int
	Fn    Function
}

// FunctionRegistry holds the helpers computed paths may call. Lookups ignore
// case; Names reports helpers as they were declared so evaluators bind the
// declared spelling.
type FunctionRegistry struct {
	mu    sync.RWMutex
	specs map[string]FunctionSpec
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{specs: map[string]FunctionSpec{}}
}

// Register declares fn under name accepting any argument count.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	return r.Declare(FunctionSpec{Name: name, Arity: -1, Fn: fn})
}

// Declare stores spec. Names are unique regardless of case.
func (r *FunctionRegistry) Declare(spec FunctionSpec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return fmt.Errorf("statepath: function name must not be empty")
	}
	if spec.Fn == nil {
		return fmt.Errorf("statepath: function %q is nil", spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.specs == nil {
		r.specs = map[string]FunctionSpec{}
	}
	key := strings.ToLower(spec.Name)
	if existing, ok := r.specs[key]; ok {
		return fmt.Errorf("statepath: function %q already registered as %q", spec.Name, existing.Name)
	}
	r.specs[key] = spec
	return nil
}

// Clone copies the registry so evaluators built from it do not observe later
// declarations.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{specs: make(map[string]FunctionSpec, len(r.specs))}
	for key, spec := range r.specs {
		clone.specs[key] = spec
	}
	return clone
}

// Lookup returns the spec declared for name.
func (r *FunctionRegistry) Lookup(name string) (FunctionSpec, bool) {
	if r == nil {
		return FunctionSpec{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[strings.ToLower(name)]
	return spec, ok
}

// Call runs the helper declared for name after checking its arity. Helper
// errors are wrapped with the helper name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	spec, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	if spec.Arity >= 0 && len(args) != spec.Arity {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrFunctionArity, spec.Name, spec.Arity, len(args))
	}
	result, err := spec.Fn(args...)
	if err != nil {
		return nil, fmt.Errorf("statepath: function %s: %w", spec.Name, err)
	}
	return result, nil
}

// Names returns the declared helper names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for _, spec := range r.specs {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry configures the engine evaluators to use a copy of
// registry.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the engine evaluators. A
// name already taken keeps its first declaration.
func WithCustomFunction(name string, fn Function) Option {
	return WithFunction(FunctionSpec{Name: name, Arity: -1, Fn: fn})
}

// WithFunction declares spec for the engine evaluators.
func WithFunction(spec FunctionSpec) Option {
	return func(cfg *engineConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Declare(spec)
	}
}
