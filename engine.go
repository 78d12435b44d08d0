package statepath

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-statepath/pkg/activity"
)

// Engine ties the registries together: it resolves bindings to addresses,
// reads and writes through the per-root caches, translates paths across
// boundaries and drives invalidation.
type Engine struct {
	roots      *Roots
	loops      LoopContextProvider
	resolver   *ListIndexResolver
	mapper     *Mapper
	evaluators *evaluatorSet
	logger     Logger
	emitter    *activity.Emitter

	mu         sync.RWMutex
	boundaries []*Boundary
}

// New builds an engine.
func New(opts ...Option) *Engine {
	cfg := applyOptions(opts)
	roots := NewRoots()
	resolver := NewListIndexResolver(cfg.loops, cfg.listIndexCacheSize)
	return &Engine{
		roots:      roots,
		loops:      cfg.loops,
		resolver:   resolver,
		mapper:     NewMapper(roots, resolver, cfg.logger),
		evaluators: newEvaluatorSet(cfg),
		logger:     cfg.logger,
		emitter: activity.NewEmitter(cfg.activityHooks, activity.Config{
			Enabled:      cfg.activityHooks.Enabled(),
			Channel:      cfg.activityChannel,
			Verbs:        cfg.activityVerbs,
			RootChannels: cfg.rootChannels,
		}),
	}
}

// Roots returns the root registry.
func (e *Engine) Roots() *Roots {
	return e.roots
}

// Loops returns the loop context provider.
func (e *Engine) Loops() LoopContextProvider {
	return e.loops
}

// Mapper returns the boundary mapper.
func (e *Engine) Mapper() *Mapper {
	return e.mapper
}

// NewRoot creates, initializes and registers a root.
func (e *Engine) NewRoot(ctx context.Context, name string, loader RootLoader) (*StateRoot, error) {
	if name == "" {
		return nil, ErrScopeNameRequired
	}
	root := NewStateRoot(name)
	if err := root.Init(ctx, loader); err != nil {
		return nil, err
	}
	if err := e.roots.Register(root); err != nil {
		root.Dispose()
		return nil, err
	}
	return root, nil
}

// Bind builds the primary mapping rules of a boundary and tracks it for
// invalidation.
func (e *Engine) Bind(boundary *Boundary, scopeName string, bindings ...*BindingInfo) error {
	if err := e.mapper.BuildPrimaryMappingRules(boundary, scopeName, bindings); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.boundaries {
		if existing == boundary {
			return nil
		}
	}
	e.boundaries = append(e.boundaries, boundary)
	return nil
}

// Unbind stops tracking boundary.
func (e *Engine) Unbind(boundary *Boundary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.boundaries {
		if existing == boundary {
			e.boundaries = append(e.boundaries[:i], e.boundaries[i+1:]...)
			return
		}
	}
}

// ResolveBinding resolves binding to its memoized root address and records
// the path with the root's dependency tracker.
func (e *Engine) ResolveBinding(binding *BindingInfo) (*RootStateAddress, error) {
	if binding == nil {
		return nil, wrapResolutionError("resolve-binding", "", "", fmt.Errorf("binding must not be nil"))
	}
	root, err := e.roots.Lookup(binding.ScopeName)
	if err != nil {
		return nil, wrapResolutionError("resolve-binding", binding.StatePath, binding.ScopeName, err)
	}
	desc, err := binding.PathDescriptor()
	if err != nil {
		return nil, wrapResolutionError("resolve-binding", binding.StatePath, binding.ScopeName, err)
	}
	li, err := e.resolver.Resolve(binding)
	if err != nil {
		return nil, wrapResolutionError("resolve-binding", binding.StatePath, binding.ScopeName, err)
	}
	if err := registerUsage(root, desc); err != nil {
		return nil, wrapResolutionError("resolve-binding", binding.StatePath, binding.ScopeName, err)
	}
	return root.MakeRootAddress(ResolveRootPath(root, desc), li), nil
}

// Get returns the value at addr. A clean cache entry is served directly;
// otherwise the value is computed or read from the root state and cached.
func (e *Engine) Get(addr *RootStateAddress) (any, error) {
	value, _, err := e.get(addr, nil)
	return value, err
}

func (e *Engine) get(addr *RootStateAddress, visiting map[*RootStateAddress]struct{}) (any, bool, error) {
	if addr == nil || addr.Path == nil {
		return nil, false, wrapResolutionError("get", "", "", fmt.Errorf("address must not be nil"))
	}
	root := addr.Root()
	if !root.Ready() {
		return nil, false, wrapResolutionError("get", addr.ConcretePath(), root.Name, ErrRootNotReady)
	}

	start := time.Now()
	root.cacheMu.Lock()
	entry := root.cache.GetEntry(addr)
	root.cacheMu.Unlock()
	if entry != nil && !entry.Dirty {
		e.logGet(addr, true, start, nil)
		return entry.Value, true, nil
	}

	var (
		value any
		err   error
	)
	if def := root.computedFor(addr.Path.Path); def != nil {
		value, err = e.evaluate(addr, def, visiting)
	} else {
		segments, _ := concreteSegments(addr.Path.Path, addr.ListIndex)
		value, _ = root.read(segments)
	}
	if err != nil {
		e.logGet(addr, false, start, err)
		return nil, false, err
	}

	root.cacheMu.Lock()
	root.cache.SetEntry(addr, &CacheEntry{Value: value})
	root.cacheMu.Unlock()
	e.logGet(addr, false, start, nil)
	return value, false, nil
}

func (e *Engine) evaluate(addr *RootStateAddress, def *computedPath, visiting map[*RootStateAddress]struct{}) (any, error) {
	root := addr.Root()
	if visiting == nil {
		visiting = map[*RootStateAddress]struct{}{}
	}
	if _, ok := visiting[addr]; ok {
		return nil, wrapResolutionError("evaluate", addr.ConcretePath(), root.Name, ErrComputedCycle)
	}
	visiting[addr] = struct{}{}
	defer delete(visiting, addr)

	vars := make(map[string]any, len(def.deps))
	for _, dep := range def.deps {
		li := trimListIndex(addr.ListIndex, dep.desc.WildcardCount)
		depAddr := root.MakeRootAddress(ResolveRootPath(root, dep.desc), li)
		value, _, err := e.get(depAddr, visiting)
		if err != nil {
			return nil, err
		}
		vars[dep.name] = value
	}

	evaluator, err := e.evaluators.lookup(def.def.Engine)
	if err != nil {
		return nil, wrapResolutionError("evaluate", addr.ConcretePath(), root.Name, err)
	}
	engine := evaluatorEngineName(evaluator)
	ruleCtx := RuleContext{
		Vars:      vars,
		Path:      addr.ConcretePath(),
		ListIndex: addr.ListIndex.Indexes(),
	}
	start := time.Now()
	value, err := runComputed(evaluator, def, ruleCtx)
	err = annotateEvaluationError(err, engine, root.Name, def, ruleCtx)
	e.logger.LogResolution(LogEvent{
		Op:        "evaluate",
		Root:      root.Name,
		Path:      addr.ConcretePath(),
		ListIndex: addr.ListIndex.String(),
		Engine:    engine,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return nil, wrapResolutionError("evaluate", addr.ConcretePath(), root.Name, err)
	}
	return value, nil
}

func runComputed(evaluator Evaluator, def *computedPath, ctx RuleContext) (any, error) {
	rule, err := evaluator.Compile(def.def.Expr, CompileWithVars(def.varNames()...))
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *Engine) logGet(addr *RootStateAddress, hit bool, start time.Time, err error) {
	e.logger.LogResolution(LogEvent{
		Op:        "get",
		Root:      addr.Path.ScopeName,
		Path:      addr.ConcretePath(),
		ListIndex: addr.ListIndex.String(),
		CacheHit:  hit,
		Duration:  time.Since(start),
		Err:       err,
	})
}

// Set writes value at addr's concrete path and invalidates everything that
// depends on addr's path.
func (e *Engine) Set(ctx context.Context, addr *RootStateAddress, value any) error {
	if addr == nil || addr.Path == nil {
		return wrapResolutionError("set", "", "", fmt.Errorf("address must not be nil"))
	}
	root := addr.Root()
	concrete := addr.ConcretePath()
	segments, _ := concreteSegments(addr.Path.Path, addr.ListIndex)
	if err := root.write(segments, value); err != nil {
		return wrapResolutionError("set", concrete, root.Name, err)
	}
	if err := registerUsage(root, addr.Path.Path); err != nil {
		return wrapResolutionError("set", concrete, root.Name, err)
	}

	if _, err := e.Invalidate(ctx, root, addr.Path.Path.Path); err != nil {
		return err
	}
	return e.emitter.Written(ctx, activityRoot(root), concrete, addr.ListIndex.Indexes())
}

// ResolveInner resolves a path used inside boundary's inner scope to the
// outer address it stands for. Primary paths resolve through their declaring
// binding; deeper paths go through the derived synthetic binding.
func (e *Engine) ResolveInner(boundary *Boundary, innerPath string) (*RootStateAddress, error) {
	if boundary == nil || boundary.Inner == nil {
		return nil, wrapResolutionError("resolve-inner", innerPath, "", ErrScopeNotFound)
	}
	desc, err := ResolvePath(innerPath)
	if err != nil {
		return nil, wrapResolutionError("resolve-inner", innerPath, boundary.Inner.Name, err)
	}
	inner := ResolveRootPath(boundary.Inner, desc)
	rule, err := boundary.primaryRule(inner)
	if err != nil {
		return nil, wrapResolutionError("resolve-inner", innerPath, boundary.Inner.Name, err)
	}
	if rule != nil {
		return rule.OuterAddress, nil
	}
	derived := boundary.SyntheticBinding(inner) == nil
	outer, err := e.mapper.OuterFromInner(boundary, inner)
	if err != nil {
		return nil, err
	}
	binding := boundary.SyntheticBinding(inner)
	if binding == nil {
		return nil, wrapResolutionError("resolve-inner", innerPath, boundary.Inner.Name, ErrNoMappingRule)
	}
	if derived {
		e.emitMapped(boundary, inner, outer)
	}
	return e.ResolveBinding(binding)
}

// emitMapped reports a newly derived inner/outer pair. Hook failures are
// logged; resolution does not depend on them.
func (e *Engine) emitMapped(boundary *Boundary, inner, outer *RootPathDescriptor) {
	if !e.emitter.Emits(activity.VerbMap) {
		return
	}
	err := e.emitter.Mapped(context.Background(), activityRoot(boundary.Inner), inner.Path.Path, outer.String())
	if err != nil {
		e.logger.LogResolution(LogEvent{Op: "map", Root: boundary.Inner.Name, Path: inner.Path.Path, Err: err})
	}
}

// ResolveWithTrace resolves and reads binding, recording every hop.
func (e *Engine) ResolveWithTrace(binding *BindingInfo) (any, Trace, error) {
	trace := Trace{}
	if binding == nil {
		return nil, trace, wrapResolutionError("resolve-binding", "", "", fmt.Errorf("binding must not be nil"))
	}
	trace.Binding = binding.ScopeName + ":" + binding.StatePath
	trace.add(TraceStep{Op: "resolve-path", Root: binding.ScopeName, Path: binding.StatePath})

	addr, err := e.ResolveBinding(binding)
	if err != nil {
		return nil, trace, err
	}
	trace.add(TraceStep{
		Op:        "resolve-address",
		Root:      addr.Path.ScopeName,
		Path:      addr.Path.Path.Path,
		ListIndex: addr.ListIndex.String(),
	})

	value, hit, err := e.get(addr, nil)
	if err != nil {
		return nil, trace, err
	}
	op := "read"
	if addr.Root().computedFor(addr.Path.Path) != nil {
		op = "compute"
	}
	trace.add(TraceStep{
		Op:        op,
		Root:      addr.Path.ScopeName,
		Path:      addr.ConcretePath(),
		ListIndex: addr.ListIndex.String(),
		CacheHit:  hit,
	})
	trace.Value = value
	trace.Found = value != nil
	return value, trace, nil
}

// registerUsage records desc and any unseen ancestors, so the static edges
// from the root of the path down to desc all exist.
func registerUsage(root *StateRoot, desc *PathDescriptor) error {
	for cur := desc; cur != nil && !cur.IsRoot(); cur = cur.Parent {
		if root.deps.Seen(cur.Path) {
			return nil
		}
		if err := root.deps.RegisterPathUsage(cur.Path); err != nil {
			return err
		}
	}
	return nil
}

func activityRoot(root *StateRoot) activity.Root {
	return activity.Root{ID: root.ID.String(), Name: root.Name}
}

func (e *Engine) trackedBoundaries() []*Boundary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Boundary(nil), e.boundaries...)
}

func (b *Boundary) primaryRule(inner *RootPathDescriptor) (*MappingRule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.table == nil {
		return nil, nil
	}
	if err := b.table.conflict(inner); err != nil {
		return nil, err
	}
	return b.table.primaryByInner[inner], nil
}
