package statepath

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MappingRule pairs an inner-scope path with the outer-scope path it stands
// for at a component boundary.
type MappingRule struct {
	Inner *RootPathDescriptor
	Outer *RootPathDescriptor
	// OuterAddress is the declaring binding's resolved address; derived rules
	// leave it nil.
	OuterAddress *RootStateAddress
	// Binding is the declaration the rule was built from.
	Binding *BindingInfo
	Primary bool
}

// Boundary is the element separating an inner scope from the scope that
// encloses it. Node is the boundary element itself; synthetic bindings are
// attached to it so they see the loop contexts the boundary was rendered in.
type Boundary struct {
	Node  TreeNode
	Inner *StateRoot

	mu       sync.Mutex
	bindings []*BindingInfo
	table    *mappingTable
}

// NewBoundary returns a boundary for the inner root rendered at node.
func NewBoundary(inner *StateRoot, node TreeNode) *Boundary {
	return &Boundary{Node: node, Inner: inner}
}

// Bindings returns the declared and synthetic bindings in registration order.
func (b *Boundary) Bindings() []*BindingInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*BindingInfo(nil), b.bindings...)
}

// Rules returns the primary rules in declaration order.
func (b *Boundary) Rules() []*MappingRule {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.table == nil {
		return nil
	}
	return append([]*MappingRule(nil), b.table.primary...)
}

// SyntheticBinding returns the binding derived for inner, if any.
func (b *Boundary) SyntheticBinding(inner *RootPathDescriptor) *BindingInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.table == nil {
		return nil
	}
	return b.table.synthetic[inner]
}

// mappingTable is guarded by the owning boundary's mutex.
type mappingTable struct {
	primary        []*MappingRule
	innerToOuter   map[*RootPathDescriptor]*RootPathDescriptor
	outerToInner   map[*RootPathDescriptor]*RootPathDescriptor
	primaryByInner map[*RootPathDescriptor]*MappingRule
	// derived keeps the reverse side of lazily derived pairs. Only
	// invalidation reads it; InnerFromOuter stays on primary declarations.
	derived   map[*RootPathDescriptor][]*RootPathDescriptor
	synthetic map[*RootPathDescriptor]*BindingInfo
	// conflicts holds inner paths declared more than once with different
	// outer paths.
	conflicts map[*RootPathDescriptor]struct{}
}

func newMappingTable() *mappingTable {
	return &mappingTable{
		innerToOuter:   map[*RootPathDescriptor]*RootPathDescriptor{},
		outerToInner:   map[*RootPathDescriptor]*RootPathDescriptor{},
		primaryByInner: map[*RootPathDescriptor]*MappingRule{},
		derived:        map[*RootPathDescriptor][]*RootPathDescriptor{},
		synthetic:      map[*RootPathDescriptor]*BindingInfo{},
		conflicts:      map[*RootPathDescriptor]struct{}{},
	}
}

// Mapper builds and queries boundary mapping tables.
type Mapper struct {
	roots    *Roots
	resolver *ListIndexResolver
	logger   Logger
}

// NewMapper returns a mapper looking up outer scopes in roots and resolving
// binding list indexes through resolver.
func NewMapper(roots *Roots, resolver *ListIndexResolver, logger Logger) *Mapper {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Mapper{roots: roots, resolver: resolver, logger: logger}
}

// BuildPrimaryMappingRules declares one primary rule per binding. The inner
// side is binding.PropPath in the boundary's inner root; the outer side is
// binding.StatePath in the root named by binding.ScopeName, or scopeName when
// the binding names none.
func (m *Mapper) BuildPrimaryMappingRules(boundary *Boundary, scopeName string, bindings []*BindingInfo) error {
	if len(bindings) == 0 {
		return wrapResolutionError("build-mapping", "", scopeName, ErrEmptyBindings)
	}
	if boundary == nil || boundary.Inner == nil {
		return wrapResolutionError("build-mapping", "", scopeName, fmt.Errorf("%w: boundary has no inner root", ErrScopeNotFound))
	}

	rules := make([]*MappingRule, 0, len(bindings))
	for _, binding := range bindings {
		if binding == nil {
			continue
		}
		rule, err := m.primaryRule(boundary, scopeName, binding)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 {
		return wrapResolutionError("build-mapping", "", scopeName, ErrEmptyBindings)
	}

	boundary.mu.Lock()
	defer boundary.mu.Unlock()
	if boundary.table == nil {
		boundary.table = newMappingTable()
	}
	t := boundary.table
	for _, rule := range rules {
		if prev, ok := t.primaryByInner[rule.Inner]; ok && prev.Outer != rule.Outer {
			t.conflicts[rule.Inner] = struct{}{}
		}
		t.primary = append(t.primary, rule)
		t.primaryByInner[rule.Inner] = rule
		t.innerToOuter[rule.Inner] = rule.Outer
		t.outerToInner[rule.Outer] = rule.Inner
		boundary.bindings = append(boundary.bindings, rule.Binding)
	}
	return nil
}

func (m *Mapper) primaryRule(boundary *Boundary, scopeName string, binding *BindingInfo) (*MappingRule, error) {
	outerName := binding.ScopeName
	if outerName == "" {
		outerName = scopeName
	}
	outerRoot, err := m.roots.Lookup(outerName)
	if err != nil {
		return nil, wrapResolutionError("build-mapping", binding.StatePath, outerName, err)
	}

	innerPD, err := ResolvePath(binding.PropPath)
	if err != nil {
		return nil, wrapResolutionError("build-mapping", binding.PropPath, boundary.Inner.Name, err)
	}
	outerPD, err := binding.PathDescriptor()
	if err != nil {
		return nil, wrapResolutionError("build-mapping", binding.StatePath, outerName, err)
	}
	li, err := m.resolver.Resolve(binding)
	if err != nil {
		return nil, wrapResolutionError("build-mapping", binding.StatePath, outerName, err)
	}

	outer := ResolveRootPath(outerRoot, outerPD)
	return &MappingRule{
		Inner:        ResolveRootPath(boundary.Inner, innerPD),
		Outer:        outer,
		OuterAddress: outerRoot.MakeRootAddress(outer, li),
		Binding:      binding,
		Primary:      true,
	}, nil
}

// InnerFromOuter returns the inner path declared for outer, or nil. Only
// primary declarations are consulted.
func (m *Mapper) InnerFromOuter(boundary *Boundary, outer *RootPathDescriptor) *RootPathDescriptor {
	if boundary == nil || outer == nil {
		return nil
	}
	boundary.mu.Lock()
	defer boundary.mu.Unlock()
	if boundary.table == nil {
		return nil
	}
	return boundary.table.outerToInner[outer]
}

// OuterFromInner translates an inner path to the outer scope. Paths below a
// primary inner path are derived by splicing their extra segments onto the
// governing rule's outer path; the derived pair is memoized and a synthetic
// binding is attached to the boundary.
func (m *Mapper) OuterFromInner(boundary *Boundary, inner *RootPathDescriptor) (*RootPathDescriptor, error) {
	if boundary == nil || inner == nil {
		return nil, wrapResolutionError("outer-from-inner", "", "", ErrScopeNotFound)
	}
	boundary.mu.Lock()
	defer boundary.mu.Unlock()

	t := boundary.table
	if t == nil {
		t = newMappingTable()
		boundary.table = t
	}
	if err := t.conflict(inner); err != nil {
		return nil, wrapResolutionError("outer-from-inner", inner.Path.Path, inner.ScopeName, err)
	}
	if outer, ok := t.innerToOuter[inner]; ok {
		return outer, nil
	}

	rule, err := t.governingRule(inner)
	if err != nil {
		return nil, wrapResolutionError("outer-from-inner", inner.Path.Path, inner.ScopeName, err)
	}

	ruleLen := len(rule.Inner.Path.Segments)
	segments := make([]string, 0, len(rule.Outer.Path.Segments)+len(inner.Path.Segments)-ruleLen)
	segments = append(segments, rule.Outer.Path.Segments...)
	segments = append(segments, inner.Path.Segments[ruleLen:]...)
	outerPD, err := ResolvePath(JoinPath(segments...))
	if err != nil {
		return nil, wrapResolutionError("outer-from-inner", inner.Path.Path, inner.ScopeName, err)
	}
	outer := ResolveRootPath(rule.Outer.Root, outerPD)

	t.innerToOuter[inner] = outer
	t.derived[outer] = append(t.derived[outer], inner)
	synthetic := &BindingInfo{
		PropPath:  inner.Path.Path,
		StatePath: outer.Path.Path,
		ScopeName: outer.ScopeName,
		Synthetic: true,
	}
	if rule.Binding != nil {
		synthetic.Node, synthetic.LoopNode = rule.Binding.Node, rule.Binding.LoopNode
	}
	if synthetic.Node == nil && synthetic.LoopNode == nil {
		synthetic.Node = boundary.Node
	}
	t.synthetic[inner] = synthetic
	boundary.bindings = append(boundary.bindings, synthetic)

	m.logger.LogResolution(LogEvent{
		Op:   "derive-mapping",
		Root: outer.ScopeName,
		Path: inner.Path.Path + " -> " + outer.Path.Path,
	})
	return outer, nil
}

// governingRule picks the primary rule with the longest inner path among the
// ancestors of inner. Ancestor sets are keyed by path string, so a tie can
// only come from the same inner path being declared more than once.
func (t *mappingTable) governingRule(inner *RootPathDescriptor) (*MappingRule, error) {
	var (
		best    *MappingRule
		bestLen = -1
		tied    bool
	)
	for _, rule := range t.primary {
		if !inner.Path.HasAncestor(rule.Inner.Path.Path) {
			continue
		}
		n := len(rule.Inner.Path.Segments)
		switch {
		case n > bestLen:
			best, bestLen, tied = rule, n, false
		case n == bestLen:
			tied = true
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w for %q; available: %s", ErrNoMappingRule, inner.Path.Path, t.describePrimary())
	}
	if tied {
		return nil, fmt.Errorf("%w for %q at %q", ErrDuplicateMappingRule, inner.Path.Path, best.Inner.Path.Path)
	}
	return best, nil
}

// conflict reports a duplicate declaration of exactly inner.
func (t *mappingTable) conflict(inner *RootPathDescriptor) error {
	if _, ok := t.conflicts[inner]; !ok {
		return nil
	}
	return fmt.Errorf("%w for %q at %q", ErrDuplicateMappingRule, inner.Path.Path, inner.Path.Path)
}

func (t *mappingTable) describePrimary() string {
	if len(t.primary) == 0 {
		return "(none)"
	}
	seen := make(map[string]struct{}, len(t.primary))
	names := make([]string, 0, len(t.primary))
	for _, rule := range t.primary {
		if _, ok := seen[rule.Inner.Path.Path]; ok {
			continue
		}
		seen[rule.Inner.Path.Path] = struct{}{}
		names = append(names, fmt.Sprintf("%q", rule.Inner.Path.Path))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// innerPathsFor returns every inner path mapped onto outer, primary or
// derived.
func (b *Boundary) innerPathsFor(outer *RootPathDescriptor) []*RootPathDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.table == nil {
		return nil
	}
	var out []*RootPathDescriptor
	if inner, ok := b.table.outerToInner[outer]; ok {
		out = append(out, inner)
	}
	out = append(out, b.table.derived[outer]...)
	return out
}
