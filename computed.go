package statepath

import (
	"fmt"
	"sort"
)

// Computed declares a path whose value is derived from other paths of the
// same root. Deps maps expression variable names to the paths they read.
type Computed struct {
	Path   string
	Expr   string
	Engine string
	Deps   map[string]string
}

type computedPath struct {
	def  Computed
	desc *PathDescriptor
	deps []computedDep
}

type computedDep struct {
	name string
	desc *PathDescriptor
}

// varNames returns the dependency variable names in lexical order.
func (c *computedPath) varNames() []string {
	names := make([]string, len(c.deps))
	for i, dep := range c.deps {
		names[i] = dep.name
	}
	return names
}

// DefineComputed registers def and records a dynamic edge from every
// dependency to def.Path. Definitions whose dependencies lead back to
// def.Path are rejected with ErrComputedCycle.
func (r *StateRoot) DefineComputed(def Computed) error {
	desc, err := ResolvePath(def.Path)
	if err != nil {
		return wrapResolutionError("define-computed", def.Path, r.Name, err)
	}
	if def.Expr == "" {
		return wrapResolutionError("define-computed", def.Path, r.Name, fmt.Errorf("expression must not be empty"))
	}

	names := make([]string, 0, len(def.Deps))
	for name := range def.Deps {
		names = append(names, name)
	}
	sort.Strings(names)

	entry := &computedPath{def: def, desc: desc}
	for _, name := range names {
		depDesc, err := ResolvePath(def.Deps[name])
		if err != nil {
			return wrapResolutionError("define-computed", def.Deps[name], r.Name, err)
		}
		if depDesc == desc || r.reachesDynamically(desc, depDesc) {
			return wrapResolutionError("define-computed", def.Path, r.Name,
				fmt.Errorf("%w: %s via %s", ErrComputedCycle, def.Path, depDesc.Path))
		}
		entry.deps = append(entry.deps, computedDep{name: name, desc: depDesc})
	}

	for _, dep := range entry.deps {
		if err := r.deps.AddDynamicDependency(dep.desc.Path, desc.Path); err != nil {
			return wrapResolutionError("define-computed", def.Path, r.Name, err)
		}
	}
	if err := r.deps.RegisterPathUsage(desc.Path); err != nil {
		return wrapResolutionError("define-computed", def.Path, r.Name, err)
	}

	r.computedMu.Lock()
	r.computed[desc] = entry
	r.computedMu.Unlock()
	return nil
}

// Computed returns the definition registered for path.
func (r *StateRoot) Computed(path string) (Computed, bool) {
	desc, err := ResolvePath(path)
	if err != nil {
		return Computed{}, false
	}
	entry := r.computedFor(desc)
	if entry == nil {
		return Computed{}, false
	}
	return entry.def, true
}

func (r *StateRoot) computedFor(desc *PathDescriptor) *computedPath {
	r.computedMu.RLock()
	defer r.computedMu.RUnlock()
	return r.computed[desc]
}

// reachesDynamically reports whether target is reachable from source over
// dynamic edges.
func (r *StateRoot) reachesDynamically(source, target *PathDescriptor) bool {
	visited := map[*PathDescriptor]struct{}{source: {}}
	queue := []*PathDescriptor{source}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range r.deps.DynamicDependents(cur.Path) {
			if next == target {
				return true
			}
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// trimListIndex narrows li to the first levels wildcard levels. A shorter
// stack is returned as is and leaves the remaining wildcards unresolved.
func trimListIndex(li *ListIndex, levels int) *ListIndex {
	if levels <= 0 {
		return nil
	}
	if li.Length() <= levels {
		return li
	}
	return li.At(levels - 1)
}
