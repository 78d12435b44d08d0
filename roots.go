package statepath

import (
	"fmt"
	"sort"
	"sync"
)

// Roots is the name-to-root registry consulted whenever a binding or mapping
// names a scope.
type Roots struct {
	mu     sync.RWMutex
	byName map[string]*StateRoot
}

// NewRoots returns an empty registry.
func NewRoots() *Roots {
	return &Roots{byName: map[string]*StateRoot{}}
}

// Register adds root under its name. Names must be non-empty and unique.
func (r *Roots) Register(root *StateRoot) error {
	if root == nil || root.Name == "" {
		return ErrScopeNameRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[root.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateScopeName, root.Name)
	}
	r.byName[root.Name] = root
	return nil
}

// Lookup returns the root registered under name.
func (r *Roots) Lookup(name string) (*StateRoot, error) {
	if name == "" {
		return nil, wrapResolutionError("lookup-root", "", name, ErrScopeNameRequired)
	}
	r.mu.RLock()
	root, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, wrapResolutionError("lookup-root", "", name, ErrScopeNotFound)
	}
	return root, nil
}

// Remove unregisters and disposes the root named name. It reports whether a
// root was removed.
func (r *Roots) Remove(name string) bool {
	r.mu.Lock()
	root, ok := r.byName[name]
	delete(r.byName, name)
	r.mu.Unlock()
	if ok {
		root.Dispose()
	}
	return ok
}

// Names returns the registered names in lexical order.
func (r *Roots) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered roots.
func (r *Roots) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
