package statepath

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/alt"
	"github.com/ohler55/ojg/jp"
)

// RootLoader supplies the initial snapshot of a state root.
type RootLoader interface {
	Load(ctx context.Context, name string) (any, error)
}

// RootLoaderFunc adapts a function to RootLoader.
type RootLoaderFunc func(ctx context.Context, name string) (any, error)

// Load calls fn.
func (fn RootLoaderFunc) Load(ctx context.Context, name string) (any, error) {
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, name)
}

// StaticState returns a loader that always yields snapshot.
func StaticState(snapshot any) RootLoader {
	return RootLoaderFunc(func(context.Context, string) (any, error) {
		return snapshot, nil
	})
}

// AccessMode selects what a WithState callback may do.
type AccessMode int

const (
	ReadOnly AccessMode = iota
	ReadWrite
)

func (m AccessMode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// StateRoot is a named, independently owned tree of application state. Every
// per-root table (root paths, addresses, cache, dependencies, computed
// definitions) hangs off the root and is released by Dispose.
type StateRoot struct {
	ID   uuid.UUID
	Name string

	mu    sync.RWMutex
	state any
	ready bool

	cacheMu sync.Mutex
	cache   *Cache[*RootStateAddress]

	rootPaths *rootPathRegistry
	addresses *rootAddressTable
	deps      *DependencyTracker

	computedMu sync.RWMutex
	computed   map[*PathDescriptor]*computedPath
}

// NewStateRoot returns an uninitialized root named name.
func NewStateRoot(name string) *StateRoot {
	return &StateRoot{
		ID:        uuid.New(),
		Name:      name,
		cache:     NewCache[*RootStateAddress](),
		rootPaths: newRootPathRegistry(),
		addresses: newRootAddressTable(),
		deps:      NewDependencyTracker(),
		computed:  map[*PathDescriptor]*computedPath{},
	}
}

// Init loads the initial snapshot and marks the root ready. It is the only
// blocking step of a root's lifecycle and returns early when ctx is done.
// A nil loader initializes an empty object.
//
// The snapshot is decomposed into plain maps and slices, so callers keep
// ownership of what they passed in. Structural paths of the snapshot seed the
// static dependency edges.
func (r *StateRoot) Init(ctx context.Context, loader RootLoader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var snapshot any
	if loader != nil {
		type result struct {
			value any
			err   error
		}
		done := make(chan result, 1)
		go func() {
			value, err := loader.Load(ctx, r.Name)
			done <- result{value: value, err: err}
		}()
		select {
		case <-ctx.Done():
			return wrapResolutionError("init", "", r.Name, ctx.Err())
		case res := <-done:
			if res.err != nil {
				return wrapResolutionError("init", "", r.Name, res.err)
			}
			snapshot = res.value
		}
	}
	if snapshot == nil {
		snapshot = map[string]any{}
	} else {
		snapshot = alt.Decompose(snapshot)
	}

	for _, path := range DescribePaths(snapshot) {
		if err := r.deps.RegisterPathUsage(path); err != nil {
			return wrapResolutionError("init", path, r.Name, err)
		}
	}

	r.mu.Lock()
	r.state = snapshot
	r.ready = true
	r.mu.Unlock()
	return nil
}

// Ready reports whether Init completed.
func (r *StateRoot) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Accessor is handed to WithState callbacks.
type Accessor interface {
	// Get returns the value at a concrete path. Unresolved wildcards collect
	// every match into a slice.
	Get(path string) (any, bool)
	Set(path string, value any) error
	Snapshot() any
}

// WithState runs fn with scoped access to the root's state. The root lock is
// held for the duration of fn, so fn must not call back into the engine.
func (r *StateRoot) WithState(ctx context.Context, mode AccessMode, fn func(Accessor) error) error {
	if fn == nil {
		return nil
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if mode == ReadWrite {
		r.mu.Lock()
		defer r.mu.Unlock()
	} else {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	if !r.ready {
		return wrapResolutionError("with-state", "", r.Name, ErrRootNotReady)
	}
	return fn(&accessor{root: r, mode: mode})
}

type accessor struct {
	root *StateRoot
	mode AccessMode
}

func (a *accessor) Get(path string) (any, bool) {
	desc, err := ResolvePath(path)
	if err != nil {
		return nil, false
	}
	return a.root.readLocked(desc.Segments)
}

func (a *accessor) Set(path string, value any) error {
	if a.mode != ReadWrite {
		return wrapResolutionError("set", path, a.root.Name, ErrReadOnly)
	}
	desc, err := ResolvePath(path)
	if err != nil {
		return wrapResolutionError("set", path, a.root.Name, err)
	}
	return a.root.writeLocked(desc.Segments, value)
}

func (a *accessor) Snapshot() any {
	return a.root.state
}

// MakeRootAddress returns the memoized address for (rpd, li) within r.
func (r *StateRoot) MakeRootAddress(rpd *RootPathDescriptor, li *ListIndex) *RootStateAddress {
	return r.addresses.make(rpd, li)
}

// RootPath is shorthand for ResolveRootPath(r, pd).
func (r *StateRoot) RootPath(pd *PathDescriptor) *RootPathDescriptor {
	return ResolveRootPath(r, pd)
}

// Cache returns the root's value cache. Callers that share the root across
// goroutines should go through Engine.Get instead.
func (r *StateRoot) Cache() *Cache[*RootStateAddress] {
	return r.cache
}

// Dependencies returns the root's dependency tracker.
func (r *StateRoot) Dependencies() *DependencyTracker {
	return r.deps
}

// Dispose releases every per-root table and marks the root not ready.
// Descriptors and addresses handed out earlier must not be reused.
func (r *StateRoot) Dispose() {
	r.mu.Lock()
	r.state = nil
	r.ready = false
	r.mu.Unlock()

	r.cacheMu.Lock()
	r.cache.Clear()
	r.cacheMu.Unlock()

	r.rootPaths.release()
	r.addresses.release()

	r.computedMu.Lock()
	r.computed = map[*PathDescriptor]*computedPath{}
	r.computedMu.Unlock()
	r.deps.Reset()
}

func (r *StateRoot) String() string {
	return fmt.Sprintf("%s(%s)", r.Name, r.ID)
}

func (r *StateRoot) read(segments []string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readLocked(segments)
}

func (r *StateRoot) readLocked(segments []string) (any, bool) {
	if len(segments) == 0 {
		return r.state, r.state != nil
	}
	x := segmentsExpr(segments)
	matches := x.Get(r.state)
	if hasWildcard(segments) {
		return matches, len(matches) > 0
	}
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

func (r *StateRoot) write(segments []string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return ErrRootNotReady
	}
	return r.writeLocked(segments, value)
}

func (r *StateRoot) writeLocked(segments []string, value any) error {
	if len(segments) == 0 {
		r.state = value
		return nil
	}
	return segmentsExpr(segments).Set(r.state, value)
}

// segmentsExpr builds a jp expression for a dotted path. Digit segments
// address slice elements; maps keyed by digit strings are not reachable.
func segmentsExpr(segments []string) jp.Expr {
	x := jp.R()
	for _, segment := range segments {
		if segment == WildcardToken {
			x = x.W()
			continue
		}
		if n, err := strconv.Atoi(segment); err == nil && n >= 0 {
			x = x.N(n)
			continue
		}
		x = x.C(segment)
	}
	return x
}

func hasWildcard(segments []string) bool {
	for _, segment := range segments {
		if segment == WildcardToken {
			return true
		}
	}
	return false
}
