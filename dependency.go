package statepath

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// DependencyTracker records path-to-path invalidation edges for one state
// root. Static edges follow structure ("products" -> "products.*"); dynamic
// edges are declared for computed paths ("products.*.price" ->
// "products.*.tax"). Walking the edges is left to the invalidation driver.
//
// Edge sets are roaring bitmaps over interned descriptor ids.
type DependencyTracker struct {
	mu      sync.RWMutex
	static  map[uint32]*roaring.Bitmap
	dynamic map[uint32]*roaring.Bitmap
	seen    *roaring.Bitmap
}

// NewDependencyTracker returns an empty tracker.
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		static:  map[uint32]*roaring.Bitmap{},
		dynamic: map[uint32]*roaring.Bitmap{},
		seen:    roaring.New(),
	}
}

// Reset drops every recorded edge and usage.
func (t *DependencyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.static = map[uint32]*roaring.Bitmap{}
	t.dynamic = map[uint32]*roaring.Bitmap{}
	t.seen = roaring.New()
}

// AddStaticDependency records the structural edge parent -> child.
func (t *DependencyTracker) AddStaticDependency(parentPath, childPath string) error {
	parent, child, err := resolvePair(parentPath, childPath)
	if err != nil {
		return wrapResolutionError("add-static-dependency", childPath, "", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	addEdge(t.static, parent, child)
	return nil
}

// AddDynamicDependency records the declared edge source -> target.
func (t *DependencyTracker) AddDynamicDependency(sourcePath, targetPath string) error {
	source, target, err := resolvePair(sourcePath, targetPath)
	if err != nil {
		return wrapResolutionError("add-dynamic-dependency", targetPath, "", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	addEdge(t.dynamic, source, target)
	return nil
}

// RegisterPathUsage records the static edge from path's immediate parent the
// first time path is seen. Later calls for the same path are no-ops.
func (t *DependencyTracker) RegisterPathUsage(path string) error {
	desc, err := ResolvePath(path)
	if err != nil {
		return wrapResolutionError("register-path-usage", path, "", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seen.CheckedAdd(desc.ID()) {
		return nil
	}
	if desc.Parent != nil {
		addEdge(t.static, desc.Parent, desc)
	}
	return nil
}

// Seen reports whether path went through RegisterPathUsage.
func (t *DependencyTracker) Seen(path string) bool {
	desc, err := ResolvePath(path)
	if err != nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seen.Contains(desc.ID())
}

// StaticDependents returns the direct structural dependents of path.
func (t *DependencyTracker) StaticDependents(path string) []*PathDescriptor {
	return t.dependents(t.static, path)
}

// DynamicDependents returns the direct declared dependents of path.
func (t *DependencyTracker) DynamicDependents(path string) []*PathDescriptor {
	return t.dependents(t.dynamic, path)
}

// Dependents returns the union of static and dynamic direct dependents.
func (t *DependencyTracker) Dependents(path string) []*PathDescriptor {
	desc, err := ResolvePath(path)
	if err != nil {
		return nil
	}
	t.mu.RLock()
	union := roaring.New()
	if bm, ok := t.static[desc.ID()]; ok {
		union.Or(bm)
	}
	if bm, ok := t.dynamic[desc.ID()]; ok {
		union.Or(bm)
	}
	t.mu.RUnlock()
	return descriptorsOf(union)
}

func (t *DependencyTracker) dependents(edges map[uint32]*roaring.Bitmap, path string) []*PathDescriptor {
	desc, err := ResolvePath(path)
	if err != nil {
		return nil
	}
	t.mu.RLock()
	bm, ok := edges[desc.ID()]
	if ok {
		bm = bm.Clone()
	}
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return descriptorsOf(bm)
}

func resolvePair(from, to string) (*PathDescriptor, *PathDescriptor, error) {
	fromDesc, err := ResolvePath(from)
	if err != nil {
		return nil, nil, err
	}
	toDesc, err := ResolvePath(to)
	if err != nil {
		return nil, nil, err
	}
	return fromDesc, toDesc, nil
}

func addEdge(edges map[uint32]*roaring.Bitmap, from, to *PathDescriptor) {
	bm, ok := edges[from.ID()]
	if !ok {
		bm = roaring.New()
		edges[from.ID()] = bm
	}
	bm.Add(to.ID())
}

func descriptorsOf(bm *roaring.Bitmap) []*PathDescriptor {
	out := make([]*PathDescriptor, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		if desc, ok := DescriptorByID(it.Next()); ok {
			out = append(out, desc)
		}
	}
	return out
}
