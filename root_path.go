package statepath

import "sync"

// RootPathDescriptor binds a PathDescriptor to one state root. Instances are
// immutable and unique per (root, path) pair.
type RootPathDescriptor struct {
	Path      *PathDescriptor
	ScopeName string
	Root      *StateRoot
	Parent    *RootPathDescriptor
}

func (d *RootPathDescriptor) String() string {
	return d.ScopeName + ":" + d.Path.Path
}

// rootPathRegistry is the second level of the root path lookup. It is owned by
// its StateRoot and released with it.
type rootPathRegistry struct {
	mu    sync.Mutex
	paths map[*PathDescriptor]*RootPathDescriptor
}

func newRootPathRegistry() *rootPathRegistry {
	return &rootPathRegistry{paths: map[*PathDescriptor]*RootPathDescriptor{}}
}

// ResolveRootPath returns the descriptor binding pd to root. The lookup is
// keyed first by root, then by pd, and always yields the same pointer for the
// same pair.
func ResolveRootPath(root *StateRoot, pd *PathDescriptor) *RootPathDescriptor {
	if root == nil || pd == nil {
		return nil
	}
	reg := root.rootPaths
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.resolve(root, pd)
}

// resolve must be called with r.mu held.
func (r *rootPathRegistry) resolve(root *StateRoot, pd *PathDescriptor) *RootPathDescriptor {
	if desc, ok := r.paths[pd]; ok {
		return desc
	}
	desc := &RootPathDescriptor{
		Path:      pd,
		ScopeName: root.Name,
		Root:      root,
	}
	if pd.Parent != nil {
		desc.Parent = r.resolve(root, pd.Parent)
	}
	r.paths[pd] = desc
	return desc
}

func (r *rootPathRegistry) release() {
	r.mu.Lock()
	r.paths = map[*PathDescriptor]*RootPathDescriptor{}
	r.mu.Unlock()
}
