package statepath

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// PathDelimiter separates segments of a state path.
	PathDelimiter = "."
	// WildcardToken marks "any element of the enclosing list".
	WildcardToken = "*"
)

// PathDescriptor is the interned structural breakdown of a dotted path.
// Exactly one descriptor exists per distinct path string for the lifetime of
// the process, so descriptors may be compared by pointer.
type PathDescriptor struct {
	Path          string
	Segments      []string
	LastSegment   string
	WildcardCount int
	ParentPath    string
	Parent        *PathDescriptor

	// WildcardAncestors holds every path in CumulativeAncestors whose own
	// last segment is the wildcard token.
	WildcardAncestors map[string]struct{}
	// CumulativeAncestors holds the path itself plus all of its ancestors.
	CumulativeAncestors map[string]struct{}

	id uint32
}

// ID returns the dense process-wide identifier assigned at interning time.
func (d *PathDescriptor) ID() uint32 {
	return d.id
}

// IsRoot reports whether d is the empty root path.
func (d *PathDescriptor) IsRoot() bool {
	return len(d.Segments) == 0
}

// IsWildcard reports whether the last segment of d is the wildcard token.
func (d *PathDescriptor) IsWildcard() bool {
	return d.LastSegment == WildcardToken
}

// HasAncestor reports whether path is d itself or one of its ancestors.
func (d *PathDescriptor) HasAncestor(path string) bool {
	_, ok := d.CumulativeAncestors[path]
	return ok
}

// DeepestWildcard returns the longest wildcard ancestor of d, or nil.
func (d *PathDescriptor) DeepestWildcard() *PathDescriptor {
	for cur := d; cur != nil; cur = cur.Parent {
		if cur.IsWildcard() {
			return cur
		}
	}
	return nil
}

func (d *PathDescriptor) String() string {
	return d.Path
}

type pathRegistry struct {
	mu    sync.RWMutex
	paths map[string]*PathDescriptor
	byID  []*PathDescriptor
}

var defaultPaths = &pathRegistry{
	paths: make(map[string]*PathDescriptor),
}

// ResolvePath parses and interns path. Identical strings always return the
// same descriptor. A malformed path is reported and never interned.
func ResolvePath(path string) (*PathDescriptor, error) {
	defaultPaths.mu.RLock()
	desc, ok := defaultPaths.paths[path]
	defaultPaths.mu.RUnlock()
	if ok {
		return desc, nil
	}

	segments, err := splitPath(path)
	if err != nil {
		return nil, wrapResolutionError("resolve-path", path, "", err)
	}

	defaultPaths.mu.Lock()
	defer defaultPaths.mu.Unlock()
	return defaultPaths.intern(path, segments), nil
}

// MustResolvePath is ResolvePath for literals known to be well formed.
func MustResolvePath(path string) *PathDescriptor {
	desc, err := ResolvePath(path)
	if err != nil {
		panic(err)
	}
	return desc
}

// DescriptorByID returns the descriptor interned under id.
func DescriptorByID(id uint32) (*PathDescriptor, bool) {
	defaultPaths.mu.RLock()
	defer defaultPaths.mu.RUnlock()
	if int(id) >= len(defaultPaths.byID) {
		return nil, false
	}
	return defaultPaths.byID[id], true
}

// JoinPath joins segments with the path delimiter.
func JoinPath(segments ...string) string {
	return strings.Join(segments, PathDelimiter)
}

// intern must be called with r.mu held for writing.
func (r *pathRegistry) intern(path string, segments []string) *PathDescriptor {
	if desc, ok := r.paths[path]; ok {
		return desc
	}

	desc := &PathDescriptor{
		Path:                path,
		Segments:            segments,
		WildcardAncestors:   map[string]struct{}{},
		CumulativeAncestors: map[string]struct{}{path: {}},
	}
	if len(segments) > 0 {
		desc.LastSegment = segments[len(segments)-1]
	}
	for _, segment := range segments {
		if segment == WildcardToken {
			desc.WildcardCount++
		}
	}

	if len(segments) > 1 {
		parentSegments := segments[:len(segments)-1]
		desc.ParentPath = JoinPath(parentSegments...)
		desc.Parent = r.intern(desc.ParentPath, parentSegments)
		for ancestor := range desc.Parent.CumulativeAncestors {
			desc.CumulativeAncestors[ancestor] = struct{}{}
		}
		for ancestor := range desc.Parent.WildcardAncestors {
			desc.WildcardAncestors[ancestor] = struct{}{}
		}
	}
	if desc.IsWildcard() {
		desc.WildcardAncestors[path] = struct{}{}
	}

	desc.id = uint32(len(r.byID))
	r.byID = append(r.byID, desc)
	r.paths[path] = desc
	return desc
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	segments := strings.Split(path, PathDelimiter)
	for i, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: empty segment at position %d", ErrMalformedPath, i)
		}
	}
	return segments, nil
}
