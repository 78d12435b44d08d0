package statepath

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultListIndexCacheSize bounds the memo of resolved binding list indexes.
const DefaultListIndexCacheSize = 4096

// TreeNode is an opaque rendered node. Implementations must be comparable,
// typically pointers.
type TreeNode interface {
	ParentNode() TreeNode
}

// LoopContext is the iteration identity attached to nodes rendered inside a
// loop over ElementPath.
type LoopContext struct {
	ElementPath *PathDescriptor
	ListIndex   *ListIndex
	Parent      *LoopContext
}

// NewLoopContext builds a loop context for elementPath nested inside parent.
// listIndex carries one level per wildcard of elementPath, outermost first;
// a loop over an unrelated list starts a fresh stack.
func NewLoopContext(parent *LoopContext, elementPath *PathDescriptor, listIndex *ListIndex) *LoopContext {
	return &LoopContext{
		ElementPath: elementPath,
		ListIndex:   listIndex,
		Parent:      parent,
	}
}

// LoopContextProvider finds the loop context governing a node.
type LoopContextProvider interface {
	LoopContextFor(node TreeNode) *LoopContext
}

// NodeLoopContexts attaches loop contexts to nodes and answers lookups by
// walking node ancestry.
type NodeLoopContexts struct {
	mu       sync.RWMutex
	contexts map[TreeNode]*LoopContext
}

// NewNodeLoopContexts returns an empty provider.
func NewNodeLoopContexts() *NodeLoopContexts {
	return &NodeLoopContexts{contexts: map[TreeNode]*LoopContext{}}
}

// Attach marks node as rendered by the iteration lc.
func (p *NodeLoopContexts) Attach(node TreeNode, lc *LoopContext) {
	if node == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.contexts == nil {
		p.contexts = map[TreeNode]*LoopContext{}
	}
	p.contexts[node] = lc
}

// Detach forgets the loop context attached to node.
func (p *NodeLoopContexts) Detach(node TreeNode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.contexts, node)
}

// LoopContextFor returns the loop context attached to node or its nearest
// ancestor.
func (p *NodeLoopContexts) LoopContextFor(node TreeNode) *LoopContext {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for cur := node; cur != nil; cur = cur.ParentNode() {
		if lc, ok := p.contexts[cur]; ok {
			return lc
		}
	}
	return nil
}

type listIndexKey struct {
	loop    *LoopContext
	binding *BindingInfo
}

// ListIndexResolver picks the list index a binding resolves against.
type ListIndexResolver struct {
	provider LoopContextProvider
	memo     *lru.Cache[listIndexKey, *ListIndex]
}

// NewListIndexResolver returns a resolver backed by provider. A non-positive
// size falls back to DefaultListIndexCacheSize.
func NewListIndexResolver(provider LoopContextProvider, size int) *ListIndexResolver {
	if size <= 0 {
		size = DefaultListIndexCacheSize
	}
	memo, err := lru.New[listIndexKey, *ListIndex](size)
	if err != nil {
		panic(err)
	}
	return &ListIndexResolver{provider: provider, memo: memo}
}

// Resolve returns the list index for binding or nil when the binding is not
// inside a loop matching one of its own wildcard ancestors.
//
// The loop-context chain is walked outward and the context sharing the most
// wildcard ancestors with the binding path wins; the nearest context wins a
// tie. Textually enclosing loops over unrelated lists are skipped.
func (r *ListIndexResolver) Resolve(binding *BindingInfo) (*ListIndex, error) {
	if r == nil || r.provider == nil || binding == nil {
		return nil, nil
	}
	node := binding.LoopNode
	if node == nil {
		node = binding.Node
	}
	if node == nil {
		return nil, nil
	}
	lc := r.provider.LoopContextFor(node)
	if lc == nil {
		return nil, nil
	}

	key := listIndexKey{loop: lc, binding: binding}
	if li, ok := r.memo.Get(key); ok {
		return li, nil
	}

	desc, err := binding.PathDescriptor()
	if err != nil {
		return nil, err
	}
	li := selectListIndex(desc, lc)
	r.memo.Add(key, li)
	return li, nil
}

// Purge drops all memoized results.
func (r *ListIndexResolver) Purge() {
	if r != nil {
		r.memo.Purge()
	}
}

func selectListIndex(desc *PathDescriptor, lc *LoopContext) *ListIndex {
	if desc.WildcardCount == 0 {
		return nil
	}
	var (
		best      *LoopContext
		bestCount int
	)
	for cur := lc; cur != nil; cur = cur.Parent {
		if cur.ElementPath == nil {
			continue
		}
		n := intersectionSize(desc.WildcardAncestors, cur.ElementPath.WildcardAncestors)
		if n > bestCount {
			best, bestCount = cur, n
		}
		if bestCount == len(desc.WildcardAncestors) {
			break
		}
	}
	if best == nil {
		return nil
	}
	// The shared ancestors are the outermost bestCount wildcard levels of the
	// loop's element path; count back from the loop's own (innermost) index.
	return best.ListIndex.At(bestCount - best.ElementPath.WildcardCount - 1)
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for key := range a {
		if _, ok := b[key]; ok {
			n++
		}
	}
	return n
}
