package statepath

import "sync/atomic"

// BindingInfo is the record supplied by the binding-collection layer. The
// binding reads StatePath from the state root named ScopeName and applies it
// to PropPath on Node. LoopNode, when set, is the node whose loop context
// governs the binding; otherwise Node is used.
//
// Bindings are compared by pointer; keep one instance per declared binding
// and do not copy it after first use. PathDescriptor may be called from
// several goroutines.
type BindingInfo struct {
	PropPath  string
	StatePath string
	ScopeName string
	Node      TreeNode
	LoopNode  TreeNode

	// Synthetic is set on bindings derived lazily by the cross-scope mapper.
	Synthetic bool

	desc atomic.Pointer[PathDescriptor]
}

// PathDescriptor returns the interned descriptor for StatePath. Only a
// successful resolution is remembered.
func (b *BindingInfo) PathDescriptor() (*PathDescriptor, error) {
	if desc := b.desc.Load(); desc != nil && desc.Path == b.StatePath {
		return desc, nil
	}
	desc, err := ResolvePath(b.StatePath)
	if err != nil {
		return nil, err
	}
	b.desc.Store(desc)
	return desc, nil
}
