package state

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps layer snapshots in process. It backs manifest-declared
// layers and tests; nothing is persisted.
type MemoryStore[T any] struct {
	mu     sync.RWMutex
	layers map[Ref]storedLayer[T]
}

type storedLayer[T any] struct {
	snapshot T
	meta     Meta
}

// NewMemoryStore returns an empty store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{layers: map[Ref]storedLayer[T]{}}
}

// Load returns the snapshot stored under ref. ok is false when none is.
func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if _, err := ref.Identifier(); err != nil {
		return zero, Meta{}, false, err
	}
	s.mu.RLock()
	layer, ok := s.layers[ref]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return layer.snapshot, cloneMeta(layer.meta), true, nil
}

// Save replaces the snapshot stored under ref. An empty SnapshotID defaults
// to the ref identifier.
func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	id, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	if meta.SnapshotID == "" {
		meta.SnapshotID = id
	}
	s.mu.Lock()
	if s.layers == nil {
		s.layers = map[Ref]storedLayer[T]{}
	}
	s.layers[ref] = storedLayer[T]{snapshot: snapshot, meta: cloneMeta(meta)}
	s.mu.Unlock()
	return cloneMeta(meta), nil
}

// Delete drops the snapshot stored under ref and reports whether one existed.
func (s *MemoryStore[T]) Delete(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.layers[ref]
	delete(s.layers, ref)
	return ok
}

// Layers returns the names of the layers stored for root, sorted.
func (s *MemoryStore[T]) Layers(root string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for ref := range s.layers {
		if ref.Root == root {
			names = append(names, ref.Layer)
		}
	}
	sort.Strings(names)
	return names
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
