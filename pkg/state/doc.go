// Package state defines persistence-facing contracts for loading and saving
// the layered snapshots that make up a state root, plus a Loader that merges
// those layers into the root's initial state.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Loader[T] loads every layer of a root, strongest first, decomposes each
//     snapshot into maps and lists and merges them with layering.Merge,
//     recording which layer supplied each path. It satisfies
//     statepath.RootLoader.
//   - Loader[T].Mutate applies a change to one layer and saves it back, with
//     optimistic concurrency through Meta.ETag.
//
// Data flow:
//
//	Store -> Loader -> layering.Merge(...) -> StateRoot.Init
//
// Deterministic keys:
//
//	Ref.Identifier() yields "<root>/<layer>", the key MemoryStore uses.
package state
