package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-statepath/layering"
	"github.com/ohler55/ojg/alt"
)

var ErrNoLayers = errors.New("state: no layers found")

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted snapshot: one layer of one state root.
type Ref struct {
	Root  string
	Layer string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Validator is implemented by snapshots that can reject themselves before
// being saved.
type Validator interface {
	Validate() error
}

type Mutator[T any] func(*T) error

// Identifier returns the canonical storage key "<root>/<layer>".
func (r Ref) Identifier() (string, error) {
	if r.Root == "" {
		return "", fmt.Errorf("state: root is required")
	}
	if r.Layer == "" {
		return "", fmt.Errorf("state: layer is required for root %q", r.Root)
	}
	return fmt.Sprintf("%s/%s", r.Root, r.Layer), nil
}

// Loader merges the stored layers of a root into its initial snapshot.
// Missing layers are skipped; Defaults is the weakest layer.
type Loader[T any] struct {
	Store    Store[T]
	Layers   []layering.Layer
	Defaults T
	// RequireLayer fails Load when no stored layer was found.
	RequireLayer bool
}

// DefaultsLayer names the layer Defaults is merged as.
const DefaultsLayer = "defaults"

// Load implements statepath.RootLoader. Only layers declared for root, or
// declared without a root, are consulted.
func (l Loader[T]) Load(ctx context.Context, root string) (any, error) {
	merged, err := l.Merge(ctx, root)
	if err != nil {
		return nil, err
	}
	return merged.State, nil
}

// Merge loads every layer of root and merges them, strongest first, with
// Defaults as the weakest layer. The result records which layer supplied
// each path.
func (l Loader[T]) Merge(ctx context.Context, root string) (layering.Merged, error) {
	if l.Store == nil {
		return layering.Merged{}, fmt.Errorf("state: store is required")
	}
	if root == "" {
		return layering.Merged{}, fmt.Errorf("state: root is required")
	}

	chain := layering.NewChain(l.layersFor(root)...)
	snapshots := make([]layering.Snapshot, 0, chain.Len()+1)
	for _, layer := range chain.Ordered() {
		snapshot, _, ok, err := l.Store.Load(ctx, Ref{Root: root, Layer: layer.Name})
		if err != nil {
			return layering.Merged{}, fmt.Errorf("state: load %q layer %q: %w", root, layer.Name, err)
		}
		if !ok {
			continue
		}
		snapshots = append(snapshots, layering.Snapshot{Layer: layer, State: decomposed(snapshot)})
	}
	if len(snapshots) == 0 && l.RequireLayer {
		return layering.Merged{}, fmt.Errorf("%w for root %q", ErrNoLayers, root)
	}
	snapshots = append(snapshots, layering.Snapshot{
		Layer: layering.Layer{Root: root, Name: DefaultsLayer},
		State: decomposed(l.Defaults),
	})
	return layering.Merge(snapshots...), nil
}

// decomposed converts a stored snapshot into the map and list form layers
// merge over. Snapshots already in that form are used as is.
func decomposed(snapshot any) any {
	switch v := snapshot.(type) {
	case nil:
		return nil
	case map[string]any:
		return v
	case []any:
		return v
	default:
		return alt.Decompose(v)
	}
}

func (l Loader[T]) layersFor(root string) []layering.Layer {
	out := make([]layering.Layer, 0, len(l.Layers))
	for _, layer := range l.Layers {
		if layer.Root != "" && layer.Root != root {
			continue
		}
		layer.Root = root
		out = append(out, layer)
	}
	return out
}

// Mutate loads one layer, applies fn, validates the result and saves it.
// A non-empty meta.ETag must match the stored ETag.
func (l Loader[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if l.Store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return zero, Meta{}, err
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := l.Store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q layer %q: %w", ref.Root, ref.Layer, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}
	if v, ok := any(snapshot).(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, loadedMeta, err
		}
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	if saveMeta.UpdatedAt.IsZero() {
		saveMeta.UpdatedAt = time.Now()
	}
	savedMeta, err := l.Store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q layer %q: %w", ref.Root, ref.Layer, err)
	}
	return snapshot, savedMeta, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
