package statepath

import (
	"context"
	"fmt"
	"os"

	"github.com/goliatone/go-statepath/internal/hydrate"
	"github.com/goliatone/go-statepath/layering"
	"github.com/goliatone/go-statepath/pkg/state"
	"gopkg.in/yaml.v3"
)

// Manifest declares a set of state roots.
//
//	roots:
//	  - name: app
//	    state:
//	      users: [{name: Ann, price: 2}]
//	    computed:
//	      - path: users.*.total
//	        expr: price * 2
//	        deps: {price: users.*.price}
type Manifest struct {
	Roots []RootManifest `json:"roots"`
}

// RootManifest declares one root. When Layers is set the root is loaded
// through a state.Loader over the layer snapshots, with State as defaults.
type RootManifest struct {
	Name         string               `json:"name"`
	State        map[string]any       `json:"state"`
	Layers       []LayerManifest      `json:"layers"`
	Computed     []ComputedManifest   `json:"computed"`
	Dependencies []DependencyManifest `json:"dependencies"`
}

// LayerManifest is one stored layer of a root.
type LayerManifest struct {
	Name     string         `json:"name"`
	Priority int            `json:"priority"`
	State    map[string]any `json:"state"`
}

// ComputedManifest mirrors Computed.
type ComputedManifest struct {
	Path   string            `json:"path"`
	Expr   string            `json:"expr"`
	Engine string            `json:"engine"`
	Deps   map[string]string `json:"deps"`
}

// DependencyManifest declares an extra dynamic edge.
type DependencyManifest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// LoadManifestFile reads and parses a YAML manifest from disk.
func LoadManifestFile(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("statepath: read manifest %q: %w", path, err)
	}
	return LoadManifest(path, raw)
}

// LoadManifest parses a YAML manifest. source labels errors; failures inside
// a root name that root.
func LoadManifest(source string, raw []byte) (Manifest, error) {
	var payload map[string]any
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return Manifest{}, fmt.Errorf("statepath: parse manifest %q: %w", source, err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	ctx := hydrate.Context{Source: source}

	doc, err := hydrate.NewDecoder[manifestDocument](
		hydrate.WithDisallowUnknownFields[manifestDocument](),
	).Decode(ctx, payload)
	if err != nil {
		return Manifest{}, fmt.Errorf("statepath: %w", err)
	}

	roots, err := hydrate.NewDecoder[RootManifest](
		hydrate.WithDisallowUnknownFields[RootManifest](),
		hydrate.WithPostHook[RootManifest](validateRootManifest),
	).Sections(ctx, doc.Roots, rootSection)
	if err != nil {
		return Manifest{}, fmt.Errorf("statepath: %w", err)
	}

	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		if _, ok := seen[root.Name]; ok {
			return Manifest{}, fmt.Errorf("statepath: manifest %q root %s: %w", source, root.Name, ErrDuplicateScopeName)
		}
		seen[root.Name] = struct{}{}
	}
	return Manifest{Roots: roots}, nil
}

// manifestDocument is the top level of a manifest before its roots are
// decoded one by one.
type manifestDocument struct {
	Roots []any `json:"roots"`
}

func rootSection(index int, payload map[string]any) string {
	if name, ok := payload["name"].(string); ok && name != "" {
		return name
	}
	return fmt.Sprintf("roots.%d", index)
}

func validateRootManifest(_ hydrate.Context, root *RootManifest) error {
	if root.Name == "" {
		return ErrScopeNameRequired
	}
	for i, c := range root.Computed {
		if c.Path == "" || c.Expr == "" {
			return fmt.Errorf("computed %d: computed entries need a path and an expr", i)
		}
	}
	for i, layer := range root.Layers {
		if layer.Name == "" {
			return fmt.Errorf("layer %d: layer name must be provided", i)
		}
	}
	return nil
}

// ApplyManifest creates, initializes and registers every declared root, then
// installs its dependencies and computed paths.
func (e *Engine) ApplyManifest(ctx context.Context, m Manifest) ([]*StateRoot, error) {
	roots := make([]*StateRoot, 0, len(m.Roots))
	for _, decl := range m.Roots {
		root, err := e.NewRoot(ctx, decl.Name, manifestLoader(decl))
		if err != nil {
			return roots, err
		}
		roots = append(roots, root)

		for _, dep := range decl.Dependencies {
			if err := root.deps.AddDynamicDependency(dep.Source, dep.Target); err != nil {
				return roots, wrapResolutionError("apply-manifest", dep.Target, decl.Name, err)
			}
		}
		for _, c := range decl.Computed {
			err := root.DefineComputed(Computed{
				Path:   c.Path,
				Expr:   c.Expr,
				Engine: c.Engine,
				Deps:   c.Deps,
			})
			if err != nil {
				return roots, err
			}
		}
	}
	return roots, nil
}

func manifestLoader(decl RootManifest) RootLoader {
	if len(decl.Layers) == 0 {
		if decl.State == nil {
			return nil
		}
		return StaticState(decl.State)
	}
	store := state.NewMemoryStore[map[string]any]()
	layers := make([]layering.Layer, 0, len(decl.Layers))
	for _, layer := range decl.Layers {
		layers = append(layers, layering.Layer{Root: decl.Name, Name: layer.Name, Priority: layer.Priority})
		// MemoryStore only fails on an incomplete ref; unnamed layers are
		// dropped by the chain anyway.
		_, _ = store.Save(context.Background(), state.Ref{Root: decl.Name, Layer: layer.Name}, layer.State, state.Meta{})
	}
	return state.Loader[map[string]any]{
		Store:    store,
		Layers:   layers,
		Defaults: decl.State,
	}
}
