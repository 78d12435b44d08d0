package statepath

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-statepath/internal/hydrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopManifest = `
roots:
  - name: shop
    state:
      theme: light
      items:
        - {name: pen, price: 2, qty: 3}
        - {name: ink, price: 5, qty: 1}
    layers:
      - name: tenant
        priority: 10
        state: {theme: dark}
      - name: user
        priority: 20
        state: {theme: solar}
    computed:
      - path: items.*.total
        expr: price * qty
        deps: {price: items.*.price, qty: items.*.qty}
      - path: summary.count
        engine: cel
        expr: size(names)
        deps: {names: items.*.name}
    dependencies:
      - {source: theme, target: summary.count}
  - name: session
    state:
      user: {name: Ann}
`

func TestApplyManifest(t *testing.T) {
	m, err := LoadManifest("shop.yaml", []byte(shopManifest))
	require.NoError(t, err)
	require.Len(t, m.Roots, 2)

	e := New()
	roots, err := e.ApplyManifest(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, []string{"session", "shop"}, e.Roots().Names())

	shop := roots[0]
	theme, err := e.Get(shop.MakeRootAddress(shop.RootPath(MustResolvePath("theme")), nil))
	require.NoError(t, err)
	assert.Equal(t, "solar", theme)

	total, err := e.Get(itemAddress(shop, "items.*.total", 0))
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)

	count, err := e.Get(shop.MakeRootAddress(shop.RootPath(MustResolvePath("summary.count")), nil))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	dependents := shop.Dependencies().DynamicDependents("theme")
	require.Len(t, dependents, 1)
	assert.Equal(t, "summary.count", dependents[0].Path)
}

func TestLoadManifestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roots.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roots:\n  - name: app\n"), 0o600))

	m, err := LoadManifestFile(path)
	require.NoError(t, err)
	require.Len(t, m.Roots, 1)
	assert.Equal(t, "app", m.Roots[0].Name)

	_, err = LoadManifestFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadManifestRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{name: "unknown field", doc: "roots:\n  - name: app\n    colour: red\n", want: "colour"},
		{name: "missing name", doc: "roots:\n  - state: {a: 1}\n", want: "scope name must be provided"},
		{name: "duplicate name", doc: "roots:\n  - name: app\n  - name: app\n", want: "scope names must be unique"},
		{name: "computed without expr", doc: "roots:\n  - name: app\n    computed:\n      - path: a\n", want: "need a path and an expr"},
		{name: "bad yaml", doc: "roots: [", want: "parse manifest"},
		{name: "unknown top-level key", doc: "routes: []\n", want: "routes"},
		{name: "unnamed layer", doc: "roots:\n  - name: app\n    layers:\n      - priority: 1\n", want: "layer name must be provided"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadManifest("doc.yaml", []byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadManifestNamesFailingRoot(t *testing.T) {
	doc := "roots:\n  - name: app\n  - name: shop\n    computed:\n      - path: total\n  - state: {a: 1}\n"
	_, err := LoadManifest("doc.yaml", []byte(doc))
	require.Error(t, err)

	var hydrateErr *hydrate.Error
	require.ErrorAs(t, err, &hydrateErr)
	assert.Equal(t, "doc.yaml", hydrateErr.Source)
	assert.Equal(t, "shop", hydrateErr.Section)
	assert.Equal(t, hydrate.StagePostHook, hydrateErr.Stage)
	assert.Contains(t, err.Error(), `"doc.yaml"[shop]`)

	_, err = LoadManifest("doc.yaml", []byte("roots:\n  - name: app\n  - state: {a: 1}\n"))
	require.ErrorAs(t, err, &hydrateErr)
	assert.Equal(t, "roots.1", hydrateErr.Section)
	assert.ErrorIs(t, err, ErrScopeNameRequired)

	_, err = LoadManifest("doc.yaml", []byte("roots:\n  - app\n"))
	require.ErrorAs(t, err, &hydrateErr)
	assert.Equal(t, hydrate.StagePayload, hydrateErr.Stage)
}

func TestApplyManifestStopsOnCycle(t *testing.T) {
	m := Manifest{Roots: []RootManifest{{
		Name: "calc",
		Computed: []ComputedManifest{
			{Path: "a", Expr: "b + 1", Deps: map[string]string{"b": "b"}},
			{Path: "b", Expr: "a + 1", Deps: map[string]string{"a": "a"}},
		},
	}}}

	roots, err := New().ApplyManifest(context.Background(), m)
	assert.ErrorIs(t, err, ErrComputedCycle)
	assert.Len(t, roots, 1)
}
