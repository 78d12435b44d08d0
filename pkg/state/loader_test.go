package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-statepath/layering"
	"github.com/goliatone/go-statepath/pkg/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *state.MemoryStore[map[string]any] {
	t.Helper()
	store := state.NewMemoryStore[map[string]any]()
	ctx := context.Background()
	_, err := store.Save(ctx, state.Ref{Root: "app", Layer: "tenant"}, map[string]any{
		"theme": "light",
		"users": []any{map[string]any{"name": "Ann"}},
	}, state.Meta{SnapshotID: "tenant-1"})
	require.NoError(t, err)
	_, err = store.Save(ctx, state.Ref{Root: "app", Layer: "session"}, map[string]any{
		"theme": "dark",
	}, state.Meta{SnapshotID: "session-1"})
	require.NoError(t, err)
	return store
}

func TestLoaderMergesLayersStrongestFirst(t *testing.T) {
	loader := state.Loader[map[string]any]{
		Store: seededStore(t),
		Layers: []layering.Layer{
			{Name: "tenant", Priority: 10},
			{Name: "session", Priority: 20},
			{Name: "missing", Priority: 30},
		},
		Defaults: map[string]any{"locale": "en", "theme": "system"},
	}

	got, err := loader.Merge(context.Background(), "app")
	require.NoError(t, err)

	want := map[string]any{
		"theme":  "dark",
		"locale": "en",
		"users":  []any{map[string]any{"name": "Ann"}},
	}
	if diff := cmp.Diff(want, got.State); diff != "" {
		t.Fatalf("merged state mismatch (-want +got):\n%s", diff)
	}

	wantOrigins := map[string]string{
		"theme":  "app/session",
		"locale": "app/defaults",
		"users":  "app/tenant",
	}
	if diff := cmp.Diff(wantOrigins, got.Origins); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}
	origin, ok := got.Origin("users.0.name")
	require.True(t, ok)
	assert.Equal(t, "app/tenant", origin)
}

func TestLoaderSkipsLayersOfOtherRoots(t *testing.T) {
	loader := state.Loader[map[string]any]{
		Store: seededStore(t),
		Layers: []layering.Layer{
			{Root: "other", Name: "session", Priority: 20},
			{Name: "tenant", Priority: 10},
		},
	}

	value, err := loader.Load(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, "light", value.(map[string]any)["theme"])
}

func TestLoaderRequireLayer(t *testing.T) {
	loader := state.Loader[map[string]any]{
		Store:        state.NewMemoryStore[map[string]any](),
		Layers:       []layering.Layer{{Name: "tenant"}},
		RequireLayer: true,
	}

	_, err := loader.Load(context.Background(), "app")
	assert.ErrorIs(t, err, state.ErrNoLayers)
}

func TestLoaderRequiresStoreAndRoot(t *testing.T) {
	_, err := state.Loader[map[string]any]{}.Load(context.Background(), "app")
	assert.Error(t, err)

	loader := state.Loader[map[string]any]{Store: state.NewMemoryStore[map[string]any]()}
	_, err = loader.Load(context.Background(), "")
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Load(context.Context, state.Ref) (map[string]any, state.Meta, bool, error) {
	return nil, state.Meta{}, false, errors.New("backend down")
}

func (failingStore) Save(context.Context, state.Ref, map[string]any, state.Meta) (state.Meta, error) {
	return state.Meta{}, errors.New("backend down")
}

func TestLoaderWrapsStoreErrors(t *testing.T) {
	loader := state.Loader[map[string]any]{
		Store:  failingStore{},
		Layers: []layering.Layer{{Name: "tenant"}},
	}
	_, err := loader.Load(context.Background(), "app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"app" layer "tenant"`)
}
