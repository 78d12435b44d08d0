package state_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-statepath/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := state.NewMemoryStore[map[string]any]()
	ctx := context.Background()
	ref := state.Ref{Root: "app", Layer: "tenant"}

	_, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	extra := map[string]string{"by": "ann"}
	meta, err := store.Save(ctx, ref, map[string]any{"theme": "dark"}, state.Meta{Extra: extra})
	require.NoError(t, err)
	assert.Equal(t, "app/tenant", meta.SnapshotID)

	extra["by"] = "bob"
	snapshot, loaded, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dark", snapshot["theme"])
	assert.Equal(t, "ann", loaded.Extra["by"], "stored meta is isolated from the caller")
}

func TestMemoryStoreLayersAndDelete(t *testing.T) {
	store := state.NewMemoryStore[map[string]any]()
	ctx := context.Background()
	for _, ref := range []state.Ref{
		{Root: "app", Layer: "user"},
		{Root: "app", Layer: "tenant"},
		{Root: "session", Layer: "user"},
	} {
		_, err := store.Save(ctx, ref, map[string]any{}, state.Meta{})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"tenant", "user"}, store.Layers("app"))
	assert.True(t, store.Delete(state.Ref{Root: "app", Layer: "user"}))
	assert.False(t, store.Delete(state.Ref{Root: "app", Layer: "user"}))
	assert.Equal(t, []string{"tenant"}, store.Layers("app"))
	assert.Empty(t, store.Layers("missing"))
}

func TestMemoryStoreRejectsIncompleteRefs(t *testing.T) {
	store := state.NewMemoryStore[map[string]any]()
	ctx := context.Background()

	_, err := store.Save(ctx, state.Ref{Root: "app"}, nil, state.Meta{})
	assert.Error(t, err)

	_, _, _, err = store.Load(ctx, state.Ref{Layer: "user"})
	assert.Error(t, err)
}
