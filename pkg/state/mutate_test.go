package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-statepath/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name string
}

func (p profile) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestLoaderMutateSavesValidSnapshot(t *testing.T) {
	store := state.NewMemoryStore[profile]()
	ref := state.Ref{Root: "app", Layer: "session"}
	_, err := store.Save(context.Background(), ref, profile{Name: "Ann"}, state.Meta{ETag: "v1"})
	require.NoError(t, err)

	loader := state.Loader[profile]{Store: store}
	got, meta, err := loader.Mutate(context.Background(), ref, state.Meta{ETag: "v1"}, func(p *profile) error {
		p.Name = "Bob"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
	assert.Equal(t, "v1", meta.ETag)
	assert.False(t, meta.UpdatedAt.IsZero())

	stored, _, ok, err := store.Load(context.Background(), ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Bob", stored.Name)
}

func TestLoaderMutateValidationFailureDoesNotSave(t *testing.T) {
	store := state.NewMemoryStore[profile]()
	ref := state.Ref{Root: "app", Layer: "session"}
	_, err := store.Save(context.Background(), ref, profile{Name: "Ann"}, state.Meta{})
	require.NoError(t, err)

	loader := state.Loader[profile]{Store: store}
	_, _, err = loader.Mutate(context.Background(), ref, state.Meta{}, func(p *profile) error {
		p.Name = ""
		return nil
	})
	require.EqualError(t, err, "name is required")

	stored, _, _, err := store.Load(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Ann", stored.Name)
}

func TestLoaderMutateETagMismatch(t *testing.T) {
	store := state.NewMemoryStore[profile]()
	ref := state.Ref{Root: "app", Layer: "session"}
	_, err := store.Save(context.Background(), ref, profile{Name: "Ann"}, state.Meta{ETag: "v2"})
	require.NoError(t, err)

	loader := state.Loader[profile]{Store: store}
	_, meta, err := loader.Mutate(context.Background(), ref, state.Meta{ETag: "v1"}, func(p *profile) error {
		return nil
	})
	assert.ErrorIs(t, err, state.ErrETagMismatch)
	assert.Equal(t, "v2", meta.ETag)
}

func TestLoaderMutateRequiresRefAndMutator(t *testing.T) {
	loader := state.Loader[profile]{Store: state.NewMemoryStore[profile]()}

	_, _, err := loader.Mutate(context.Background(), state.Ref{Root: "app"}, state.Meta{}, func(*profile) error { return nil })
	assert.Error(t, err)

	_, _, err = loader.Mutate(context.Background(), state.Ref{Root: "app", Layer: "x"}, state.Meta{}, nil)
	assert.Error(t, err)
}
