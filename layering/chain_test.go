package layering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewChainOrdersStrongestFirst(t *testing.T) {
	chain := NewChain(
		Layer{Root: "app", Name: "defaults", Priority: 0},
		Layer{Root: "app", Name: "session", Priority: 20},
		Layer{Root: "app", Name: "tenant", Priority: 10},
		Layer{Root: "app", Name: "session", Priority: 99},
		Layer{Root: "app", Priority: 50},
	)

	names := make([]string, 0, chain.Len())
	for _, layer := range chain.Ordered() {
		names = append(names, layer.Name)
	}
	assert.Equal(t, []string{"session", "tenant", "defaults"}, names)
	assert.Equal(t, "session", chain.Strongest().Name)
	assert.Equal(t, 20, chain.Strongest().Priority, "first declaration wins on duplicates")
	assert.Equal(t, "defaults", chain.Weakest().Name)
}

func TestNewChainKeepsPeerOrder(t *testing.T) {
	chain := NewChain(
		Layer{Root: "app", Name: "b", Priority: 1},
		Layer{Root: "app", Name: "a", Priority: 1},
	)
	assert.Equal(t, "b", chain.Strongest().Name)
	assert.Equal(t, "a", chain.Weakest().Name)
}

func TestEmptyChain(t *testing.T) {
	chain := NewChain()
	assert.Zero(t, chain.Len())
	assert.Equal(t, Layer{}, chain.Strongest())
	assert.Equal(t, Layer{}, chain.Weakest())
}

func TestLayerIdentifier(t *testing.T) {
	assert.Equal(t, "app/defaults", Layer{Root: "app", Name: "defaults"}.Identifier())
}
