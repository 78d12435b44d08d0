package layering

import (
	"fmt"
	"slices"
)

// Layer names one stored snapshot contributing to a state root. Higher
// priorities override lower ones when merged.
type Layer struct {
	Root     string
	Name     string
	Priority int
}

// Identifier returns the storage slug of the layer, e.g. "app/defaults".
func (l Layer) Identifier() string {
	return fmt.Sprintf("%s/%s", l.Root, l.Name)
}

// Chain is the merge order of a root's layers, strongest first.
type Chain struct {
	ordered []Layer
}

// NewChain orders layers from strongest to weakest, dropping unnamed layers
// and duplicates by Identifier. Peers keep their relative order.
func NewChain(layers ...Layer) Chain {
	filtered := make([]Layer, 0, len(layers))
	seen := map[string]struct{}{}

	for _, layer := range layers {
		if layer.Name == "" {
			continue
		}
		id := layer.Identifier()
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, layer)
	}

	slices.SortStableFunc(filtered, func(a, b Layer) int {
		switch {
		case a.Priority == b.Priority:
			return 0
		case a.Priority > b.Priority:
			return -1
		default:
			return 1
		}
	})

	return Chain{ordered: filtered}
}

// Ordered returns the layers from strongest (index 0) to weakest.
func (c Chain) Ordered() []Layer {
	out := make([]Layer, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of layers.
func (c Chain) Len() int {
	return len(c.ordered)
}

// Strongest returns the first layer (zero layer if empty).
func (c Chain) Strongest() Layer {
	if len(c.ordered) == 0 {
		return Layer{}
	}
	return c.ordered[0]
}

// Weakest returns the final layer (zero layer if empty).
func (c Chain) Weakest() Layer {
	if len(c.ordered) == 0 {
		return Layer{}
	}
	return c.ordered[len(c.ordered)-1]
}
