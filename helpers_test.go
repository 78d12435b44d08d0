package statepath

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type testNode struct {
	name   string
	parent *testNode
}

func (n *testNode) ParentNode() TreeNode {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func newNode(name string, parent *testNode) *testNode {
	return &testNode{name: name, parent: parent}
}

func usersState() map[string]any {
	return map[string]any{
		"users": []any{
			map[string]any{"name": "Ann"},
			map[string]any{"name": "Bob"},
		},
	}
}

func newTestRoot(t *testing.T, e *Engine, name string, state any) *StateRoot {
	t.Helper()
	root, err := e.NewRoot(context.Background(), name, StaticState(state))
	require.NoError(t, err)
	return root
}
