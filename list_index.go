package statepath

import (
	"strconv"
	"strings"
)

// ListIndex is one concrete list position during an iteration, chained to the
// position of the enclosing wildcard level. ListIndex values are compared by
// pointer, so a loop provider must reuse the same instance for the lifetime
// of an iteration.
type ListIndex struct {
	Index    int
	Parent   *ListIndex
	Position int
}

// NewListIndex returns a list index for index nested under parent.
func NewListIndex(parent *ListIndex, index int) *ListIndex {
	position := 0
	if parent != nil {
		position = parent.Position + 1
	}
	return &ListIndex{
		Index:    index,
		Parent:   parent,
		Position: position,
	}
}

// Length returns the number of wildcard levels covered by the stack.
func (l *ListIndex) Length() int {
	if l == nil {
		return 0
	}
	return l.Position + 1
}

// At returns the list index at pos counted from the outermost level. Negative
// positions count from the innermost level, -1 being l itself. Out of range
// positions return nil.
func (l *ListIndex) At(pos int) *ListIndex {
	if l == nil {
		return nil
	}
	if pos < 0 {
		pos = l.Length() + pos
	}
	if pos < 0 || pos > l.Position {
		return nil
	}
	cur := l
	for cur.Position > pos {
		cur = cur.Parent
	}
	return cur
}

// Indexes returns the index values from the outermost level inward.
func (l *ListIndex) Indexes() []int {
	if l == nil {
		return nil
	}
	out := make([]int, l.Length())
	for cur := l; cur != nil; cur = cur.Parent {
		out[cur.Position] = cur.Index
	}
	return out
}

func (l *ListIndex) String() string {
	if l == nil {
		return ""
	}
	indexes := l.Indexes()
	parts := make([]string, len(indexes))
	for i, index := range indexes {
		parts[i] = strconv.Itoa(index)
	}
	return strings.Join(parts, ",")
}
