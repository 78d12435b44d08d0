package statepath

import (
	"sort"
	"strings"
)

// DescribePaths returns the structural paths of a decomposed snapshot in
// lexical order. List elements collapse into a wildcard segment, so
// {users: [{name: "Ann"}]} yields "users", "users.*" and "users.*.name".
// Keys that contain the path delimiter are skipped.
func DescribePaths(value any) []string {
	seen := map[string]struct{}{}
	describePaths(value, nil, seen)
	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func describePaths(value any, prefix []string, seen map[string]struct{}) {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			if key == "" || strings.Contains(key, PathDelimiter) {
				continue
			}
			next := appendSegment(prefix, key)
			seen[JoinPath(next...)] = struct{}{}
			describePaths(child, next, seen)
		}
	case []any:
		next := appendSegment(prefix, WildcardToken)
		seen[JoinPath(next...)] = struct{}{}
		for _, child := range typed {
			describePaths(child, next, seen)
		}
	}
}

func appendSegment(prefix []string, segment string) []string {
	out := make([]string, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = segment
	return out
}
