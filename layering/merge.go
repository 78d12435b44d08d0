package layering

import "strings"

// Snapshot is the state one layer contributes to a root, already in the
// decomposed form a state root holds: map[string]any, []any and scalars.
type Snapshot struct {
	Layer Layer
	State any
}

// Merged is a root's state after layering, with the layer that supplied each
// value.
type Merged struct {
	State any
	// Origins maps dotted state paths to the Identifier of the layer that set
	// them. Maps are recorded per key; lists and scalars at their own path.
	Origins map[string]string
}

// Origin returns the layer that supplied path or its nearest recorded
// ancestor, so "users.0.name" reports the layer that set the "users" list.
func (m Merged) Origin(path string) (string, bool) {
	for p := path; p != ""; {
		if id, ok := m.Origins[p]; ok {
			return id, true
		}
		i := strings.LastIndexByte(p, '.')
		if i < 0 {
			break
		}
		p = p[:i]
	}
	return "", false
}

// Merge composes snapshots ordered from strongest to weakest. Maps merge key
// by key; lists and scalars are taken whole from the strongest layer that
// sets them. Nil values and nil maps never override. Inputs are not aliased.
func Merge(snapshots ...Snapshot) Merged {
	out := Merged{Origins: map[string]string{}}
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		out.State = overlay(out.State, snap.State, "", snap.Layer.Identifier(), out.Origins)
	}
	return out
}

// MergeLayers merges bare states ordered from strongest to weakest.
func MergeLayers(states ...any) any {
	snapshots := make([]Snapshot, len(states))
	for i, state := range states {
		snapshots[i] = Snapshot{State: state}
	}
	return Merge(snapshots...).State
}

// overlay applies strong on top of base, which Merge owns and may mutate.
func overlay(base, strong any, path, id string, origins map[string]string) any {
	if absent(strong) {
		return base
	}
	strongMap, ok := strong.(map[string]any)
	if !ok {
		forget(origins, path)
		if path != "" {
			origins[path] = id
		}
		return cloneState(strong)
	}

	baseMap, ok := base.(map[string]any)
	if !ok || baseMap == nil {
		forget(origins, path)
		baseMap = make(map[string]any, len(strongMap))
	}
	for key, value := range strongMap {
		baseMap[key] = overlay(baseMap[key], value, joinPath(path, key), id, origins)
	}
	return baseMap
}

func absent(v any) bool {
	if v == nil {
		return true
	}
	m, ok := v.(map[string]any)
	return ok && m == nil
}

// forget drops the origins recorded at or below path.
func forget(origins map[string]string, path string) {
	if path == "" {
		clear(origins)
		return
	}
	prefix := path + "."
	for key := range origins {
		if key == path || strings.HasPrefix(key, prefix) {
			delete(origins, key)
		}
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func cloneState(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		if tv == nil {
			return nil
		}
		out := make(map[string]any, len(tv))
		for key, value := range tv {
			out[key] = cloneState(value)
		}
		return out
	case []any:
		if tv == nil {
			return tv
		}
		out := make([]any, len(tv))
		for i, value := range tv {
			out[i] = cloneState(value)
		}
		return out
	default:
		return v
	}
}
