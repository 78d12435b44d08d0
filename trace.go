package statepath

import (
	"encoding/json"
)

// Trace records how one binding resolved: each hop from the declared path to
// the concrete address the value was read from.
type Trace struct {
	Binding string      `json:"binding"`
	Steps   []TraceStep `json:"steps"`
	Value   any         `json:"value,omitempty"`
	Found   bool        `json:"found"`
}

// TraceStep is one hop of a resolution.
type TraceStep struct {
	Op        string `json:"op"`
	Root      string `json:"root,omitempty"`
	Path      string `json:"path"`
	ListIndex string `json:"list_index,omitempty"`
	CacheHit  bool   `json:"cache_hit,omitempty"`
}

func (t *Trace) add(step TraceStep) {
	t.Steps = append(t.Steps, step)
}

// ToJSON serialises the trace for logging or transport.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
