package activity

import (
	"context"
	"sync"
)

// CaptureHook records events for assertions in tests.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

// Notify records the event and returns any configured error.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// ObjectIDs returns the object ids of the recorded events with verb.
func (h *CaptureHook) ObjectIDs(verb string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, event := range h.Events {
		if event.Verb == verb {
			out = append(out, event.ObjectID)
		}
	}
	return out
}
