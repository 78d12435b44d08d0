package activity

import (
	"context"
	"strconv"
	"strings"
)

// DefaultChannel is stamped on events emitted without a channel.
const DefaultChannel = "statepath"

// Config controls emission defaults.
type Config struct {
	Enabled bool
	Channel string
	// Verbs limits emission to the listed verbs; empty emits every verb.
	Verbs []string
	// RootChannels suffixes the channel with the event's root name, e.g.
	// "statepath.app", so sinks can route per state root.
	RootChannels bool
}

// Root identifies the state root an event is about.
type Root struct {
	ID   string
	Name string
}

// Emitter turns engine operations into events and fans them out to hooks.
type Emitter struct {
	hooks        Hooks
	enabled      bool
	channel      string
	verbs        map[string]struct{}
	rootChannels bool
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	normalizedHooks := cloneHooks(hooks)
	var verbs map[string]struct{}
	for _, verb := range cfg.Verbs {
		if verb = strings.TrimSpace(verb); verb == "" {
			continue
		}
		if verbs == nil {
			verbs = map[string]struct{}{}
		}
		verbs[verb] = struct{}{}
	}
	return &Emitter{
		hooks:        normalizedHooks,
		enabled:      cfg.Enabled && len(normalizedHooks) > 0,
		channel:      channel,
		verbs:        verbs,
		rootChannels: cfg.RootChannels,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Emits reports whether events with verb reach the hooks.
func (e *Emitter) Emits(verb string) bool {
	if !e.Enabled() {
		return false
	}
	if e.verbs == nil {
		return true
	}
	_, ok := e.verbs[verb]
	return ok
}

// Emit forwards the event to all hooks, applying the default channel.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Emits(strings.TrimSpace(event.Verb)) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channelFor(event.RootName)
	}
	return e.hooks.Notify(ctx, event)
}

// Invalidated reports that entries cached values under path were marked
// dirty.
func (e *Emitter) Invalidated(ctx context.Context, root Root, path string, entries int) error {
	return e.Emit(ctx, Event{
		Verb:       VerbInvalidate,
		RootID:     root.ID,
		RootName:   root.Name,
		ObjectType: ObjectPath,
		ObjectID:   path,
		Metadata:   map[string]any{"entries": entries},
	})
}

// Written reports a value stored at a concrete address.
func (e *Emitter) Written(ctx context.Context, root Root, address string, listIndex []int) error {
	return e.Emit(ctx, Event{
		Verb:       VerbWrite,
		RootID:     root.ID,
		RootName:   root.Name,
		ObjectType: ObjectAddress,
		ObjectID:   address,
		ListIndex:  formatListIndex(listIndex),
	})
}

// Mapped reports a derived pair between an inner path and the outer path it
// stands for.
func (e *Emitter) Mapped(ctx context.Context, root Root, inner, outer string) error {
	return e.Emit(ctx, Event{
		Verb:       VerbMap,
		RootID:     root.ID,
		RootName:   root.Name,
		ObjectType: ObjectMapping,
		ObjectID:   inner,
		Metadata:   map[string]any{"outer": outer},
	})
}

func (e *Emitter) channelFor(rootName string) string {
	rootName = strings.TrimSpace(rootName)
	if !e.rootChannels || rootName == "" {
		return e.channel
	}
	return e.channel + "." + rootName
}

func formatListIndex(indexes []int) string {
	parts := make([]string, len(indexes))
	for i, index := range indexes {
		parts[i] = strconv.Itoa(index)
	}
	return strings.Join(parts, ",")
}

func cloneHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			normalized = append(normalized, hook)
		}
	}
	return Hooks(normalized)
}
