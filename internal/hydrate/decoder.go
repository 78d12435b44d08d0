// Package hydrate turns parsed manifest documents into typed declarations,
// reporting failures against the document and section they came from.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the document a payload came from.
type Context struct {
	// Source is the file name or label of the document.
	Source string
	// Section names the part of the document being decoded, e.g. a root name.
	Section string
}

func (c Context) String() string {
	switch {
	case c.Source == "" && c.Section == "":
		return "<payload>"
	case c.Section == "":
		return fmt.Sprintf("%q", c.Source)
	case c.Source == "":
		return fmt.Sprintf("[%s]", c.Section)
	default:
		return fmt.Sprintf("%q[%s]", c.Source, c.Section)
	}
}

// Stages reported by Error.
const (
	StagePayload  = "payload"
	StagePreHook  = "pre-hook"
	StageDecode   = "decode"
	StagePostHook = "post-hook"
)

// Error reports where in a document decoding failed.
type Error struct {
	Context
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("hydrate: %s %s: %v", e.Stage, e.Context, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func failure(ctx Context, stage string, err error) error {
	return &Error{Context: ctx, Stage: stage, Err: err}
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated struct after decoding.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default JSON decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts generic payloads, as produced by YAML or JSON parsers,
// into typed declarations through their json tags.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
	custom       CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber keeps numbers as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(dec *json.Decoder) {
		dec.UseNumber()
	})
}

// WithDisallowUnknownFields rejects keys with no matching field.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(dec *json.Decoder) {
		dec.DisallowUnknownFields()
	})
}

// WithDecoderConfig allows callers to configure the json.Decoder directly.
func WithDecoderConfig[T any](configure func(*json.Decoder)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.configureDec = append(d.configureDec, configure)
		}
	}
}

// WithCustomDecoder replaces the default JSON decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T. The payload is copied before pre-hooks
// run, so callers keep their document untouched. Failures are *Error values
// carrying ctx.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, failure(ctx, StagePayload, fmt.Errorf("payload is nil"))
	}

	current := copyMap(payload)
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, failure(ctx, StagePreHook, err)
		}
		if next != nil {
			current = next
		}
	}

	result, err := d.decode(ctx, current)
	if err != nil {
		return zero, failure(ctx, StageDecode, err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, failure(ctx, StagePostHook, err)
		}
	}
	return result, nil
}

// Sections decodes a list of payloads, e.g. the roots of a manifest. Each
// entry is decoded under a Section produced by name; entries that are not
// maps fail at the payload stage.
func (d *Decoder[T]) Sections(ctx Context, entries []any, name func(index int, payload map[string]any) string) ([]T, error) {
	out := make([]T, 0, len(entries))
	for i, entry := range entries {
		section := ctx
		payload, ok := entry.(map[string]any)
		if name != nil {
			section.Section = name(i, payload)
		}
		if section.Section == "" {
			section.Section = fmt.Sprintf("%d", i)
		}
		if !ok {
			return out, failure(section, StagePayload, fmt.Errorf("expected a mapping, got %T", entry))
		}
		value, err := d.Decode(section, payload)
		if err != nil {
			return out, err
		}
		out = append(out, value)
	}
	return out, nil
}

func (d *Decoder[T]) decode(ctx Context, payload map[string]any) (T, error) {
	if d.custom != nil {
		return d.custom(ctx, payload)
	}
	var result T
	buffer, err := json.Marshal(payload)
	if err != nil {
		return result, err
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configureDec {
		configure(decoder)
	}
	if err := decoder.Decode(&result); err != nil {
		return result, err
	}
	return result, nil
}

// copyMap duplicates the maps and lists of a parsed document. Scalars are
// shared; parsers only produce immutable ones.
func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = copyValue(value)
	}
	return dst
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return value
	}
}
