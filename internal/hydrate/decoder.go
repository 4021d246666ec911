package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context carries identifiers tied to a configuration payload.
type Context struct {
	Config string
	Type   string
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded value. target is the
// pointer passed to Decode.
type PostHook func(Context, any) error

// Option configures a Decoder instance.
type Option func(*Decoder)

// Decoder converts generic payload maps into typed configuration values.
type Decoder struct {
	preHooks     []PreHook
	postHooks    []PostHook
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to decoding.
func WithPreHook(hook PreHook) Option {
	return func(d *Decoder) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook(hook PostHook) Option {
	return func(d *Decoder) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber() Option {
	return func(d *Decoder) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields() Option {
	return func(d *Decoder) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithDecoderConfig allows callers to configure the json.Decoder directly.
func WithDecoderConfig(configure func(*json.Decoder)) Option {
	return func(d *Decoder) {
		if configure != nil {
			d.configureDec = append(d.configureDec, configure)
		}
	}
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into target, which must be a non-nil pointer,
// applying configured hooks.
func (d *Decoder) Decode(ctx Context, payload map[string]any, target any) error {
	if payload == nil {
		return fmt.Errorf("hydrate: payload is nil for type %q", ctx.Type)
	}
	if target == nil {
		return fmt.Errorf("hydrate: target is nil for type %q", ctx.Type)
	}

	current, err := clonePayload(payload)
	if err != nil {
		return fmt.Errorf("hydrate: clone payload for type %q: %w", ctx.Type, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return fmt.Errorf("hydrate: pre-hook for type %q failed: %w", ctx.Type, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("hydrate: marshal payload for type %q: %w", ctx.Type, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configureDec {
		if configure != nil {
			configure(decoder)
		}
	}
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("hydrate: decode type %q: %w", ctx.Type, err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, target); err != nil {
			return fmt.Errorf("hydrate: post-hook for type %q failed: %w", ctx.Type, err)
		}
	}

	return nil
}

// ToMap converts a JSON-tagged value into a generic payload map.
func ToMap(value any) (map[string]any, error) {
	buffer, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	return ToMap(payload)
}
