package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is used when neither the event nor Config names one.
const DefaultChannel = "config"

// Config controls emission defaults.
type Config struct {
	Enabled bool
	Channel string
	// Clock stamps events that carry no OccurredAt. Defaults to time.Now.
	Clock func() time.Time
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	clock   func() time.Time
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	normalized := compactHooks(hooks)
	return &Emitter{
		hooks:   normalized,
		enabled: cfg.Enabled && len(normalized) > 0,
		channel: channel,
		clock:   clock,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Channel returns the default channel applied to events.
func (e *Emitter) Channel() string {
	if e == nil {
		return DefaultChannel
	}
	return e.channel
}

// Emit forwards event to all hooks. A nil or disabled emitter is a no-op.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.clock()
	}
	return e.hooks.Notify(ctx, event)
}

func compactHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	out := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			out = append(out, hook)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
