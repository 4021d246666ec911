package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " config.updated ",
		ActorID:    " actor ",
		UserID:     " user ",
		TenantID:   " tenant ",
		ObjectType: " config ",
		ObjectID:   " billing/acme ",
		Channel:    " config ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "config.updated" || got.ObjectType != "config" || got.ObjectID != "billing/acme" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.TenantID != "tenant" || got.Channel != "config" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: "config.updated"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got := len(capture.Events()); got != 0 {
		t.Fatalf("expected no events captured, got %d", got)
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	capture := &CaptureHook{}
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			if ctx != nil {
				ctxSeen = true
			}
			return nil
		}),
		capture,
		HookFunc(func(_ context.Context, _ Event) error { return boom1 }),
		nil,
		HookFunc(func(_ context.Context, _ Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: "config.updated", ObjectType: "config", ObjectID: "billing"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if got := len(capture.Events()); got != 1 {
		t.Fatalf("expected event to be captured once, got %d", got)
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: "config.created", ObjectType: "config", ObjectID: "billing"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if !enabled.Enabled() {
		t.Fatalf("expected emitter to be enabled")
	}
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(events))
	}
	if events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", events[0].Channel)
	}
}

func TestEmitterPreservesExplicitChannelAndTime(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	occurred := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "config.created",
		ObjectType: "config",
		ObjectID:   "billing",
		Channel:    "custom",
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", events[0].Channel)
	}
	if !events[0].OccurredAt.Equal(occurred) {
		t.Fatalf("expected occurred_at preserved, got %v", events[0].OccurredAt)
	}
}

func TestEmitterStampsWithClock(t *testing.T) {
	capture := &CaptureHook{}
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	emitter := NewEmitter(Hooks{nil, capture}, Config{
		Enabled: true,
		Clock:   func() time.Time { return fixed },
	})

	if err := emitter.Emit(context.Background(), BuildConfigUpdatedEvent(ConfigEventInput{Name: "billing"})); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got := capture.Events()[0].OccurredAt; !got.Equal(fixed) {
		t.Fatalf("expected clock time %v, got %v", fixed, got)
	}
	if verbs := capture.Verbs(); len(verbs) != 1 || verbs[0] != VerbConfigUpdated {
		t.Fatalf("unexpected verbs %v", verbs)
	}
}

func TestNilEmitterIsNoop(t *testing.T) {
	var emitter *Emitter
	if emitter.Enabled() {
		t.Fatalf("nil emitter should be disabled")
	}
	if err := emitter.Emit(context.Background(), Event{Verb: "x", ObjectType: "y", ObjectID: "z"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if emitter.Channel() != DefaultChannel {
		t.Fatalf("expected default channel, got %q", emitter.Channel())
	}
}
