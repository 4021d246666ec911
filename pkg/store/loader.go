package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	history "github.com/goliatone/go-config-history"
	"github.com/goliatone/go-config-history/pkg/activity"
)

// Mutator changes a configuration in place.
type Mutator[T any] func(*T) error

// Actor identifies who triggered a write. It is copied into emitted events.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

// LoaderOption configures a Loader.
type LoaderOption[T any] func(*Loader[T])

// LoaderWithEmitter emits lifecycle events through emitter.
func LoaderWithEmitter[T any](emitter *activity.Emitter) LoaderOption[T] {
	return func(l *Loader[T]) {
		l.Emitter = emitter
	}
}

// LoaderWithParseOptions appends options passed to every parse.
func LoaderWithParseOptions[T any](opts ...history.ParseOption) LoaderOption[T] {
	return func(l *Loader[T]) {
		l.Options = append(l.Options, opts...)
	}
}

// LoaderWithActor attributes emitted events to actor.
func LoaderWithActor[T any](actor Actor) LoaderOption[T] {
	return func(l *Loader[T]) {
		l.Actor = actor
	}
}

// Loader reads stored configuration through a History so every stored
// vintage surfaces as the current version T. Serializers are tried in order
// when parsing; the first one able to encode T is used for writes.
type Loader[T any] struct {
	Store       Store
	History     *history.History[T]
	Serializers []history.Serializer
	Emitter     *activity.Emitter
	Options     []history.ParseOption
	Actor       Actor
}

// NewLoader constructs a Loader.
func NewLoader[T any](store Store, h *history.History[T], serializers []history.Serializer, opts ...LoaderOption[T]) *Loader[T] {
	l := &Loader[T]{
		Store:       store,
		History:     h,
		Serializers: serializers,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// UpgradeResult reports the outcome of Upgrade.
type UpgradeResult[T any] struct {
	Result history.Result[T]
	// Meta describes the stored record after Upgrade.
	Meta Meta
	// Saved reports whether the blob was rewritten.
	Saved bool
	// Serializer names the serializer used for the rewrite.
	Serializer string
}

// Load parses the blob stored for ref. It returns ErrNotFound when nothing
// is stored.
func (l *Loader[T]) Load(ctx context.Context, ref Ref) (T, Meta, error) {
	result, meta, err := l.load(ctx, ref)
	return result.Value, meta, err
}

// Upgrade parses the blob stored for ref and, when it was not already in the
// current form, saves the re-serialized current version in its place. Emit
// failures are returned after the save has been committed.
func (l *Loader[T]) Upgrade(ctx context.Context, ref Ref) (UpgradeResult[T], error) {
	result, meta, err := l.load(ctx, ref)
	if err != nil {
		return UpgradeResult[T]{}, err
	}
	out := UpgradeResult[T]{Result: result, Meta: meta}
	if !result.Migrated() {
		return out, nil
	}

	raw, serializer, err := history.SerializeWith(result.Value, l.Serializers...)
	if err != nil {
		return out, fmt.Errorf("store: serialize %s: %w", ref.Name, err)
	}
	saved, err := l.Store.Save(ctx, ref, raw, meta)
	if err != nil {
		return out, fmt.Errorf("store: save %s: %w", ref.Name, err)
	}
	out.Meta = saved
	out.Saved = true
	out.Serializer = serializer.Name()

	input := l.eventInput(ref, saved)
	input.FromVersion = result.Version
	input.Steps = result.Steps

	migrated := input
	migrated.Serializer = result.Serializer
	updated := input
	updated.Serializer = out.Serializer
	err = errors.Join(
		l.emit(ctx, activity.BuildConfigMigratedEvent(migrated)),
		l.emit(ctx, activity.BuildConfigUpdatedEvent(updated)),
	)
	return out, err
}

// Mutate loads the current value for ref, or the zero value when nothing is
// stored, applies fn and saves the result. The value is validated before it
// is written, and the write fails with ErrETagMismatch when the record
// changed after it was loaded.
func (l *Loader[T]) Mutate(ctx context.Context, ref Ref, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("store: mutator is required")
	}

	result, meta, err := l.load(ctx, ref)
	exists := true
	switch {
	case errors.Is(err, ErrNotFound):
		exists = false
		result = history.Result[T]{}
		meta = Meta{}
	case err != nil:
		return zero, Meta{}, err
	}

	value := result.Value
	if err := fn(&value); err != nil {
		return zero, meta, err
	}
	if err := history.Validate(value); err != nil {
		return zero, meta, fmt.Errorf("store: validate %s: %w", ref.Name, err)
	}

	raw, serializer, err := history.SerializeWith(value, l.Serializers...)
	if err != nil {
		return zero, meta, fmt.Errorf("store: serialize %s: %w", ref.Name, err)
	}
	saved, err := l.Store.Save(ctx, ref, raw, meta)
	if err != nil {
		return zero, meta, fmt.Errorf("store: save %s: %w", ref.Name, err)
	}

	input := l.eventInput(ref, saved)
	input.Serializer = serializer.Name()
	event := activity.BuildConfigUpdatedEvent(input)
	if !exists {
		event = activity.BuildConfigCreatedEvent(input)
	}
	return value, saved, l.emit(ctx, event)
}

func (l *Loader[T]) load(ctx context.Context, ref Ref) (history.Result[T], Meta, error) {
	if l.Store == nil {
		return history.Result[T]{}, Meta{}, fmt.Errorf("store: store is required")
	}
	if l.History == nil {
		return history.Result[T]{}, Meta{}, fmt.Errorf("store: history is required")
	}
	key, err := ref.Identifier()
	if err != nil {
		return history.Result[T]{}, Meta{}, err
	}

	raw, meta, ok, err := l.Store.Load(ctx, ref)
	if err != nil {
		return history.Result[T]{}, Meta{}, fmt.Errorf("store: load %s: %w", key, err)
	}
	if !ok {
		return history.Result[T]{}, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	opts := append([]history.ParseOption{history.WithConfigName(ref.Name)}, l.Options...)
	result, err := l.History.ParseResult(raw, l.Serializers, opts...)
	if err != nil {
		return history.Result[T]{}, meta, fmt.Errorf("store: parse %s: %w", key, err)
	}
	return result, meta, nil
}

func (l *Loader[T]) eventInput(ref Ref, meta Meta) activity.ConfigEventInput {
	return activity.ConfigEventInput{
		ActorID:    l.Actor.ActorID,
		UserID:     l.Actor.UserID,
		TenantID:   l.Actor.TenantID,
		Name:       ref.Name,
		Instance:   ref.Instance,
		ToVersion:  history.TypeName(reflect.TypeOf((*T)(nil)).Elem()),
		SnapshotID: meta.SnapshotID,
		OccurredAt: meta.UpdatedAt,
	}
}

func (l *Loader[T]) emit(ctx context.Context, event activity.Event) error {
	if err := l.Emitter.Emit(ctx, event); err != nil {
		return fmt.Errorf("store: emit %s: %w", event.Verb, err)
	}
	return nil
}
