package history

import (
	"fmt"
	"reflect"
	"time"

	layering "github.com/goliatone/go-config-history/layering"
)

// History resolves serialized configuration of any registered vintage into
// the current version T. A History is immutable once built and safe for
// concurrent use.
type History[T any] struct {
	end    *node
	length int
	final  reflect.Type
}

// Result describes how a blob was resolved.
type Result[T any] struct {
	Value T
	// Version is the serialized type name that decoded the blob.
	Version string
	// Serializer is the name of the serializer that decoded the blob.
	Serializer string
	// Alternative reports whether an alternative type decoded the blob.
	Alternative bool
	// Steps counts the ToNextVersion calls made to reach T.
	Steps int
	// Transformed reports whether a transformer changed the blob or value.
	Transformed bool
}

// Migrated reports whether the stored form differs from what serializing
// Value would produce.
func (r Result[T]) Migrated() bool {
	return r.Steps > 0 || r.Alternative || r.Transformed
}

// Len returns the number of historical versions.
func (h *History[T]) Len() int {
	if h == nil {
		return 0
	}
	return h.length
}

// Versions returns every registered version from oldest to current.
func (h *History[T]) Versions() []reflect.Type {
	if h == nil {
		return nil
	}
	out := make([]reflect.Type, h.length+1)
	out[h.length] = h.final
	i := h.length - 1
	for current := h.end; current != nil; current = current.previous {
		out[i] = current.step.primary.typ
		i--
	}
	return out
}

// Parse decodes raw into the current version, migrating through the history
// when raw holds an older version.
func (h *History[T]) Parse(raw string, serializers []Serializer, opts ...ParseOption) (T, error) {
	result, err := h.ParseResult(raw, serializers, opts...)
	return result.Value, err
}

// ParseResult is like Parse but also reports how the blob was resolved.
func (h *History[T]) ParseResult(raw string, serializers []Serializer, opts ...ParseOption) (Result[T], error) {
	if h == nil {
		return Result[T]{}, fmt.Errorf("history: nil history")
	}
	p := &parser{
		cfg:         applyParseOptions(opts),
		serializers: serializers,
		target:      TypeName(h.final),
	}

	raw, err := p.transformString(raw)
	if err != nil {
		return Result[T]{}, err
	}

	if value, serializer, ok := p.decode(raw, h.final, StageCurrent); ok {
		current, ok := value.(T)
		if !ok {
			return Result[T]{}, p.fail(ErrChainBroken, fmt.Sprintf("decoded %T, expected %s", value, h.final))
		}
		return finish(p, Result[T]{
			Value:       current,
			Version:     p.target,
			Serializer:  serializer,
			Transformed: p.rawChanged,
		})
	}

	if h.end == nil {
		return Result[T]{}, p.failAttempts(ErrNoHistory, "")
	}

	var (
		path    []*node
		found   match
		matched bool
	)
	for current := h.end; current != nil; current = current.previous {
		path = append(path, current)
		if found, matched = p.matchStep(raw, current.step); matched {
			break
		}
	}
	if !matched {
		return Result[T]{}, p.failAttempts(ErrNoMatchingRecord, fmt.Sprintf("tried %d historical versions", len(path)))
	}

	current, steps, err := h.migrate(p, found, path)
	if err != nil {
		return Result[T]{}, err
	}
	return finish(p, Result[T]{
		Value:       current,
		Version:     TypeName(found.via.typ),
		Serializer:  found.serializer,
		Alternative: found.alternative,
		Steps:       steps,
		Transformed: p.rawChanged,
	})
}

// match is a historical value decoded from the blob.
type match struct {
	value       any
	via         candidate
	serializer  string
	alternative bool
}

// stage is the working value of a migration: either intermediate, still
// carrying the step that advances it, or final.
type stage interface {
	isStage()
}

type intermediate struct {
	value    any
	advance  advanceFunc
	from     reflect.Type
	next     reflect.Type
	position int
}

type final[T any] struct {
	value T
}

func (intermediate) isStage() {}
func (final[T]) isStage()     {}

// migrate advances m to T along path, which holds the nodes visited by the
// backward walk (newest first, matched node last). The walk bounds the
// number of advances.
func (h *History[T]) migrate(p *parser, m match, path []*node) (T, int, error) {
	var zero T
	position := len(path) - 1
	var working stage = intermediate{
		value:    m.value,
		advance:  m.via.advance,
		from:     m.via.typ,
		next:     path[position].step.next,
		position: position,
	}

	steps := 0
	for {
		switch s := working.(type) {
		case final[T]:
			return s.value, steps, nil
		case intermediate:
			if steps >= len(path) {
				return zero, steps, p.fail(ErrChainBroken, fmt.Sprintf("migration exceeded %d steps", len(path)))
			}
			start := time.Now()
			next, err := s.advance(s.value)
			steps++
			if err == nil && isNil(next) {
				err = fmt.Errorf("%s produced nil", s.from)
			}
			if err == nil && reflect.TypeOf(next) != s.next {
				err = fmt.Errorf("%s produced %T, expected %s", s.from, next, s.next)
			}
			p.cfg.logger.LogParse(ParseEvent{
				Stage:    StageMigrate,
				Config:   p.cfg.name,
				Type:     TypeName(s.from),
				Matched:  err == nil,
				Duration: time.Since(start),
				Err:      err,
			})
			if err != nil {
				return zero, steps, p.fail(ErrChainBroken, fmt.Sprintf("advance %s", TypeName(s.from)), err)
			}
			working, err = h.stageAt(next, s.position-1, path)
			if err != nil {
				return zero, steps, p.fail(ErrChainBroken, "", err)
			}
		default:
			return zero, steps, p.fail(ErrChainBroken, fmt.Sprintf("unexpected migration stage %T", working))
		}
	}
}

func (h *History[T]) stageAt(value any, position int, path []*node) (stage, error) {
	if position < 0 {
		current, ok := value.(T)
		if !ok {
			return nil, fmt.Errorf("%T is not the current version %s", value, h.final)
		}
		return final[T]{value: current}, nil
	}
	step := path[position].step
	return intermediate{
		value:    value,
		advance:  step.primary.advance,
		from:     step.primary.typ,
		next:     step.next,
		position: position,
	}, nil
}

// parser holds the state of one Parse call.
type parser struct {
	cfg         parseConfig
	serializers []Serializer
	target      string
	attempts    int
	causes      []error
	rawChanged  bool
}

func (p *parser) matchStep(raw string, step Step) (match, bool) {
	if value, serializer, ok := p.decode(raw, step.primary.typ, StageHistory); ok {
		return match{value: value, via: step.primary, serializer: serializer}, true
	}
	for _, alt := range step.alternatives {
		if value, serializer, ok := p.decode(raw, alt.typ, StageAlternative); ok {
			return match{value: value, via: alt, serializer: serializer, alternative: true}, true
		}
	}
	return match{}, false
}

// decode tries serializers in order and returns the first non-nil value of
// exactly type target.
func (p *parser) decode(raw string, target reflect.Type, phase Stage) (any, string, bool) {
	name := TypeName(target)
	for _, serializer := range p.serializers {
		if serializer == nil || !serializer.CanDeserialize(raw, target) {
			continue
		}
		p.attempts++
		start := time.Now()
		value, err := serializer.Deserialize(raw, target)
		if err == nil && isNil(value) {
			err = fmt.Errorf("returned nil")
		}
		if err == nil && reflect.TypeOf(value) != target {
			err = fmt.Errorf("returned %T", value)
		}
		p.cfg.logger.LogParse(ParseEvent{
			Stage:      phase,
			Config:     p.cfg.name,
			Type:       name,
			Serializer: serializer.Name(),
			Matched:    err == nil,
			Duration:   time.Since(start),
			Err:        err,
		})
		if err != nil {
			p.causes = append(p.causes, fmt.Errorf("%s as %s: %w", serializer.Name(), name, err))
			continue
		}
		return value, serializer.Name(), true
	}
	return nil, "", false
}

func (p *parser) transformString(raw string) (string, error) {
	for i, t := range p.cfg.transformers {
		start := time.Now()
		out, err := t.TransformString(p.cfg.name, raw)
		p.cfg.logger.LogParse(ParseEvent{
			Stage:    StageTransform,
			Config:   p.cfg.name,
			Type:     fmt.Sprintf("%T", t),
			Matched:  err == nil,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return "", p.fail(ErrTransform, fmt.Sprintf("transformer %d on raw configuration", i), err)
		}
		if out != raw {
			p.rawChanged = true
		}
		raw = out
	}
	return raw, nil
}

// finish applies defaults and object transformers to a resolved value.
func finish[T any](p *parser, result Result[T]) (Result[T], error) {
	if p.cfg.hasDefaults {
		defaults, ok := p.cfg.defaults.(T)
		if !ok {
			return Result[T]{}, p.fail(ErrTransform, fmt.Sprintf("defaults of type %T do not match %s", p.cfg.defaults, p.target))
		}
		result.Value = layering.MergeLayers(result.Value, defaults)
	}

	for i, t := range p.cfg.transformers {
		start := time.Now()
		out, err := t.TransformObject(p.cfg.name, result.Value)
		if err == nil {
			if _, ok := out.(T); !ok {
				err = fmt.Errorf("returned %T, expected %s", out, p.target)
			}
		}
		p.cfg.logger.LogParse(ParseEvent{
			Stage:    StageTransform,
			Config:   p.cfg.name,
			Type:     p.target,
			Matched:  err == nil,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return Result[T]{}, p.fail(ErrTransform, fmt.Sprintf("transformer %d on %s", i, p.target), err)
		}
		next := out.(T)
		if !reflect.DeepEqual(next, result.Value) {
			result.Transformed = true
		}
		result.Value = next
	}
	return result, nil
}

// fail reports a failure caused by the given errors.
func (p *parser) fail(kind error, detail string, causes ...error) error {
	return newConfigError(kind, p.cfg.name, p.target, p.attempts, detail, causes...)
}

// failAttempts reports a failure caused by every rejected decode attempt.
func (p *parser) failAttempts(kind error, detail string) error {
	return newConfigError(kind, p.cfg.name, p.target, p.attempts, detail, p.causes...)
}
