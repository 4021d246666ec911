package history

import (
	"fmt"
	"reflect"
)

type advanceFunc func(value any) (any, error)

// candidate is a type that may decode a blob at one history position along
// with the function that moves its values to the next version.
type candidate struct {
	typ     reflect.Type
	advance advanceFunc
}

func newCandidate[Self Versioned[Next], Next any]() candidate {
	selfType := typeOf[Self]()
	return candidate{
		typ: selfType,
		advance: func(value any) (any, error) {
			self, ok := value.(Self)
			if !ok {
				return nil, fmt.Errorf("expected %s, got %T", selfType, value)
			}
			next, err := self.ToNextVersion()
			if err != nil {
				return nil, err
			}
			return next, nil
		},
	}
}

// Alternative is an additional type accepted at a history position, for
// example a type that was renamed or merged into the position's primary type.
// It must advance to the same next version as the primary type.
type Alternative[Next any] struct {
	candidate candidate
}

// Alt declares A as an alternative for a position whose next version is Next.
func Alt[A Versioned[Next], Next any]() Alternative[Next] {
	return Alternative[Next]{candidate: newCandidate[A, Next]()}
}

// Step describes one historical schema version: its type, the type it
// advances to and its alternatives in trial order.
type Step struct {
	primary      candidate
	next         reflect.Type
	alternatives []candidate
}

// Version declares Self as a historical version that advances to Next.
func Version[Self Versioned[Next], Next any](alternatives ...Alternative[Next]) Step {
	step := Step{
		primary: newCandidate[Self, Next](),
		next:    typeOf[Next](),
	}
	for _, alt := range alternatives {
		if alt.candidate.typ == nil {
			continue
		}
		step.alternatives = append(step.alternatives, alt.candidate)
	}
	return step
}

// Type returns the primary type of the step.
func (s Step) Type() reflect.Type {
	return s.primary.typ
}

// Next returns the type the step advances to.
func (s Step) Next() reflect.Type {
	return s.next
}

// Alternatives returns the alternative types in trial order.
func (s Step) Alternatives() []reflect.Type {
	if len(s.alternatives) == 0 {
		return nil
	}
	out := make([]reflect.Type, len(s.alternatives))
	for i, alt := range s.alternatives {
		out[i] = alt.typ
	}
	return out
}

func (s Step) candidates() []candidate {
	out := make([]candidate, 0, len(s.alternatives)+1)
	out = append(out, s.primary)
	return append(out, s.alternatives...)
}

// node links a step to the version registered before it.
type node struct {
	step     Step
	previous *node
}

// Entry is a typed handle on the newest registered version while a history
// is being built, oldest version first:
//
//	e1 := history.Begin[ConfigV1, ConfigV2]()
//	e2 := history.Add[ConfigV2, ConfigV3](e1)
//	h, err := history.AddCurrent(e2)
type Entry[Self, Next any] struct {
	node *node
}

// Begin registers the oldest version of a history.
func Begin[Self Versioned[Next], Next any](alternatives ...Alternative[Next]) *Entry[Self, Next] {
	return &Entry[Self, Next]{node: &node{step: Version[Self, Next](alternatives...)}}
}

// Add registers Self as the version following prev.
func Add[Self Versioned[Next], Next any, Prev any](prev *Entry[Prev, Self], alternatives ...Alternative[Next]) *Entry[Self, Next] {
	n := &node{step: Version[Self, Next](alternatives...)}
	if prev != nil {
		n.previous = prev.node
	}
	return &Entry[Self, Next]{node: n}
}

// Step returns the version described by the entry.
func (e *Entry[Self, Next]) Step() Step {
	if e == nil || e.node == nil {
		return Step{}
	}
	return e.node.step
}

// AddCurrent closes the history with Final, the current version.
func AddCurrent[Final any, Prev any](prev *Entry[Prev, Final]) (*History[Final], error) {
	if prev == nil || prev.node == nil {
		return NoHistory[Final](), nil
	}
	var steps []Step
	for current := prev.node; current != nil; current = current.previous {
		steps = append(steps, current.step)
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return New[Final](steps...)
}

// NoHistory returns a History that only accepts blobs of the current version.
func NoHistory[Final any]() *History[Final] {
	return &History[Final]{final: typeOf[Final]()}
}

// New validates steps, ordered oldest to newest, and links them into a
// History ending at Final.
func New[Final any](steps ...Step) (*History[Final], error) {
	final := typeOf[Final]()
	if err := requireConcrete(final); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return NoHistory[Final](), nil
	}

	seen := map[reflect.Type]string{final: "current version"}
	names := map[string]string{TypeName(final): "current version"}
	var end *node
	for i, step := range steps {
		if step.primary.typ == nil || step.next == nil {
			return nil, fmt.Errorf("%w: step %d is empty", ErrInvalidChain, i)
		}
		for _, c := range step.candidates() {
			if err := requireConcrete(c.typ); err != nil {
				return nil, err
			}
			if where, ok := seen[c.typ]; ok {
				return nil, fmt.Errorf("%w: %s registered at step %d is already the %s", ErrInvalidChain, c.typ, i, where)
			}
			name := TypeName(c.typ)
			if where, ok := names[name]; ok {
				return nil, fmt.Errorf("%w: %s registered at step %d serializes as %q like the %s", ErrInvalidChain, c.typ, i, name, where)
			}
			seen[c.typ] = fmt.Sprintf("type of step %d", i)
			names[name] = fmt.Sprintf("type of step %d", i)
		}

		expected := final
		if i+1 < len(steps) {
			expected = steps[i+1].primary.typ
		}
		if step.next != expected {
			return nil, fmt.Errorf("%w: step %d (%s) advances to %s, expected %s", ErrInvalidChain, i, step.primary.typ, step.next, expected)
		}
		end = &node{step: step, previous: end}
	}

	return &History[Final]{
		end:    end,
		length: len(steps),
		final:  final,
	}, nil
}

// MustNew is like New but panics when the steps do not form a valid chain.
func MustNew[Final any](steps ...Step) *History[Final] {
	h, err := New[Final](steps...)
	if err != nil {
		panic(err)
	}
	return h
}

func requireConcrete(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("%w: missing type", ErrInvalidChain)
	}
	if t.Kind() == reflect.Interface {
		return fmt.Errorf("%w: %s must be a concrete type", ErrInvalidChain, t)
	}
	return nil
}
