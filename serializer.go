package history

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNoSerializer indicates no supplied serializer accepted a value.
var ErrNoSerializer = errors.New("history: no serializer accepts value")

// Serializer converts configuration values to and from strings. Deserialize
// must return a value whose dynamic type is exactly target. Implementations
// must be safe for concurrent use.
type Serializer interface {
	Name() string
	CanDeserialize(raw string, target reflect.Type) bool
	Deserialize(raw string, target reflect.Type) (any, error)
	CanSerialize(value any) bool
	Serialize(value any) (string, error)
}

// Serialize encodes value with the first serializer that accepts it.
func Serialize(value any, serializers ...Serializer) (string, error) {
	out, _, err := SerializeWith(value, serializers...)
	return out, err
}

// SerializeWith is like Serialize but also returns the serializer used.
func SerializeWith(value any, serializers ...Serializer) (string, Serializer, error) {
	if isNil(value) {
		return "", nil, fmt.Errorf("history: cannot serialize nil value")
	}
	for _, serializer := range serializers {
		if serializer == nil || !serializer.CanSerialize(value) {
			continue
		}
		out, err := serializer.Serialize(value)
		if err != nil {
			return "", serializer, fmt.Errorf("history: %s serializer: %w", serializer.Name(), err)
		}
		return out, serializer, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNoSerializer, NameOf(value))
}

// decodeTarget allocates storage suitable for decoding a value of type
// target and returns it together with a func yielding the decoded value.
func decodeTarget(target reflect.Type) (any, func() any) {
	if target.Kind() == reflect.Pointer {
		ptr := reflect.New(target.Elem())
		return ptr.Interface(), func() any { return ptr.Interface() }
	}
	ptr := reflect.New(target)
	return ptr.Interface(), func() any { return ptr.Elem().Interface() }
}

// serializableValue dereferences pointers so encoders see the struct value.
func serializableValue(value any) any {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Interface()
}
