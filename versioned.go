package history

import (
	"reflect"
	"strings"
)

// Versioned is implemented by configuration values that know how to produce
// the next schema version of themselves. The current (final) version of a
// configuration does not implement it.
type Versioned[Next any] interface {
	ToNextVersion() (Next, error)
}

// Named lets a configuration type declare the name serializers embed in the
// encoded blob. Types that do not implement it use their Go type string.
type Named interface {
	ConfigName() string
}

// TypeName returns the name used to tag values of t inside serialized blobs.
// Pointer types share the name of their element type.
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if name := declaredName(t); name != "" {
		return name
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// NameOf returns the serialized type name of value.
func NameOf(value any) string {
	if value == nil {
		return ""
	}
	return TypeName(reflect.TypeOf(value))
}

func declaredName(t reflect.Type) string {
	candidates := []any{zeroOf(t)}
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		candidates = append(candidates, reflect.New(t).Interface())
	}
	for _, candidate := range candidates {
		if named, ok := candidate.(Named); ok {
			if name := strings.TrimSpace(named.ConfigName()); name != "" {
				return name
			}
		}
	}
	return ""
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func zeroOf(t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface()
	}
	if t.Kind() == reflect.Interface {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// isNil reports whether value is nil or a typed nil pointer, map, slice or
// interface.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
