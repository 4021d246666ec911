package history

import "reflect"

// Validator is implemented by configuration types that can check themselves.
type Validator interface {
	Validate() error
}

// Validate invokes the Validate method of value when present. Both value
// and pointer receivers are honoured.
func Validate(value any) error {
	if isNil(value) {
		return nil
	}
	if v, ok := value.(Validator); ok {
		return v.Validate()
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Pointer {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		if v, ok := ptr.Interface().(Validator); ok {
			return v.Validate()
		}
	}
	return nil
}
