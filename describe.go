package history

import (
	"reflect"
	"sort"
	"strings"
)

// FieldDescriptor describes a field path and its Go type.
type FieldDescriptor struct {
	Path string
	Type string
}

// VersionDescriptor documents one registered version.
type VersionDescriptor struct {
	Name         string
	Type         reflect.Type
	Alternatives []string
	Fields       []FieldDescriptor
	Current      bool
}

// Describe lists the registered versions from oldest to current with the
// fields their serialized form carries. Field paths use json names, the
// same names rule expressions see.
func (h *History[T]) Describe() []VersionDescriptor {
	if h == nil {
		return nil
	}
	var steps []Step
	for current := h.end; current != nil; current = current.previous {
		steps = append(steps, current.step)
	}

	out := make([]VersionDescriptor, 0, len(steps)+1)
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		descriptor := describeType(step.primary.typ)
		for _, alt := range step.alternatives {
			descriptor.Alternatives = append(descriptor.Alternatives, TypeName(alt.typ))
		}
		out = append(out, descriptor)
	}
	current := describeType(h.final)
	current.Current = true
	return append(out, current)
}

func describeType(t reflect.Type) VersionDescriptor {
	fields := deriveFieldDescriptors(t, "", map[reflect.Type]bool{})
	if fields == nil {
		fields = []FieldDescriptor{}
	}
	return VersionDescriptor{Name: TypeName(t), Type: t, Fields: fields}
}

func deriveFieldDescriptors(t reflect.Type, prefix string, visiting map[reflect.Type]bool) []FieldDescriptor {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: t.String()}}
	}
	if visiting[t] {
		return []FieldDescriptor{{Path: prefix, Type: t.String()}}
	}
	visiting[t] = true
	defer delete(visiting, t)

	var fields []FieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, skip := jsonFieldName(field)
		if skip {
			continue
		}
		if field.Anonymous && name == "" {
			fields = append(fields, deriveFieldDescriptors(field.Type, prefix, visiting)...)
			continue
		}
		if name == "" {
			name = field.Name
		}
		fields = append(fields, deriveFieldDescriptors(field.Type, joinPath(prefix, name), visiting)...)
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Path < fields[j].Path
	})
	return fields
}

func jsonFieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, false
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
