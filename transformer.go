package history

import (
	"fmt"
	"strings"
)

// Transformer rewrites configuration around a parse. TransformString runs on
// the raw blob before any decode attempt; TransformObject runs on the value
// of the current version once migration is complete.
type Transformer interface {
	TransformString(name, raw string) (string, error)
	TransformObject(name string, value any) (any, error)
}

// StringTransformerFunc adapts a function to a Transformer that only touches
// the raw blob.
type StringTransformerFunc func(name, raw string) (string, error)

// TransformString implements Transformer.
func (f StringTransformerFunc) TransformString(name, raw string) (string, error) {
	if f == nil {
		return raw, nil
	}
	return f(name, raw)
}

// TransformObject implements Transformer.
func (f StringTransformerFunc) TransformObject(_ string, value any) (any, error) {
	return value, nil
}

// ObjectTransformerFunc adapts a function to a Transformer that only touches
// the parsed value.
type ObjectTransformerFunc func(name string, value any) (any, error)

// TransformString implements Transformer.
func (f ObjectTransformerFunc) TransformString(_ string, raw string) (string, error) {
	return raw, nil
}

// TransformObject implements Transformer.
func (f ObjectTransformerFunc) TransformObject(name string, value any) (any, error) {
	if f == nil {
		return value, nil
	}
	return f(name, value)
}

// RenameTransformer replaces old type or package names in raw blobs before
// they are decoded. Pairs apply one after another, so a later pair sees the
// output of earlier ones. Only configurations named in Configs are touched
// when that list is not empty.
type RenameTransformer struct {
	Configs []string
	pairs   [][2]string
}

// NewRenameTransformer builds a transformer from old/new pairs.
func NewRenameTransformer(oldNew ...string) (*RenameTransformer, error) {
	if len(oldNew)%2 != 0 {
		return nil, fmt.Errorf("history: rename transformer needs old/new pairs, got %d values", len(oldNew))
	}
	for i := 0; i < len(oldNew); i += 2 {
		if oldNew[i] == "" {
			return nil, fmt.Errorf("history: rename transformer pair %d has an empty old value", i/2)
		}
	}
	t := &RenameTransformer{}
	for i := 0; i < len(oldNew); i += 2 {
		t.pairs = append(t.pairs, [2]string{oldNew[i], oldNew[i+1]})
	}
	return t, nil
}

// ForConfigs restricts the transformer to the named configurations.
func (t *RenameTransformer) ForConfigs(names ...string) *RenameTransformer {
	t.Configs = append([]string(nil), names...)
	return t
}

// TransformString implements Transformer.
func (t *RenameTransformer) TransformString(name, raw string) (string, error) {
	if t == nil || !t.applies(name) {
		return raw, nil
	}
	for _, pair := range t.pairs {
		raw = strings.ReplaceAll(raw, pair[0], pair[1])
	}
	return raw, nil
}

// TransformObject implements Transformer.
func (t *RenameTransformer) TransformObject(_ string, value any) (any, error) {
	return value, nil
}

func (t *RenameTransformer) applies(name string) bool {
	if len(t.Configs) == 0 {
		return true
	}
	for _, config := range t.Configs {
		if config == name {
			return true
		}
	}
	return false
}
