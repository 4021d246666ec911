package history

import (
	"reflect"
	"strings"

	"github.com/goliatone/go-config-history/internal/hydrate"
	"gopkg.in/yaml.v3"
)

// YAMLOption configures a YAMLSerializer.
type YAMLOption func(*YAMLSerializer)

// YAMLWithIndent sets the number of spaces used for nesting.
func YAMLWithIndent(spaces int) YAMLOption {
	return func(s *YAMLSerializer) {
		s.indent = spaces
	}
}

// YAMLWithStrictFields rejects payload fields the target type does not
// declare.
func YAMLWithStrictFields() YAMLOption {
	return func(s *YAMLSerializer) {
		s.decoderOpts = append(s.decoderOpts, hydrate.WithDisallowUnknownFields())
	}
}

// YAMLSerializer stores configuration as a YAML document with the same
// type/config envelope as JSONSerializer. Field names follow the json tags
// of the configuration types.
type YAMLSerializer struct {
	indent      int
	decoderOpts []hydrate.Option
	decoder     *hydrate.Decoder
}

// NewYAMLSerializer constructs a YAML envelope serializer.
func NewYAMLSerializer(opts ...YAMLOption) *YAMLSerializer {
	s := &YAMLSerializer{indent: 2}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.decoder = hydrate.NewDecoder(s.decoderOpts...)
	return s
}

// Name implements Serializer.
func (s *YAMLSerializer) Name() string {
	return "yaml"
}

// CanDeserialize implements Serializer.
func (s *YAMLSerializer) CanDeserialize(raw string, target reflect.Type) bool {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := yaml.Unmarshal([]byte(raw), &head); err != nil {
		return false
	}
	return head.Type != "" && head.Type == TypeName(target)
}

// Deserialize implements Serializer.
func (s *YAMLSerializer) Deserialize(raw string, target reflect.Type) (any, error) {
	var envelope map[string]any
	if err := yaml.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, err
	}
	return decodeEnvelope(s.decoder, envelope, target)
}

// CanSerialize implements Serializer.
func (s *YAMLSerializer) CanSerialize(value any) bool {
	return !isNil(value)
}

// Serialize implements Serializer.
func (s *YAMLSerializer) Serialize(value any) (string, error) {
	payload, err := hydrate.ToMap(serializableValue(value))
	if err != nil {
		return "", err
	}
	doc := struct {
		Type   string         `yaml:"type"`
		Config map[string]any `yaml:"config"`
	}{
		Type:   NameOf(value),
		Config: payload,
	}

	var b strings.Builder
	encoder := yaml.NewEncoder(&b)
	encoder.SetIndent(s.indent)
	if err := encoder.Encode(&doc); err != nil {
		return "", err
	}
	if err := encoder.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}
