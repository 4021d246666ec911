package history

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/goliatone/go-config-history/internal/hydrate"
)

// Envelope keys shared by the JSON and YAML serializers.
const (
	envelopeType   = "type"
	envelopeConfig = "config"
)

// JSONOption configures a JSONSerializer.
type JSONOption func(*JSONSerializer)

// JSONWithIndent pretty prints serialized blobs.
func JSONWithIndent(indent string) JSONOption {
	return func(s *JSONSerializer) {
		s.indent = indent
	}
}

// JSONWithStrictFields rejects payload fields the target type does not
// declare.
func JSONWithStrictFields() JSONOption {
	return func(s *JSONSerializer) {
		s.decoderOpts = append(s.decoderOpts, hydrate.WithDisallowUnknownFields())
	}
}

// JSONWithPreHook normalises the payload map before it is decoded.
func JSONWithPreHook(hook func(typeName string, payload map[string]any) (map[string]any, error)) JSONOption {
	return func(s *JSONSerializer) {
		if hook == nil {
			return
		}
		s.decoderOpts = append(s.decoderOpts, hydrate.WithPreHook(func(ctx hydrate.Context, payload map[string]any) (map[string]any, error) {
			return hook(ctx.Type, payload)
		}))
	}
}

// JSONSerializer stores configuration as {"type": name, "config": {...}}.
// Only blobs whose type matches the requested version are accepted.
type JSONSerializer struct {
	indent      string
	decoderOpts []hydrate.Option
	decoder     *hydrate.Decoder
}

// NewJSONSerializer constructs a JSON envelope serializer.
func NewJSONSerializer(opts ...JSONOption) *JSONSerializer {
	s := &JSONSerializer{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.decoder = hydrate.NewDecoder(s.decoderOpts...)
	return s
}

// Name implements Serializer.
func (s *JSONSerializer) Name() string {
	return "json"
}

// CanDeserialize implements Serializer.
func (s *JSONSerializer) CanDeserialize(raw string, target reflect.Type) bool {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil {
		return false
	}
	return head.Type != "" && head.Type == TypeName(target)
}

// Deserialize implements Serializer.
func (s *JSONSerializer) Deserialize(raw string, target reflect.Type) (any, error) {
	var envelope map[string]any
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, err
	}
	return decodeEnvelope(s.decoder, envelope, target)
}

// CanSerialize implements Serializer.
func (s *JSONSerializer) CanSerialize(value any) bool {
	return !isNil(value)
}

// Serialize implements Serializer.
func (s *JSONSerializer) Serialize(value any) (string, error) {
	payload := struct {
		Type   string `json:"type"`
		Config any    `json:"config"`
	}{
		Type:   NameOf(value),
		Config: serializableValue(value),
	}
	var (
		out []byte
		err error
	)
	if s.indent != "" {
		out, err = json.MarshalIndent(payload, "", s.indent)
	} else {
		out, err = json.Marshal(payload)
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeEnvelope(decoder *hydrate.Decoder, envelope map[string]any, target reflect.Type) (any, error) {
	name := TypeName(target)
	if got, _ := envelope[envelopeType].(string); got != name {
		return nil, fmt.Errorf("blob holds type %q", got)
	}
	payload, ok := envelope[envelopeConfig].(map[string]any)
	if !ok {
		if envelope[envelopeConfig] != nil {
			return nil, fmt.Errorf("config of type %q is %T, expected an object", name, envelope[envelopeConfig])
		}
		payload = map[string]any{}
	}
	ptr, result := decodeTarget(target)
	if err := decoder.Decode(hydrate.Context{Type: name}, payload, ptr); err != nil {
		return nil, err
	}
	return result(), nil
}
