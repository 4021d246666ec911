package history

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// XMLOption configures an XMLSerializer.
type XMLOption func(*XMLSerializer)

// XMLWithIndent pretty prints serialized blobs.
func XMLWithIndent(prefix, indent string) XMLOption {
	return func(s *XMLSerializer) {
		s.prefix = prefix
		s.indent = indent
	}
}

// XMLWithHeader prepends the standard XML declaration to serialized blobs.
func XMLWithHeader() XMLOption {
	return func(s *XMLSerializer) {
		s.header = true
	}
}

// XMLSerializer stores configuration as an XML document whose root element
// is the type name, e.g. <settings.V2><Value>3</Value></settings.V2>.
type XMLSerializer struct {
	prefix string
	indent string
	header bool
}

// NewXMLSerializer constructs an XML serializer.
func NewXMLSerializer(opts ...XMLOption) *XMLSerializer {
	s := &XMLSerializer{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Name implements Serializer.
func (s *XMLSerializer) Name() string {
	return "xml"
}

// CanDeserialize implements Serializer.
func (s *XMLSerializer) CanDeserialize(raw string, target reflect.Type) bool {
	root, err := rootElement(raw)
	if err != nil {
		return false
	}
	return root == TypeName(target)
}

// Deserialize implements Serializer.
func (s *XMLSerializer) Deserialize(raw string, target reflect.Type) (any, error) {
	root, err := rootElement(raw)
	if err != nil {
		return nil, err
	}
	if name := TypeName(target); root != name {
		return nil, fmt.Errorf("root element %q does not match %q", root, name)
	}
	ptr, result := decodeTarget(target)
	if err := xml.Unmarshal([]byte(raw), ptr); err != nil {
		return nil, err
	}
	return result(), nil
}

// CanSerialize implements Serializer.
func (s *XMLSerializer) CanSerialize(value any) bool {
	if isNil(value) {
		return false
	}
	return reflect.Indirect(reflect.ValueOf(value)).Kind() == reflect.Struct
}

// Serialize implements Serializer.
func (s *XMLSerializer) Serialize(value any) (string, error) {
	var b strings.Builder
	if s.header {
		b.WriteString(xml.Header)
	}
	encoder := xml.NewEncoder(&b)
	if s.indent != "" || s.prefix != "" {
		encoder.Indent(s.prefix, s.indent)
	}
	start := xml.StartElement{Name: xml.Name{Local: NameOf(value)}}
	if err := encoder.EncodeElement(serializableValue(value), start); err != nil {
		return "", err
	}
	if err := encoder.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func rootElement(raw string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("no root element")
		}
		if err != nil {
			return "", err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
