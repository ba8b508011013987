// Package parser decodes interface declaration documents.
package parser

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/guestcall/domain/entities"
	"github.com/reglet-dev/guestcall/domain/ports"
)

// YamlInterfaceParser implements InterfaceParser for YAML. JSON documents are
// accepted too, being valid YAML.
type YamlInterfaceParser struct {
	strict bool
}

// ParserOption configures the parser.
type ParserOption func(*YamlInterfaceParser)

// WithKnownFields rejects documents with keys that do not map to a field.
// Enabled by default.
func WithKnownFields(enabled bool) ParserOption {
	return func(p *YamlInterfaceParser) {
		p.strict = enabled
	}
}

// NewYamlInterfaceParser creates a new YamlInterfaceParser.
func NewYamlInterfaceParser(opts ...ParserOption) ports.InterfaceParser {
	p := &YamlInterfaceParser{strict: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse unmarshals YAML bytes into an Interface.
func (p *YamlInterfaceParser) Parse(data []byte) (*entities.Interface, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty interface declaration")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)

	var iface entities.Interface
	if err := dec.Decode(&iface); err != nil {
		return nil, err
	}
	return &iface, nil
}
