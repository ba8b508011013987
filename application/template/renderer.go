// Package template renders interface declarations that carry text/template
// placeholders, so one declaration can serve several guest builds.
package template

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/reglet-dev/guestcall/domain/ports"
)

// templateConfig holds configuration for the GoTemplateEngine.
type templateConfig struct {
	strict bool // Fail on missing keys
}

func defaultTemplateConfig() templateConfig {
	return templateConfig{
		strict: true,
	}
}

// TemplateOption configures a GoTemplateEngine.
type TemplateOption func(*templateConfig)

// WithStrict enables/disables strict mode for missing keys.
// When enabled (default), template rendering fails if a referenced key is missing.
func WithStrict(enabled bool) TemplateOption {
	return func(c *templateConfig) {
		c.strict = enabled
	}
}

// GoTemplateEngine implements TemplateEngine using standard text/template.
type GoTemplateEngine struct {
	config templateConfig
}

// NewGoTemplateEngine creates a new GoTemplateEngine.
func NewGoTemplateEngine(opts ...TemplateOption) ports.TemplateEngine {
	cfg := defaultTemplateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GoTemplateEngine{config: cfg}
}

// Render processes the raw declaration with the provided values, which
// templates reach as {{ .vars.key }}.
func (e *GoTemplateEngine) Render(raw []byte, values map[string]any) ([]byte, error) {
	tmpl := template.New("interface")
	if e.config.strict {
		tmpl = tmpl.Option("missingkey=error")
	}

	tmpl, err := tmpl.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse interface template: %w", err)
	}

	if values == nil {
		values = map[string]any{}
	}
	data := map[string]any{
		"vars": values,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute interface template: %w", err)
	}

	return buf.Bytes(), nil
}
