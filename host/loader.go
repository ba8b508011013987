package host

import (
	"fmt"
	"os"

	apptemplate "github.com/reglet-dev/guestcall/application/template"
	"github.com/reglet-dev/guestcall/application/validation"
	"github.com/reglet-dev/guestcall/domain/entities"
	derrors "github.com/reglet-dev/guestcall/domain/errors"
	"github.com/reglet-dev/guestcall/domain/ports"
	"github.com/reglet-dev/guestcall/infrastructure/parser"
	"github.com/reglet-dev/guestcall/wireformat"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	templateEngine  ports.TemplateEngine
	parser          ports.InterfaceParser
	validator       ports.DeclarationValidator
	registry        func() *wireformat.Registry
	strictTemplates bool // Fail on missing template keys
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser:          parser.NewYamlInterfaceParser(),
		registry:        wireformat.NewRegistry,
		strictTemplates: true,
	}
}

// Loader orchestrates the declaration loading pipeline: render, parse,
// validate, register shapes.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom declaration parser.
func WithParser(p ports.InterfaceParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithTemplateEngine sets a template engine.
func WithTemplateEngine(t ports.TemplateEngine) LoaderOption {
	return func(c *loaderConfig) {
		c.templateEngine = t
	}
}

// WithStrictTemplates enables/disables strict template mode.
// When enabled (default), template rendering fails if a referenced key is missing.
// Disable only for development or when missing keys should become empty strings.
func WithStrictTemplates(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.strictTemplates = enabled
	}
}

// WithValidator replaces the declaration validator.
func WithValidator(v ports.DeclarationValidator) LoaderOption {
	return func(c *loaderConfig) {
		c.validator = v
	}
}

// WithRegistryFactory makes the loader register shapes into registries built
// by newRegistry, which may pre-register host codecs.
func WithRegistryFactory(newRegistry func() *wireformat.Registry) LoaderOption {
	return func(c *loaderConfig) {
		if newRegistry != nil {
			c.registry = newRegistry
		}
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.templateEngine == nil {
		cfg.templateEngine = apptemplate.NewGoTemplateEngine(
			apptemplate.WithStrict(cfg.strictTemplates),
		)
	}
	return &Loader{config: cfg}
}

// LoadInterface renders raw with vars, parses and validates it, and returns
// the declaration with a registry holding its named shapes.
func (l *Loader) LoadInterface(raw []byte, vars map[string]any) (*entities.Interface, *wireformat.Registry, error) {
	data, err := l.config.templateEngine.Render(raw, vars)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render interface: %w", err)
	}

	iface, err := l.config.parser.Parse(data)
	if err != nil {
		return nil, nil, &derrors.DeclarationError{Err: fmt.Errorf("failed to parse interface: %w", err)}
	}

	reg := l.config.registry()
	validator := l.config.validator
	if validator == nil {
		validator = validation.NewDeclarationValidator(validation.WithExternalShapes(reg.Has))
	}
	res, err := validator.Validate(iface)
	if err != nil {
		return nil, nil, &derrors.DeclarationError{Interface: iface.Name, Err: err}
	}
	if !res.Valid {
		return nil, nil, &derrors.DeclarationError{Interface: iface.Name, Problems: res.Errors}
	}

	if err := registerShapes(reg, iface.Shapes); err != nil {
		return nil, nil, &derrors.DeclarationError{Interface: iface.Name, Err: err}
	}
	return iface, reg, nil
}

// LoadInterfaceFile reads and loads the declaration at path.
func (l *Loader) LoadInterfaceFile(path string, vars map[string]any) (*entities.Interface, *wireformat.Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read interface: %w", err)
	}
	return l.LoadInterface(raw, vars)
}

// NewDispatcher loads raw and builds a dispatcher over its operations.
func (l *Loader) NewDispatcher(raw []byte, vars map[string]any, opts ...DispatcherOption) (*Dispatcher, error) {
	iface, reg, err := l.LoadInterface(raw, vars)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(iface, append([]DispatcherOption{WithCodecRegistry(reg)}, opts...)...)
}
