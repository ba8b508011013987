package main

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	derrors "github.com/reglet-dev/guestcall/domain/errors"
	"github.com/reglet-dev/guestcall/host"
)

const defaultConfig = `
log:
  level: info
  format: console
runtime:
  memory_limit_pages: 0
  wasi: true
  timeout: 30s
call:
  max_result_size: 16777216
  require_capacity: false
`

// Config is the guestcall configuration. Values from a config file are
// layered over the built-in defaults.
type Config struct {
	Vars    map[string]any `koanf:"vars"`
	Log     LogConfig      `koanf:"log"`
	Runtime RuntimeConfig  `koanf:"runtime"`
	Call    CallConfig     `koanf:"call"`
}

// LogConfig controls the command's logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"required,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"required,oneof=console json"`
}

// RuntimeConfig controls the wazero runtime guests are loaded into.
type RuntimeConfig struct {
	// MemoryLimitPages caps guest memory in 64 KiB pages. Zero keeps the
	// runtime default.
	MemoryLimitPages uint32        `koanf:"memory_limit_pages" validate:"lte=65536"`
	WASI             bool          `koanf:"wasi"`
	Timeout          time.Duration `koanf:"timeout" validate:"gte=0"`
}

// CallConfig controls marshalling.
type CallConfig struct {
	MaxResultSize   uint32 `koanf:"max_result_size" validate:"gt=0"`
	RequireCapacity bool   `koanf:"require_capacity"`
}

// LoadConfig reads the defaults and, when path is set, the config file.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultConfig)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &derrors.ConfigError{Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var configValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		return name
	})
	return v
}()

// Validate reports the first invalid field as a ConfigError.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &derrors.ConfigError{
			Field: strings.TrimPrefix(fe.Namespace(), "Config."),
			Err:   fmt.Errorf("value %v does not satisfy %q", fe.Value(), fieldRule(fe)),
		}
	}
	return &derrors.ConfigError{Err: err}
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// executorOptions maps the runtime section onto executor options.
func (c *Config) executorOptions() []host.Option {
	opts := []host.Option{host.WithWASI(c.Runtime.WASI)}
	if c.Runtime.MemoryLimitPages > 0 {
		opts = append(opts, host.WithMemoryLimitPages(c.Runtime.MemoryLimitPages))
	}
	return opts
}

// dispatcherOptions maps the call section onto dispatcher options.
func (c *Config) dispatcherOptions() []host.DispatcherOption {
	return []host.DispatcherOption{
		host.WithMaxResultSize(c.Call.MaxResultSize),
		host.WithRequireCapacity(c.Call.RequireCapacity),
	}
}
