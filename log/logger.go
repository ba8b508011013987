// Package log builds the structured zap loggers used by guestcall hosts and
// the guestcall command.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoding.
type Format string

const (
	// FormatConsole is human-readable output for terminals.
	FormatConsole Format = "console"
	// FormatJSON is one JSON object per line.
	FormatJSON Format = "json"
)

// loggerConfig holds configuration for New.
type loggerConfig struct {
	output io.Writer
	format Format
	level  zapcore.Level
	caller bool
}

// defaultLoggerConfig returns the default configuration.
func defaultLoggerConfig() loggerConfig {
	return loggerConfig{
		output: os.Stderr,
		format: FormatConsole,
		level:  zapcore.InfoLevel,
	}
}

// Option configures a logger built by New.
type Option func(*loggerConfig)

// WithLevel sets the minimum level to report.
func WithLevel(level zapcore.Level) Option {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithFormat sets the encoding.
func WithFormat(f Format) Option {
	return func(c *loggerConfig) {
		c.format = f
	}
}

// WithCaller enables reporting of the calling file and line.
func WithCaller(enabled bool) Option {
	return func(c *loggerConfig) {
		c.caller = enabled
	}
}

// WithOutput sets where entries are written. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(c *loggerConfig) {
		if w != nil {
			c.output = w
		}
	}
}

// New builds a logger with the given options.
func New(opts ...Option) (*zap.Logger, error) {
	cfg := defaultLoggerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var enc zapcore.Encoder
	switch cfg.format {
	case FormatJSON:
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	case FormatConsole:
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(cfg.output), cfg.level)
	var zopts []zap.Option
	if cfg.caller {
		zopts = append(zopts, zap.AddCaller())
	}
	return zap.New(core, zopts...), nil
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (zapcore.Level, error) {
	return zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatConsole, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown log format %q", s)
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
