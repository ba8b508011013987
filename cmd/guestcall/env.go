package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wippyai/wasm-runtime/wat"
	"go.uber.org/zap"

	"github.com/reglet-dev/guestcall/host"
	guestlog "github.com/reglet-dev/guestcall/log"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// load reads the config and builds the logger. Flags override the file.
func (g *globalOptions) load(cmd *cobra.Command) (*Config, *zap.Logger, error) {
	cfg, err := LoadConfig(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}

	level, err := guestlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := guestlog.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	logger, err := guestlog.New(
		guestlog.WithLevel(level),
		guestlog.WithFormat(format),
		guestlog.WithOutput(cmd.ErrOrStderr()),
	)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// guestFlags name the module and interface a command works on.
type guestFlags struct {
	vars          map[string]string
	modulePath    string
	interfacePath string
}

func (f *guestFlags) bind(cmd *cobra.Command, needModule bool) {
	cmd.Flags().StringVar(&f.interfacePath, "interface", "", "Path to the interface declaration (YAML).")
	cmd.Flags().StringToStringVar(&f.vars, "var", nil, "Template variable for the declaration, as key=value. Repeatable.")
	_ = cmd.MarkFlagRequired("interface")
	if needModule {
		cmd.Flags().StringVar(&f.modulePath, "module", "", "Path to the guest module (.wasm, or .wat text).")
		_ = cmd.MarkFlagRequired("module")
	}
}

// templateVars layers --var flags over the config's vars.
func (f *guestFlags) templateVars(cfg *Config) map[string]any {
	vars := make(map[string]any, len(cfg.Vars)+len(f.vars))
	for k, v := range cfg.Vars {
		vars[k] = v
	}
	for k, v := range f.vars {
		vars[k] = v
	}
	return vars
}

// readModule returns the module binary, compiling WebAssembly text when the
// file has a .wat extension.
func readModule(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", path, err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".wat") {
		return src, nil
	}
	bin, err := wat.Compile(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", path, err)
	}
	return bin, nil
}

// guestEnv is a loaded guest with a dispatcher for its interface.
type guestEnv struct {
	cfg        *Config
	logger     *zap.Logger
	executor   *host.Executor
	guest      *host.Guest
	dispatcher *host.Dispatcher
}

func openGuest(ctx context.Context, cfg *Config, logger *zap.Logger, f *guestFlags) (*guestEnv, error) {
	raw, err := os.ReadFile(f.interfacePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read interface %s: %w", f.interfacePath, err)
	}

	opts := append(cfg.dispatcherOptions(),
		host.WithLogger(logger),
		host.WithMiddleware(host.PanicRecoveryMiddleware(), host.LoggingMiddleware(logger)),
	)
	dispatcher, err := host.NewLoader().NewDispatcher(raw, f.templateVars(cfg), opts...)
	if err != nil {
		return nil, err
	}

	wasm, err := readModule(f.modulePath)
	if err != nil {
		return nil, err
	}

	executor, err := host.NewExecutor(ctx, append(cfg.executorOptions(), host.WithExecutorLogger(logger))...)
	if err != nil {
		return nil, err
	}

	guest, err := executor.LoadGuest(ctx, wasm, strings.TrimSuffix(filepath.Base(f.modulePath), filepath.Ext(f.modulePath)))
	if err != nil {
		_ = executor.Close(ctx)
		return nil, err
	}

	return &guestEnv{
		cfg:        cfg,
		logger:     logger,
		executor:   executor,
		guest:      guest,
		dispatcher: dispatcher,
	}, nil
}

func (e *guestEnv) Close(ctx context.Context) error {
	_ = e.logger.Sync()
	return e.executor.Close(ctx)
}
