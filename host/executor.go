package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Executor owns a wazero runtime and instantiates guests in it.
type Executor struct {
	runtime wazero.Runtime
	logger  *zap.Logger
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(cfg.closeOnContextDone)
	if cfg.memoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	if cfg.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
		}
	}

	return &Executor{runtime: rt, logger: cfg.logger}, nil
}

// Close releases resources held by the executor, closing every guest it
// loaded.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Runtime returns the underlying wazero runtime.
func (e *Executor) Runtime() wazero.Runtime {
	return e.runtime
}

// LoadGuest instantiates a WASM module. A reactor's _initialize export is
// called before the guest is returned. An empty name keeps the module
// anonymous, so the same binary can be loaded more than once.
func (e *Executor) LoadGuest(ctx context.Context, wasm []byte, name string) (*Guest, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}

	mc := wazero.NewModuleConfig().WithName(name)
	mod, err := e.runtime.InstantiateModule(ctx, compiled, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	e.logger.Debug("guest loaded",
		zap.String("guest", name),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return NewGuest(mod), nil
}
