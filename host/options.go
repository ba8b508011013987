package host

import (
	"go.uber.org/zap"

	"github.com/reglet-dev/guestcall/domain/entities"
	"github.com/reglet-dev/guestcall/wireformat"
)

// DefaultMaxResultSize bounds the payload a guest may hand back in one call.
const DefaultMaxResultSize = 16 << 20

// dispatcherConfig holds configuration for the Dispatcher.
type dispatcherConfig struct {
	logger          *zap.Logger
	registry        *wireformat.Registry
	observer        func(*entities.CallTrace)
	middleware      []Middleware
	maxResultSize   uint32
	requireCapacity bool
}

func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		logger:        zap.NewNop(),
		maxResultSize: DefaultMaxResultSize,
	}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithLogger sets the logger for per-step debug output.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(c *dispatcherConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCodecRegistry resolves shapes against r instead of a fresh registry.
// Shapes the interface declares that r already knows are not registered again.
func WithCodecRegistry(r *wireformat.Registry) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.registry = r
	}
}

// WithMaxResultSize caps the result payload size. Larger locators fail with
// PayloadReadOutOfBounds before any payload byte is read.
func WithMaxResultSize(n uint32) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.maxResultSize = n
	}
}

// WithRequireCapacity makes __wasm_get_input_buffer_capacity mandatory.
func WithRequireCapacity(required bool) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.requireCapacity = required
	}
}

// WithMiddleware adds middleware to the call chain.
// Middleware executes in FIFO order (first added wraps outermost).
func WithMiddleware(mw ...Middleware) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithObserver registers fn to receive the trace of every finished call.
func WithObserver(fn func(*entities.CallTrace)) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.observer = fn
	}
}

// executorConfig holds configuration for the Executor.
type executorConfig struct {
	logger             *zap.Logger
	memoryLimitPages   uint32
	wasi               bool
	closeOnContextDone bool
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger:             zap.NewNop(),
		wasi:               true,
		closeOnContextDone: true,
	}
}

// Option configures an Executor.
type Option func(*executorConfig)

// WithMemoryLimitPages caps guest memory at n 64KiB pages. Zero keeps the
// runtime default.
func WithMemoryLimitPages(n uint32) Option {
	return func(c *executorConfig) {
		c.memoryLimitPages = n
	}
}

// WithWASI controls whether wasi_snapshot_preview1 is instantiated for guests.
// Enabled by default.
func WithWASI(enabled bool) Option {
	return func(c *executorConfig) {
		c.wasi = enabled
	}
}

// WithCloseOnContextDone makes a cancelled context abort a running guest
// call. Enabled by default.
func WithCloseOnContextDone(enabled bool) Option {
	return func(c *executorConfig) {
		c.closeOnContextDone = enabled
	}
}

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(l *zap.Logger) Option {
	return func(c *executorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
