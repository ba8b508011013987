package host

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	derrors "github.com/reglet-dev/guestcall/domain/errors"
)

// PanicError reports a panic raised while a call was in flight, typically by
// a host-supplied codec or engine adapter.
type PanicError struct {
	Value     any
	Operation string
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("call %s: panic: %v", e.Operation, e.Value)
}

// ToErrorDetail implements errors.DetailedError.
func (e *PanicError) ToErrorDetail() *derrors.ErrorDetail {
	return &derrors.ErrorDetail{
		Message: e.Error(),
		Type:    "panic",
		Details: map[string]any{"operation": e.Operation},
	}
}

// PanicRecoveryMiddleware returns a middleware that turns panics into
// *PanicError instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, inv *Invocation) (v any, err error) {
			defer func() {
				if r := recover(); r != nil {
					v = nil
					err = &PanicError{Operation: inv.Operation, Value: r, Stack: debug.Stack()}
				}
			}()
			return next(ctx, inv)
		}
	}
}

// LoggingMiddleware returns a middleware that logs every call at debug level
// and failures at warn level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Invoker) Invoker {
		return func(ctx context.Context, inv *Invocation) (any, error) {
			fields := []zap.Field{
				zap.String("operation", inv.Operation),
				zap.Int("args", len(inv.Args)),
			}
			if name := guestName(ctx, inv.Guest); name != "" {
				fields = append(fields, zap.String("guest", name))
			}
			log := logger.With(fields...)
			log.Debug("invoking guest operation")

			v, err := next(ctx, inv)

			elapsed := zap.Skip()
			if inv.Trace != nil {
				elapsed = zap.Duration("elapsed", time.Since(inv.Trace.Started))
			}
			if err != nil {
				kind, _ := derrors.KindOf(err)
				log.Warn("guest operation failed",
					zap.String("kind", string(kind)),
					zap.Error(err),
					elapsed)
				return v, err
			}
			log.Debug("guest operation completed", elapsed)
			return v, nil
		}
	}
}
