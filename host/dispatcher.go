package host

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/reglet-dev/guestcall/application/validation"
	"github.com/reglet-dev/guestcall/domain/entities"
	derrors "github.com/reglet-dev/guestcall/domain/errors"
	"github.com/reglet-dev/guestcall/wireformat"
)

// Invocation is one call travelling through the middleware chain.
type Invocation struct {
	// Guest is the target guest.
	Guest *Guest

	// Into is the decode target of CallInto, nil for Call.
	Into any

	// Trace records the call's progress. It is complete once the innermost
	// invoker returns.
	Trace *entities.CallTrace

	// Operation is the operation name.
	Operation string

	// Args are the argument values in parameter order.
	Args []any
}

// Invoker performs an invocation and returns the decoded result.
type Invoker func(ctx context.Context, inv *Invocation) (any, error)

// Middleware wraps an Invoker to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Invoker) Invoker

// Dispatcher calls the operations of one interface on guests that implement it.
// Its operation table is immutable once built, so a Dispatcher is safe for
// concurrent use across guests.
type Dispatcher struct {
	iface    *entities.Interface
	registry *wireformat.Registry
	plans    map[string]*callPlan
	invoke   Invoker
	cfg      dispatcherConfig
}

// NewDispatcher validates iface, resolves a codec for every parameter and
// result, and builds the middleware chain. iface must not be modified
// afterwards.
//
// Example usage:
//
//	d, err := NewDispatcher(iface,
//	    WithMiddleware(PanicRecoveryMiddleware(), LoggingMiddleware(logger)),
//	)
//	sum, err := d.Call(ctx, guest, "add", 3, 4)
func NewDispatcher(iface *entities.Interface, opts ...DispatcherOption) (*Dispatcher, error) {
	if iface == nil {
		return nil, errors.New("nil interface declaration")
	}
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := cfg.registry
	if reg == nil {
		reg = wireformat.NewRegistry()
	}

	res, err := validation.NewDeclarationValidator(validation.WithExternalShapes(reg.Has)).Validate(iface)
	if err != nil {
		return nil, &derrors.DeclarationError{Interface: iface.Name, Err: err}
	}
	if !res.Valid {
		return nil, &derrors.DeclarationError{Interface: iface.Name, Problems: res.Errors}
	}

	if err := registerShapes(reg, iface.Shapes); err != nil {
		return nil, &derrors.DeclarationError{Interface: iface.Name, Err: err}
	}

	plans := make(map[string]*callPlan, len(iface.Operations))
	for i := range iface.Operations {
		plan, err := newCallPlan(reg, &iface.Operations[i])
		if err != nil {
			return nil, &derrors.DeclarationError{Interface: iface.Name, Err: err}
		}
		plans[plan.op.Name] = plan
	}

	d := &Dispatcher{
		iface:    iface,
		registry: reg,
		plans:    plans,
		cfg:      cfg,
	}

	// Apply middleware in reverse order so the first one wraps outermost.
	invoke := d.call
	for i := len(cfg.middleware) - 1; i >= 0; i-- {
		invoke = cfg.middleware[i](invoke)
	}
	d.invoke = invoke
	return d, nil
}

// registerShapes adds the declared named shapes to reg. Names reg already
// knows are left alone.
func registerShapes(reg *wireformat.Registry, shapes map[string]entities.ShapeDecl) error {
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if reg.Has(name) {
			continue
		}
		decl := shapes[name]
		var err error
		if decl.IsEnum() {
			err = reg.RegisterEnum(name, decl.Variants)
		} else {
			fields := make([]wireformat.Field, len(decl.Fields))
			for i, f := range decl.Fields {
				fields[i] = wireformat.Field{Name: f.Name, Shape: f.Shape}
			}
			err = reg.RegisterRecord(name, fields)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Interface returns the declaration the dispatcher was built from.
func (d *Dispatcher) Interface() *entities.Interface {
	return d.iface
}

// Registry returns the codec registry holding the interface's shapes.
func (d *Dispatcher) Registry() *wireformat.Registry {
	return d.registry
}

// Has reports whether op is a declared operation.
func (d *Dispatcher) Has(op string) bool {
	_, ok := d.plans[op]
	return ok
}

// Call invokes op on g with args and returns the decoded result: canonical
// values as produced by wireformat, or nil for unit operations.
func (d *Dispatcher) Call(ctx context.Context, g *Guest, op string, args ...any) (any, error) {
	return d.dispatch(ctx, &Invocation{Guest: g, Operation: op, Args: args})
}

// CallInto invokes op on g and decodes the result into out, which must be a
// non-nil pointer. out may be nil to discard the result.
func (d *Dispatcher) CallInto(ctx context.Context, g *Guest, op string, out any, args ...any) error {
	if out != nil {
		rv := reflect.ValueOf(out)
		if rv.Kind() != reflect.Pointer || rv.IsNil() {
			return fmt.Errorf("result target must be a non-nil pointer, got %T", out)
		}
	}
	_, err := d.dispatch(ctx, &Invocation{Guest: g, Operation: op, Args: args, Into: out})
	return err
}

// CheckLinkage runs the linkage pre-flight for g against the dispatcher's
// interface, honouring WithRequireCapacity.
func (d *Dispatcher) CheckLinkage(g *Guest) error {
	if g == nil {
		return errors.New("nil guest")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return checkLinkage(g.inst, d.iface, d.cfg.requireCapacity)
}

func (d *Dispatcher) dispatch(ctx context.Context, inv *Invocation) (any, error) {
	inv.Trace = entities.NewCallTrace(inv.Operation)
	v, err := d.invoke(ctx, inv)
	if err != nil && inv.Trace.State() != entities.CallFailed {
		inv.Trace.Fail(err)
	}
	inv.Trace.Finish()
	if d.cfg.observer != nil {
		d.cfg.observer(inv.Trace)
	}
	return v, err
}

// call is the innermost invoker.
func (d *Dispatcher) call(ctx context.Context, inv *Invocation) (any, error) {
	v, err := d.run(ctx, inv)
	if err != nil {
		inv.Trace.Fail(err)
		return nil, err
	}
	return v, nil
}

func (d *Dispatcher) run(ctx context.Context, inv *Invocation) (any, error) {
	plan, ok := d.plans[inv.Operation]
	if !ok {
		return nil, derrors.NewCallError(derrors.KindUnknownOperation, inv.Operation, entities.CallIdle,
			fmt.Sprintf("interface %s declares no such operation", d.iface.Name), nil)
	}
	if len(inv.Args) != len(plan.params) {
		return nil, derrors.NewCallError(derrors.KindArgumentCountMismatch, inv.Operation, entities.CallIdle,
			fmt.Sprintf("got %d arguments, want %d", len(inv.Args), len(plan.params)), nil)
	}
	if inv.Guest == nil {
		return nil, errors.New("nil guest")
	}

	inv.Guest.mu.Lock()
	defer inv.Guest.mu.Unlock()

	m := &marshaller{
		inst:   inv.Guest.inst,
		plan:   plan,
		trace:  inv.Trace,
		logger: d.cfg.logger.With(zap.String("operation", plan.op.Name)),
		cfg:    &d.cfg,
	}
	return m.run(ctx, inv.Args, inv.Into)
}
