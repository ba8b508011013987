package host

import (
	"context"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/guestcall/domain/ports"
	wazeroadapter "github.com/reglet-dev/guestcall/infrastructure/wazero"
	"github.com/reglet-dev/guestcall/internal/abi"
)

// Guest is an instantiated guest module the dispatcher can call into.
// It admits one call sequence at a time: concurrent callers wait for the
// sequence in progress to finish.
type Guest struct {
	inst   ports.GuestInstance
	module api.Module
	name   string
	mu     sync.Mutex
}

// NewGuest wraps a module instantiated by a wazero runtime the caller owns.
func NewGuest(mod api.Module) *Guest {
	return &Guest{
		inst:   wazeroadapter.NewInstance(mod),
		module: mod,
		name:   mod.Name(),
	}
}

// WrapInstance wraps any engine adapter.
func WrapInstance(inst ports.GuestInstance) *Guest {
	return &Guest{inst: inst}
}

// Instance returns the engine-neutral view of the guest.
func (g *Guest) Instance() ports.GuestInstance {
	return g.inst
}

// Name returns the module name, empty for anonymous modules and wrapped
// instances.
func (g *Guest) Name() string {
	return g.name
}

// Module returns the wazero module, or nil when the guest wraps another engine.
func (g *Guest) Module() api.Module {
	return g.module
}

// Shims lists the operations the guest exports shims for, sorted. Wrapped
// instances cannot enumerate their exports and report none.
func (g *Guest) Shims() []string {
	if g.module == nil {
		return nil
	}
	var ops []string
	for name := range g.module.ExportedFunctionDefinitions() {
		if op, ok := abi.OperationFromShim(name); ok {
			ops = append(ops, op)
		}
	}
	slices.Sort(ops)
	return ops
}

// guestName prefers a name carried by ctx over the module name.
func guestName(ctx context.Context, g *Guest) string {
	if g != nil && g.module != nil {
		return wazeroadapter.GetGuestName(ctx, g.module)
	}
	name, _ := wazeroadapter.GuestNameFromContext(ctx)
	return name
}

// Close closes the underlying wazero module. It waits for a call in progress.
func (g *Guest) Close(ctx context.Context) error {
	if g.module == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.module.Close(ctx)
}
