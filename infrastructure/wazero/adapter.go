package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/guestcall/domain/ports"
)

// Instance adapts an instantiated wazero module to ports.GuestInstance.
type Instance struct {
	module api.Module
}

// NewInstance wraps mod.
func NewInstance(mod api.Module) *Instance {
	return &Instance{module: mod}
}

// Module returns the wrapped module.
func (i *Instance) Module() api.Module {
	return i.module
}

// Name returns the module name the runtime assigned.
func (i *Instance) Name() string {
	return i.module.Name()
}

// Memory implements ports.GuestInstance.
func (i *Instance) Memory(name string) (ports.GuestMemory, bool) {
	mem := i.module.ExportedMemory(name)
	if mem == nil {
		return nil, false
	}
	return &memory{mem: mem}, true
}

// Function implements ports.GuestInstance.
func (i *Instance) Function(name string) (ports.GuestFunction, bool) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, false
	}
	return &function{fn: fn}, true
}

var _ ports.GuestInstance = (*Instance)(nil)

type memory struct {
	mem api.Memory
}

func (m *memory) Size() uint32 {
	return m.mem.Size()
}

// Read returns a view of guest memory. The view is invalidated when the
// guest grows its memory, so callers copy what they keep.
func (m *memory) Read(offset, length uint32) ([]byte, bool) {
	return m.mem.Read(offset, length)
}

func (m *memory) Write(offset uint32, data []byte) bool {
	return m.mem.Write(offset, data)
}

type function struct {
	fn api.Function
}

func (f *function) Signature() ports.Signature {
	def := f.fn.Definition()
	return ports.Signature{
		Params:  valueTypes(def.ParamTypes()),
		Results: valueTypes(def.ResultTypes()),
	}
}

func (f *function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, params...)
}

// valueTypes converts wazero value types. Both use the WebAssembly binary
// format encodings.
func valueTypes(in []api.ValueType) []ports.ValueType {
	out := make([]ports.ValueType, len(in))
	for i, t := range in {
		out[i] = ports.ValueType(t)
	}
	return out
}
