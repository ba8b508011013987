package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/reglet-dev/guestcall/domain/ports"
)

// FakeGuest is an in-memory ports.GuestInstance. It records every memory
// access and function call in Events, in order.
type FakeGuest struct {
	mem    *FakeMemory
	funcs  map[string]*FakeFunction
	events []string
	mu     sync.Mutex
}

// NewFakeGuest returns a guest with memSize bytes of memory exported as
// "memory". A negative size exports no memory.
func NewFakeGuest(memSize int) *FakeGuest {
	g := &FakeGuest{funcs: make(map[string]*FakeFunction)}
	if memSize >= 0 {
		g.mem = &FakeMemory{guest: g, Data: make([]byte, memSize)}
	}
	return g
}

// Mem returns the guest memory, or nil.
func (g *FakeGuest) Mem() *FakeMemory {
	return g.mem
}

// Events returns a copy of the recorded events.
func (g *FakeGuest) Events() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.events...)
}

func (g *FakeGuest) record(format string, args ...any) {
	g.mu.Lock()
	g.events = append(g.events, fmt.Sprintf(format, args...))
	g.mu.Unlock()
}

// Export registers a function. impl may be nil for a function that returns
// no results.
func (g *FakeGuest) Export(name string, sig ports.Signature, impl FakeImpl) *FakeFunction {
	f := &FakeFunction{guest: g, name: name, sig: sig, impl: impl}
	g.funcs[name] = f
	return f
}

// Memory implements ports.GuestInstance.
func (g *FakeGuest) Memory(name string) (ports.GuestMemory, bool) {
	g.record("memory %s", name)
	if g.mem == nil || name != "memory" {
		return nil, false
	}
	return g.mem, true
}

// Function implements ports.GuestInstance.
func (g *FakeGuest) Function(name string) (ports.GuestFunction, bool) {
	f, ok := g.funcs[name]
	if !ok {
		return nil, false
	}
	return f, true
}

// FakeImpl is the body of a fake guest function.
type FakeImpl func(ctx context.Context, mem *FakeMemory, params []uint64) ([]uint64, error)

// FakeFunction is an exported fake function.
type FakeFunction struct {
	guest *FakeGuest
	impl  FakeImpl
	name  string
	sig   ports.Signature
	Calls [][]uint64
}

// Signature implements ports.GuestFunction.
func (f *FakeFunction) Signature() ports.Signature {
	return f.sig
}

// Call implements ports.GuestFunction.
func (f *FakeFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	f.guest.record("call %s %v", f.name, params)
	f.Calls = append(f.Calls, append([]uint64(nil), params...))
	if f.impl == nil {
		return nil, nil
	}
	return f.impl(ctx, f.guest.mem, params)
}

// FakeMemory is a byte slice with bounds checks.
type FakeMemory struct {
	guest *FakeGuest
	Data  []byte
}

// Size implements ports.GuestMemory.
func (m *FakeMemory) Size() uint32 {
	return uint32(len(m.Data))
}

// Read implements ports.GuestMemory.
func (m *FakeMemory) Read(offset, length uint32) ([]byte, bool) {
	m.guest.record("read %d+%d", offset, length)
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.Data)) {
		return nil, false
	}
	return m.Data[offset:end], true
}

// Write implements ports.GuestMemory.
func (m *FakeMemory) Write(offset uint32, data []byte) bool {
	m.guest.record("write %d+%d", offset, len(data))
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(m.Data)) {
		return false
	}
	copy(m.Data[offset:end], data)
	return true
}

// Poke writes bytes without recording an event, for test setup.
func (m *FakeMemory) Poke(offset uint32, data []byte) {
	copy(m.Data[offset:], data)
}

// I32Sig returns a signature of params i32 parameters and results i32
// results.
func I32Sig(params, results int) ports.Signature {
	sig := ports.Signature{
		Params:  make([]ports.ValueType, params),
		Results: make([]ports.ValueType, results),
	}
	for i := range sig.Params {
		sig.Params[i] = ports.ValueTypeI32
	}
	for i := range sig.Results {
		sig.Results[i] = ports.ValueTypeI32
	}
	return sig
}

// Returns is a FakeImpl that returns fixed results.
func Returns(results ...uint64) FakeImpl {
	return func(context.Context, *FakeMemory, []uint64) ([]uint64, error) {
		return results, nil
	}
}
