package host

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reglet-dev/guestcall/domain/entities"
	derrors "github.com/reglet-dev/guestcall/domain/errors"
	"github.com/reglet-dev/guestcall/domain/ports"
	"github.com/reglet-dev/guestcall/internal/abi"
	"github.com/reglet-dev/guestcall/wireformat"
)

var i32Result = []ports.ValueType{ports.ValueTypeI32}

// callPlan is the resolved form of one declared operation.
type callPlan struct {
	op     *entities.Operation
	result wireformat.Codec // nil for unit operations
	shim   ports.Signature
	params []wireformat.Codec
}

func newCallPlan(reg *wireformat.Registry, op *entities.Operation) (*callPlan, error) {
	plan := &callPlan{
		op:     op,
		shim:   shimSignature(op),
		params: make([]wireformat.Codec, len(op.Params)),
	}
	for i, p := range op.Params {
		c, err := reg.Lookup(p.Shape)
		if err != nil {
			return nil, fmt.Errorf("operation %s: parameter %s: %w", op.Name, p.Name, err)
		}
		plan.params[i] = c
	}
	if op.HasResult() {
		c, err := reg.Lookup(op.ResultShape())
		if err != nil {
			return nil, fmt.Errorf("operation %s: result: %w", op.Name, err)
		}
		plan.result = c
	}
	return plan, nil
}

// shimSignature is the raw signature the shim of op must have: an address
// and a length per argument, and a locator address when op has a result.
func shimSignature(op *entities.Operation) ports.Signature {
	sig := ports.Signature{Params: make([]ports.ValueType, abi.ShimParamCount(len(op.Params)))}
	for i := range sig.Params {
		sig.Params[i] = ports.ValueTypeI32
	}
	if op.HasResult() {
		sig.Results = i32Result
	}
	return sig
}

// checkSignature reports a mismatch between fn's signature and want.
func checkSignature(name string, fn ports.GuestFunction, want ports.Signature) error {
	got := fn.Signature()
	if got.Matches(want.Params, want.Results) {
		return nil
	}
	return fmt.Errorf("%s has signature %s, want %s", name, got, want)
}

// marshaller runs the call sequence of one invocation. The caller holds the
// guest lock for its whole lifetime.
type marshaller struct {
	inst   ports.GuestInstance
	plan   *callPlan
	trace  *entities.CallTrace
	logger *zap.Logger
	cfg    *dispatcherConfig
}

func (m *marshaller) fail(kind derrors.Kind, detail string, err error) *derrors.CallError {
	return derrors.NewCallError(kind, m.plan.op.Name, m.trace.State(), detail, err)
}

func (m *marshaller) failArg(kind derrors.Kind, idx int, detail string, err error) *derrors.CallError {
	ce := m.fail(kind, detail, err)
	ce.ArgIndex = idx
	return ce
}

func (m *marshaller) run(ctx context.Context, args []any, into any) (any, error) {
	mem, err := m.resolveMemory()
	if err != nil {
		return nil, err
	}
	m.trace.Advance(entities.CallMemoryResolved)

	buf, err := m.negotiate(ctx)
	if err != nil {
		return nil, err
	}
	m.trace.BufferAddress = buf.base
	m.trace.Advance(entities.CallBufferObtained)

	payloads, err := m.encodeArguments(args)
	if err != nil {
		return nil, err
	}
	slots, err := m.writeArguments(mem, buf, payloads)
	if err != nil {
		return nil, err
	}
	m.trace.Slots = slots
	m.trace.Advance(entities.CallArgumentsWritten)

	locAddr, err := m.invokeShim(ctx, slots)
	if err != nil {
		return nil, err
	}
	m.trace.Advance(entities.CallInvoked)

	if m.plan.result == nil {
		m.trace.Advance(entities.CallDone)
		return nil, nil
	}

	loc, err := m.readLocator(mem, locAddr)
	if err != nil {
		return nil, err
	}
	m.trace.Result = &entities.ResultWindow{Address: loc.Address, Size: loc.Size}
	m.trace.Advance(entities.CallLocatorRead)

	payload, err := m.readPayload(mem, loc)
	if err != nil {
		return nil, err
	}
	m.trace.Advance(entities.CallPayloadRead)

	v, err := m.decodeResult(payload, into)
	if err != nil {
		return nil, err
	}
	m.trace.Advance(entities.CallDecoded)
	m.trace.Advance(entities.CallDone)
	return v, nil
}

func (m *marshaller) resolveMemory() (ports.GuestMemory, error) {
	mem, ok := m.inst.Memory(abi.ExportMemory)
	if !ok {
		return nil, m.fail(derrors.KindMemoryNotFound,
			fmt.Sprintf("guest does not export a memory named %q", abi.ExportMemory), nil)
	}
	return mem, nil
}

// inputBuffer is the region the guest offered for this call's arguments.
type inputBuffer struct {
	base     uint32
	capacity uint32
	bounded  bool
}

func (m *marshaller) negotiate(ctx context.Context) (inputBuffer, error) {
	var buf inputBuffer

	fn, ok := m.inst.Function(abi.ExportInputBufferAddress)
	if !ok {
		return buf, m.fail(derrors.KindBufferFunctionMissing,
			"guest does not export "+abi.ExportInputBufferAddress, nil)
	}
	base, err := m.callGetter(ctx, abi.ExportInputBufferAddress, fn)
	if err != nil {
		return buf, err
	}
	buf.base = base

	capFn, ok := m.inst.Function(abi.ExportInputBufferCapacity)
	if !ok {
		if m.cfg.requireCapacity {
			return buf, m.fail(derrors.KindBufferFunctionMissing,
				"guest does not export "+abi.ExportInputBufferCapacity, nil)
		}
		m.logger.Debug("input buffer negotiated", zap.Uint32("address", base))
		return buf, nil
	}
	capacity, err := m.callGetter(ctx, abi.ExportInputBufferCapacity, capFn)
	if err != nil {
		return buf, err
	}
	buf.capacity = capacity
	buf.bounded = true

	m.logger.Debug("input buffer negotiated",
		zap.Uint32("address", base),
		zap.Uint32("capacity", capacity))
	return buf, nil
}

// callGetter calls a zero-argument export returning one i32.
func (m *marshaller) callGetter(ctx context.Context, name string, fn ports.GuestFunction) (uint32, error) {
	if err := checkSignature(name, fn, ports.Signature{Results: i32Result}); err != nil {
		return 0, m.fail(derrors.KindSignatureMismatch, "", err)
	}
	res, err := fn.Call(ctx)
	if err != nil {
		return 0, m.fail(derrors.KindCallTrap, name+" trapped", trapCause(ctx, err))
	}
	if len(res) != 1 {
		return 0, m.fail(derrors.KindSignatureMismatch,
			fmt.Sprintf("%s returned %d values, want 1", name, len(res)), nil)
	}
	return uint32(res[0]), nil
}

// trapCause attaches the context error to a trap raised while the context
// was cancelled or past its deadline.
func trapCause(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	return err
}

// encodeArguments serializes every argument before any is written, so a
// value that cannot be encoded leaves guest memory untouched.
func (m *marshaller) encodeArguments(args []any) ([][]byte, error) {
	payloads := make([][]byte, len(args))
	for i, arg := range args {
		b, err := wireformat.Marshal(m.plan.params[i], arg)
		if err != nil {
			return nil, m.failArg(derrors.KindSerializationFailure, i,
				"parameter "+m.plan.op.Params[i].Name, err)
		}
		payloads[i] = b
	}
	return payloads, nil
}

// writeArguments lays the payloads out back to back from the buffer base.
// Empty payloads get a zero-length slot at the cursor. The whole layout is
// checked before the first byte is written.
func (m *marshaller) writeArguments(mem ports.GuestMemory, buf inputBuffer, payloads [][]byte) ([]entities.ArgumentSlot, error) {
	slots := make([]entities.ArgumentSlot, len(payloads))
	size := uint64(mem.Size())
	cursor := uint64(buf.base)

	for i, p := range payloads {
		end := cursor + uint64(len(p))
		if buf.bounded && end-uint64(buf.base) > uint64(buf.capacity) {
			return nil, m.failArg(derrors.KindInputBufferOverflow, i,
				fmt.Sprintf("arguments need %d bytes, input buffer holds %d", end-uint64(buf.base), buf.capacity), nil)
		}
		if end > size {
			return nil, m.failArg(derrors.KindPayloadWriteOutOfBounds, i,
				fmt.Sprintf("slot [%d, %d) exceeds memory of %d bytes", cursor, end, size), nil)
		}
		slots[i] = entities.ArgumentSlot{Address: uint32(cursor), Length: uint32(len(p))}
		cursor = end
	}

	for i, p := range payloads {
		if len(p) == 0 {
			continue
		}
		if !mem.Write(slots[i].Address, p) {
			return nil, m.failArg(derrors.KindPayloadWriteOutOfBounds, i,
				fmt.Sprintf("guest rejected write of %d bytes at %d", len(p), slots[i].Address), nil)
		}
	}

	m.logger.Debug("arguments written",
		zap.Int("count", len(slots)),
		zap.Uint64("bytes", cursor-uint64(buf.base)))
	return slots, nil
}

func (m *marshaller) invokeShim(ctx context.Context, slots []entities.ArgumentSlot) (uint32, error) {
	name := abi.ShimName(m.plan.op.Name)
	fn, ok := m.inst.Function(name)
	if !ok {
		return 0, m.fail(derrors.KindShimFunctionMissing, "guest does not export "+name, nil)
	}
	if err := checkSignature(name, fn, m.plan.shim); err != nil {
		return 0, m.fail(derrors.KindSignatureMismatch, "", err)
	}

	params := make([]uint64, 0, len(m.plan.shim.Params))
	for _, s := range slots {
		params = append(params, uint64(s.Address), uint64(s.Length))
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, m.fail(derrors.KindCallTrap, name+" trapped", trapCause(ctx, err))
	}
	if m.plan.result == nil {
		return 0, nil
	}
	if len(res) != 1 {
		return 0, m.fail(derrors.KindSignatureMismatch,
			fmt.Sprintf("%s returned %d values, want 1", name, len(res)), nil)
	}
	return uint32(res[0]), nil
}

func (m *marshaller) readLocator(mem ports.GuestMemory, addr uint32) (wireformat.OutputLocator, error) {
	if uint64(addr)+wireformat.LocatorSize > uint64(mem.Size()) {
		return wireformat.OutputLocator{}, m.fail(derrors.KindLocatorDecodeFailure,
			fmt.Sprintf("locator at %d lies outside memory of %d bytes", addr, mem.Size()), nil)
	}
	raw, ok := mem.Read(addr, wireformat.LocatorSize)
	if !ok {
		return wireformat.OutputLocator{}, m.fail(derrors.KindLocatorDecodeFailure,
			fmt.Sprintf("guest rejected read of locator at %d", addr), nil)
	}
	loc, err := wireformat.DecodeLocator(raw)
	if err != nil {
		return wireformat.OutputLocator{}, m.fail(derrors.KindLocatorDecodeFailure, "", err)
	}
	m.logger.Debug("result located", zap.Stringer("locator", loc))
	return loc, nil
}

// readPayload copies the result window out of guest memory. The window is
// checked against the memory size and the result limit before any byte of it
// is read.
func (m *marshaller) readPayload(mem ports.GuestMemory, loc wireformat.OutputLocator) ([]byte, error) {
	switch {
	case loc.Address < 0:
		return nil, m.fail(derrors.KindPayloadReadOutOfBounds,
			fmt.Sprintf("locator %s has a negative address", loc), nil)
	case loc.End() > uint64(mem.Size()):
		return nil, m.fail(derrors.KindPayloadReadOutOfBounds,
			fmt.Sprintf("locator %s exceeds memory of %d bytes", loc, mem.Size()), nil)
	case loc.Size > m.cfg.maxResultSize:
		return nil, m.fail(derrors.KindPayloadReadOutOfBounds,
			fmt.Sprintf("locator %s exceeds the result limit of %d bytes", loc, m.cfg.maxResultSize), nil)
	}

	view, ok := mem.Read(uint32(loc.Address), loc.Size)
	if !ok {
		return nil, m.fail(derrors.KindPayloadReadOutOfBounds,
			fmt.Sprintf("guest rejected read of %s", loc), nil)
	}
	payload := make([]byte, len(view))
	copy(payload, view)
	return payload, nil
}

func (m *marshaller) decodeResult(payload []byte, into any) (any, error) {
	if into != nil {
		if err := wireformat.UnmarshalInto(m.plan.result, payload, into); err != nil {
			return nil, m.fail(derrors.KindResultDecodeFailure, "", err)
		}
		return into, nil
	}
	v, err := wireformat.Unmarshal(m.plan.result, payload)
	if err != nil {
		return nil, m.fail(derrors.KindResultDecodeFailure, "", err)
	}
	return v, nil
}
