package host_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/reglet-dev/guestcall/domain/entities"
	derrors "github.com/reglet-dev/guestcall/domain/errors"
	"github.com/reglet-dev/guestcall/host"
	wazeroadapter "github.com/reglet-dev/guestcall/infrastructure/wazero"
	"github.com/reglet-dev/guestcall/internal/abi"
	"github.com/reglet-dev/guestcall/internal/testutil"
)

func TestMiddleware_Order(t *testing.T) {
	var order []string
	record := func(name string) host.Middleware {
		return func(next host.Invoker) host.Invoker {
			return func(ctx context.Context, inv *host.Invocation) (any, error) {
				order = append(order, name+" before")
				v, err := next(ctx, inv)
				order = append(order, name+" after")
				return v, err
			}
		}
	}

	g := newFakeGuest()
	g.Export(abi.ShimName("reset"), testutil.I32Sig(0, 0), nil)
	d := newDispatcher(t, host.WithMiddleware(record("first")), host.WithMiddleware(record("second")))

	_, err := d.Call(context.Background(), host.WrapInstance(g), "reset")
	require.NoError(t, err)
	assert.Equal(t, []string{"first before", "second before", "second after", "first after"}, order)
}

func TestMiddleware_SeesCompletedTrace(t *testing.T) {
	var seen entities.CallState
	inspect := func(next host.Invoker) host.Invoker {
		return func(ctx context.Context, inv *host.Invocation) (any, error) {
			v, err := next(ctx, inv)
			seen = inv.Trace.State()
			return v, err
		}
	}

	g := newFakeGuest()
	d := newDispatcher(t, host.WithMiddleware(inspect))

	_, err := d.Call(context.Background(), host.WrapInstance(g), "reset")
	testutil.RequireCallKind(t, err, derrors.KindShimFunctionMissing)
	assert.Equal(t, entities.CallFailed, seen)
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	g := newFakeGuest()
	g.Export(abi.ShimName("reset"), testutil.I32Sig(0, 0),
		func(context.Context, *testutil.FakeMemory, []uint64) ([]uint64, error) {
			panic("adapter bug")
		})

	var trace *entities.CallTrace
	d := newDispatcher(t,
		host.WithMiddleware(host.PanicRecoveryMiddleware()),
		host.WithObserver(func(tr *entities.CallTrace) { trace = tr }),
	)
	guest := host.WrapInstance(g)

	_, err := d.Call(context.Background(), guest, "reset")
	var pe *host.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "reset", pe.Operation)
	assert.Equal(t, "adapter bug", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, "panic", derrors.ToErrorDetail(err).Type)
	assert.Equal(t, entities.CallFailed, trace.State())

	// The guest lock was released by the panicking call.
	g.Export(abi.ShimName("reset"), testutil.I32Sig(0, 0), nil)
	_, err = d.Call(context.Background(), guest, "reset")
	assert.NoError(t, err)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	g := newFakeGuest()
	exportAdd(g)
	d := newDispatcher(t, host.WithMiddleware(host.LoggingMiddleware(logger)))
	guest := host.WrapInstance(g)

	_, err := d.Call(context.Background(), guest, "add", 1, 2)
	require.NoError(t, err)
	_, err = d.Call(context.Background(), guest, "tick")
	require.Error(t, err)

	assert.Equal(t, 2, logs.FilterMessage("invoking guest operation").Len())
	assert.Equal(t, 1, logs.FilterMessage("guest operation completed").Len())

	failed := logs.FilterMessage("guest operation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	fields := failed[0].ContextMap()
	assert.Equal(t, "tick", fields["operation"])
	assert.Equal(t, string(derrors.KindShimFunctionMissing), fields["kind"])
	assert.NotContains(t, fields, "guest", "wrapped instances are anonymous")
}

func TestLoggingMiddleware_GuestName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	g := newFakeGuest()
	exportAdd(g)
	d := newDispatcher(t, host.WithMiddleware(host.LoggingMiddleware(zap.New(core))))

	ctx := wazeroadapter.WithGuestName(context.Background(), "labyrinth")
	_, err := d.Call(ctx, host.WrapInstance(g), "add", 1, 2)
	require.NoError(t, err)

	entries := logs.FilterMessage("invoking guest operation").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "labyrinth", entries[0].ContextMap()["guest"])
}

func TestWithLogger_StepEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	g := newFakeGuest()
	exportAdd(g)
	d := newDispatcher(t, host.WithLogger(zap.New(core)))

	_, err := d.Call(context.Background(), host.WrapInstance(g), "add", 1, 2)
	require.NoError(t, err)

	for _, msg := range []string{"input buffer negotiated", "arguments written", "result located"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, "add", entries[0].ContextMap()["operation"])
	}
}
