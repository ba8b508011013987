package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/wasm-runtime/wat"
)

// FixtureWAT is a guest that follows the calling convention. Its input buffer
// sits at 1024 and it leaves locators at 512.
//
//	add(a: i32, b: i32) -> i32      sum written at 2048
//	echo(v: any) -> same shape      returns its argument bytes unchanged
//	reset()                         stores 1 at 4000, returns nothing
//	flag() -> u32                   reads the word at 4000
//	boom() -> u32                   traps
//	corrupt() -> u32                locator points past the end of memory
//	lost() -> u32                   locator address itself is out of bounds
const FixtureWAT = `(module
  (memory (export "memory") 1)
  (func (export "__wasm_get_input_buffer_address") (result i32)
    (i32.const 1024))
  (func (export "__wasm_add") (param i32 i32 i32 i32) (result i32)
    (i32.store (i32.const 2048)
      (i32.add (i32.load (local.get 0)) (i32.load (local.get 2))))
    (i32.store (i32.const 512) (i32.const 2048))
    (i32.store (i32.const 516) (i32.const 4))
    (i32.const 512))
  (func (export "__wasm_echo") (param i32 i32) (result i32)
    (i32.store (i32.const 512) (local.get 0))
    (i32.store (i32.const 516) (local.get 1))
    (i32.const 512))
  (func (export "__wasm_reset")
    (i32.store (i32.const 4000) (i32.const 1)))
  (func (export "__wasm_flag") (result i32)
    (i32.store (i32.const 512) (i32.const 4000))
    (i32.store (i32.const 516) (i32.const 4))
    (i32.const 512))
  (func (export "__wasm_boom") (result i32)
    unreachable)
  (func (export "__wasm_corrupt") (result i32)
    (i32.store (i32.const 512) (i32.const 65000))
    (i32.store (i32.const 516) (i32.const 1000))
    (i32.const 512))
  (func (export "__wasm_lost") (result i32)
    (i32.const 70000))
)`

// FixtureInterface declares the operations of FixtureWAT.
const FixtureInterface = `name: fixture
version: 1.0.0
operations:
  - name: add
    params:
      - {name: a, shape: i32}
      - {name: b, shape: i32}
    result: i32
  - name: echo
    params:
      - {name: value, shape: "{{ .vars.echo }}"}
    result: "{{ .vars.echo }}"
  - name: reset
  - name: flag
    result: u32
  - name: boom
    result: u32
  - name: corrupt
    result: u32
  - name: lost
    result: u32
`

// CompileWAT compiles WebAssembly text to binary.
func CompileWAT(t testing.TB, src string) []byte {
	t.Helper()
	bin, err := wat.Compile(src)
	require.NoError(t, err, "compile WAT")
	return bin
}

// InstantiateWAT compiles src and instantiates it in a fresh runtime that is
// closed when the test ends.
func InstantiateWAT(t testing.TB, src string) api.Module {
	t.Helper()
	ctx := context.Background()

	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, CompileWAT(t, src))
	require.NoError(t, err, "instantiate guest")
	return mod
}
