// Package abi holds the export names and fixed sizes that make up the
// host/guest calling convention.
package abi

import "strings"

// Guest exports every conforming module must provide.
const (
	// ExportMemory is the linear memory the host reads and writes.
	ExportMemory = "memory"

	// ExportInputBufferAddress returns the address at which the host may write
	// the serialized arguments of the current call.
	// Signature: __wasm_get_input_buffer_address() -> i32
	ExportInputBufferAddress = "__wasm_get_input_buffer_address"

	// ExportInputBufferCapacity optionally reports how many bytes are free at
	// the input buffer address.
	// Signature: __wasm_get_input_buffer_capacity() -> i32
	ExportInputBufferCapacity = "__wasm_get_input_buffer_capacity"

	// ShimPrefix is prepended to an operation name to form its shim export.
	ShimPrefix = "__wasm_"
)

// LocatorSize is the encoded size of an output locator: an i32 address
// followed by a u32 size.
const LocatorSize = 8

// ShimName returns the export name of the shim for operation op.
func ShimName(op string) string {
	return ShimPrefix + op
}

// OperationFromShim reports the operation name encoded in a shim export name.
// The buffer exports share the prefix and are not operations.
func OperationFromShim(export string) (string, bool) {
	if export == ExportInputBufferAddress || export == ExportInputBufferCapacity {
		return "", false
	}
	op, ok := strings.CutPrefix(export, ShimPrefix)
	if !ok || op == "" {
		return "", false
	}
	return op, true
}

// ShimParamCount is the number of raw i32 parameters a shim takes for an
// operation with argCount arguments: one address and one length per argument.
func ShimParamCount(argCount int) int {
	return 2 * argCount
}
