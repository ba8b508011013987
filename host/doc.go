// Package host calls operations exported by sandboxed WebAssembly guests.
//
// Every call follows the same sequence against the guest's linear memory:
// resolve the exported memory, ask the guest where the input buffer is,
// write each serialized argument there, invoke the operation's shim with the
// raw address and length of every argument, then read back the output
// locator and the result payload it points to. Values cross the boundary in
// the wireformat encoding.
//
// The Dispatcher drives that sequence for the operations of an interface
// declaration, usually produced by a Loader. Guests come from an Executor,
// from NewGuest over a module instantiated elsewhere, or from WrapInstance
// over any ports.GuestInstance.
package host
