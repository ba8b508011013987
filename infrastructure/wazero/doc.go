// Package wazero adapts wazero modules to the guest ports used by the call
// layer.
//
// An Instance exposes a module's exported memory and functions through
// ports.GuestInstance, so the marshalling code never touches the engine API
// directly:
//
//	mod, err := runtime.Instantiate(ctx, wasmBytes)
//	if err != nil {
//	    return err
//	}
//	guest := wazero.NewInstance(mod)
//	mem, ok := guest.Memory("memory")
package wazero
