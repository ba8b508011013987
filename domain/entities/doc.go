// Package entities holds the domain types of the call layer: declared guest
// interfaces, the per-call trace, and the structured error and validation
// results shared with the host.
package entities
