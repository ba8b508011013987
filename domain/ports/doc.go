// Package ports defines interfaces for infrastructure operations.
// The call layer depends on these abstractions, and engine or parser adapters
// implement them.
package ports
