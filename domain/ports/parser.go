package ports

import "github.com/reglet-dev/guestcall/domain/entities"

// InterfaceParser parses a raw declaration document into an Interface.
type InterfaceParser interface {
	// Parse unmarshals YAML or JSON bytes into an Interface.
	Parse(data []byte) (*entities.Interface, error)
}
