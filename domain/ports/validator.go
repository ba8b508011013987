package ports

import "github.com/reglet-dev/guestcall/domain/entities"

// DeclarationValidator checks that an interface declaration can be called
// through the marshalling layer.
type DeclarationValidator interface {
	// Validate reports every problem found in iface.
	Validate(iface *entities.Interface) (*entities.ValidationResult, error)
}
