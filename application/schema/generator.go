// Package schema generates JSON Schema documents for declaration formats.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/guestcall/domain/entities"
	domainerrors "github.com/reglet-dev/guestcall/domain/errors"
)

// GenerateSchema creates a JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12).
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, &domainerrors.SchemaError{
			Type: reflect.TypeOf(v).String(),
			Err:  fmt.Errorf("failed to marshal schema: %w", err),
		}
	}

	return jsonBytes, nil
}

// InterfaceSchema returns the schema of interface declaration documents, for
// tools that generate them.
func InterfaceSchema() ([]byte, error) {
	return GenerateSchema(&entities.Interface{})
}
