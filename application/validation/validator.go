// Package validation checks interface declarations before any guest is called.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/guestcall/domain/entities"
	"github.com/reglet-dev/guestcall/domain/ports"
	"github.com/reglet-dev/guestcall/wireformat"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DeclarationValidator implements ports.DeclarationValidator.
type DeclarationValidator struct {
	external func(name string) bool
}

// ValidatorOption configures the DeclarationValidator.
type ValidatorOption func(*DeclarationValidator)

// WithExternalShapes accepts references to named shapes the declaration does
// not declare itself but known reports as provided elsewhere, typically by a
// codec registry.
func WithExternalShapes(known func(name string) bool) ValidatorOption {
	return func(v *DeclarationValidator) {
		v.external = known
	}
}

// NewDeclarationValidator creates a new validator.
func NewDeclarationValidator(opts ...ValidatorOption) ports.DeclarationValidator {
	v := &DeclarationValidator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reports every problem in iface. A declaration is usable only when
// the result is Valid.
func (v *DeclarationValidator) Validate(iface *entities.Interface) (*entities.ValidationResult, error) {
	if iface == nil {
		return nil, fmt.Errorf("nil interface declaration")
	}
	result := &entities.ValidationResult{Valid: true}

	if err := validate.Struct(iface); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate declaration: %w", err)
		}
		for _, fe := range verrs {
			result.Add(fieldPath(fe.Namespace()), tagMessage(fe))
		}
	}

	v.checkShapes(iface, result)
	for i := range iface.Operations {
		v.checkOperation(iface, i, result)
	}
	return result, nil
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "unique":
		return fmt.Sprintf("entries must have unique %s values", strings.ToLower(fe.Param()))
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

func (v *DeclarationValidator) checkShapes(iface *entities.Interface, result *entities.ValidationResult) {
	names := make([]string, 0, len(iface.Shapes))
	for name := range iface.Shapes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		decl := iface.Shapes[name]
		path := fmt.Sprintf("shapes[%s]", name)
		switch {
		case !wireformat.IsIdentifier(name):
			result.Add(path, fmt.Sprintf("shape name %q is not a plain identifier", name))
		case wireformat.IsBuiltin(name):
			result.Add(path, fmt.Sprintf("shape name %q is reserved", name))
		}

		switch {
		case decl.IsRecord() && decl.IsEnum():
			result.Add(path, "declares both fields and variants; a shape is either a record or an enum")
		case decl.IsRecord():
			seen := make(map[string]bool, len(decl.Fields))
			for i, f := range decl.Fields {
				fpath := fmt.Sprintf("%s.fields[%d]", path, i)
				if f.Name != "" && !wireformat.IsIdentifier(f.Name) {
					result.Add(fpath+".name", fmt.Sprintf("field name %q is not a plain identifier", f.Name))
				}
				if seen[f.Name] {
					result.Add(fpath+".name", fmt.Sprintf("duplicate field %q", f.Name))
				}
				seen[f.Name] = true
				v.checkShapeExpr(iface, fpath+".shape", f.Shape, result)
			}
			if cycle := wireformat.InlineCycle(name, declaredFields(iface)); cycle != nil {
				result.Add(path, fmt.Sprintf("record contains itself by value (%s); reference it through option or seq",
					strings.Join(cycle, " -> ")))
			}
		case decl.IsEnum():
			seen := make(map[string]bool, len(decl.Variants))
			for i, variant := range decl.Variants {
				vpath := fmt.Sprintf("%s.variants[%d]", path, i)
				if !wireformat.IsIdentifier(variant) {
					result.Add(vpath, fmt.Sprintf("variant %q is not a plain identifier", variant))
				}
				if seen[variant] {
					result.Add(vpath, fmt.Sprintf("duplicate variant %q", variant))
				}
				seen[variant] = true
			}
		default:
			result.Add(path, "declares neither fields nor variants")
		}
	}
}

// declaredFields lists the field shapes of the records iface declares.
func declaredFields(iface *entities.Interface) func(name string) ([]string, bool) {
	return func(name string) ([]string, bool) {
		decl, ok := iface.Shapes[name]
		if !ok || !decl.IsRecord() || decl.IsEnum() {
			return nil, false
		}
		exprs := make([]string, len(decl.Fields))
		for i, f := range decl.Fields {
			exprs[i] = f.Shape
		}
		return exprs, true
	}
}

func (v *DeclarationValidator) checkOperation(iface *entities.Interface, idx int, result *entities.ValidationResult) {
	op := &iface.Operations[idx]
	path := fmt.Sprintf("operations[%d]", idx)

	if op.Name != "" && !wireformat.IsIdentifier(op.Name) {
		result.Add(path+".name", fmt.Sprintf("operation name %q is not a plain identifier", op.Name))
	}

	seen := make(map[string]bool, len(op.Params))
	for i, p := range op.Params {
		ppath := fmt.Sprintf("%s.params[%d]", path, i)
		switch {
		case p.Receiver || p.Name == "self" || p.Name == "this":
			result.Add(ppath, "receiver parameters are not supported; declare the value as an explicit parameter")
		case p.Pattern != "":
			result.Add(ppath, fmt.Sprintf("destructuring pattern %q is not supported; bind the argument to a plain name", p.Pattern))
		case p.Name != "" && !wireformat.IsIdentifier(p.Name):
			result.Add(ppath+".name", fmt.Sprintf("parameter name %q is not a plain identifier", p.Name))
		}
		if p.Name != "" && seen[p.Name] {
			result.Add(ppath+".name", fmt.Sprintf("duplicate parameter %q", p.Name))
		}
		seen[p.Name] = true
		v.checkShapeExpr(iface, ppath+".shape", p.Shape, result)
	}

	if op.Result != "" {
		v.checkShapeExpr(iface, path+".result", op.Result, result)
	}
}

// checkShapeExpr reports unparsable expressions and references to undeclared
// shapes. Empty expressions are left to the required tag.
func (v *DeclarationValidator) checkShapeExpr(iface *entities.Interface, path, expr string, result *entities.ValidationResult) {
	if expr == "" {
		return
	}
	s, err := wireformat.ParseShape(expr)
	if err != nil {
		result.Add(path, err.Error())
		return
	}
	for _, name := range s.Named() {
		if _, ok := iface.Shapes[name]; ok {
			continue
		}
		if v.external == nil || !v.external(name) {
			result.Add(path, fmt.Sprintf("shape %q is not declared", name))
		}
	}
}
