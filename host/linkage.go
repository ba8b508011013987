package host

import (
	"errors"
	"fmt"

	"github.com/reglet-dev/guestcall/domain/entities"
	derrors "github.com/reglet-dev/guestcall/domain/errors"
	"github.com/reglet-dev/guestcall/domain/ports"
	"github.com/reglet-dev/guestcall/internal/abi"
)

// CheckLinkage reports every export iface needs that inst is missing or has
// with the wrong signature. It calls no guest function. The result joins one
// *errors.CallError per problem, or is nil when the guest links.
func CheckLinkage(inst ports.GuestInstance, iface *entities.Interface) error {
	return checkLinkage(inst, iface, false)
}

func checkLinkage(inst ports.GuestInstance, iface *entities.Interface, requireCapacity bool) error {
	if inst == nil || iface == nil {
		return errors.New("linkage check needs a guest and an interface")
	}
	var problems []error

	if _, ok := inst.Memory(abi.ExportMemory); !ok {
		problems = append(problems, derrors.NewCallError(derrors.KindMemoryNotFound, "", entities.CallIdle,
			fmt.Sprintf("guest does not export a memory named %q", abi.ExportMemory), nil))
	}

	getter := ports.Signature{Results: i32Result}
	if err := checkExport(inst, "", abi.ExportInputBufferAddress, getter, derrors.KindBufferFunctionMissing, true); err != nil {
		problems = append(problems, err)
	}
	if err := checkExport(inst, "", abi.ExportInputBufferCapacity, getter, derrors.KindBufferFunctionMissing, requireCapacity); err != nil {
		problems = append(problems, err)
	}

	for i := range iface.Operations {
		op := &iface.Operations[i]
		if err := checkExport(inst, op.Name, abi.ShimName(op.Name), shimSignature(op), derrors.KindShimFunctionMissing, true); err != nil {
			problems = append(problems, err)
		}
	}
	return errors.Join(problems...)
}

// checkExport returns nil when name is exported with signature want, or is
// absent and not required.
func checkExport(inst ports.GuestInstance, op, name string, want ports.Signature, missing derrors.Kind, required bool) error {
	fn, ok := inst.Function(name)
	if !ok {
		if !required {
			return nil
		}
		return derrors.NewCallError(missing, op, entities.CallIdle, "guest does not export "+name, nil)
	}
	if err := checkSignature(name, fn, want); err != nil {
		return derrors.NewCallError(derrors.KindSignatureMismatch, op, entities.CallIdle, "", err)
	}
	return nil
}
