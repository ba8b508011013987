package wireformat

import (
	"fmt"

	"github.com/reglet-dev/guestcall/internal/abi"
)

// LocatorSize is the encoded size of an OutputLocator.
const LocatorSize = abi.LocatorSize

// OutputLocator tells the host where a guest left its serialized result.
// It is encoded like a record of an i32 followed by a u32.
type OutputLocator struct {
	Address int32
	Size    uint32
}

// End returns the exclusive end offset of the payload window.
func (l OutputLocator) End() uint64 {
	return uint64(uint32(l.Address)) + uint64(l.Size)
}

func (l OutputLocator) String() string {
	return fmt.Sprintf("{address: %d, size: %d}", l.Address, l.Size)
}

// EncodeLocator returns the wire form of l.
func EncodeLocator(l OutputLocator) []byte {
	e := &Encoder{buf: make([]byte, 0, LocatorSize)}
	e.PutU32(uint32(l.Address))
	e.PutU32(l.Size)
	return e.Bytes()
}

// DecodeLocator parses exactly LocatorSize bytes.
func DecodeLocator(b []byte) (OutputLocator, error) {
	d := NewDecoder(b)
	addr, err := d.U32()
	if err != nil {
		return OutputLocator{}, &DecodeError{Shape: "locator", Offset: d.Offset(), Err: err}
	}
	size, err := d.U32()
	if err != nil {
		return OutputLocator{}, &DecodeError{Shape: "locator", Offset: d.Offset(), Err: err}
	}
	if err := d.Finish(); err != nil {
		return OutputLocator{}, &DecodeError{Shape: "locator", Offset: d.Offset(), Err: err}
	}
	return OutputLocator{Address: int32(addr), Size: size}, nil
}
