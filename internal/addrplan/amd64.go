//go:build amd64

package addrplan

import (
	"encoding/binary"
	"unsafe"
)

// evaluateArchAction implements the two steps the reference tool supported
// on x86-64: chasing a RIP-relative call/lea displacement, and dereferencing
// a pointer-sized value. Everything else (the ARM64 page-and-offset family)
// is not implemented on this architecture.
func evaluateArchAction(action Action, address uint64) (uint64, bool, error) {
	switch action.Kind {
	case ActionResolveRelative:
		next, err := resolveRelativeAddress(address, uint64(action.Offset))
		return next, true, err

	case ActionDereference:
		return dereference(address), true, nil

	default:
		return 0, false, nil
	}
}

// resolveRelativeAddress reads the 32-bit little-endian displacement stored
// offset bytes into the instruction at address and resolves it the way an
// x86-64 RIP-relative operand does: relative to the address immediately
// after the 4-byte displacement field itself.
func resolveRelativeAddress(address, offset uint64) (uint64, error) {
	disp := int32(readUint32(address + offset))
	inside, err := checkedAddSigned(address, int64(disp))
	if err != nil {
		return 0, err
	}
	return checkedAddSigned(inside, int64(offset)+4)
}

func dereference(address uint64) uint64 {
	return uint64(*(*uintptr)(unsafe.Pointer(uintptr(address))))
}

func readUint32(address uint64) uint32 {
	var buf [4]byte
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(address))), 4)
	copy(buf[:], src)
	return binary.LittleEndian.Uint32(buf[:])
}
