// Package vmthook hooks entries of a C++-style virtual method table on a
// live object, diverting calls through that slot to a caller-supplied
// closure while leaving the object's other behavior untouched.
//
// A Hook is obtained by calling one of the HookN constructors (one per
// supported arity, 0 through 5) with the object's address, the slot index
// to intercept, and a closure of the matching shape. The underlying table
// is never modified in place: the first install on a given instance clones
// its table, swaps the instance's table pointer to the clone, and installs
// into the clone from then on, so concurrent readers of the original table
// are unaffected. Dropping every Hook for an instance restores its
// original table pointer.
package vmthook

import (
	"fmt"
	"unsafe"

	"github.com/kestrel-re/vmthook/internal/instreg"
	"github.com/kestrel-re/vmthook/internal/overlay"
	"github.com/kestrel-re/vmthook/internal/vlog"
)

// unsafePointerFromUintptr reinterprets a caller-supplied instance address
// as a pointer. The address names a live object inside a loaded dynamic
// library, never a Go-managed allocation, so there is no GC-moved-it-out-
// from-under-us concern; this is the one place the library accepts that
// uintptr-to-Pointer conversions outside a single expression are normally
// unsound.
func unsafePointerFromUintptr(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr) //nolint:govet
}

// Hook is the caller-visible lifetime token for one installed slot (spec.md
// §4.F). Exactly one Hook exists per successful install. Its zero value is
// not usable.
type Hook struct {
	ov      *overlay.Overlay
	slot    int
	dropped bool
}

// Slot returns the table index this hook occupies.
func (h *Hook) Slot() int { return h.slot }

// InstanceAddr returns the address of the object this hook was installed
// on.
func (h *Hook) InstanceAddr() uintptr { return h.ov.InstanceAddr() }

// Drop restores the slot to the original function and releases this hook's
// reference to the overlay, tearing the overlay down (restoring the
// instance's table pointer) if it was the last hook on that instance.
// Drop is idempotent; calling it more than once is a no-op after the
// first call.
func (h *Hook) Drop() error {
	if h.dropped {
		return nil
	}
	h.dropped = true

	instance := h.ov.InstanceAddr()
	if _, err := h.ov.Restore(h.slot); err != nil {
		return opError(fmt.Sprintf("drop slot %d for instance 0x%x", h.slot, instance), err)
	}
	if h.ov.Release() {
		instreg.Default().Forget(instance)
	}
	vlog.L.Debug("hook dropped", vlog.Addr("instance", uint64(instance)), vlog.Slot(h.slot))
	return nil
}

// resolveOverlay gets or creates the overlay for instance, retaining it on
// behalf of the caller's about-to-be-created Hook. Rollback of the retain
// is the caller's responsibility if a later install step fails.
func resolveOverlay(instance uintptr) (*overlay.Overlay, error) {
	ov, err := instreg.Default().GetOrCreate(instance, func() (*overlay.Overlay, error) {
		return overlay.New(unsafePointerFromUintptr(instance), overlay.DefaultScanCap)
	})
	if err != nil {
		return nil, err
	}
	ov.Retain()
	return ov, nil
}

// installRollback undoes a partially completed install (spec.md §4.F:
// "partial state must be rolled back").
func installRollback(ov *overlay.Overlay, slot int, storedClosure bool) {
	if storedClosure {
		ov.Restore(slot)
	}
	if ov.Release() {
		instreg.Default().Forget(ov.InstanceAddr())
	}
}
