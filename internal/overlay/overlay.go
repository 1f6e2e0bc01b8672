// Package overlay implements the per-instance vtable clone described in
// spec.md §4.D: it discovers an instance's function table, clones it,
// swaps the instance's table pointer to the clone, and lets callers
// install/restore individual slots in the clone while leaving the original
// table untouched.
package overlay

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/kestrel-re/vmthook/internal/closure"
	"github.com/kestrel-re/vmthook/internal/vlog"
)

// DefaultScanCap is the upper bound on table length scanned for a null
// terminator (spec.md §4.D construction step 2).
const DefaultScanCap = 4096

// LayoutError is returned by New when no null terminator is found within
// ScanCap entries.
type LayoutError struct {
	Instance uintptr
	ScanCap  int
}

func (e *LayoutError) Error() string {
	return "overlay: table at instance is not null-terminated within scan cap"
}

// RangeError is returned by Install/Restore/OriginalFunction when a slot
// index is not within the discovered table length.
type RangeError struct {
	Slot, TableLen int
}

func (e *RangeError) Error() string {
	return "overlay: slot out of range"
}

// Overlay is the per-instance clone of a function table. The zero value is
// not usable; construct with New.
type Overlay struct {
	mu sync.Mutex

	instance      unsafe.Pointer // address of the object's first word
	originalTable uintptr        // borrowed; never freed by this package
	cloneTable    []uintptr      // heap-owned, same length as the original
	pinner        runtime.Pinner // keeps cloneTable's backing array from being collected

	closures *closure.Registry

	refs int32 // outstanding hook handles; Overlay tears down at zero
}

// New discovers the function table at instance, clones it, and rewrites the
// instance's first word to point at the clone. scanCap bounds the search
// for the table's null terminator; pass DefaultScanCap unless a caller has
// a reason to scan further or less.
func New(instance unsafe.Pointer, scanCap int) (*Overlay, error) {
	originalTable := atomic.LoadUintptr((*uintptr)(instance))

	length, ok := scanForTerminator(originalTable, scanCap)
	if !ok {
		return nil, &LayoutError{Instance: uintptr(instance), ScanCap: scanCap}
	}

	clone := make([]uintptr, length)
	src := unsafe.Slice((*uintptr)(unsafe.Pointer(originalTable)), length)
	copy(clone, src)

	o := &Overlay{
		instance:      instance,
		originalTable: originalTable,
		cloneTable:    clone,
		closures:      closure.New(),
		refs:          0,
	}
	if length > 0 {
		o.pinner.Pin(&clone[0])
	}

	// Single pointer-width store: naturally atomic on an aligned address.
	atomic.StorePointer((*unsafe.Pointer)(instance), unsafe.Pointer(&clone[0]))

	vlog.L.Debug("overlay created",
		vlog.Addr("instance", uint64(uintptr(instance))),
		vlog.Addr("original_table", uint64(originalTable)),
		vlog.Addr("clone_table", uint64(uintptr(unsafe.Pointer(&clone[0])))),
	)

	return o, nil
}

func scanForTerminator(table uintptr, cap int) (int, bool) {
	if table == 0 {
		return 0, false
	}
	for i := 0; i < cap; i++ {
		entry := *(*uintptr)(unsafe.Pointer(table + uintptr(i)*unsafe.Sizeof(uintptr(0))))
		if entry == 0 {
			return i, true
		}
	}
	return 0, false
}

// TableLen returns the fixed length discovered at construction.
func (o *Overlay) TableLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.cloneTable)
}

// Retain increments the outstanding hook-handle count.
func (o *Overlay) Retain() {
	atomic.AddInt32(&o.refs, 1)
}

// Release decrements the outstanding hook-handle count and tears the
// overlay down (restoring the instance's original table pointer) if this
// was the last reference. Returns true if teardown happened.
func (o *Overlay) Release() bool {
	if atomic.AddInt32(&o.refs, -1) == 0 {
		o.teardown()
		return true
	}
	return false
}

func (o *Overlay) teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	atomic.StorePointer((*unsafe.Pointer)(o.instance), unsafe.Pointer(o.originalTable))
	o.pinner.Unpin()

	vlog.L.Debug("overlay torn down",
		vlog.Addr("instance", uint64(uintptr(o.instance))),
		vlog.Addr("original_table", uint64(o.originalTable)),
	)
}

// Install writes fn into the clone table at slot and records the closure
// registry entry for it.
func (o *Overlay) Install(slot int, fn uintptr, entry closure.Entry) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if slot < 0 || slot >= len(o.cloneTable) {
		return &RangeError{Slot: slot, TableLen: len(o.cloneTable)}
	}
	o.cloneTable[slot] = fn
	o.closures.Store(slot, entry)
	return nil
}

// Restore writes the original function pointer back into the clone table
// at slot and drops the closure registry entry, returning it so the caller
// can free the boxed closure it references.
func (o *Overlay) Restore(slot int) (closure.Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if slot < 0 || slot >= len(o.cloneTable) {
		return closure.Entry{}, &RangeError{Slot: slot, TableLen: len(o.cloneTable)}
	}
	var entry closure.Entry
	if o.closures.Has(slot) {
		entry = o.closures.Lookup(slot)
	}
	o.cloneTable[slot] = *(*uintptr)(unsafe.Pointer(o.originalTable + uintptr(slot)*unsafe.Sizeof(uintptr(0))))
	o.closures.Remove(slot)
	return entry, nil
}

// OriginalFunction returns the address originally stored at slot, ignoring
// any hook currently installed over it.
func (o *Overlay) OriginalFunction(slot int) (uintptr, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if slot < 0 || slot >= len(o.cloneTable) {
		return 0, &RangeError{Slot: slot, TableLen: len(o.cloneTable)}
	}
	return *(*uintptr)(unsafe.Pointer(o.originalTable + uintptr(slot)*unsafe.Sizeof(uintptr(0)))), nil
}

// Lookup returns the closure registry entry for slot under the overlay
// lock, for use by the generic dispatcher (spec.md §4.G step 2). The lock
// is released before this returns; the caller must not assume the entry
// stays valid past a concurrent Restore, beyond the guarantee that the
// boxed closure itself is not freed while a dispatch is in flight (the
// caller's drop ordering is responsible for that, per spec.md §4.D).
func (o *Overlay) Lookup(slot int) (closure.Entry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closures.Has(slot) {
		return closure.Entry{}, false
	}
	return o.closures.Lookup(slot), true
}

// InstanceAddr returns the raw instance address this overlay was built for.
func (o *Overlay) InstanceAddr() uintptr {
	return uintptr(o.instance)
}
