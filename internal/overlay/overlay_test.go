package overlay

import (
	"testing"
	"unsafe"

	"github.com/kestrel-re/vmthook/internal/closure"
)

// object is a minimal stand-in for a polymorphic instance: its first word
// is the table pointer.
type object struct {
	table *uintptr
}

func newTable(entries ...uintptr) *object {
	table := append(append([]uintptr{}, entries...), 0)
	return &object{table: &table[0]}
}

func firstWord(o *object) uintptr {
	return *(*uintptr)(unsafe.Pointer(o))
}

func TestNewClonesTableAndRewritesPointer(t *testing.T) {
	obj := newTable(0x10, 0x20, 0x30)
	original := firstWord(obj)

	ov, err := New(unsafe.Pointer(obj), DefaultScanCap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if ov.TableLen() != 3 {
		t.Errorf("TableLen() = %d, want 3", ov.TableLen())
	}
	if got := firstWord(obj); got == original {
		t.Error("expected the instance's first word to change to the clone's address")
	}
	fn, err := ov.OriginalFunction(1)
	if err != nil || fn != 0x20 {
		t.Errorf("OriginalFunction(1) = 0x%x, %v, want 0x20, nil", fn, err)
	}
}

func TestLayoutErrorWhenNoTerminatorFound(t *testing.T) {
	table := make([]uintptr, 8)
	for i := range table {
		table[i] = 0xDEAD // never zero
	}
	obj := &object{table: &table[0]}

	_, err := New(unsafe.Pointer(obj), 4)
	if err == nil {
		t.Fatal("expected a LayoutError")
	}
	if _, ok := err.(*LayoutError); !ok {
		t.Errorf("got %T, want *LayoutError", err)
	}
}

func TestInstallAndRestoreRoundTrip(t *testing.T) {
	obj := newTable(0x10, 0x20, 0x30)
	ov, err := New(unsafe.Pointer(obj), DefaultScanCap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entry := closure.Entry{Trampoline: 0xBEEF}
	if err := ov.Install(1, 0xBEEF, entry); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got, ok := ov.Lookup(1); !ok || got != entry {
		t.Errorf("Lookup(1) = %+v, %v, want %+v, true", got, ok, entry)
	}

	prior, err := ov.Restore(1)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if prior != entry {
		t.Errorf("Restore returned %+v, want %+v", prior, entry)
	}
	if _, ok := ov.Lookup(1); ok {
		t.Error("expected slot 1 to have no closure entry after Restore")
	}
	fn, err := ov.OriginalFunction(1)
	if err != nil || fn != 0x20 {
		t.Errorf("OriginalFunction(1) after restore = 0x%x, %v, want 0x20, nil", fn, err)
	}
}

func TestInstallOutOfRangeSlot(t *testing.T) {
	obj := newTable(0x10, 0x20)
	ov, err := New(unsafe.Pointer(obj), DefaultScanCap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ov.Install(2, 0xDEAD, closure.Entry{}); err == nil {
		t.Fatal("expected a RangeError installing slot 2 on a 2-slot table")
	}
}

func TestRetainReleaseTearsDownAtZero(t *testing.T) {
	obj := newTable(0x10)
	original := firstWord(obj)
	ov, err := New(unsafe.Pointer(obj), DefaultScanCap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ov.Retain()
	ov.Retain()
	if ov.Release() {
		t.Fatal("Release() reported teardown with one reference still outstanding")
	}
	if !ov.Release() {
		t.Fatal("Release() did not report teardown on the last reference")
	}
	if got := firstWord(obj); got != original {
		t.Errorf("first word after teardown = 0x%x, want original 0x%x", got, original)
	}
}
