package vmthook

import (
	"testing"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/kestrel-re/vmthook/internal/dispatch"
)

// vtObject is a minimal stand-in for a C++-style polymorphic object: its
// first field is the function table pointer, matching the Itanium layout
// this package assumes.
type vtObject struct {
	vtable *uintptr
}

// buildVTable wires up a null-terminated table of raw callable addresses
// for fns, each turned into a real native-callable address via
// purego.NewCallback so the trampolines this package emits can indirectly
// call them exactly as they would a target library's exported functions.
func buildVTable(t *testing.T, fns ...interface{}) *vtObject {
	t.Helper()
	table := make([]uintptr, len(fns)+1)
	for i, fn := range fns {
		table[i] = uintptr(purego.NewCallback(fn))
	}
	table[len(fns)] = 0
	obj := &vtObject{vtable: &table[0]}
	t.Cleanup(func() { _ = table }) // keep table alive for the test's duration
	return obj
}

func firstWord(obj *vtObject) uintptr {
	return *(*uintptr)(unsafe.Pointer(obj))
}

func TestHook1IdentityCallsOriginal(t *testing.T) {
	f0Called := false
	f1Called := false
	f0 := func(this *vtObject, a int32) int32 { f0Called = true; return a + 1 }
	f1 := func(this *vtObject, a int32) int32 { f1Called = true; return a * 2 }

	obj := buildVTable(t, f0, f1)
	original := firstWord(obj)

	hook, err := Hook1[vtObject, int32, int32](obj, 1, func(ctx *dispatch.FuncContext1[int32, vtObject, int32], this *vtObject, a int32) int32 {
		return ctx.CallOriginal(this, a)
	})
	if err != nil {
		t.Fatalf("Hook1: %v", err)
	}

	got := callSlot1(obj, 1, 42)
	if got != 84 {
		t.Errorf("slot 1 returned %d, want 84", got)
	}
	if f1Called == false {
		t.Error("expected original slot 1 function to run via CallOriginal")
	}
	_ = f0Called

	if err := hook.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if got := firstWord(obj); got != original {
		t.Errorf("table pointer after drop = 0x%x, want original 0x%x", got, original)
	}
}

func TestHook1ConstantOverride(t *testing.T) {
	f0 := func(this *vtObject, a int32) int32 { return a + 1 }
	obj := buildVTable(t, f0)

	hook, err := Hook1[vtObject, int32, int32](obj, 0, func(ctx *dispatch.FuncContext1[int32, vtObject, int32], this *vtObject, a int32) int32 {
		return 7
	})
	if err != nil {
		t.Fatalf("Hook1: %v", err)
	}

	if got := callSlot1(obj, 0, 1000); got != 7 {
		t.Errorf("slot 0 returned %d, want 7", got)
	}

	if err := hook.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if got := callSlot1(obj, 0, 1000); got != 1001 {
		t.Errorf("slot 0 after drop returned %d, want 1001", got)
	}
}

func TestHookOutOfRangeSlotLeavesTableUntouched(t *testing.T) {
	f0 := func(this *vtObject, a int32) int32 { return a }
	obj := buildVTable(t, f0)
	original := firstWord(obj)

	_, err := Hook1[vtObject, int32, int32](obj, 4, func(ctx *dispatch.FuncContext1[int32, vtObject, int32], this *vtObject, a int32) int32 {
		return a
	})
	if err == nil {
		t.Fatal("expected an error installing on an out-of-range slot")
	}
	if got := firstWord(obj); got != original {
		t.Errorf("table pointer changed despite failed install: got 0x%x, want 0x%x", got, original)
	}
}

// callSlot1 reads the current function at slot through obj's (possibly
// hooked) table and calls it, mimicking what a virtual dispatch against the
// real object would do.
func callSlot1(obj *vtObject, slot int, a int32) int32 {
	table := unsafe.Slice(obj.vtable, slot+1)
	var fn func(*vtObject, int32) int32
	purego.RegisterFunc(&fn, table[slot])
	return fn(obj, a)
}
