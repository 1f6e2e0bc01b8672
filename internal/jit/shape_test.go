package jit

import (
	"testing"

	"github.com/kestrel-re/vmthook/internal/abi"
)

func TestEmitTrampolineReusesPageForIdenticalKey(t *testing.T) {
	m := NewModule()
	shape := Shape{
		Name:   "i64_i32",
		Return: abi.MustDescribe[int32](),
		Params: []abi.Param{abi.MustDescribe[uintptr](), abi.MustDescribe[int32]()},
	}

	first, err := m.EmitTrampoline(shape, 3, 0xdeadbeef)
	if err != nil {
		t.Fatalf("EmitTrampoline: %v", err)
	}
	second, err := m.EmitTrampoline(shape, 3, 0xdeadbeef)
	if err != nil {
		t.Fatalf("EmitTrampoline (repeat): %v", err)
	}
	if first != second {
		t.Errorf("repeated install of the same (shape, slot, dispatcher) mapped a new page: 0x%x != 0x%x", first, second)
	}
}

func TestEmitTrampolineDistinguishesSlotAndDispatcher(t *testing.T) {
	m := NewModule()
	shape := Shape{
		Name:   "i64_i32",
		Return: abi.MustDescribe[int32](),
		Params: []abi.Param{abi.MustDescribe[uintptr](), abi.MustDescribe[int32]()},
	}

	bySlot0, err := m.EmitTrampoline(shape, 0, 0x1000)
	if err != nil {
		t.Fatalf("EmitTrampoline slot 0: %v", err)
	}
	bySlot1, err := m.EmitTrampoline(shape, 1, 0x1000)
	if err != nil {
		t.Fatalf("EmitTrampoline slot 1: %v", err)
	}
	if bySlot0 == bySlot1 {
		t.Error("different slots baked into the stub must not share a page")
	}

	byOtherDispatcher, err := m.EmitTrampoline(shape, 0, 0x2000)
	if err != nil {
		t.Fatalf("EmitTrampoline other dispatcher: %v", err)
	}
	if bySlot0 == byOtherDispatcher {
		t.Error("different dispatcher addresses baked into the stub must not share a page")
	}
}
