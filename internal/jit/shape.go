// Package jit emits the per-hook trampoline stubs described in spec.md
// §4.B: a short run of machine code with exactly the ABI of the original
// virtual function, which loads the hook's slot index and the target
// shape's dispatcher address as immediates and forwards into the
// dispatcher with the slot index prefixed onto the original argument list.
//
// There is no cranelift-equivalent JIT backend among this module's
// dependencies (see DESIGN.md), so the handful of instructions a stub
// needs — load two immediates, shuffle up to six argument registers down
// one slot, then an indirect call and return (amd64) or an indirect tail
// branch (arm64) — are hand-encoded per architecture in
// amd64.go and arm64.go. Module ties that encoding to the executable
// memory arena in internal/codebuf.
package jit

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kestrel-re/vmthook/internal/abi"
	"github.com/kestrel-re/vmthook/internal/codebuf"
)

// Shape is the ordered parameter list of the original virtual function:
// the receiver first, then its declared arguments. The return type does
// not influence trampoline code generation — the stub always forwards
// whatever the dispatcher left in the return register/registers — so it
// is tracked only for naming and diagnostics.
type Shape struct {
	Name   string // stable per-shape identifier, e.g. "i64_f32_i32"
	Return abi.Param
	Params []abi.Param // receiver first
}

// builder is implemented once per architecture (amd64.go, arm64.go).
type builder func(shape Shape, slot int, dispatcherAddr uintptr) ([]byte, error)

// Module owns the executable memory a process's trampolines live in and
// the per-architecture encoder used to produce them.
type Module struct {
	buf *codebuf.Buffer

	mu    sync.Mutex
	cache map[trampolineKey]uintptr
}

// trampolineKey identifies the exact bytes a trampoline would contain: the
// shape (register/stack layout), the slot baked in as an immediate, and
// the dispatcher address baked in as the other immediate. Two installs
// that agree on all three produce byte-identical stubs.
type trampolineKey struct {
	shape      string
	slot       int
	dispatcher uintptr
}

// NewModule creates a JIT module backed by its own code buffer. Most
// callers should use Default.
func NewModule() *Module {
	return &Module{buf: codebuf.New(), cache: make(map[trampolineKey]uintptr)}
}

var defaultModule = NewModule()

// Default returns the process-wide JIT module (spec.md §9 "Process-wide
// state").
func Default() *Module {
	return defaultModule
}

// EmitTrampoline builds and maps a stub for shape that, when entered with
// shape's ABI, loads slot and dispatcherAddr as immediates and hands off to
// the dispatcher. It returns the address of the stub, reusing a
// previously mapped one if this exact (shape, slot, dispatcherAddr)
// combination has already been emitted: the slot and the dispatcher
// address are the only per-install values baked into the bytes, so two
// installs that agree on both and on the shape produce identical code,
// and every instance hooked at the same slot with the same closure shape
// shares one page instead of costing a fresh mmap.
func (m *Module) EmitTrampoline(shape Shape, slot int, dispatcherAddr uintptr) (uintptr, error) {
	key := trampolineKey{shape: shape.Name, slot: slot, dispatcher: dispatcherAddr}

	m.mu.Lock()
	if addr, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return addr, nil
	}
	m.mu.Unlock()

	code, err := build(shape, slot, dispatcherAddr)
	if err != nil {
		return 0, &CodeGenError{Shape: shape.Name, Err: err}
	}
	addr, err := m.buf.Alloc(code)
	if err != nil {
		return 0, &CodeGenError{Shape: shape.Name, Err: err}
	}

	m.mu.Lock()
	if existing, ok := m.cache[key]; ok {
		// Lost a race with a concurrent install of the same key; the page
		// just mapped is harmless but unneeded, so keep the earlier one.
		m.mu.Unlock()
		return existing, nil
	}
	m.cache[key] = addr
	m.mu.Unlock()
	return addr, nil
}

// CodeGenError mirrors the root package's error of the same name (kept
// here too so internal/jit has no import cycle back to the root package).
type CodeGenError struct {
	Shape string
	Err   error
}

func (e *CodeGenError) Error() string {
	return fmt.Sprintf("jit: failed to generate trampoline for shape %s: %v", e.Shape, e.Err)
}

func (e *CodeGenError) Unwrap() error { return e.Err }

// UniqueName derives a stable-looking but collision-free symbolic name for
// a shape: the shape identifier followed by a fresh UUID, so no two calls
// return the same name, even for the same shape. EmitTrampoline does not
// call it; emitted trampolines carry no symbolic name and are identified
// only by their (shape name, slot, dispatcher) cache key.
func UniqueName(shape Shape) string {
	return fmt.Sprintf("trampoline_%s_%s", shape.Name, uuid.NewString())
}
