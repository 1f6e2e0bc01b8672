// Package codebuf manages the executable memory backing the trampoline
// JIT (spec.md's "JIT module", §4.B/§5). Each allocation maps a fresh,
// page-aligned region, writes the caller's machine code into it while it is
// writable, then flips it to read-execute. Pages are never unmapped: per
// spec.md §5 "JIT lifetime", the JIT module lives for the process and its
// code memory is an acknowledged leak (see DESIGN.md for the mitigation
// applied upstream in internal/jit: trampoline reuse keyed on shape, slot
// and dispatcher means repeated hooks of the same closure shape at the same
// slot do not each cost a fresh page).
package codebuf

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is a process-wide arena of executable code regions. The zero
// value is not usable; use New.
type Buffer struct {
	mu        sync.Mutex
	pageSize  int
	allocated []region
}

type region struct {
	mem []byte
}

// New creates an empty code buffer.
func New() *Buffer {
	return &Buffer{pageSize: unix.Getpagesize()}
}

var (
	defaultOnce sync.Once
	defaultBuf  *Buffer
)

// Default returns the process-wide code buffer, created lazily on first
// use (spec.md §9 "Process-wide state").
func Default() *Buffer {
	defaultOnce.Do(func() {
		defaultBuf = New()
	})
	return defaultBuf
}

// Alloc maps a fresh region sized to hold code, writes code into it, then
// makes it read-execute, and returns the address code now lives at. The
// returned address is stable for the lifetime of the process.
func (b *Buffer) Alloc(code []byte) (uintptr, error) {
	if len(code) == 0 {
		return 0, fmt.Errorf("codebuf: refusing to map zero-length code")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	size := roundUp(len(code), b.pageSize)
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("codebuf: mmap %d bytes: %w", size, err)
	}

	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return 0, fmt.Errorf("codebuf: mprotect rx: %w", err)
	}

	b.allocated = append(b.allocated, region{mem: mem})
	return uintptr(addressOf(mem)), nil
}

func roundUp(n, multiple int) int {
	if multiple == 0 {
		return n
	}
	rem := n % multiple
	if rem == 0 {
		return n
	}
	return n + multiple - rem
}
