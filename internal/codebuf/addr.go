package codebuf

import "unsafe"

// addressOf returns the address of a mapped region's backing array. The
// memory was obtained from mmap, not the Go allocator, so it is never
// moved by the garbage collector and this address stays valid for as long
// as the mapping exists (i.e. forever, per this package's no-unmap policy).
func addressOf(mem []byte) unsafe.Pointer {
	return unsafe.Pointer(&mem[0])
}
