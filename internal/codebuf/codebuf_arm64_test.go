//go:build arm64

package codebuf

import (
	"testing"

	"github.com/ebitengine/purego"
)

// TestAllocProducesExecutableMemory writes "MOV X0, #7; RET" and calls it
// through purego, proving the W^X page transition in Alloc actually leaves
// the region executable rather than merely readable.
func TestAllocProducesExecutableMemory(t *testing.T) {
	code := []byte{
		0xE0, 0x00, 0x80, 0xD2, // MOVZ X0, #7
		0xC0, 0x03, 0x5F, 0xD6, // RET
	}
	addr, err := New().Alloc(code)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	var fn func() int64
	purego.RegisterFunc(&fn, addr)
	if got := fn(); got != 7 {
		t.Errorf("executed stub returned %d, want 7", got)
	}
}
