//go:build amd64

package codebuf

import (
	"testing"

	"github.com/ebitengine/purego"
)

// TestAllocProducesExecutableMemory writes "mov eax, 7; ret" and calls it
// through purego, proving the W^X page transition in Alloc actually leaves
// the region executable rather than merely readable.
func TestAllocProducesExecutableMemory(t *testing.T) {
	code := []byte{
		0xB8, 0x07, 0x00, 0x00, 0x00, // mov eax, 7
		0xC3, // ret
	}
	addr, err := New().Alloc(code)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	var fn func() int32
	purego.RegisterFunc(&fn, addr)
	if got := fn(); got != 7 {
		t.Errorf("executed stub returned %d, want 7", got)
	}
}
