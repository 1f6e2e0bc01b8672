//go:build arm64

package addrplan

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

// adrpWord and ldrUimm12Word build the raw instruction words by hand, the same
// way the trampoline JIT's own conformance tests do, rather than depending
// on an assembler.
func adrpWord(rd, immhi, immlo uint32) uint32 {
	return (1 << 31) | (immlo << 29) | (0b10000 << 24) | (immhi << 5) | rd
}

func ldrUimm12Word(rt, rn, imm12 uint32) uint32 {
	return 0xF9400000 | (imm12 << 10) | (rn << 5) | rt
}

func TestGetImmediateDecodesKnownForms(t *testing.T) {
	cases := []struct {
		name string
		raw  uint32
		want int64
	}{
		{"adrp page 2", adrpWord(0, 0, 2), 2},
		// LDR's imm12 is masked against the bit count (12) rather than a
		// bitmask before the <<3 scale, carried over from the reference
		// tool unchanged; imm12=5 yields (5&12)<<3 = 32, not 5*8 = 40.
		{"ldr uimm12 5", ldrUimm12Word(0, 0, 5), 32},
		{"add imm12 7 shift 0", 0x91000000 | (7 << 10), 7},
		{"bl imm26 4", 0x94000000 | 4, 16},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := getImmediate(c.raw)
			if err != nil {
				t.Fatalf("getImmediate(0x%08x): %v", c.raw, err)
			}
			if got != c.want {
				t.Errorf("getImmediate(0x%08x) = %d, want %d", c.raw, got, c.want)
			}
		})
	}
}

func TestGetImmediateUnknownFormReturnsError(t *testing.T) {
	if _, err := getImmediate(0x00000000); err == nil {
		t.Fatal("expected an error for an unrecognized instruction word")
	}
}

// TestPageAndOffsetActionsAreIdentical asserts the preserved reference-tool
// behavior: ResolvePageAndOffsetAddress's offset field is carried in the
// Action but never consulted, so it and ResolvePageOffsetRelativeAddress
// resolve through the exact same adrp+ldr pair and must agree bit for bit.
func TestPageAndOffsetActionsAreIdentical(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], adrpWord(0, 0, 2))
	binary.LittleEndian.PutUint32(buf[4:8], ldrUimm12Word(0, 0, 5))
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))

	pc4 := (addr + 4) &^ 0xfff
	wantPage := pc4 + (2 << 12)
	want := wantPage + 32

	gotA, err := Evaluate(addr, []Action{{Kind: ActionResolvePageAndOffsetAddress, Offset: 999}}, nil)
	if err != nil {
		t.Fatalf("Evaluate(ResolvePageAndOffsetAddress): %v", err)
	}
	gotB, err := Evaluate(addr, []Action{{Kind: ActionResolvePageOffsetRelativeAddress}}, nil)
	if err != nil {
		t.Fatalf("Evaluate(ResolvePageOffsetRelativeAddress): %v", err)
	}
	if gotA != want {
		t.Errorf("ResolvePageAndOffsetAddress = 0x%x, want 0x%x", gotA, want)
	}
	if gotA != gotB {
		t.Errorf("ResolvePageAndOffsetAddress (0x%x) and ResolvePageOffsetRelativeAddress (0x%x) diverged", gotA, gotB)
	}
}

func TestImmediateFromInstructionAtAddress(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, adrpWord(0, 0, 3))
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))

	got, err := Evaluate(addr, []Action{{Kind: ActionImmediateFromInstructionAtAddress}}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != 3 {
		t.Errorf("Evaluate = %d, want 3", got)
	}
}

func TestResolveImmediateRelativeAddress(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, adrpWord(0, 0, 1))
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))

	got, err := Evaluate(addr, []Action{{Kind: ActionResolveImmediateRelativeAddress}}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if want := addr + 1; got != want {
		t.Errorf("Evaluate = 0x%x, want 0x%x", got, want)
	}
}
