//go:build amd64

package jit

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrel-re/vmthook/internal/abi"
)

// x86-64 general-purpose register numbers, in machine-encoding order;
// sysvIntArgRegs below lists the SysV integer argument registers in
// calling-convention order.
const (
	regRAX = 0
	regRCX = 1
	regRDX = 2
	regRBX = 3
	regRSP = 4
	regRBP = 5
	regRSI = 6
	regRDI = 7
	regR8  = 8
	regR9  = 9
	regR10 = 10
	regR11 = 11
)

var sysvIntArgRegs = [6]int{regRDI, regRSI, regRDX, regRCX, regR8, regR9}

// build encodes a SysV AMD64 trampoline for shape.
//
// Only integer/pointer class arguments move register: prepending the slot
// index shifts each of them down by one argument-register slot. Up to five
// original integer-class arguments plus the receiver fit the six integer
// argument registers; a sixth shifts into register seven, which does not
// exist, so it spills to the stack the dispatcher call reads per SysV's
// stack-argument convention. Float/SSE class arguments are unaffected:
// SysV tracks the integer and SSE argument-register files independently,
// so XMM0..XMM7 never need to move.
func build(shape Shape, slot int, dispatcherAddr uintptr) ([]byte, error) {
	var intPositions []int
	for i, p := range shape.Params {
		if !isFloat(p) {
			intPositions = append(intPositions, i)
		}
	}
	n := len(intPositions)
	if n > len(sysvIntArgRegs) {
		return nil, fmt.Errorf("jit/amd64: %d integer-class arguments (incl. receiver) exceed the %d supported", n, len(sysvIntArgRegs))
	}

	var code []byte
	needsStack := n == len(sysvIntArgRegs) // only the arity-5 case spills
	if needsStack {
		code = append(code, subRSPImm8(8)...)
	}

	// Shift registers down by one slot, highest source index first so a
	// register's value is always read before something else overwrites it.
	for k := n - 1; k >= 0; k-- {
		destSlot := k + 1
		src := sysvIntArgRegs[k]
		if destSlot < len(sysvIntArgRegs) {
			code = append(code, movRegReg64(sysvIntArgRegs[destSlot], src)...)
		} else {
			code = append(code, storeRegToRSP64(src)...)
		}
	}

	// Slot index becomes the new first integer argument. A 32-bit
	// immediate move zero-extends to 64 bits and slot is always small and
	// non-negative (bounded by overlay.DefaultScanCap).
	code = append(code, movRegImm32(regRDI, uint32(slot))...)
	code = append(code, movabs(regR11, uint64(dispatcherAddr))...)
	code = append(code, callReg(regR11)...)
	if needsStack {
		code = append(code, addRSPImm8(8)...)
	}
	code = append(code, 0xC3) // ret
	return code, nil
}

func isFloat(p abi.Param) bool {
	return p.Kind == abi.KindFloat32 || p.Kind == abi.KindFloat64
}

func rex(w, r, x, b int) byte {
	return 0x40 | byte(w)<<3 | byte(r)<<2 | byte(x)<<1 | byte(b)
}

// movRegReg64 encodes "mov dst, src" (REX.W + 0x89 /r, MOV r/m64, r64).
func movRegReg64(dst, src int) []byte {
	r := rex(1, (src>>3)&1, 0, (dst>>3)&1)
	modrm := 0xC0 | byte(src&7)<<3 | byte(dst&7)
	return []byte{r, 0x89, modrm}
}

// storeRegToRSP64 encodes "mov [rsp], src".
func storeRegToRSP64(src int) []byte {
	r := rex(1, (src>>3)&1, 0, 0)
	modrm := 0x00 | byte(src&7)<<3 | 0x04 // mod=00, rm=100 (SIB follows)
	sib := byte(0x24)                     // scale=00, index=100 (none), base=100 (RSP)
	return []byte{r, 0x89, modrm, sib}
}

// movRegImm32 encodes "mov r32, imm32" (zero-extends to 64 bits).
func movRegImm32(dst int, imm uint32) []byte {
	out := []byte{}
	if dst&8 != 0 {
		out = append(out, rex(0, 0, 0, (dst>>3)&1))
	}
	out = append(out, 0xB8+byte(dst&7))
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, imm)
	return append(out, buf...)
}

// movabs encodes "movabs dst, imm64" (REX.W + B8+rd id).
func movabs(dst int, imm uint64) []byte {
	r := rex(1, 0, 0, (dst>>3)&1)
	out := []byte{r, 0xB8 + byte(dst&7)}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, imm)
	return append(out, buf...)
}

// callReg encodes "call reg" (FF /2).
func callReg(reg int) []byte {
	out := []byte{}
	if reg&8 != 0 {
		out = append(out, rex(0, 0, 0, (reg>>3)&1))
	}
	modrm := 0xC0 | 2<<3 | byte(reg&7)
	return append(out, 0xFF, modrm)
}

// subRSPImm8 encodes "sub rsp, imm8" (REX.W + 83 /5 ib).
func subRSPImm8(imm8 byte) []byte {
	return []byte{rex(1, 0, 0, 0), 0x83, 0xEC, imm8}
}

// addRSPImm8 encodes "add rsp, imm8" (REX.W + 83 /0 ib).
func addRSPImm8(imm8 byte) []byte {
	return []byte{rex(1, 0, 0, 0), 0x83, 0xC4, imm8}
}
