//go:build arm64

package jit

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrel-re/vmthook/internal/abi"
)

// AAPCS64 integer/pointer argument registers, in calling-convention order.
var aapcs64IntArgRegs = [8]int{0, 1, 2, 3, 4, 5, 6, 7} // X0..X7

// Scratch register for the dispatcher address. X9 is caller-saved and not
// part of the argument-register file, so it is free to clobber.
const regDispatcherScratch = 9

// build encodes an AAPCS64 trampoline for shape.
//
// AAPCS64 gives eight integer argument registers, so even after the slot
// index shifts every integer-class argument down by one, the receiver plus
// up to five original arguments (six registers) plus the new slot register
// still fit in X0..X6 with room to spare. Unlike amd64's six-register
// file, arm64 never needs a stack-spill path for the arities this module
// supports. Float arguments live in D0..D7, a separate register file the
// shift never touches.
func build(shape Shape, slot int, dispatcherAddr uintptr) ([]byte, error) {
	var intPositions []int
	for i, p := range shape.Params {
		if !isFloat(p) {
			intPositions = append(intPositions, i)
		}
	}
	n := len(intPositions)
	if n+1 > len(aapcs64IntArgRegs) {
		return nil, fmt.Errorf("jit/arm64: %d integer-class arguments (incl. receiver) leave no room for the slot register", n)
	}

	var code []byte
	for k := n - 1; k >= 0; k-- {
		destSlot := k + 1
		code = append(code, movRegReg(aapcs64IntArgRegs[destSlot], aapcs64IntArgRegs[k])...)
	}

	code = append(code, loadImm64(aapcs64IntArgRegs[0], uint64(uint32(slot)))...)
	code = append(code, loadImm64(regDispatcherScratch, uint64(dispatcherAddr))...)
	// BR, not BLR: X30 still holds the caller's return address, so the
	// dispatcher's own RET returns straight to the original caller.
	code = append(code, br(regDispatcherScratch)...)
	return code, nil
}

func isFloat(p abi.Param) bool {
	return p.Kind == abi.KindFloat32 || p.Kind == abi.KindFloat64
}

func putWord(w uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, w)
	return buf
}

// movRegReg encodes "MOV Xd, Xm" as the architectural alias ORR Xd, XZR, Xm.
func movRegReg(dst, src int) []byte {
	word := uint32(0xAA0003E0) | uint32(src)<<16 | uint32(dst)
	return putWord(word)
}

// loadImm64 emits a MOVZ followed by up to three MOVK instructions to
// materialize a 64-bit immediate, skipping zero chunks beyond the first.
func loadImm64(dst int, imm uint64) []byte {
	var code []byte
	first := true
	for hw := 0; hw < 4; hw++ {
		chunk := uint16(imm >> (uint(hw) * 16))
		if chunk == 0 && !first {
			continue
		}
		if first {
			code = append(code, movz(dst, chunk, hw)...)
			first = false
		} else {
			code = append(code, movk(dst, chunk, hw)...)
		}
	}
	if first {
		// imm == 0: still need to zero the register.
		code = append(code, movz(dst, 0, 0)...)
	}
	return code
}

func movz(dst int, imm16 uint16, hw int) []byte {
	word := uint32(0xD2800000) | uint32(hw)<<21 | uint32(imm16)<<5 | uint32(dst)
	return putWord(word)
}

func movk(dst int, imm16 uint16, hw int) []byte {
	word := uint32(0xF2800000) | uint32(hw)<<21 | uint32(imm16)<<5 | uint32(dst)
	return putWord(word)
}

// br encodes "BR Xn".
func br(n int) []byte {
	word := uint32(0xD61F0000) | uint32(n)<<5
	return putWord(word)
}

// ret encodes "RET" (implicitly X30).
func ret() []byte {
	return putWord(0xD65F03C0)
}
