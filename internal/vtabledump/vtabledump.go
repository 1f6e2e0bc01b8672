// Package vtabledump statically recovers Itanium C++ vtables from an ELF
// binary's relocation tables, so a diagnostic tool can describe a table's
// slots and the symbols they resolve to before anything is ever hooked.
//
// Where the rest of this module resolves a vtable by reading it out of a
// live instance (internal/overlay), this package resolves one the other
// way: from the static relocations the linker left behind. The two views
// of "what a slot points to" are meant to agree, which is what makes this
// package useful as an offline check on an overlay's own bookkeeping.
package vtabledump

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// VTable is one recovered C++ virtual method table.
type VTable struct {
	Name      string // mangled vtable symbol, e.g. _ZTV7MyClass
	ClassName string // demangled class name, e.g. MyClass
	Start     uint64 // relocated vtable base address
	Size      uint64
	Slots     map[uint64]SlotInfo // byte offset from Start -> resolved entry
}

// RelocType is an architecture-neutral relocation type tag (the
// underlying numeric value of whichever machine-specific elf.R_* type
// produced it).
type RelocType uint32

// SlotInfo describes one resolved vtable entry.
type SlotInfo struct {
	Target    uint64
	SymName   string
	RelocType RelocType
	SlotIndex int // -1 for the RTTI/offset-to-top header, else 0-based
}

// Map indexes every vtable recovered from one binary.
type Map struct {
	Tables    map[uint64]*VTable    // vtable base address -> VTable
	ByClass   map[string]*VTable    // demangled class name -> VTable
	SlotIndex map[uint64][]SlotInfo // byte offset -> every candidate at that offset across tables
}

// itaniumHeaderSize is the offset-to-top (8 bytes) plus RTTI pointer
// (8 bytes) every Itanium vtable group carries before its first function
// pointer.
const itaniumHeaderSize = 16

// Dump opens path as an ELF file and recovers every Itanium vtable it can
// find by walking RELA relocations, with no load-time relocation offset
// applied (link-time addresses, suitable for an offline diagnostic dump).
func Dump(path string) (*Map, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vtabledump: open %s: %w", path, err)
	}
	defer f.Close()
	return DumpAt(f, 0)
}

// DumpAt recovers vtables from an already-open ELF file, applying
// relocOffset to every link-time address (for a library whose runtime load
// base is known; pass 0 for link-time addresses).
func DumpAt(f *elf.File, relocOffset uint64) (*Map, error) {
	m := &Map{
		Tables:    make(map[uint64]*VTable),
		ByClass:   make(map[string]*VTable),
		SlotIndex: make(map[uint64][]SlotInfo),
	}

	ranges := vtableRanges(f, relocOffset)
	findRange := func(addr uint64) *vtableRange {
		for i := range ranges {
			if addr >= ranges[i].start && addr < ranges[i].end {
				return &ranges[i]
			}
		}
		return nil
	}

	symByIdx, addrToSym := indexSymbols(f, relocOffset)

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_RELA {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}

		const relaEntrySize = 24 // Elf64_Rela: r_offset, r_info, r_addend, 8 bytes each
		for i := 0; i+relaEntrySize <= len(data); i += relaEntrySize {
			rOffset := binary.LittleEndian.Uint64(data[i:])
			rInfo := binary.LittleEndian.Uint64(data[i+8:])
			rAddend := int64(binary.LittleEndian.Uint64(data[i+16:]))

			relType := RelocType(uint32(rInfo))
			symIdx := int(rInfo >> 32)

			targetAddr := rOffset + relocOffset
			vt := findRange(targetAddr)
			if vt == nil {
				continue
			}

			resolved, ok := resolveRelocation(f.Machine, relType, symByIdx, symIdx, relocOffset, rAddend)
			if !ok {
				continue
			}

			slotOffset := targetAddr - vt.start
			slotIndex := -1
			if slotOffset >= itaniumHeaderSize {
				slotIndex = int((slotOffset - itaniumHeaderSize) / 8)
			}

			tbl := m.Tables[vt.start]
			if tbl == nil {
				tbl = &VTable{
					Name:      vt.name,
					ClassName: vt.className,
					Start:     vt.start,
					Size:      vt.end - vt.start,
					Slots:     make(map[uint64]SlotInfo),
				}
				m.Tables[vt.start] = tbl
				if vt.className != "" {
					m.ByClass[vt.className] = tbl
				}
			}

			symName := ""
			if sym, ok := symByIdx[symIdx]; ok && sym.Name != "" {
				symName = cleanSymbolName(sym.Name)
			}
			if symName == "" {
				symName = addrToSym[resolved]
			}

			info := SlotInfo{Target: resolved, SymName: symName, RelocType: relType, SlotIndex: slotIndex}
			tbl.Slots[slotOffset] = info
			m.SlotIndex[slotOffset] = append(m.SlotIndex[slotOffset], info)
		}
	}

	return m, nil
}

type vtableRange struct {
	name, className string
	start, end      uint64
}

// vtableRanges locates every _ZTV-prefixed symbol and estimates its byte
// extent, since a stripped vtable symbol often carries no recorded size.
func vtableRanges(f *elf.File, relocOffset uint64) []vtableRange {
	var syms []elf.Symbol
	collect := func(s elf.Symbol) {
		if s.Value != 0 && strings.HasPrefix(s.Name, "_ZTV") {
			syms = append(syms, s)
		}
	}
	if dyn, _ := f.DynamicSymbols(); dyn != nil {
		for _, s := range dyn {
			collect(s)
		}
	}
	if static, _ := f.Symbols(); static != nil {
		for _, s := range static {
			collect(s)
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Value < syms[j].Value })

	ranges := make([]vtableRange, 0, len(syms))
	for i, s := range syms {
		start := s.Value + relocOffset
		end := start + s.Size
		switch {
		case s.Size != 0:
			// end already correct
		case i+1 < len(syms):
			end = syms[i+1].Value + relocOffset
		default:
			end = start + 0x400 // no next symbol to bound it; guess 128 slots
		}
		ranges = append(ranges, vtableRange{s.Name, demangleVTableClassName(s.Name), start, end})
	}
	return ranges
}

func indexSymbols(f *elf.File, relocOffset uint64) (byIdx map[int]elf.Symbol, byAddr map[uint64]string) {
	byIdx = make(map[int]elf.Symbol)
	byAddr = make(map[uint64]string)

	dynSyms, _ := f.DynamicSymbols()
	for i, s := range dynSyms {
		byIdx[i+1] = s // symtab indices are 1-based; 0 is STN_UNDEF
	}

	addFunc := func(s elf.Symbol) {
		if s.Value == 0 || s.Name == "" || elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			return
		}
		addr := s.Value + relocOffset
		if _, exists := byAddr[addr]; !exists {
			byAddr[addr] = cleanSymbolName(s.Name)
		}
	}
	for _, s := range dynSyms {
		addFunc(s)
	}
	if staticSyms, _ := f.Symbols(); staticSyms != nil {
		for _, s := range staticSyms {
			addFunc(s)
		}
	}
	return byIdx, byAddr
}

// resolveRelocation applies the handful of relocation types that populate
// a vtable slot on either amd64 or arm64: RELATIVE (base+addend), an
// absolute 64-bit symbol reference (symbol+addend), and GOT/PLT-style
// GLOB_DAT/JUMP_SLOT (symbol value only).
func resolveRelocation(machine elf.Machine, relType RelocType, symByIdx map[int]elf.Symbol, symIdx int, relocOffset uint64, addend int64) (uint64, bool) {
	relative, absolute, gotOrPlt := relocationKinds(machine)

	switch {
	case relType == relative:
		return relocOffset + uint64(addend), true

	case relType == absolute:
		if sym, ok := symByIdx[symIdx]; ok && sym.Value != 0 {
			return sym.Value + relocOffset + uint64(addend), true
		}
		return relocOffset + uint64(addend), true

	case gotOrPlt[relType]:
		if sym, ok := symByIdx[symIdx]; ok && sym.Value != 0 {
			return sym.Value + relocOffset, true
		}
		return 0, false

	default:
		return 0, false
	}
}

func relocationKinds(machine elf.Machine) (relative, absolute RelocType, gotOrPlt map[RelocType]bool) {
	switch machine {
	case elf.EM_AARCH64:
		return RelocType(elf.R_AARCH64_RELATIVE), RelocType(elf.R_AARCH64_ABS64),
			map[RelocType]bool{RelocType(elf.R_AARCH64_GLOB_DAT): true, RelocType(elf.R_AARCH64_JUMP_SLOT): true}
	default: // EM_X86_64
		return RelocType(elf.R_X86_64_RELATIVE), RelocType(elf.R_X86_64_64),
			map[RelocType]bool{RelocType(elf.R_X86_64_GLOB_DAT): true, RelocType(elf.R_X86_64_JMP_SLOT): true}
	}
}

// ResolveSlot resolves a logical 0-based slot index (past the RTTI
// header) on the vtable at vtableBase.
func (m *Map) ResolveSlot(vtableBase uint64, slotIndex int) (uint64, string, bool) {
	tbl, ok := m.Tables[vtableBase]
	if !ok {
		return 0, "", false
	}
	slot, ok := tbl.Slots[uint64(itaniumHeaderSize+slotIndex*8)]
	if !ok {
		return 0, "", false
	}
	return slot.Target, slot.SymName, true
}

// ResolveByteOffset resolves a raw byte offset from vtableBase, useful
// when the offset came directly from a decoded LDR instruction rather
// than a logical slot count.
func (m *Map) ResolveByteOffset(vtableBase, byteOffset uint64) (uint64, string, bool) {
	tbl, ok := m.Tables[vtableBase]
	if !ok {
		return 0, "", false
	}
	slot, ok := tbl.Slots[byteOffset]
	if !ok {
		return 0, "", false
	}
	return slot.Target, slot.SymName, true
}

// FindSlotsMatching returns every slot across every table whose resolved
// symbol name contains one of the given substrings (case-insensitive),
// keyed by vtable base then byte offset. Useful for narrowing a hook
// target by name fragment, e.g. "set" or "update", before resorting to a
// byte-pattern scan.
func (m *Map) FindSlotsMatching(substrings []string) map[uint64]map[uint64]SlotInfo {
	result := make(map[uint64]map[uint64]SlotInfo)
	for vtBase, tbl := range m.Tables {
		for off, slot := range tbl.Slots {
			if slot.SymName == "" {
				continue
			}
			lower := strings.ToLower(slot.SymName)
			for _, s := range substrings {
				if strings.Contains(lower, strings.ToLower(s)) {
					if result[vtBase] == nil {
						result[vtBase] = make(map[uint64]SlotInfo)
					}
					result[vtBase][off] = slot
					break
				}
			}
		}
	}
	return result
}

func cleanSymbolName(name string) string {
	if idx := strings.Index(name, "@@"); idx != -1 {
		return name[:idx]
	}
	if idx := strings.Index(name, "@"); idx != -1 {
		return name[:idx]
	}
	return name
}

// demangleVTableClassName extracts a class name from a mangled Itanium
// vtable symbol, e.g. _ZTVN7cocos2d8LuaStackE -> cocos2d::LuaStack, or
// _ZTV7MyClass -> MyClass.
func demangleVTableClassName(mangled string) string {
	if !strings.HasPrefix(mangled, "_ZTV") {
		return ""
	}
	if strings.HasPrefix(mangled, "_ZTVN") {
		return parseNestedName(mangled[5:])
	}
	rest := mangled[4:]
	if len(rest) > 0 && rest[0] >= '1' && rest[0] <= '9' {
		if _, name := parseLengthPrefixedName(rest); name != "" {
			return name
		}
	}
	return ""
}

// parseNestedName parses an Itanium nested-name production: a sequence of
// length-prefixed components up to the terminating 'E', joined with "::".
func parseNestedName(s string) string {
	var parts []string
	rest := s
	for len(rest) > 0 && rest[0] != 'E' {
		if rest[0] == 'I' { // template argument list; not demangled here
			break
		}
		consumed, name := parseLengthPrefixedName(rest)
		if consumed == 0 || name == "" {
			break
		}
		parts = append(parts, name)
		rest = rest[consumed:]
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "::")
}

// parseLengthPrefixedName parses a single <length><name> production,
// returning the total bytes consumed (including the length digits) and
// the name itself.
func parseLengthPrefixedName(s string) (int, string) {
	if len(s) == 0 || s[0] < '1' || s[0] > '9' {
		return 0, ""
	}
	i, length := 0, 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		length = length*10 + int(s[i]-'0')
		i++
	}
	if i+length > len(s) {
		return 0, ""
	}
	return i + length, s[i : i+length]
}
