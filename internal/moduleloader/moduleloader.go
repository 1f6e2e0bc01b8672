// Package moduleloader opens a shared library two ways at once: as an ELF
// file on disk, for the symbol table and code-segment bytes a pattern scan
// or offline address-plan resolution needs, and (best-effort) as a live
// in-process mapping, for the relocated address an actual hook install
// needs. Either source alone is not enough: a binary this tool has never
// loaded still has to be scannable, and a binary it has loaded needs real
// addresses, not link-time ones.
package moduleloader

import (
	"debug/elf"
	"fmt"
	"strings"

	"github.com/ebitengine/purego"
	"github.com/kestrel-re/vmthook/internal/patternscan"
)

// Module is a loaded view over one shared library.
type Module struct {
	path   string
	handle uintptr // 0 if the library could not be loaded in-process

	symbols   map[string]uint64 // link-time (unrelocated) virtual addresses
	code      []byte
	codeStart uint64
	codeSize  uint64
}

// Open parses path as an ELF file for its symbol table and executable
// segment, and separately attempts to load it into the process with
// dlopen so Export can return real, relocated addresses. The dlopen
// attempt is best-effort: a module that fails to load live (wrong
// architecture, missing dependencies, or a file that was never meant to be
// loaded standalone) still opens successfully for offline scanning, and
// Export falls back to the link-time symbol address.
func Open(path string) (*Module, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("moduleloader: open %s: %w", path, err)
	}
	defer f.Close()

	m := &Module{path: path, symbols: make(map[string]uint64)}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Flags&elf.PF_X == 0 {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("moduleloader: read executable segment of %s: %w", path, err)
		}
		m.code = data
		m.codeStart = prog.Vaddr
		m.codeSize = prog.Memsz
		break
	}

	loadSymbols(f, m.symbols)

	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err == nil {
		m.handle = handle
	}

	return m, nil
}

// loadSymbols populates symbols from both the dynamic and static symbol
// tables, stripping the @@VERSION / @VERSION suffixes a versioned dynamic
// symbol carries so a plain name lookup still finds it.
func loadSymbols(f *elf.File, symbols map[string]uint64) {
	add := func(name string, value uint64) {
		if value == 0 || name == "" {
			return
		}
		symbols[name] = value
		if idx := strings.Index(name, "@@"); idx != -1 {
			symbols[name[:idx]] = value
		} else if idx := strings.Index(name, "@"); idx != -1 {
			symbols[name[:idx]] = value
		}
	}

	if syms, err := f.DynamicSymbols(); err == nil {
		for _, sym := range syms {
			add(sym.Name, sym.Value)
		}
	}
	if syms, err := f.Symbols(); err == nil {
		for _, sym := range syms {
			add(sym.Name, sym.Value)
		}
	}
}

// Scan runs pattern over the module's code segment (as read from disk,
// starting at offset) and returns the link-time address of the first
// match.
func (m *Module) Scan(pattern patternscan.Pattern, offset int) (uint64, bool) {
	idx, ok := pattern.FindFirst(m.code, offset)
	if !ok {
		return 0, false
	}
	return m.codeStart + uint64(idx), true
}

// Export resolves symbol to an address. When the module loaded live, the
// dlsym result (a real, relocated, in-process address) is preferred; the
// static ELF symbol table is the fallback for a module opened only for
// offline inspection.
func (m *Module) Export(symbol string) (uint64, error) {
	if m.handle != 0 {
		if addr, err := purego.Dlsym(m.handle, symbol); err == nil {
			return uint64(addr), nil
		}
	}
	if addr, ok := m.symbols[symbol]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("moduleloader: export %q not found in %s", symbol, m.path)
}

// CodeRange reports the start address and size of the module's executable
// segment.
func (m *Module) CodeRange() (start, size uint64) {
	return m.codeStart, m.codeSize
}

// Loaded reports whether the module was mapped into the process with
// dlopen, as opposed to only parsed from disk.
func (m *Module) Loaded() bool { return m.handle != 0 }
