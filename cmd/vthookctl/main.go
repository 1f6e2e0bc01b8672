// Command vthookctl is a diagnostic companion to the vmthook library: it
// answers the "where is the byte pattern, what does this address resolve
// to, what does this vtable actually contain" questions against a binary on
// disk, before any of that gets wired into a live hook. scan and vtable
// work offline from the file; resolve also requires the module to load
// into this process, since plans read live memory.
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kestrel-re/vmthook/internal/addrplan"
	"github.com/kestrel-re/vmthook/internal/moduleloader"
	"github.com/kestrel-re/vmthook/internal/patternscan"
	"github.com/kestrel-re/vmthook/internal/ui/colorize"
	"github.com/kestrel-re/vmthook/internal/vtabledump"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vthookctl",
		Short: "Inspect a native module's byte patterns, address plans, and vtables",
		Long: `vthookctl answers the questions you ask before writing a hook:
where does this byte pattern occur, where does this address plan resolve
to, and what does this vtable actually contain.

Examples:
  vthookctl scan libgame.so "48 8B ?? 00 C3"
  vthookctl resolve libgame.so 0x401020 plan.yaml
  vthookctl vtable libgame.so _ZTV7MyClass`,
		DisableFlagsInUseLine: true,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "scan <module> <pattern>",
			Short: "Find the first occurrence of a byte pattern in a module's code segment",
			Args:  cobra.ExactArgs(2),
			RunE:  runScan,
		},
		&cobra.Command{
			Use:   "resolve <module> <address> <plan.yaml>",
			Short: "Evaluate an address-resolution plan starting from an address",
			Args:  cobra.ExactArgs(3),
			RunE:  runResolve,
		},
		&cobra.Command{
			Use:   "vtable <module> <symbol>",
			Short: "Dump a recovered vtable's slots and resolved symbol names",
			Args:  cobra.ExactArgs(2),
			RunE:  runVTable,
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	modulePath, patternStr := args[0], args[1]

	pattern, err := patternscan.Compile(patternStr)
	if err != nil {
		return fmt.Errorf("compile pattern: %w", err)
	}

	m, err := moduleloader.Open(modulePath)
	if err != nil {
		return fmt.Errorf("open module: %w", err)
	}

	addr, ok := m.Scan(pattern, 0)
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), colorize.Error("no match"))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "match at %s\n", colorize.Address(addr))
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	modulePath, addrStr, planPath := args[0], args[1], args[2]

	m, err := moduleloader.Open(modulePath)
	if err != nil {
		return fmt.Errorf("open module: %w", err)
	}
	if !m.Loaded() {
		return fmt.Errorf("%s did not load into this process; an address plan dereferences live memory and needs a real mapping", modulePath)
	}

	start, err := strconv.ParseUint(addrStr, 0, 64)
	if err != nil {
		return fmt.Errorf("parse address %q: %w", addrStr, err)
	}

	raw, err := os.ReadFile(planPath)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	var plan []addrplan.Action
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}

	resolved, err := addrplan.Evaluate(start, plan, nil)
	if err != nil {
		return fmt.Errorf("evaluate plan: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "resolved to %s\n", colorize.Address(resolved))
	return nil
}

func runVTable(cmd *cobra.Command, args []string) error {
	modulePath, symbol := args[0], args[1]

	m, err := vtabledump.Dump(modulePath)
	if err != nil {
		return fmt.Errorf("dump vtables: %w", err)
	}

	tbl := findTable(m, symbol)
	if tbl == nil {
		return fmt.Errorf("no vtable matching %q found in %s", symbol, modulePath)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s (%d bytes)\n",
		colorize.Header("vtable"), colorize.FuncName(tbl.Name), colorize.Address(tbl.Start), tbl.Size)

	offsets := make([]uint64, 0, len(tbl.Slots))
	for off := range tbl.Slots {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	for _, off := range offsets {
		slot := tbl.Slots[off]
		label := slot.SymName
		if label == "" {
			label = colorize.Detail("<unresolved>")
		} else {
			label = colorize.FuncName(label)
		}
		if slot.SlotIndex < 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  [rtti+0x%02x] %s -> %s\n", off, colorize.Address(slot.Target), label)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  [%3d] %s -> %s\n", slot.SlotIndex, colorize.Address(slot.Target), label)
	}
	return nil
}

// findTable matches symbol against a vtable's demangled class name first,
// falling back to an exact mangled-symbol match.
func findTable(m *vtabledump.Map, symbol string) *vtabledump.VTable {
	if tbl, ok := m.ByClass[symbol]; ok {
		return tbl
	}
	for _, tbl := range m.Tables {
		if tbl.Name == symbol {
			return tbl
		}
	}
	return nil
}
