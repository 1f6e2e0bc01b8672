// Command gen regenerates internal/dispatch/arityN.go and the Hook
// constructors in hook_arityN.go for arities 0 through maxArity.
//
// Per spec.md §9 "Polymorphic closures over varied arities", the source
// this spec was distilled from gets per-arity specialization from a Rust
// macro; this is the Go equivalent the design notes call for — "a small
// code generator run at build time that emits the five specializations".
// It is run by hand (`go run ./internal/gen`) and its output is committed,
// not invoked via go:generate, so that the repository builds without this
// tool needing to run first.
package main

import (
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"
)

const maxArity = 5

func main() {
	for n := 0; n <= maxArity; n++ {
		write(filepath.Join("internal", "dispatch", fmt.Sprintf("arity%d.go", n)), renderDispatch(n))
		write(fmt.Sprintf("hook_arity%d.go", n), renderHook(n))
	}
}

func write(path, src string) {
	formatted, err := format.Source([]byte(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n%s\n", path, err, src)
		os.Exit(1)
	}
	if err := os.WriteFile(path, formatted, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		os.Exit(1)
	}
}

func typeParams(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("A%d", i)
	}
	return out
}

func renderDispatch(n int) string {
	args := typeParams(n)
	targs := strings.Join(mapStrings(args, func(a string) string { return a + " any" }), ", ")
	tparams := strings.Join(args, ", ")
	params := strings.Join(mapIndexed(n, func(i int) string { return fmt.Sprintf("a%d %s", i, args[i]) }), ", ")
	callArgs := strings.Join(mapIndexed(n, func(i int) string { return fmt.Sprintf("a%d", i) }), ", ")
	rawParams := strings.Join(args, ", ")

	typeForArgs := ""
	for _, a := range args {
		typeForArgs += fmt.Sprintf(", reflect.TypeFor[%s]()", a)
	}

	tp := func(s string) string {
		if n == 0 {
			return "R, T"
		}
		return "R, T, " + s
	}

	return fmt.Sprintf(`// Code generated by internal/gen for arity %[1]d. DO NOT EDIT.

package dispatch

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/kestrel-re/vmthook/internal/instreg"
)

// Closure%[1]d is the shape of a hook closure forwarding %[8]s.
type Closure%[1]d[R any, T any%[2]s] func(ctx *FuncContext%[1]d[%[3]s], this *T%[4]s) R

// RawFunc%[1]d is the calling-convention type of the original virtual
// function this shape hooks.
type RawFunc%[1]d[R any, T any%[2]s] func(this *T%[4]s) R

// FuncContext%[1]d is passed to a Closure%[1]d on every dispatch.
type FuncContext%[1]d[R any, T any%[2]s] struct {
	Context
	original RawFunc%[1]d[%[3]s]
}

// CallOriginal invokes the function this hook replaced.
func (c *FuncContext%[1]d[%[3]s]) CallOriginal(this *T%[4]s) R {
	return c.original(this%[5]s)
}

func bindOriginal%[1]d[R any, T any%[2]s](addr uintptr) RawFunc%[1]d[%[3]s] {
	var fn func(*T%[6]s) R
	purego.RegisterFunc(&fn, addr)
	return RawFunc%[1]d[%[3]s](fn)
}

var dispatchCache%[1]d = newCache()

// DispatcherFor%[1]d returns the process-resident dispatcher address for the
// (%[3]s) closure shape.
func DispatcherFor%[1]d[R any, T any%[2]s]() uintptr {
	key := shapeKey(reflect.TypeFor[R](), reflect.TypeFor[T]()%[7]s)
	return dispatchCache%[1]d.getOrCompile(key, func() uintptr {
		fn := func(slot uintptr, this *T%[4]s) R {
			instance := uintptr(unsafe.Pointer(this))
			ov, ok := instreg.Default().Lookup(instance)
			if !ok {
				panic(fmt.Sprintf("dispatch: no overlay for instance 0x%%x", instance))
			}
			entry, ok := ov.Lookup(int(slot))
			if !ok {
				panic(fmt.Sprintf("dispatch: no closure registered for slot %%d on instance 0x%%x", slot, instance))
			}
			closureFn := *(*Closure%[1]d[%[3]s])(entry.Closure)

			original, err := ov.OriginalFunction(int(slot))
			if err != nil {
				panic(err)
			}

			ctx := &FuncContext%[1]d[%[3]s]{
				Context:  Context{Overlay: ov, Slot: int(slot)},
				original: bindOriginal%[1]d[%[3]s](original),
			}
			return closureFn(ctx, this%[5]s)
		}
		return uintptr(purego.NewCallback(fn))
	})
}

// BoxClosure%[1]d heap-allocates closure and returns a GC-visible pointer to
// it, suitable for storing in a closure.Entry.
func BoxClosure%[1]d[R any, T any%[2]s](closure Closure%[1]d[%[3]s]) unsafe.Pointer {
	box := new(Closure%[1]d[%[3]s])
	*box = closure
	return unsafe.Pointer(box)
}
`, n, withLeadingComma(targs), tp(tparams), withLeadingComma(params), withLeadingComma(callArgs), withLeadingComma(rawParams), typeForArgs, argPhrase(n, "original argument"))
}

func renderHook(n int) string {
	args := typeParams(n)
	targs := strings.Join(mapStrings(args, func(a string) string { return a + " any" }), ", ")
	tparamsJoin := strings.Join(append([]string{"R", "T"}, args...), ", ")
	shapeCallTargs := tparamsJoin
	shapeDeclTargs := strings.Join(append([]string{"R any", "T any"}, mapStrings(args, func(a string) string { return a + " any" })...), ", ")

	paramsAbi := "abi.MustDescribe[*T]()"
	for _, a := range args {
		paramsAbi += fmt.Sprintf(", abi.MustDescribe[%s]()", a)
	}

	reflectParts := []string{"reflect.TypeFor[R]().String()", "reflect.TypeFor[T]().String()"}
	fmtVerbs := "%s_%s"
	for _, a := range args {
		reflectParts = append(reflectParts, fmt.Sprintf("reflect.TypeFor[%s]().String()", a))
		fmtVerbs += "_%s"
	}

	return fmt.Sprintf(`// Code generated by internal/gen for arity %[1]d. DO NOT EDIT.

package vmthook

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/kestrel-re/vmthook/internal/abi"
	"github.com/kestrel-re/vmthook/internal/closure"
	"github.com/kestrel-re/vmthook/internal/dispatch"
	"github.com/kestrel-re/vmthook/internal/jit"
)

// Hook%[1]d installs a hook on a virtual function taking %[9]s beyond
// the receiver.
func Hook%[1]d[T any, R any%[2]s](instance *T, slot int, fn dispatch.Closure%[1]d[%[3]s]) (*Hook, error) {
	addr := uintptr(unsafe.Pointer(instance))

	ov, err := resolveOverlay(addr)
	if err != nil {
		return nil, opError(fmt.Sprintf("install slot %%d for instance 0x%%x", slot, addr), err)
	}

	// Fail fast on an out-of-range slot before spending a JIT compile on it.
	if _, err := ov.OriginalFunction(slot); err != nil {
		installRollback(ov, slot, false)
		return nil, opError(fmt.Sprintf("install slot %%d for instance 0x%%x", slot, addr), err)
	}

	shape := jit.Shape{
		Name:   shapeName%[1]d[%[4]s](),
		Return: abi.MustDescribe[R](),
		Params: []abi.Param{%[5]s},
	}
	dispatcher := dispatch.DispatcherFor%[1]d[%[3]s]()
	trampoline, err := jit.Default().EmitTrampoline(shape, slot, dispatcher)
	if err != nil {
		installRollback(ov, slot, false)
		return nil, opError(fmt.Sprintf("install slot %%d for instance 0x%%x", slot, addr), err)
	}

	entry := closure.Entry{Closure: dispatch.BoxClosure%[1]d(fn), Trampoline: trampoline}
	if err := ov.Install(slot, trampoline, entry); err != nil {
		installRollback(ov, slot, false)
		return nil, opError(fmt.Sprintf("install slot %%d for instance 0x%%x", slot, addr), err)
	}

	return &Hook{ov: ov, slot: slot}, nil
}

func shapeName%[1]d[%[6]s]() string {
	return fmt.Sprintf("%[7]s", %[8]s)
}
`, n, withLeadingComma(targs), tparamsJoin, shapeCallTargs, paramsAbi, shapeDeclTargs, fmtVerbs, strings.Join(reflectParts, ", "), argPhrase(n, "argument"))
}

// argPhrase renders an argument count the way the generated doc comments
// read: "no arguments", "one argument", "2 arguments".
func argPhrase(n int, noun string) string {
	switch n {
	case 0:
		return "no " + noun + "s"
	case 1:
		return "one " + noun
	default:
		return fmt.Sprintf("%d %ss", n, noun)
	}
}

func withLeadingComma(s string) string {
	if s == "" {
		return ""
	}
	return ", " + s
}

func mapStrings(in []string, f func(string) string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

func mapIndexed(n int, f func(int) string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}
