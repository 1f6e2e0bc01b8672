// Package dispatch implements the generic dispatcher of spec.md §4.G: one
// process-resident routine per closure shape, reached by every trampoline
// the JIT emits for that shape. It recovers the registered closure and the
// original function pointer from the instance registry, runs the closure,
// and returns its result.
//
// Go has no cgo-free way to hand a raw, indirectly-callable C function
// pointer to arbitrary native code short of hand-written per-arch
// assembly. github.com/ebitengine/purego already solves exactly this for
// both directions — purego.NewCallback turns a Go closure into a stable
// address native code can call, and purego.RegisterFunc turns a raw address
// into a repeatedly-callable typed Go function — so dispatch uses it for
// both the dispatcher's own entry point and for calling through to a
// hooked slot's original function. The per-hook trampoline that bakes in
// the slot index and hands off to a shape's dispatcher is the part the
// JIT actually generates (internal/jit); purego is not involved there.
//
// One file exists per arity (0 through 5), generated by internal/gen from
// a single template — see arity0.go..arity5.go. This file holds the parts
// common to every arity.
package dispatch

import (
	"reflect"
	"strings"
	"sync"

	"github.com/kestrel-re/vmthook/internal/overlay"
)

// Context is embedded in every per-arity FuncContext type. It carries the
// state call_original needs: the overlay that owns this slot, kept alive
// for the duration of the call by virtue of the dispatcher holding a
// reference to it.
type Context struct {
	Overlay *overlay.Overlay
	Slot    int
}

// shapeKey builds a stable cache key for a closure shape from its ordered
// list of Go types (return type first, then receiver, then arguments).
// Shapes are cached per-arity (see arityN.go), so the key does not need to
// encode arity itself.
func shapeKey(types ...reflect.Type) string {
	var b strings.Builder
	for i, t := range types {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.String())
	}
	return b.String()
}

// cache is a typed wrapper around a shape-keyed map of compiled dispatcher
// addresses, one instance per arity.
type cache struct {
	mu      sync.Mutex
	entries map[string]uintptr
}

func newCache() *cache {
	return &cache{entries: make(map[string]uintptr)}
}

func (c *cache) getOrCompile(key string, compile func() uintptr) uintptr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr, ok := c.entries[key]; ok {
		return addr
	}
	addr := compile()
	c.entries[key] = addr
	return addr
}
