// Package instreg is the process-wide instance registry of spec.md §4.E: a
// single mapping from instance address to a weak reference to its overlay,
// so that multiple hooks on one instance share one clone.
//
// The registry intentionally holds only a weak reference (via the standard
// library's weak.Pointer, introduced in Go 1.24) so it does not participate
// in any retain cycle with the hook handles that keep an overlay alive —
// see spec.md §9 "Cyclic references". A dead weak entry is replaced with a
// freshly built overlay the next time the same instance is looked up.
package instreg

import (
	"sync"
	"weak"

	"github.com/kestrel-re/vmthook/internal/overlay"
)

// Registry is the singleton-shaped instance -> weak(*overlay.Overlay) map.
// One mutex protects it, held for the duration of each method call
// (GetOrCreate holds it across build), per spec.md §5.
type Registry struct {
	mu    sync.Mutex
	table map[uintptr]weak.Pointer[overlay.Overlay]
}

// New returns an empty registry. Most callers should use the process-wide
// Default instance instead of constructing their own, but a private
// Registry is useful in tests that must not share state with other tests.
func New() *Registry {
	return &Registry{table: make(map[uintptr]weak.Pointer[overlay.Overlay])}
}

var defaultOnce sync.Once
var defaultReg *Registry

// Default returns the process-wide instance registry, created lazily on
// first use (spec.md §9 "Process-wide state").
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
	})
	return defaultReg
}

// GetOrCreate returns the live overlay for instance, creating one with
// build if none exists or the previously recorded one has been collected.
func (r *Registry) GetOrCreate(instance uintptr, build func() (*overlay.Overlay, error)) (*overlay.Overlay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wp, ok := r.table[instance]; ok {
		if o := wp.Value(); o != nil {
			return o, nil
		}
		// Stale weak entry: the overlay it pointed to is gone.
		delete(r.table, instance)
	}

	o, err := build()
	if err != nil {
		return nil, err
	}
	r.table[instance] = weak.Make(o)
	return o, nil
}

// Lookup returns the live overlay for instance without creating one. Used
// by the generic dispatcher (spec.md §4.G step 1), which must never
// fabricate an overlay: by the time a trampoline fires, installation has
// already created it.
func (r *Registry) Lookup(instance uintptr) (*overlay.Overlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wp, ok := r.table[instance]
	if !ok {
		return nil, false
	}
	o := wp.Value()
	if o == nil {
		delete(r.table, instance)
		return nil, false
	}
	return o, true
}

// Forget removes the recorded entry for instance, if any. Overlay teardown
// calls this so a subsequent hook on the same (possibly recycled) address
// does not spuriously resolve a weak pointer to a torn-down overlay that
// the garbage collector has not yet reclaimed.
func (r *Registry) Forget(instance uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.table, instance)
}

// Len reports the number of entries currently recorded, live or stale. Used
// by tests checking that Lookup and Forget remove entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.table)
}
