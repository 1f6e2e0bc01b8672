package instreg

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/kestrel-re/vmthook/internal/overlay"
)

func newOverlay(t *testing.T, table ...uintptr) (*overlay.Overlay, uintptr) {
	t.Helper()
	full := append(append([]uintptr{}, table...), 0)
	backing := &struct{ table *uintptr }{table: &full[0]}
	ov, err := overlay.New(unsafe.Pointer(backing), overlay.DefaultScanCap)
	if err != nil {
		t.Fatalf("overlay.New: %v", err)
	}
	return ov, uintptr(unsafe.Pointer(backing))
}

func TestGetOrCreateDedupesSameInstance(t *testing.T) {
	r := New()
	addr := uintptr(0x1000)
	calls := 0

	build := func() (*overlay.Overlay, error) {
		calls++
		ov, _ := newOverlay(t, 0x10, 0x20)
		return ov, nil
	}

	first, err := r.GetOrCreate(addr, build)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := r.GetOrCreate(addr, build)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first != second {
		t.Error("expected the second GetOrCreate to return the same overlay")
	}
	if calls != 1 {
		t.Errorf("build ran %d times, want 1", calls)
	}
}

func TestLookupDoesNotCreate(t *testing.T) {
	r := New()
	if _, ok := r.Lookup(0x2000); ok {
		t.Error("expected Lookup on an unknown instance to report false")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (Lookup must not create an entry)", r.Len())
	}
}

func TestForgetRemovesEntry(t *testing.T) {
	r := New()
	addr := uintptr(0x3000)
	ov, _ := newOverlay(t, 0x10)
	r.GetOrCreate(addr, func() (*overlay.Overlay, error) { return ov, nil })

	r.Forget(addr)
	if r.Len() != 0 {
		t.Errorf("Len() after Forget = %d, want 0", r.Len())
	}
	if _, ok := r.Lookup(addr); ok {
		t.Error("expected Lookup after Forget to report false")
	}
}

func TestStaleWeakEntryIsReclaimed(t *testing.T) {
	r := New()
	addr := uintptr(0x4000)

	func() {
		ov, _ := newOverlay(t, 0x10)
		r.GetOrCreate(addr, func() (*overlay.Overlay, error) { return ov, nil })
	}()

	runtime.GC()
	runtime.GC()

	calls := 0
	got, err := r.GetOrCreate(addr, func() (*overlay.Overlay, error) {
		calls++
		ov, _ := newOverlay(t, 0x99)
		return ov, nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	_ = got
	// This assertion is inherently best-effort: the GC is not guaranteed to
	// collect the first overlay before the second GetOrCreate runs. It
	// documents the intended reclaim behavior rather than asserting it
	// deterministically.
	t.Logf("rebuilt overlay: %v (calls=%d)", calls > 0, calls)
}
