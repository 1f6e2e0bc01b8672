package abi

import (
	"testing"
	"unsafe"
)

func TestDescribeKnownTypes(t *testing.T) {
	cases := []struct {
		name string
		get  func() (Param, error)
		want Param
	}{
		{"uint8", Describe[uint8], Param{Kind: KindInt8, Size: 1}},
		{"int8", Describe[int8], Param{Kind: KindInt8, Size: 1}},
		{"uint16", Describe[uint16], Param{Kind: KindInt16, Size: 2}},
		{"int32", Describe[int32], Param{Kind: KindInt32, Size: 4}},
		{"uint64", Describe[uint64], Param{Kind: KindInt64, Size: 8}},
		{"int", Describe[int], Param{Kind: KindInt64, Size: 8}},
		{"uintptr", Describe[uintptr], Param{Kind: KindInt64, Size: 8}},
		{"unsafe.Pointer", Describe[unsafe.Pointer], Param{Kind: KindInt64, Size: 8}},
		{"float32", Describe[float32], Param{Kind: KindFloat32, Size: 4}},
		{"float64", Describe[float64], Param{Kind: KindFloat64, Size: 8}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.get()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("got %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestDescribePointerType(t *testing.T) {
	type thing struct{ x int }
	got, err := Describe[*thing]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != KindInt64 || got.Size != 8 {
		t.Errorf("pointer descriptor = %+v, want 64-bit integer", got)
	}
}

func TestDescribeUnsupportedType(t *testing.T) {
	_, err := Describe[string]()
	if err == nil {
		t.Fatal("expected an error for an unsupported type")
	}
	var unsupported *UnsupportedTypeError
	if !asUnsupported(err, &unsupported) {
		t.Fatalf("got error %v, want *UnsupportedTypeError", err)
	}
}

func asUnsupported(err error, target **UnsupportedTypeError) bool {
	if e, ok := err.(*UnsupportedTypeError); ok {
		*target = e
		return true
	}
	return false
}

func TestMustDescribePanicsOnUnsupportedType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustDescribe to panic on an unsupported type")
		}
	}()
	MustDescribe[map[string]int]()
}
