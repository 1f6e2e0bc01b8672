// Package abi maps native argument/return types to the parameter descriptors
// the trampoline JIT needs in order to generate ABI-faithful machine code.
package abi

import (
	"fmt"
	"reflect"
)

// Kind identifies how a value is passed at the machine level: as an
// integer/pointer-width register, or as a floating-point register of a
// given width.
type Kind int

const (
	// KindInt64 covers raw addresses, references, pointer-width integers,
	// and any type whose ABI passing convention is "one 64-bit integer
	// register" on the supported targets.
	KindInt64 Kind = iota
	KindInt32
	KindInt16
	KindInt8
	KindFloat32
	KindFloat64
)

// String renders a Kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindInt32:
		return "int32"
	case KindInt16:
		return "int16"
	case KindInt8:
		return "int8"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// Param is the code-generator parameter descriptor for one argument or
// return value.
type Param struct {
	Kind Kind
	// Size is the natural width in bytes of the value on the wire (not its
	// register width, which is always 4 or 8 bytes for the kinds above).
	Size int
}

func (p Param) String() string {
	return fmt.Sprintf("%s(%d)", p.Kind, p.Size)
}

// UnsupportedTypeError is returned when DescribeType is given a type outside
// the closed set recognized by the ABI descriptor (spec.md §4.A).
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("abi: unsupported type %s", e.Type)
}

// DescribeType maps a Go type to its ABI parameter descriptor. It recognizes
// exactly the closed set of native types in spec.md §4.A: pointers (any
// pointee, any mutability — Go has no const pointers so both native
// "pointer" and "reference" map to the pointer kind here), the fixed-width
// unsigned/signed integers, and the two IEEE float widths. uintptr and
// unsafe.Pointer are treated as pointer-width integers. Anything else yields
// an *UnsupportedTypeError. The check runs when a closure is registered
// (MustDescribe panics there), not at compile time.
func DescribeType(t reflect.Type) (Param, error) {
	switch t.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Uintptr:
		return Param{Kind: KindInt64, Size: 8}, nil
	case reflect.Uint64, reflect.Int64, reflect.Int:
		return Param{Kind: KindInt64, Size: 8}, nil
	case reflect.Uint32, reflect.Int32:
		return Param{Kind: KindInt32, Size: 4}, nil
	case reflect.Uint16, reflect.Int16:
		return Param{Kind: KindInt16, Size: 2}, nil
	case reflect.Uint8, reflect.Int8:
		return Param{Kind: KindInt8, Size: 1}, nil
	case reflect.Float32:
		return Param{Kind: KindFloat32, Size: 4}, nil
	case reflect.Float64:
		return Param{Kind: KindFloat64, Size: 8}, nil
	default:
		return Param{}, &UnsupportedTypeError{Type: t}
	}
}

// Describe is the generic convenience wrapper used by the rest of the
// package: Describe[uint32]() instead of DescribeType(reflect.TypeFor[uint32]()).
func Describe[T any]() (Param, error) {
	var zero T
	return DescribeType(reflect.TypeOf(&zero).Elem())
}

// MustDescribe panics if T is outside the supported set. Used at
// hook-registration time, where an unsupported closure shape is a
// programmer error the caller should fix, not a runtime condition to
// recover from.
func MustDescribe[T any]() Param {
	p, err := Describe[T]()
	if err != nil {
		panic(err)
	}
	return p
}
