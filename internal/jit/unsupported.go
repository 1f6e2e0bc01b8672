//go:build !amd64 && !arm64

package jit

import "fmt"

func build(shape Shape, slot int, dispatcherAddr uintptr) ([]byte, error) {
	return nil, fmt.Errorf("jit: trampoline generation is not implemented for this architecture")
}
