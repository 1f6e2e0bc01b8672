// Package addrplan evaluates an address-resolution plan: a short sequence
// of steps that walks from a known starting address (usually a pattern
// match) to the address a caller actually wants, by chasing RIP-relative
// loads, ADRP/LDR page-and-offset pairs, and plain pointer arithmetic.
//
// A plan is data, not code: it is meant to be checked into a YAML file next
// to the byte pattern it follows, so a new OS build that shifts a function
// by a few bytes can be repointed without a recompile.
package addrplan

import (
	"runtime"

	"github.com/kestrel-re/vmthook"
)

// ActionKind names one step of a plan. The string values are also the YAML
// discriminator values, matching the tagged-union encoding used by the
// reference implementation this package's semantics were carried over from.
type ActionKind string

const (
	ActionAdd                               ActionKind = "Add"
	ActionResolveRelative                   ActionKind = "ResolveRelative"
	ActionDereference                       ActionKind = "Dereference"
	ActionResolvePageAndOffsetAddress       ActionKind = "ResolvePageAndOffsetAddress"
	ActionImmediateFromInstructionAtAddress ActionKind = "ImmediateFromInstructionAtAddress"
	ActionResolveImmediateRelativeAddress   ActionKind = "ResolveImmediateRelativeAddress"
	ActionResolvePageOffsetRelativeAddress  ActionKind = "ResolvePageOffsetRelativeAddress"
	ActionCustom                            ActionKind = "Custom"
)

// Action is one step of a plan. Only the fields relevant to Kind are read;
// the rest are zero. This mirrors the internally-tagged enum the plan
// format was carried over from: one discriminator field plus whichever
// payload fields that variant uses, all at the same YAML level.
type Action struct {
	Kind   ActionKind `yaml:"action"`
	Offset int64      `yaml:"offset,omitempty"`
	Name   string     `yaml:"name,omitempty"`
}

// CustomActionFn is a caller-supplied step referenced by a Custom action.
type CustomActionFn func(address uint64) (uint64, error)

// evaluateArchAction (defined per-arch in amd64.go / arm64.go /
// unsupported.go) handles the actions whose implementation differs by
// architecture. handled is false when action.Kind is not implemented on the
// running architecture, in which case Evaluate reports UnsupportedAction.

// Evaluate walks start through plan in order, returning the final address.
// Add and Custom are handled uniformly across architectures; everything
// else is delegated to the architecture's own resolver.
func Evaluate(start uint64, plan []Action, custom map[string]CustomActionFn) (uint64, error) {
	address := start
	for _, action := range plan {
		switch action.Kind {
		case ActionAdd:
			next, err := checkedAddSigned(address, action.Offset)
			if err != nil {
				return 0, err
			}
			address = next

		case ActionCustom:
			fn, ok := custom[action.Name]
			if !ok {
				return 0, &vmthook.UnknownCustomAction{Name: action.Name}
			}
			next, err := fn(address)
			if err != nil {
				return 0, err
			}
			address = next

		default:
			next, handled, err := evaluateArchAction(action, address)
			if err != nil {
				return 0, err
			}
			if !handled {
				return 0, &vmthook.UnsupportedAction{Action: string(action.Kind), Arch: runtime.GOARCH}
			}
			address = next
		}
	}
	return address, nil
}

// checkedAddSigned adds a signed offset to an unsigned address, failing on
// overflow or underflow of the 64-bit address space rather than wrapping.
func checkedAddSigned(base uint64, offset int64) (uint64, error) {
	result := base + uint64(offset)
	if offset >= 0 {
		if result < base {
			return 0, &vmthook.ArithmeticOverflow{Op: "add", Base: int64(base), Offset: offset}
		}
	} else {
		if result > base {
			return 0, &vmthook.ArithmeticOverflow{Op: "add", Base: int64(base), Offset: offset}
		}
	}
	return result, nil
}
