// Package patternscan implements IDA-style byte-pattern scanning over a
// module's code segment, the "Pattern scanner" collaborator spec.md
// describes only through the interface it offers the core (§6): given a
// pattern with wildcard bytes, find where it occurs in a byte slice.
//
// No third-party byte-pattern scanner appears anywhere in the retrieval
// pack and none is an established ecosystem dependency for this narrow a
// need, so this package is hand-rolled on the standard library; see
// DESIGN.md for that justification.
package patternscan

import (
	"fmt"
	"strconv"
	"strings"
)

// Pattern is a compiled byte sequence where some positions match any byte.
type Pattern struct {
	bytes    []byte
	wildcard []bool
}

// ParseError is returned by Compile when a pattern token is neither a
// one- or two-digit hex byte nor a wildcard marker ("?" or "??").
type ParseError struct {
	Token string
	Index int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("patternscan: invalid token %q at position %d", e.Token, e.Index)
}

// Compile parses a whitespace-separated IDA-style pattern, e.g.
// "48 8B ?? 00 C3" or "48 8b ? 00 c3".
func Compile(s string) (Pattern, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return Pattern{}, fmt.Errorf("patternscan: empty pattern")
	}

	p := Pattern{
		bytes:    make([]byte, len(tokens)),
		wildcard: make([]bool, len(tokens)),
	}
	for i, tok := range tokens {
		if tok == "?" || tok == "??" {
			p.wildcard[i] = true
			continue
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return Pattern{}, &ParseError{Token: tok, Index: i}
		}
		p.bytes[i] = byte(v)
	}
	return p, nil
}

// Len reports the pattern's length in bytes.
func (p Pattern) Len() int { return len(p.bytes) }

func (p Pattern) matchesAt(code []byte, pos int) bool {
	if pos+len(p.bytes) > len(code) {
		return false
	}
	for i, b := range p.bytes {
		if p.wildcard[i] {
			continue
		}
		if code[pos+i] != b {
			return false
		}
	}
	return true
}

// FindFirst returns the offset of the first match at or after offset, and
// whether one was found.
func (p Pattern) FindFirst(code []byte, offset int) (int, bool) {
	if offset < 0 {
		offset = 0
	}
	for pos := offset; pos+len(p.bytes) <= len(code); pos++ {
		if p.matchesAt(code, pos) {
			return pos, true
		}
	}
	return 0, false
}

// FindAll returns every non-overlapping match offset at or after offset, in
// ascending order.
func (p Pattern) FindAll(code []byte, offset int) []int {
	var matches []int
	pos := offset
	for {
		idx, ok := p.FindFirst(code, pos)
		if !ok {
			return matches
		}
		matches = append(matches, idx)
		pos = idx + p.Len()
	}
}
