// Package pattern parses hex signatures with nibble wildcards and scans byte
// buffers for them.
package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// MaxNibbles is the largest number of nibbles a Pattern can hold.
const MaxNibbles = 64

// Wildcard marks a nibble position that matches any value.
const Wildcard uint8 = 0xFF

var (
	// ErrEmpty is returned when a literal has no nibbles after the optional 0x prefix.
	ErrEmpty = errors.New("pattern: empty literal")
	// ErrTooLong is returned when a literal does not fit the declared capacity.
	ErrTooLong = errors.New("pattern: literal exceeds capacity")
	// ErrInvalidChar is returned for characters that are neither hex digits nor '.'.
	ErrInvalidChar = errors.New("pattern: invalid character")
)

// Pattern is an ordered sequence of nibble matchers. Nibble 2k is compared
// against the high nibble of byte k of a candidate, nibble 2k+1 against its
// low nibble.
type Pattern struct {
	nibbles [MaxNibbles]uint8
	size    int
}

func trimPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Parse converts a literal such as "0x1F90..31" into a Pattern. Every
// character is one nibble and '.' is a wildcard nibble.
func Parse(s string) (Pattern, error) {
	var p Pattern

	s = trimPrefix(s)
	if len(s) == 0 {
		return p, ErrEmpty
	}
	if len(s) > MaxNibbles {
		return p, fmt.Errorf("%w: %d nibbles (max %d)", ErrTooLong, len(s), MaxNibbles)
	}

	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			p.nibbles[i] = Wildcard
			continue
		}
		n, ok := hexNibble(s[i])
		if !ok {
			return Pattern{}, fmt.Errorf("%w %q at position %d", ErrInvalidChar, s[i], i)
		}
		p.nibbles[i] = n
	}
	p.size = len(s)

	return p, nil
}

// MustParse is like Parse but panics if the literal is malformed. It is meant
// for static rule tables so that a bad literal fails at package init.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(`pattern: Parse(` + s + `): ` + err.Error())
	}
	return p
}

// Len returns the number of nibbles in the pattern.
func (p Pattern) Len() int {
	return p.size
}

// ByteLen returns the number of memory bytes a match covers.
func (p Pattern) ByteLen() int {
	return (p.size + 1) / 2
}

// Nibble returns the matcher at position i (Wildcard or 0-15).
func (p Pattern) Nibble(i int) uint8 {
	return p.nibbles[i]
}

// Wildcards returns the number of wildcard nibbles.
func (p Pattern) Wildcards() int {
	var n int
	for i := 0; i < p.size; i++ {
		if p.nibbles[i] == Wildcard {
			n++
		}
	}
	return n
}

// String renders the pattern in canonical upper case form without prefix.
func (p Pattern) String() string {
	const digits = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(p.size)
	for i := 0; i < p.size; i++ {
		if p.nibbles[i] == Wildcard {
			sb.WriteByte('.')
		} else {
			sb.WriteByte(digits[p.nibbles[i]])
		}
	}
	return sb.String()
}
