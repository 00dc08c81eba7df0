package pattern

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// MaxPatchBytes is the largest payload a Bytes value can carry.
const MaxPatchBytes = 32

var (
	// ErrOddLength is returned for hex payloads with an unpaired nibble.
	ErrOddLength = errors.New("pattern: odd number of hex digits")
	// ErrWildcard is returned when a payload literal contains '.'.
	ErrWildcard = errors.New("pattern: wildcard in patch bytes")
)

// Bytes is a concrete patch payload written verbatim into process memory.
type Bytes []byte

// ParseBytes decodes a hex literal (optional 0x prefix) into a payload.
func ParseBytes(s string) (Bytes, error) {
	s = trimPrefix(s)
	switch {
	case len(s) == 0:
		return nil, ErrEmpty
	case strings.IndexByte(s, '.') >= 0:
		return nil, ErrWildcard
	case len(s)%2 != 0:
		return nil, ErrOddLength
	case len(s)/2 > MaxPatchBytes:
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLong, len(s)/2, MaxPatchBytes)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChar, err)
	}
	return Bytes(b), nil
}

// MustBytes is like ParseBytes but panics on malformed input.
func MustBytes(s string) Bytes {
	b, err := ParseBytes(s)
	if err != nil {
		panic(`pattern: ParseBytes(` + s + `): ` + err.Error())
	}
	return b
}

// FromUint8 serializes v as a single byte.
func FromUint8(v uint8) Bytes {
	return Bytes{v}
}

// FromUint16 serializes v little-endian.
func FromUint16(v uint16) Bytes {
	return Bytes(binary.LittleEndian.AppendUint16(nil, v))
}

// FromUint32 serializes v little-endian.
func FromUint32(v uint32) Bytes {
	return Bytes(binary.LittleEndian.AppendUint32(nil, v))
}

// FromUint64 serializes v little-endian.
func FromUint64(v uint64) Bytes {
	return Bytes(binary.LittleEndian.AppendUint64(nil, v))
}

// Equal reports whether site begins with exactly these bytes. A site shorter
// than the payload never matches.
func (b Bytes) Equal(site []byte) bool {
	if len(b) == 0 || len(site) < len(b) {
		return false
	}
	return bytes.Equal(b, site[:len(b)])
}

func (b Bytes) String() string {
	return strings.ToUpper(hex.EncodeToString(b))
}
