// Package version implements packed firmware versions and the inclusive
// range checks used to gate patch rules.
package version

import (
	"fmt"

	semver "github.com/hashicorp/go-version"
)

// Any disables a range bound.
const Any Version = 0

// Version is a packed major.minor.micro triple (major<<16 | minor<<8 | micro).
type Version uint32

// Make packs a three component version.
func Make(major, minor, micro uint8) Version {
	return Version(uint32(major)<<16 | uint32(minor)<<8 | uint32(micro))
}

// Parse reads a dotted version string such as "13.2.1".
func Parse(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse version %q: %w", s, err)
	}
	seg := v.Segments64()
	for len(seg) < 3 {
		seg = append(seg, 0)
	}
	for _, n := range seg[:3] {
		if n < 0 || n > 0xFF {
			return 0, fmt.Errorf("version %q: component %d out of range", s, n)
		}
	}
	return Make(uint8(seg[0]), uint8(seg[1]), uint8(seg[2])), nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) Major() uint8 { return uint8(v >> 16) }
func (v Version) Minor() uint8 { return uint8(v >> 8) }
func (v Version) Micro() uint8 { return uint8(v) }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Micro())
}

// Range is an inclusive version window. A zero bound is unbounded.
type Range struct {
	Min Version
	Max Version
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v Version) bool {
	return (r.Min == Any || v >= r.Min) && (r.Max == Any || v <= r.Max)
}

// From returns a range with only a lower bound.
func From(min Version) Range { return Range{Min: min} }

// Until returns a range with only an upper bound.
func Until(max Version) Range { return Range{Max: max} }

// Between returns a range bounded on both sides.
func Between(min, max Version) Range { return Range{Min: min, Max: max} }

func (r Range) String() string {
	switch {
	case r.Min == Any && r.Max == Any:
		return "any"
	case r.Max == Any:
		return ">=" + r.Min.String()
	case r.Min == Any:
		return "<=" + r.Max.String()
	}
	return r.Min.String() + "-" + r.Max.String()
}

// Gate holds the platform values rules are checked against. When Enabled is
// false nothing is ever excluded.
type Gate struct {
	Enabled  bool
	Firmware Version
	Provider Version
}

// Allows reports whether a firmware range and a provider range both admit the
// current platform.
func (g Gate) Allows(firmware, provider Range) bool {
	if !g.Enabled {
		return true
	}
	return firmware.Contains(g.Firmware) && provider.Contains(g.Provider)
}
