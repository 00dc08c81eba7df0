package pattern

import "iter"

// Match reports whether buf starts with the pattern.
func (p Pattern) Match(buf []byte) bool {
	if p.size == 0 || len(buf) < p.ByteLen() {
		return false
	}
	for i := 0; i < p.size; i++ {
		want := p.nibbles[i]
		if want == Wildcard {
			continue
		}
		b := buf[i>>1]
		var got uint8
		if i&1 == 0 {
			got = b >> 4
		} else {
			got = b & 0x0F
		}
		if got != want {
			return false
		}
	}
	return true
}

// Index returns the offset of the first match at or after from, or -1.
func (p Pattern) Index(buf []byte, from int) int {
	if from < 0 {
		from = 0
	}
	n := p.ByteLen()
	if p.size == 0 {
		return -1
	}
	for i := from; i+n <= len(buf); i++ {
		if p.Match(buf[i:]) {
			return i
		}
	}
	return -1
}

// All yields every match offset in buf in ascending order. Matches may
// overlap. The sequence keeps no state between iterations over different
// buffers.
func (p Pattern) All(buf []byte) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := p.Index(buf, 0); i >= 0; i = p.Index(buf, i+1) {
			if !yield(i) {
				return
			}
		}
	}
}

// Find collects every match offset in buf.
func (p Pattern) Find(buf []byte) []int {
	var offsets []int
	for off := range p.All(buf) {
		offsets = append(offsets, off)
	}
	return offsets
}
