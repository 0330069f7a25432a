// Package charset represents sets of Unicode code points as sorted,
// disjoint, non-adjacent ranges. Charsets label finite-automaton
// transitions, so the operations here are pure: every result is a fresh
// normalized set.
package charset

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Range is an inclusive code-point interval [Lo, Hi]. A range with
// Lo > Hi is empty.
type Range struct {
	Lo rune
	Hi rune
}

// Len returns the number of code points in the range.
func (r Range) Len() int {
	if r.Hi < r.Lo {
		return 0
	}
	return int(r.Hi-r.Lo) + 1
}

// Contains reports whether c falls within the range.
func (r Range) Contains(c rune) bool { return r.Lo <= c && c <= r.Hi }

func (r Range) String() string {
	switch {
	case r.Len() == 0:
		return "[]"
	case r.Len() == 1:
		return fmt.Sprintf("[%q]", r.Lo)
	default:
		return fmt.Sprintf("[%q-%q]", r.Lo, r.Hi)
	}
}

// Set is a normalized charset: ranges sorted by Lo, pairwise disjoint
// and non-adjacent, none empty. The zero value is the empty set.
type Set struct {
	ranges []Range
}

// New builds a normalized set from arbitrary ranges: empty ranges are
// dropped, overlapping or adjacent ranges are merged.
func New(ranges ...Range) Set {
	rs := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Len() > 0 {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Lo < rs[j].Lo })
	out := rs[:0]
	for _, r := range rs {
		if n := len(out); n > 0 && r.Lo <= out[n-1].Hi+1 {
			if r.Hi > out[n-1].Hi {
				out[n-1].Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return Set{}
	}
	return Set{ranges: out}
}

// OfRange returns the set {lo..hi}.
func OfRange(lo, hi rune) Set { return New(Range{lo, hi}) }

// Single returns the singleton {c}.
func Single(c rune) Set { return New(Range{c, c}) }

// Chars returns the set of the characters of s.
func Chars(s string) Set {
	rs := make([]Range, 0, len(s))
	for _, c := range s {
		rs = append(rs, Range{c, c})
	}
	return New(rs...)
}

// All returns the set of every Unicode code point.
func All() Set { return New(Range{0, unicode.MaxRune}) }

// Empty returns the empty set.
func Empty() Set { return Set{} }

// Digits returns {0-9}.
func Digits() Set { return OfRange('0', '9') }

// Ranges returns the normalized ranges of the set. Callers must not
// mutate the result.
func (s Set) Ranges() []Range { return s.ranges }

// IsEmpty reports whether the set has no code points.
func (s Set) IsEmpty() bool { return len(s.ranges) == 0 }

// Count returns the number of code points in the set.
func (s Set) Count() int {
	n := 0
	for _, r := range s.ranges {
		n += r.Len()
	}
	return n
}

// Contains reports whether c is a member of the set.
func (s Set) Contains(c rune) bool {
	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].Hi >= c })
	return i < len(s.ranges) && s.ranges[i].Contains(c)
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set {
	return New(append(append([]Range{}, s.ranges...), o.ranges...)...)
}

// Intersect returns s ∩ o.
func (s Set) Intersect(o Set) Set {
	var rs []Range
	for _, a := range s.ranges {
		for _, b := range o.ranges {
			if b.Lo > a.Hi {
				break
			}
			lo, hi := a.Lo, a.Hi
			if b.Lo > lo {
				lo = b.Lo
			}
			if b.Hi < hi {
				hi = b.Hi
			}
			if lo <= hi {
				rs = append(rs, Range{lo, hi})
			}
		}
	}
	return New(rs...)
}

// Difference returns s \ o.
func (s Set) Difference(o Set) Set {
	var rs []Range
	for _, a := range s.ranges {
		parts := []Range{a}
		for _, b := range o.ranges {
			if b.Lo > a.Hi {
				break
			}
			var next []Range
			for _, p := range parts {
				if b.Hi < p.Lo || b.Lo > p.Hi {
					next = append(next, p)
					continue
				}
				if b.Lo > p.Lo {
					next = append(next, Range{p.Lo, b.Lo - 1})
				}
				if b.Hi < p.Hi {
					next = append(next, Range{b.Hi + 1, p.Hi})
				}
			}
			parts = next
		}
		rs = append(rs, parts...)
	}
	return New(rs...)
}

// Complement returns All() \ s.
func (s Set) Complement() Set { return All().Difference(s) }

// Equal reports whether the two sets contain exactly the same points.
func (s Set) Equal(o Set) bool {
	if len(s.ranges) != len(o.ranges) {
		return false
	}
	for i, r := range s.ranges {
		if r != o.ranges[i] {
			return false
		}
	}
	return true
}

// Key returns a canonical string form usable as a map key. Two sets
// have the same key iff they are Equal.
func (s Set) Key() string {
	var b strings.Builder
	for i, r := range s.ranges {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%x-%x", r.Lo, r.Hi)
	}
	return b.String()
}

func (s Set) String() string {
	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		parts[i] = r.String()
	}
	return fmt.Sprintf("{%s} (%d chars)", strings.Join(parts, ", "), s.Count())
}
