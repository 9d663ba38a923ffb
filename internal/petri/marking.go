package petri

import "sort"

// Marking is a value object mapping place id to a non-negative token count.
// Absent keys are 0. Every firing produces a new Marking; callers never
// mutate one in place (§3.4).
type Marking map[string]int

// NewMarking builds a marking from an initial set of counts, dropping any
// zero-valued entries so that Equal behaves correctly for markings built by
// different code paths.
func NewMarking(counts map[string]int) Marking {
	m := make(Marking, len(counts))
	for id, n := range counts {
		if n != 0 {
			m[id] = n
		}
	}
	return m
}

// Get returns the token count at a place, defaulting to 0 for absent keys.
func (m Marking) Get(placeID string) int {
	return m[placeID]
}

// Equal reports whether two markings agree on every place holding a
// non-zero count.
func (m Marking) Equal(other Marking) bool {
	for id, n := range m {
		if n == 0 {
			continue
		}
		if other[id] != n {
			return false
		}
	}
	for id, n := range other {
		if n == 0 {
			continue
		}
		if m[id] != n {
			return false
		}
	}
	return true
}

// Clone returns an independent copy with zero entries dropped.
func (m Marking) Clone() Marking {
	out := make(Marking, len(m))
	for id, n := range m {
		if n != 0 {
			out[id] = n
		}
	}
	return out
}

// With returns a new marking with delta applied to placeID's count. It
// never mutates m.
func (m Marking) With(placeID string, delta int) Marking {
	out := m.Clone()
	n := out[placeID] + delta
	if n == 0 {
		delete(out, placeID)
	} else {
		out[placeID] = n
	}
	return out
}

// Total returns the sum of all token counts, used by the conservation-law
// test in §8.
func (m Marking) Total() int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

// Key returns a canonical string encoding of the marking, suitable for use
// as a visited-set key in the validator's BFS (sorted place ids, "id=n"
// pairs joined by ";").
func (m Marking) Key() string {
	ids := make([]string, 0, len(m))
	for id, n := range m {
		if n != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]byte, 0, len(ids)*8)
	for i, id := range ids {
		if i > 0 {
			out = append(out, ';')
		}
		out = append(out, id...)
		out = append(out, '=')
		out = appendInt(out, m[id])
	}
	return string(out)
}

func appendInt(b []byte, n int) []byte {
	if n == 0 {
		return append(b, '0')
	}
	neg := n < 0
	if neg {
		n = -n
	}
	start := len(b)
	for n > 0 {
		b = append(b, byte('0'+n%10))
		n /= 10
	}
	if neg {
		b = append(b, '-')
	}
	// reverse the digits appended
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
