// Package visited tracks which graph rows a traversal has already seen.
package visited

// Set is a bitset with a dirty list so a traversal can be reset without
// re-zeroing the whole bitset.
type Set struct {
	bits  []uint64
	dirty []uint32
}

// New creates a set sized for the given number of rows.
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks a row as seen.
func (s *Set) Visit(row uint32) {
	word := int(row >> 6)
	mask := uint64(1) << (row & 63)

	if word >= len(s.bits) {
		s.grow(word + 1)
	}

	if s.bits[word]&mask == 0 {
		s.bits[word] |= mask
		s.dirty = append(s.dirty, row)
	}
}

// Visited reports whether the row has been seen.
func (s *Set) Visited(row uint32) bool {
	word := int(row >> 6)
	if word >= len(s.bits) {
		return false
	}
	return s.bits[word]&(uint64(1)<<(row&63)) != 0
}

// Reset clears only the rows touched since the last reset.
func (s *Set) Reset() {
	for _, row := range s.dirty {
		s.bits[row>>6] &^= uint64(1) << (row & 63)
	}
	s.dirty = s.dirty[:0]
}

func (s *Set) grow(words int) {
	newCap := len(s.bits) * 2
	if newCap < words {
		newCap = words
	}
	next := make([]uint64, newCap)
	copy(next, s.bits)
	s.bits = next
}
