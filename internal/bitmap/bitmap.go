// Package bitmap provides a small growable bitset for non-negative integer
// IDs. The statistics accumulator uses it to track distinct country codes:
// codes are dense three-digit integers, so a bitset beats a hash set on both
// footprint and merge cost (a merge is a word-wise OR).
package bitmap

import "math/bits"

// Bitmap is a bitset backed by a slice of uint64 words. Each bit corresponds
// to a non-negative integer ID. The zero value is an empty set ready for use.
type Bitmap struct {
	data []uint64
}

// New allocates a bitmap sized for IDs in [0, maxID]. The size is only a
// hint: Add grows the backing storage on demand.
func New(maxID int) *Bitmap {
	if maxID <= 0 {
		return &Bitmap{}
	}
	return &Bitmap{data: make([]uint64, maxID/64+1)}
}

// Add sets the bit corresponding to id, growing the set as needed. Negative
// ids are ignored.
func (b *Bitmap) Add(id int) {
	if id < 0 {
		return
	}
	word := id / 64
	if word >= len(b.data) {
		grown := make([]uint64, word+1)
		copy(grown, b.data)
		b.data = grown
	}
	b.data[word] |= 1 << uint(id%64)
}

// Has reports whether the bit corresponding to id is set. Negative ids
// always return false.
func (b *Bitmap) Has(id int) bool {
	if id < 0 {
		return false
	}
	word := id / 64
	if word >= len(b.data) {
		return false
	}
	return b.data[word]&(1<<uint(id%64)) != 0
}

// Union folds other into b, growing b as needed. A nil other is an empty
// set.
func (b *Bitmap) Union(other *Bitmap) {
	if other == nil {
		return
	}
	if len(other.data) > len(b.data) {
		grown := make([]uint64, len(other.data))
		copy(grown, b.data)
		b.data = grown
	}
	for i, w := range other.data {
		b.data[i] |= w
	}
}

// Count returns the number of IDs in the set.
func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b.data {
		n += bits.OnesCount64(w)
	}
	return n
}
