// Package collections provides the visited sets and worklists of graph walks.
package collections

import "math/bits"

// Bitset is a growable set of non-negative ints, one bit each. Node
// handles are dense arena indexes, so a visited set over the whole graph
// costs NodeCount/8 bytes.
type Bitset struct {
	words []uint64
}

// NewBitset creates a bitset with room for n elements before it grows.
func NewBitset(n int) *Bitset {
	return &Bitset{words: make([]uint64, (max(n, 1)+63)/64)}
}

func split(i int) (word int, mask uint64) {
	return i >> 6, 1 << uint(i&63)
}

// Test reports whether i is in the set. Negative i never is.
func (b *Bitset) Test(i int) bool {
	w, mask := split(i)
	return i >= 0 && w < len(b.words) && b.words[w]&mask != 0
}

// Set adds i. Negative i is ignored.
func (b *Bitset) Set(i int) {
	if i < 0 {
		return
	}
	w, mask := split(i)
	if w >= len(b.words) {
		grown := make([]uint64, max(w+1, 2*len(b.words)))
		copy(grown, b.words)
		b.words = grown
	}
	b.words[w] |= mask
}

// TestAndSet adds i and reports whether it was present before.
func (b *Bitset) TestAndSet(i int) bool {
	if b.Test(i) {
		return true
	}
	b.Set(i)
	return false
}

// Len returns the number of elements.
func (b *Bitset) Len() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Each calls fn for every element in ascending order.
func (b *Bitset) Each(fn func(i int)) {
	for wi, w := range b.words {
		for ; w != 0; w &= w - 1 {
			fn(wi<<6 + bits.TrailingZeros64(w))
		}
	}
}
