// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package meryl

// BitArray is a fixed-length array of single bits backed by a []uint64.
//
// Get/Set are safe to call concurrently from multiple goroutines as long as
// distinct calls touch distinct 64-bit backing words; concurrent Set calls
// that land in the same word race and the caller must coordinate externally
// (e.g. by assigning disjoint index ranges per goroutine).
type BitArray struct {
	words []uint64
	n     uint64
}

// NewBitArray allocates a BitArray holding n bits, all initially clear.
func NewBitArray(n uint64) *BitArray {
	return &BitArray{
		words: make([]uint64, (n+63)/64),
		n:     n,
	}
}

// Len returns the number of bits in the array.
func (b *BitArray) Len() uint64 {
	return b.n
}

// Get reports whether bit i is set.
func (b *BitArray) Get(i uint64) bool {
	return (b.words[i/64]>>(i%64))&1 != 0
}

// Set assigns bit i.
func (b *BitArray) Set(i uint64, v bool) {
	mask := uint64(1) << (i % 64)
	if v {
		b.words[i/64] |= mask
	} else {
		b.words[i/64] &^= mask
	}
}

// Flip inverts bit i.
func (b *BitArray) Flip(i uint64) {
	b.words[i/64] ^= uint64(1) << (i % 64)
}

// Clear resets every bit to zero.
func (b *BitArray) Clear() {
	for i := range b.words {
		b.words[i] = 0
	}
}
