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

package count

import (
	"github.com/pkg/errors"
	merylgo "github.com/shenwei356/merylgo"
)

// lowBitsMax is the largest count a dense array entry can hold directly;
// one higher value (255) is reserved as the "see the overflow map" sentinel.
const lowBitsMax = 254

// SimpleCounter implements Simple mode: a dense
// array of 4^k (or 4^(k-suffixLen) with a count-suffix configured) low-bit
// counters, each incremented directly, with a sparse hash recording the
// true count once an entry's low bits saturate.
type SimpleCounter struct {
	k         int
	suffixLen int
	low       []uint8
	overflow  map[uint64]uint64
}

// ErrSimpleCounterKTooLarge means the dense array for k (or k-suffixLen)
// would not fit in a Go slice index range on this platform.
var ErrSimpleCounterKTooLarge = errors.New("count: k too large for Simple mode dense array")

// NewSimpleCounter allocates a dense counting array sized for k-mers of
// size k with a fixed trailing count-suffix of suffixLen bases (0 for none).
func NewSimpleCounter(k, suffixLen int) (*SimpleCounter, error) {
	n := SimpleModeArraySize(k, suffixLen)
	if n > (1<<31)-1 {
		return nil, ErrSimpleCounterKTooLarge
	}
	return &SimpleCounter{
		k:         k,
		suffixLen: suffixLen,
		low:       make([]uint8, n),
		overflow:  make(map[uint64]uint64),
	}, nil
}

// index maps a canonical k-mer to its dense array slot: the k-suffixLen
// leading bases when a count-suffix is configured, otherwise the whole
// k-mer. Prefix() reuses the prefix/suffix split with wPrefix set to the
// bits retained in the array.
func (c *SimpleCounter) index(km merylgo.Kmer) uint64 {
	if c.suffixLen == 0 {
		return km.Lo
	}
	return km.Prefix(2 * (c.k - c.suffixLen))
}

// Add canonicalizes fmer/rmer and increments its counter, saturating into
// the overflow hash once the dense counter would wrap past lowBitsMax.
func (c *SimpleCounter) Add(fmer, rmer merylgo.Kmer) {
	km := fmer
	if merylgo.Less(rmer, fmer) {
		km = rmer
	}
	idx := c.index(km)

	if c.low[idx] > lowBitsMax {
		c.overflow[idx]++
		return
	}
	c.low[idx]++
	if c.low[idx] > lowBitsMax {
		c.overflow[idx] = uint64(lowBitsMax) + 1
	}
}

// Value returns the total count recorded for km.
func (c *SimpleCounter) Value(km merylgo.Kmer) uint64 {
	idx := c.index(km)
	if c.low[idx] > lowBitsMax {
		return c.overflow[idx]
	}
	return uint64(c.low[idx])
}

// Len returns the number of dense array entries (distinct index slots),
// not the number of distinct k-mers counted into each slot.
func (c *SimpleCounter) Len() int {
	return len(c.low)
}

// Each calls fn once per populated entry (low[idx] > 0), in ascending
// index order. idx is the array slot, i.e. the k-suffixLen leading bases
// of the k-mer; any configured trailing count-suffix is constant across
// all entries and must be supplied by the caller when rematerializing the
// full k-mer for persistence.
func (c *SimpleCounter) Each(fn func(idx uint64, count uint64)) {
	for idx, v := range c.low {
		if v == 0 {
			continue
		}
		count := uint64(v)
		if v > lowBitsMax {
			count = c.overflow[uint64(idx)]
		}
		fn(uint64(idx), count)
	}
}
