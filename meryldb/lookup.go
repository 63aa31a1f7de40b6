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

package meryldb

import (
	"sort"

	"github.com/pkg/errors"
	meryl "github.com/shenwei356/merylgo"
)

// lookupMinWPrefix bounds the index-sizing search range: wPrefix in [6, 2k].
const lookupMinWPrefix = 6

// lookupStructBytes approximates the per-prefix (bgn,len) pair cost in the
// Configure pass's footprint formula: two uint64 words.
const lookupStructBytes = 16

// ConfigureLookupIndex enumerates wPrefix in [6, 2k], estimates the memory
// footprint for each (a flat (bgn,len) table sized
// 2^wPrefix, plus N suffix words and N value words), and pick the smallest
// wPrefix whose footprint fits memBudget. N is derived from the histogram,
// counting only values in [minValue, maxValue]: k-mers outside that range
// are dropped by BuildLookupIndex and never occupy a slot in suffixArr/
// valueArr, so sizing against the full histogram would overestimate both
// the footprint and (via N) the wPrefix search itself.
func ConfigureLookupIndex(k int, histogram map[uint64]uint64, minValue, maxValue uint64, memBudget uint64) (wPrefix int, mem uint64, err error) {
	var n uint64
	for v, c := range histogram {
		if v < minValue || v > maxValue {
			continue
		}
		n += c
	}
	if n == 0 {
		return lookupMinWPrefix, 0, nil
	}

	suffixWordBytes := uint64(8)
	valueWordBytes := uint64(8)

	best := -1
	var bestMem uint64
	for w := lookupMinWPrefix; w <= 2*k; w++ {
		tableBytes := (uint64(1) << uint(w)) * lookupStructBytes
		dataBytes := n * (suffixWordBytes + valueWordBytes)
		total := tableBytes + dataBytes
		if total <= memBudget {
			best = w
			bestMem = total
			break
		}
	}
	if best < 0 {
		return 0, 0, errors.Errorf("meryldb: no wPrefix in [%d,%d] fits memory budget %d", lookupMinWPrefix, 2*k, memBudget)
	}
	return best, bestMem, nil
}

// LookupIndex is a built exact-lookup structure: a flat (bgn,len) table
// addressed by a prefix of possibly different width than
// the database's own partitioning, each range binary-searched by suffix.
type LookupIndex struct {
	k          int
	wPrefix    int
	suffixBits int

	minValue uint64

	bgn []uint64
	len []uint64

	suffixArr *meryl.WordArray
	valueArr  *meryl.WordArray
}

// BuildLookupIndex runs a count pass then a load pass over every decoded
// block of a database (blocks need not be in any particular order; each
// block's own prefix/suffixBits are re-split against this index's own
// wPrefix). dbSuffixBits is the bit width of the suffix portion as stored
// in the source blocks (2*k - database wPrefix); minValue/maxValue bound
// the value range so the valueArr only needs bits for (maxValue-minValue).
// A k-mer whose stored value falls outside [minValue, maxValue] is dropped
// entirely in both the count pass and the load pass below, so Value later
// reports 0 for it exactly as if it had never been counted.
func BuildLookupIndex(k, dbSuffixBits int, blocks []DecodedBlock, wPrefix int, minValue, maxValue uint64) *LookupIndex {
	li := &LookupIndex{
		k: k, wPrefix: wPrefix, suffixBits: 2*k - wPrefix,
		minValue: minValue,
	}

	nPrefix := uint64(1) << uint(wPrefix)
	blockLength := make([]uint64, nPrefix)

	type fullKmer struct {
		prefix uint64
		suffix uint64
		value  uint64
	}
	var all []fullKmer

	for _, blk := range blocks {
		for i, s := range blk.Suffixes {
			v := blk.Values[i]
			if v < minValue || v > maxValue {
				continue
			}
			full := (blk.Prefix << uint(dbSuffixBits)) | s
			p := full >> uint(li.suffixBits)
			sfx := full & (uint64(1)<<uint(li.suffixBits) - 1)
			blockLength[p]++
			all = append(all, fullKmer{prefix: p, suffix: sfx, value: v})
		}
	}

	bgn := make([]uint64, nPrefix)
	length := make([]uint64, nPrefix)
	var running uint64
	for p := uint64(0); p < nPrefix; p++ {
		bgn[p] = running
		running += blockLength[p]
	}
	li.bgn = bgn
	li.len = blockLength
	_ = length

	n := uint64(len(all))
	li.suffixArr = meryl.NewWordArray(li.suffixBits, n)
	valWidth := bitWidthFor(maxValue - minValue + 1)
	li.valueArr = meryl.NewWordArray(valWidth, n)

	cursor := make([]uint64, nPrefix)
	// Sort within each prefix bucket by suffix so the query's binary
	// search is valid; blocks already arrive suffix-sorted per prefix but
	// the prefix re-split above can interleave several source blocks into
	// one bucket.
	sort.Slice(all, func(a, b int) bool {
		if all[a].prefix != all[b].prefix {
			return all[a].prefix < all[b].prefix
		}
		return all[a].suffix < all[b].suffix
	})
	for _, fk := range all {
		pos := bgn[fk.prefix] + cursor[fk.prefix]
		cursor[fk.prefix]++
		li.suffixArr.Set(pos, fk.suffix)
		li.valueArr.Set(pos, fk.value-minValue+1)
	}

	return li
}

// Value returns the stored count for k, or 0 if k is absent: split into
// (prefix,suffix) against this index's own wPrefix, locate the prefix's
// (bgn,len) range, binary search by suffix.
func (li *LookupIndex) Value(k uint64) uint64 {
	prefix := k >> uint(li.suffixBits)
	suffix := k & (uint64(1)<<uint(li.suffixBits) - 1)

	bgn := li.bgn[prefix]
	n := li.len[prefix]
	if n == 0 {
		return 0
	}

	lo, hi := uint64(0), n-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		s := li.suffixArr.Get(bgn + mid)
		switch {
		case s == suffix:
			return li.valueArr.Get(bgn+mid) + li.minValue - 1
		case s < suffix:
			lo = mid + 1
		default:
			if mid == 0 {
				return 0
			}
			hi = mid - 1
		}
	}
	return 0
}

// Contains reports whether k was present in the source database. It
// always equals Value(k) > 0, since a stored count is never zero.
func (li *LookupIndex) Contains(k uint64) bool {
	return li.Value(k) > 0
}

// bitWidthFor returns the number of bits needed to represent values in
// [0, n], at least 1.
func bitWidthFor(n uint64) int {
	if n == 0 {
		return 1
	}
	w := 0
	for (uint64(1) << uint(w)) <= n {
		w++
	}
	return w
}
