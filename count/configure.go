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

// Package count implements the memory-bounded, multi-threaded k-mer
// counting engine: Simple mode (dense array), Complex mode (per-prefix
// CountArray buckets with a loader/workers/writer pipeline and
// memory-triggered spill-to-disk), and the wPrefix/nBatches configurator
// that picks between them.
package count

import (
	"math"

	"github.com/pkg/errors"
)

// SegBytes is the default page size of one CountArray segment (64 KiB).
const SegBytes = 64 * 1024

// countArrayStructBytes and pointerBytes approximate the fixed overhead of
// one CountArray struct and one segment pointer, used only by the memory
// estimator below; they do not need to be exact, only monotonic in the
// variables the configurator reasons about (nPrefix, segmentsPerPrefix).
const (
	countArrayStructBytes = 64
	pointerBytes          = 8
)

// CompressionMultiplier estimates k-mer yield per input byte for each
// transport; "" means uncompressed.
var CompressionMultiplier = map[string]float64{
	"":      1.0,
	"gzip":  3.0,
	"bzip2": 3.5,
	"xz":    4.0,
}

// EstimateExpectedKmers derives E from total input byte size and transport
// kind when the caller hasn't supplied an explicit expected count.
func EstimateExpectedKmers(totalBytes uint64, compression string) uint64 {
	mult, ok := CompressionMultiplier[compression]
	if !ok {
		mult = 1.0
	}
	return uint64(float64(totalBytes) * mult)
}

// ErrNoFeasibleConfiguration means no wPrefix (and no batch count short of
// the safety bound) keeps the engine's memory footprint within M; this is
// a configuration-time fatal error.
var ErrNoFeasibleConfiguration = errors.New("count: no wPrefix fits the memory ceiling")

// Config is the result of the wPrefix/batch-count configurator: the chosen
// bucket partitioning and, if the full expected k-mer count doesn't fit in
// one pass, the number of batches to split ingest across.
type Config struct {
	K           int
	WPrefix     int
	NPrefix     uint64
	SuffixBits  int
	NBatches    int
	MemoryBytes uint64
	Simple      bool
}

// memoryForWPrefix estimates memory(wPrefix): the footprint of every
// per-prefix CountArray bucket for kmersPerPrefix k-mers expected total.
func memoryForWPrefix(k, wPrefix int, expectedKmers uint64) uint64 {
	nPrefix := uint64(1) << uint(wPrefix)
	kmersPerPrefix := ceilDiv(expectedKmers, nPrefix)
	suffixBits := 2*k - wPrefix
	if suffixBits < 1 {
		suffixBits = 1
	}
	kmersPerSegment := uint64(8*SegBytes) / uint64(suffixBits)
	if kmersPerSegment == 0 {
		kmersPerSegment = 1
	}
	segmentsPerPrefix := ceilDiv(kmersPerPrefix, kmersPerSegment)

	return nPrefix*countArrayStructBytes +
		nPrefix*segmentsPerPrefix*pointerBytes +
		nPrefix*segmentsPerPrefix*SegBytes
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

// chooseWPrefix enumerates wPrefix in [10, 2k-1] (only 2k-1 when that is
// below 10) and returns the smallest one whose memory footprint fits M,
// preferring a larger wPrefix whenever it reduces total memory by more
// than a 1.06x factor per additional bit.
func chooseWPrefix(k int, M, expectedKmers uint64) (wPrefix int, mem uint64, ok bool) {
	minWP := 10
	maxWP := 2*k - 1
	if maxWP < minWP {
		minWP = maxWP
	}

	found := false
	for wp := minWP; wp <= maxWP; wp++ {
		m := memoryForWPrefix(k, wp, expectedKmers)
		if m > M {
			continue
		}
		if !found {
			wPrefix, mem, found = wp, m, true
			continue
		}
		bitsDiff := wp - wPrefix
		if bitsDiff <= 0 {
			continue
		}
		threshold := float64(mem) / math.Pow(1.06, float64(bitsDiff))
		if float64(m) < threshold {
			wPrefix, mem = wp, m
		}
	}
	return wPrefix, mem, found
}

// Configure runs the wPrefix/batch-count configurator. expectedKmers is
// either supplied by the caller or derived with EstimateExpectedKmers.
// countSuffixConfigured forces Simple mode regardless of the estimated
// footprint, since a fixed count-suffix only counts a single narrow slice
// of k-mer space (k-mers are still canonicalized whole; reverse-complement
// canonicalization is not turned off for the suffix portion). Otherwise
// Simple mode is chosen whenever its dense 4^k-byte array fits both
// memoryCeiling and NewSimpleCounter's size limit.
func Configure(k int, memoryCeiling, expectedKmers uint64, countSuffixConfigured bool) (*Config, error) {
	if countSuffixConfigured {
		return &Config{K: k, Simple: true, NBatches: 1}, nil
	}

	if n := SimpleModeArraySize(k, 0); n <= (1<<31)-1 && n <= memoryCeiling {
		return &Config{K: k, Simple: true, NBatches: 1, MemoryBytes: n}, nil
	}

	wp, mem, ok := chooseWPrefix(k, memoryCeiling, expectedKmers)
	if ok {
		return &Config{
			K:           k,
			WPrefix:     wp,
			NPrefix:     uint64(1) << uint(wp),
			SuffixBits:  2*k - wp,
			NBatches:    1,
			MemoryBytes: mem,
			Simple:      false,
		}, nil
	}

	// The full expected count doesn't fit in one pass at any wPrefix;
	// grow the batch count until a per-batch slice does.
	const maxBatchesSearched = 1 << 20
	for n := 2; n <= maxBatchesSearched; n++ {
		perBatch := ceilDiv(expectedKmers, uint64(n))
		wp, mem, ok := chooseWPrefix(k, memoryCeiling, perBatch)
		if ok {
			return &Config{
				K:           k,
				WPrefix:     wp,
				NPrefix:     uint64(1) << uint(wp),
				SuffixBits:  2*k - wp,
				NBatches:    n,
				MemoryBytes: mem,
				Simple:      false,
			}, nil
		}
	}

	return nil, ErrNoFeasibleConfiguration
}

// SimpleModeArraySize returns the size of the dense counting array used by
// Simple mode: 4^k entries, or 4^(k-suffixLen) when a fixed count-suffix of
// suffixLen bases is configured.
func SimpleModeArraySize(k, suffixLen int) uint64 {
	exp := k - suffixLen
	if exp < 0 {
		exp = 0
	}
	if exp > 31 {
		// caller's memory ceiling will already have rejected Simple mode
		// long before this; clamp to avoid an overflowing shift.
		exp = 31
	}
	return uint64(1) << uint(2*exp)
}
