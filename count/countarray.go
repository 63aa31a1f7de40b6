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
	"sync/atomic"
	"time"

	"github.com/twotwotwo/sorts/sortutil"
)

// Bucket states for the per-prefix state machine:
// Idle -> Appending -> Idle during normal ingest, Idle -> Dumping -> Idle
// during spill/finalize. A single CAS on this field replaces two
// independent boolean reads (a "dumping" flag plus a per-bucket lock).
const (
	stateIdle int32 = iota
	stateAppending
	stateDumping
)

// spinSleep is how long a contending goroutine backs off before retrying
// the CAS instead of busy-spinning.
const spinSleep = time.Millisecond

// CountArray is the in-memory bucket for one prefix during counting.
// Before finalization, Suffixes may contain duplicates in arbitrary order;
// after Finalize, Suffixes is strictly increasing and Values holds the
// summed multiplicity at each position.
type CountArray struct {
	Prefix     uint64
	SuffixBits int

	state int32

	Suffixes []uint64
	Values   []uint64
	counted  bool
}

// NewCountArray allocates an empty bucket for prefix, whose k-mers have
// suffixBits bits remaining after the prefix is removed.
func NewCountArray(prefix uint64, suffixBits int) *CountArray {
	return &CountArray{Prefix: prefix, SuffixBits: suffixBits}
}

// Append adds suffix to the bucket. dumping is the engine-wide spill flag:
// while it is set, Append busy-waits on a 1ms sleep instead of taking the
// bucket lock.
func (ca *CountArray) Append(suffix uint64, dumping *int32) {
	for {
		if atomic.LoadInt32(dumping) != 0 {
			time.Sleep(spinSleep)
			continue
		}
		if atomic.CompareAndSwapInt32(&ca.state, stateIdle, stateAppending) {
			ca.Suffixes = append(ca.Suffixes, suffix)
			atomic.StoreInt32(&ca.state, stateIdle)
			return
		}
		time.Sleep(spinSleep)
	}
}

// lockForDump acquires the bucket exclusively, spinning until no appender
// holds it; this is the "acquire every per-prefix spinlock" step of the
// spill protocol and the sole entry point for Finalize.
func (ca *CountArray) lockForDump() {
	for !atomic.CompareAndSwapInt32(&ca.state, stateIdle, stateDumping) {
		time.Sleep(spinSleep)
	}
}

func (ca *CountArray) unlock() {
	atomic.StoreInt32(&ca.state, stateIdle)
}

// MemoryBytes estimates the current raw footprint of the bucket's backing
// slices, used by the writer's spill-decision accounting.
func (ca *CountArray) MemoryBytes() uint64 {
	return uint64(len(ca.Suffixes))*8 + uint64(len(ca.Values))*8
}

// Len returns the number of distinct k-mers after Finalize (or the number
// of raw, possibly-duplicated appends before it).
func (ca *CountArray) Len() int {
	return len(ca.Suffixes)
}

// Counted reports whether Finalize has run since the last Reset.
func (ca *CountArray) Counted() bool {
	return ca.counted
}

// Finalize sorts the raw suffixes and run-length collapses equal values
// into (suffix, count) pairs. It is safe
// to call concurrently with Append on other buckets, but excludes any
// concurrent Append on this bucket via the same state machine.
func (ca *CountArray) Finalize() {
	ca.lockForDump()
	defer ca.unlock()

	if ca.counted || len(ca.Suffixes) == 0 {
		ca.counted = true
		return
	}

	sortutil.Uint64s(ca.Suffixes)

	outS := ca.Suffixes[:0:0]
	var outV []uint64

	cur := ca.Suffixes[0]
	var cnt uint64 = 1
	for _, s := range ca.Suffixes[1:] {
		if s == cur {
			cnt++
			continue
		}
		outS = append(outS, cur)
		outV = append(outV, cnt)
		cur, cnt = s, 1
	}
	outS = append(outS, cur)
	outV = append(outV, cnt)

	ca.Suffixes = outS
	ca.Values = outV
	ca.counted = true
}

// Reset frees the segment data, leaving the bucket ready for the next
// batch.
func (ca *CountArray) Reset() {
	ca.lockForDump()
	defer ca.unlock()

	ca.Suffixes = nil
	ca.Values = nil
	ca.counted = false
}
