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

// KmerIterator emits successive forward and reverse-complement k-mers from
// a base buffer, incrementally encoding each new k-mer from the previous
// one (one shiftInBase per base) rather than re-encoding a whole window,
// and resetting whenever a k-mer breaker (any non-ACGT byte) is seen.
//
// KmerIterator derives rmer directly from the incrementally-updated fmer on
// every position rather than re-scanning the sequence in reverse, since
// breakers may occur mid-sequence and a second full-sequence reverse pass
// cannot skip over them correctly.
type KmerIterator struct {
	k   int
	buf []byte
	pos int

	validRun int // consecutive valid (ACGT) bases seen since the last breaker
	fwd      Kmer
}

// NewKmerIterator returns a KmerIterator for k-mers of size k; call
// AddSequence before the first NextMer.
func NewKmerIterator(k int) *KmerIterator {
	return &KmerIterator{k: k}
}

// AddSequence resets the iterator onto a new buffer. Any in-progress window
// is discarded: callers rely on SeqSource to duplicate the trailing k-1
// bases of the previous buffer at the start of buf when a single sequence
// spans multiple buffers, so no window is lost or double-counted.
func (it *KmerIterator) AddSequence(buf []byte) {
	it.buf = buf
	it.pos = 0
	it.validRun = 0
	it.fwd = Kmer{K: it.k}
}

// Reset invalidates the current window, used at an explicit sequence
// boundary within a buffer (a breaker byte already does this automatically,
// so Reset is only needed when a caller wants to force a boundary without
// encoding a breaker byte into the stream).
func (it *KmerIterator) Reset() {
	it.validRun = 0
	it.fwd = Kmer{K: it.k}
}

// NextMer advances over the buffer one base at a time and returns the next
// valid (fmer, rmer) pair. ok is false once the buffer is exhausted without
// producing another full window.
func (it *KmerIterator) NextMer() (fmer, rmer Kmer, ok bool) {
	mhi, mlo := mask128(it.k)
	for it.pos < len(it.buf) {
		b := it.buf[it.pos]
		it.pos++

		c, isACGT := base2bit(b)
		if !isACGT {
			it.validRun = 0
			it.fwd = Kmer{K: it.k}
			continue
		}

		hi, lo := shiftInBase(it.fwd.Hi, it.fwd.Lo, c)
		it.fwd = Kmer{Hi: hi & mhi, Lo: lo & mlo, K: it.k}

		if it.validRun < it.k {
			it.validRun++
		}
		if it.validRun >= it.k {
			return it.fwd, RevComp(it.fwd), true
		}
	}
	return Kmer{}, Kmer{}, false
}
