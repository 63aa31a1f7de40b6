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

// WordArraySegmentBytes is the default allocation granularity of a
// WordArray's backing storage (32 MiB), which is also the segment size of
// the exact-lookup index's suffix and value tables.
const WordArraySegmentBytes = 32 * 1024 * 1024

// WordArray is a fixed-length array of N-bit unsigned words, 1<=N<=128,
// backed by fixed-size segments allocated on construction. No resizing is
// supported after construction.
//
// Get/Set are safe for concurrent callers iff they touch words that fall in
// disjoint 64-bit backing slots; a word whose bits straddle two or three
// 64-bit slots must not be written concurrently with any neighboring word
// that shares a slot. Callers that violate this must coordinate externally.
type WordArray struct {
	width    int
	n        uint64
	segWords uint64
	segments [][]uint64
}

// NewWordArray allocates a WordArray of n words, each width bits wide.
func NewWordArray(width int, n uint64) *WordArray {
	if width < 1 {
		width = 1
	}
	if width > 128 {
		width = 128
	}

	segWords := uint64(WordArraySegmentBytes / 8)
	totalBits := n * uint64(width)
	totalWords := (totalBits + 63) / 64
	if totalWords == 0 {
		totalWords = 1
	}
	nSegs := (totalWords + segWords - 1) / segWords
	if nSegs == 0 {
		nSegs = 1
	}

	wa := &WordArray{
		width:    width,
		n:        n,
		segWords: segWords,
		segments: make([][]uint64, nSegs),
	}
	for i := range wa.segments {
		lo := uint64(i) * segWords
		hi := lo + segWords
		if hi > totalWords {
			hi = totalWords
		}
		sz := hi - lo
		if sz == 0 {
			sz = 1
		}
		wa.segments[i] = make([]uint64, sz)
	}
	return wa
}

// Len returns the number of logical words.
func (w *WordArray) Len() uint64 {
	return w.n
}

// Width returns the bit width of each word.
func (w *WordArray) Width() int {
	return w.width
}

func (w *WordArray) wordPtr(globalWordIdx uint64) *uint64 {
	seg := globalWordIdx / w.segWords
	local := globalWordIdx % w.segWords
	return &w.segments[seg][local]
}

// Get returns the value stored at logical index i.
func (w *WordArray) Get(i uint64) uint64 {
	return w.readBits(i*uint64(w.width), w.width)
}

// Set stores v (truncated to Width() bits) at logical index i.
func (w *WordArray) Set(i uint64, v uint64) {
	w.writeBits(i*uint64(w.width), w.width, v)
}

func (w *WordArray) readBits(bitPos uint64, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		p := bitPos + uint64(i)
		wordIdx := p / 64
		bitOff := uint(63 - p%64)
		bit := (*w.wordPtr(wordIdx) >> bitOff) & 1
		v = (v << 1) | bit
	}
	return v
}

func (w *WordArray) writeBits(bitPos uint64, width int, v uint64) {
	for i := 0; i < width; i++ {
		p := bitPos + uint64(i)
		wordIdx := p / 64
		bitOff := uint(63 - p%64)
		bit := (v >> uint(width-1-i)) & 1
		wp := w.wordPtr(wordIdx)
		if bit != 0 {
			*wp |= uint64(1) << bitOff
		} else {
			*wp &^= uint64(1) << bitOff
		}
	}
}
