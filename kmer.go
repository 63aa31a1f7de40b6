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

// Package meryl implements a k-mer counting and set-algebra engine for
// genomic sequence data: encoding, bit-packed storage, a memory-bounded
// counting pipeline and an on-disk database format.
package meryl

import (
	"errors"
)

// ErrIllegalBase means a byte outside {A,C,G,T} (case-insensitive) was seen
// where a k-mer base was expected.
var ErrIllegalBase = errors.New("meryl: illegal base, only A/C/G/T allowed")

// ErrKOverflow means K is outside [1, 64].
var ErrKOverflow = errors.New("meryl: K (1-64) overflow")

// ErrKMismatch means two Kmers/handles disagree on K.
var ErrKMismatch = errors.New("meryl: K mismatch")

// MaxK is the largest supported k-mer size; a k-mer's 2*k bits must fit in
// 128 bits (two uint64 words).
const MaxK = 64

// Kmer is a 2*k-bit packed DNA sequence, A=00 C=01 G=10 T=11, stored as a
// 128-bit value split across two uint64 words. For k<=32 (2*k<=64), Hi is
// always zero and all operations degrade to single-word arithmetic.
//
// Kmer supports k<=64 rather than being restricted to a single uint64
// word, because the suffix/prefix split used by the on-disk database
// needs the full 2*k-bit range.
type Kmer struct {
	Hi, Lo uint64
	K      int
}

// bit2base maps a 2-bit code to its base letter.
var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// base2bit maps an input byte to its 2-bit code; ok is false for any
// non-ACGT byte (case-insensitive), which breaks a k-mer window.
func base2bit(b byte) (code uint64, ok bool) {
	switch b {
	case 'A', 'a':
		return 0, true
	case 'C', 'c':
		return 1, true
	case 'G', 'g':
		return 2, true
	case 'T', 't':
		return 3, true
	default:
		return 0, false
	}
}

// Encode packs a DNA byte slice of length k (1<=k<=64) into a Kmer. Any
// non-ACGT byte returns ErrIllegalBase.
func Encode(bases []byte) (Kmer, error) {
	k := len(bases)
	if k == 0 || k > MaxK {
		return Kmer{}, ErrKOverflow
	}

	var hi, lo uint64
	for i := 0; i < k; i++ {
		c, ok := base2bit(bases[i])
		if !ok {
			return Kmer{}, ErrIllegalBase
		}
		hi, lo = shiftInBase(hi, lo, c)
	}
	return Kmer{Hi: hi, Lo: lo, K: k}, nil
}

// shiftInBase shifts the running (hi,lo) value left by 2 bits and drops c
// into the low end, carrying the top 2 bits of lo into hi when k>32. Used
// by both Encode and the incremental sliding-window encode in kmeriter.go.
func shiftInBase(hi, lo, c uint64) (nhi, nlo uint64) {
	nhi = (hi << 2) | (lo >> 62)
	nlo = (lo << 2) | c
	return nhi, nlo
}

// shiftedMask returns a (Hi,Lo) mask with the low n bits set (0<=n<=128).
func shiftedMask(n int) (hi, lo uint64) {
	switch {
	case n <= 0:
		return 0, 0
	case n >= 128:
		return ^uint64(0), ^uint64(0)
	case n <= 64:
		return 0, (uint64(1) << uint(n)) - 1
	default:
		return (uint64(1) << uint(n-64)) - 1, ^uint64(0)
	}
}

// mask128 returns the mask covering exactly the low 2*k bits used by a
// k-mer of size k.
func mask128(k int) (hi, lo uint64) {
	return shiftedMask(2 * k)
}

// Reverse returns the bit-pattern with base order reversed (not
// complemented): the base at position i moves to position k-1-i.
func Reverse(k Kmer) Kmer {
	var hi, lo uint64
	hiIn, loIn := k.Hi, k.Lo
	n := k.K
	for i := 0; i < n; i++ {
		var c uint64
		if i < 32 {
			c = loIn & 3
			loIn >>= 2
		} else {
			c = hiIn & 3
			hiIn >>= 2
		}
		hi = (hi << 2) | (lo >> 62)
		lo = (lo << 2) | c
	}
	return Kmer{Hi: hi, Lo: lo, K: n}
}

// Complement returns the bit-pattern with each base complemented
// (A<->T, C<->G) but NOT reordered.
func Complement(k Kmer) Kmer {
	mhi, mlo := mask128(k.K)
	return Kmer{Hi: ^k.Hi & mhi, Lo: ^k.Lo & mlo, K: k.K}
}

// RevComp returns the reverse-complement of k: reverse order AND
// complement each base. This is the strand-flip used for canonicalization.
func RevComp(k Kmer) Kmer {
	return Reverse(Complement(k))
}

// Less reports whether a is numerically smaller than b as an unsigned
// 128-bit integer (Hi most-significant).
func Less(a, b Kmer) bool {
	if a.Hi != b.Hi {
		return a.Hi < b.Hi
	}
	return a.Lo < b.Lo
}

// Equal reports whether two Kmers have the same K and bit pattern.
func Equal(a, b Kmer) bool {
	return a.K == b.K && a.Hi == b.Hi && a.Lo == b.Lo
}

// Canonical returns the numerically smaller of k and RevComp(k).
func Canonical(k Kmer) Kmer {
	rc := RevComp(k)
	if Less(rc, k) {
		return rc
	}
	return k
}

// Decode unpacks a Kmer back into its base letters.
func Decode(k Kmer) []byte {
	out := make([]byte, k.K)
	hi, lo := k.Hi, k.Lo
	for i := k.K - 1; i >= 0; i-- {
		var c uint64
		if i < 32 {
			c = lo & 3
			lo >>= 2
		} else {
			c = hi & 3
			hi >>= 2
		}
		out[i] = bit2base[c]
	}
	return out
}

// String returns the kmer as an upper-case DNA string.
func (k Kmer) String() string {
	return string(Decode(k))
}

// Prefix returns the high wPrefix bits of the k-mer (the bucket address)
// as a uint64 — wPrefix is at most 2*k <= 128, but in practice callers
// restrict wPrefix to <=63 so it fits a single word (see count/configure.go).
func (k Kmer) Prefix(wPrefix int) uint64 {
	suffixBits := 2*k.K - wPrefix
	return shiftRight128(k.Hi, k.Lo, suffixBits)
}

// Suffix returns the low wSuffix = 2*k-wPrefix bits of the k-mer.
func (k Kmer) Suffix(wPrefix int) uint64 {
	wSuffix := 2*k.K - wPrefix
	_, lo := mask128(wSuffix)
	// only the low word is used: the counting and database layers run with
	// k<=32 (cmd/count.go rejects larger k), so wSuffix<=64 there.
	return k.Lo & lo
}

// shiftRight128 shifts the 128-bit value (hi,lo) right by n bits and
// returns the low 64 bits of the result (the caller only ever wants a
// prefix that is guaranteed to fit one word, see Prefix above).
func shiftRight128(hi, lo uint64, n int) uint64 {
	switch {
	case n <= 0:
		return lo
	case n >= 128:
		return 0
	case n < 64:
		return (lo >> uint(n)) | (hi << uint(64-n))
	case n == 64:
		return hi
	default:
		return hi >> uint(n-64)
	}
}
