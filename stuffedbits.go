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

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrValueOutOfDomain means a value was passed to a codec that cannot
// represent it (Elias-Gamma/Elias-Delta/Zeckendorf require v>=1).
var ErrValueOutOfDomain = errors.New("meryl: value out of codec domain")

// ErrWidthOutOfRange means a Binary width was outside [0,64].
var ErrWidthOutOfRange = errors.New("meryl: binary width out of range")

// DefaultBlockBits is the default maximum number of bits held by one
// StuffedBits block (64 KiB) before a new block is started.
const DefaultBlockBits = 64 * 1024 * 8

// sbBlock is one power-of-two-sized segment of a StuffedBits stream. bgn is
// the absolute bit offset at which this block starts; len is the number of
// bits actually written into it so far; dat is the backing word storage,
// grown on demand.
type sbBlock struct {
	bgn uint64
	len uint64
	dat []uint64
}

// StuffedBits is a sequential-access variable-width bit stream with a
// position cursor, backed by a doubly-growing list of blocks. It supports
// five codecs (Binary, Unary, Elias-Gamma, Elias-Delta, Zeckendorf) and
// round-trips: writing from position 0 and then reading back from position
// 0 with the matching getX sequence reproduces the encoded values exactly.
type StuffedBits struct {
	maxBits  uint64
	blocks   []*sbBlock
	curBlock int
	curPos   uint64
}

// NewStuffedBits returns an empty StuffedBits ready for writing at position 0.
func NewStuffedBits() *StuffedBits {
	s := &StuffedBits{maxBits: DefaultBlockBits}
	s.blocks = []*sbBlock{{bgn: 0}}
	return s
}

func (s *StuffedBits) currentBlock() *sbBlock {
	return s.blocks[s.curBlock]
}

// ensureWritable makes sure the current (last) block has room for width more
// bits, starting a fresh block if the write would exceed maxBits. Only
// called when the cursor is positioned at the end of the stream (appending).
func (s *StuffedBits) ensureWritable(width int) {
	b := s.currentBlock()
	if b.len+uint64(width) > s.maxBits && b.len > 0 {
		nb := &sbBlock{bgn: b.bgn + b.len}
		s.blocks = append(s.blocks, nb)
		s.curBlock++
		s.curPos = 0
	}
}

func (s *StuffedBits) writeBit(bit uint64) {
	s.ensureWritable(1)
	b := s.currentBlock()
	wordIdx := int(b.len / 64)
	bitOff := uint(63 - b.len%64)
	for len(b.dat) <= wordIdx {
		b.dat = append(b.dat, 0)
	}
	if bit != 0 {
		b.dat[wordIdx] |= uint64(1) << bitOff
	} else {
		b.dat[wordIdx] &^= uint64(1) << bitOff
	}
	b.len++
	s.curPos = b.len
}

func (s *StuffedBits) readBit() (uint64, error) {
	b := s.blocks[s.curBlock]
	if s.curPos >= b.len {
		if s.curBlock+1 >= len(s.blocks) {
			return 0, io.EOF
		}
		next := s.blocks[s.curBlock+1]
		if next.len == 0 {
			return 0, io.EOF
		}
		s.curBlock++
		s.curPos = 0
		b = next
	}
	wordIdx := int(s.curPos / 64)
	bitOff := uint(63 - s.curPos%64)
	bit := (b.dat[wordIdx] >> bitOff) & 1
	s.curPos++
	return bit, nil
}

// SetPosition moves the cursor to bitOffset. If bitOffset does not exist in
// the stream, the cursor is set to the end of the data.
func (s *StuffedBits) SetPosition(bitOffset uint64) {
	var offset uint64
	for i, b := range s.blocks {
		if bitOffset <= offset+b.len {
			s.curBlock = i
			s.curPos = bitOffset - offset
			return
		}
		offset += b.len
	}
	last := len(s.blocks) - 1
	s.curBlock = last
	s.curPos = s.blocks[last].len
}

// GetPosition returns the current absolute bit offset of the cursor.
func (s *StuffedBits) GetPosition() uint64 {
	return s.blocks[s.curBlock].bgn + s.curPos
}

// GetLength returns the total number of bits written to the stream.
func (s *StuffedBits) GetLength() uint64 {
	var n uint64
	for _, b := range s.blocks {
		n += b.len
	}
	return n
}

// SetBinary writes the low width bits of v, most-significant bit first.
func (s *StuffedBits) SetBinary(width int, v uint64) error {
	if width < 0 || width > 64 {
		return ErrWidthOutOfRange
	}
	for i := width - 1; i >= 0; i-- {
		s.writeBit((v >> uint(i)) & 1)
	}
	return nil
}

// GetBinary reads width bits written by SetBinary.
func (s *StuffedBits) GetBinary(width int) (uint64, error) {
	if width < 0 || width > 64 {
		return 0, ErrWidthOutOfRange
	}
	var v uint64
	for i := 0; i < width; i++ {
		bit, err := s.readBit()
		if err != nil {
			return 0, err
		}
		v = (v << 1) | bit
	}
	return v, nil
}

// SetUnary writes v as v zero bits followed by a single 1 bit.
func (s *StuffedBits) SetUnary(v uint64) error {
	for i := uint64(0); i < v; i++ {
		s.writeBit(0)
	}
	s.writeBit(1)
	return nil
}

// GetUnary reads a value written by SetUnary.
func (s *StuffedBits) GetUnary() (uint64, error) {
	var n uint64
	for {
		bit, err := s.readBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			return n, nil
		}
		n++
	}
}

// bitLen64 returns the position (1-based) of the highest set bit of v, i.e.
// floor(log2(v))+1. v must be >= 1.
func bitLen64(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// SetEliasGamma writes v (v>=1) as unary(bitLen(v)-1) followed by the low
// bitLen(v)-1 bits of v (the leading 1 bit of v is implicit).
func (s *StuffedBits) SetEliasGamma(v uint64) error {
	if v < 1 {
		return ErrValueOutOfDomain
	}
	n := bitLen64(v) - 1
	if err := s.SetUnary(uint64(n)); err != nil {
		return err
	}
	return s.SetBinary(n, v)
}

// GetEliasGamma reads a value written by SetEliasGamma.
func (s *StuffedBits) GetEliasGamma() (uint64, error) {
	n, err := s.GetUnary()
	if err != nil {
		return 0, err
	}
	low, err := s.GetBinary(int(n))
	if err != nil {
		return 0, err
	}
	return (uint64(1) << n) | low, nil
}

// SetEliasDelta writes v (v>=1) as the Elias-Gamma code of bitLen(v),
// followed by the low bitLen(v)-1 bits of v.
func (s *StuffedBits) SetEliasDelta(v uint64) error {
	if v < 1 {
		return ErrValueOutOfDomain
	}
	n := bitLen64(v)
	if err := s.SetEliasGamma(uint64(n)); err != nil {
		return err
	}
	return s.SetBinary(n-1, v)
}

// GetEliasDelta reads a value written by SetEliasDelta.
func (s *StuffedBits) GetEliasDelta() (uint64, error) {
	n, err := s.GetEliasGamma()
	if err != nil {
		return 0, err
	}
	low, err := s.GetBinary(int(n) - 1)
	if err != nil {
		return 0, err
	}
	return (uint64(1) << (n - 1)) | low, nil
}

// zeckendorfFib holds Fibonacci numbers starting at F_2=1, F_3=2, F_4=3, ...
// 92 entries are enough to saturate a uint64.
var zeckendorfFib = func() []uint64 {
	fib := make([]uint64, 92)
	fib[0], fib[1] = 1, 2
	for i := 2; i < len(fib); i++ {
		fib[i] = fib[i-1] + fib[i-2]
	}
	return fib
}()

// zeckendorfDecompose greedily decomposes v (v>=1) into non-adjacent
// Fibonacci numbers, returning the used indices in descending order.
func zeckendorfDecompose(v uint64) []int {
	m := 0
	for m+1 < len(zeckendorfFib) && zeckendorfFib[m+1] <= v {
		m++
	}
	var used []int
	rem := v
	for idx := m; idx >= 0 && rem > 0; idx-- {
		if zeckendorfFib[idx] <= rem {
			used = append(used, idx)
			rem -= zeckendorfFib[idx]
		}
	}
	return used
}

// SetZeckendorf writes v (v>=1) as a sum of non-adjacent Fibonacci numbers,
// low-index-first, terminated by a final "1" bit that always follows the
// always-set top coefficient bit (the classic Zeckendorf "11" terminator).
func (s *StuffedBits) SetZeckendorf(v uint64) error {
	if v < 1 {
		return ErrValueOutOfDomain
	}
	used := zeckendorfDecompose(v)
	m := used[0]
	coeff := make([]bool, m+1)
	for _, idx := range used {
		coeff[idx] = true
	}
	for idx := 0; idx <= m; idx++ {
		if coeff[idx] {
			s.writeBit(1)
		} else {
			s.writeBit(0)
		}
	}
	s.writeBit(1)
	return nil
}

// GetZeckendorf reads a value written by SetZeckendorf.
func (s *StuffedBits) GetZeckendorf() (uint64, error) {
	var value uint64
	var prevBit uint64
	idx := 0
	first := true
	for {
		bit, err := s.readBit()
		if err != nil {
			return 0, err
		}
		if !first && bit == 1 && prevBit == 1 {
			return value, nil
		}
		if bit == 1 {
			value += zeckendorfFib[idx]
		}
		prevBit = bit
		idx++
		first = false
	}
}

// DumpToBuffer serializes the stream as (maxBits, blocksLen, blocksMax)
// followed by per-block (bgn,len) tables and the raw words of each
// non-empty block, mirroring the on-disk layout of the original
// implementation's stuffedBits::dump.
func (s *StuffedBits) DumpToBuffer() []byte {
	outLen := 0
	for outLen < len(s.blocks) && s.blocks[outLen].len > 0 {
		outLen++
	}
	blocksMax := uint32(len(s.blocks))

	buf := make([]byte, 0, 16+outLen*16+64)
	var tmp [8]byte

	binary.BigEndian.PutUint64(tmp[:], s.maxBits)
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:4], uint32(outLen))
	buf = append(buf, tmp[:4]...)
	binary.BigEndian.PutUint32(tmp[:4], blocksMax)
	buf = append(buf, tmp[:4]...)

	for i := 0; i < outLen; i++ {
		binary.BigEndian.PutUint64(tmp[:], s.blocks[i].bgn)
		buf = append(buf, tmp[:]...)
	}
	for i := 0; i < outLen; i++ {
		binary.BigEndian.PutUint64(tmp[:], s.blocks[i].len)
		buf = append(buf, tmp[:]...)
	}
	for i := 0; i < outLen; i++ {
		nWords := bitsToWords(s.blocks[i].len)
		for w := uint64(0); w < nWords; w++ {
			binary.BigEndian.PutUint64(tmp[:], s.blocks[i].dat[w])
			buf = append(buf, tmp[:]...)
		}
	}
	return buf
}

func bitsToWords(bits uint64) uint64 {
	return bits/64 + boolToUint64(bits%64 != 0)
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// ErrTruncatedBuffer means LoadFromBuffer ran out of bytes mid-header or
// mid-block.
var ErrTruncatedBuffer = errors.New("meryl: truncated StuffedBits buffer")

// LoadFromBuffer replaces the stream's contents with data encoded by
// DumpToBuffer, positioning the cursor at 0.
func (s *StuffedBits) LoadFromBuffer(buf []byte) error {
	if len(buf) < 16 {
		return ErrTruncatedBuffer
	}
	s.maxBits = binary.BigEndian.Uint64(buf[0:8])
	inLen := binary.BigEndian.Uint32(buf[8:12])
	_ = binary.BigEndian.Uint32(buf[12:16]) // blocksMax, not needed to reconstruct
	off := 16

	need := func(n int) error {
		if off+n > len(buf) {
			return ErrTruncatedBuffer
		}
		return nil
	}

	bgns := make([]uint64, inLen)
	for i := range bgns {
		if err := need(8); err != nil {
			return err
		}
		bgns[i] = binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
	}
	lens := make([]uint64, inLen)
	for i := range lens {
		if err := need(8); err != nil {
			return err
		}
		lens[i] = binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
	}

	blocks := make([]*sbBlock, inLen)
	for i := range blocks {
		nWords := bitsToWords(lens[i])
		if err := need(int(nWords) * 8); err != nil {
			return err
		}
		dat := make([]uint64, nWords)
		for w := uint64(0); w < nWords; w++ {
			dat[w] = binary.BigEndian.Uint64(buf[off : off+8])
			off += 8
		}
		blocks[i] = &sbBlock{bgn: bgns[i], len: lens[i], dat: dat}
	}
	if len(blocks) == 0 {
		blocks = []*sbBlock{{bgn: 0}}
	}

	s.blocks = blocks
	s.SetPosition(0)
	return nil
}
