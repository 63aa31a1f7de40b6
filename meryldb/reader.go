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
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	meryl "github.com/shenwei356/merylgo"
)

// ErrBadBlockMagic means a block's 128-bit magic did not match the
// expected value; the reader reports this as fatal.
var ErrBadBlockMagic = errors.New("meryldb: bad block magic")

// BlockHeader is the staging area left by LoadBlock: everything needed to
// decode a block's body, without having decoded the suffixes yet.
type BlockHeader struct {
	Prefix   uint64
	NKmers   uint64
	KCode    uint8
	CCode    uint8
	MinValue uint64
	MaxValue uint64

	valWidth    int
	firstSuffix uint64
}

// DecodedBlock is one fully-decoded block: a prefix and its parallel
// (suffix, value) arrays, suffix ascending.
type DecodedBlock struct {
	Prefix   uint64
	Suffixes []uint64
	Values   []uint64
}

// BlockReader reads successive blocks from one merylData stream. The
// caller advances through the file by repeatedly calling LoadBlock then
// DecodeBlock; after DecodeBlock, the cursor is positioned at the start
// of the next block.
type BlockReader struct {
	sb *meryl.StuffedBits
}

// NewBlockReader wraps an already-loaded StuffedBits stream (e.g. from
// OpenBlockFile).
func NewBlockReader(sb *meryl.StuffedBits) *BlockReader {
	return &BlockReader{sb: sb}
}

// OpenBlockFile reads a merylData file from disk into a BlockReader.
func OpenBlockFile(path string) (*BlockReader, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "meryldb: reading %s", path)
	}
	sb := meryl.NewStuffedBits()
	if err := sb.LoadFromBuffer(buf); err != nil {
		return nil, errors.Wrapf(err, "meryldb: decoding %s", path)
	}
	return NewBlockReader(sb), nil
}

// OpenDatabase opens every merylData file of a <dbname>.meryl directory,
// keyed by file index, for sequential full-database scans (used by the
// exact-lookup index builder and by set-algebra operators).
func OpenDatabase(root string, numFiles uint64) ([]*BlockReader, error) {
	readers := make([]*BlockReader, numFiles)
	for fi := uint64(0); fi < numFiles; fi++ {
		path := filepath.Join(root, dataFileName(fi))
		r, err := OpenBlockFile(path)
		if err != nil {
			return nil, err
		}
		readers[fi] = r
	}
	return readers, nil
}

func dataFileName(fi uint64) string {
	return fileStem(fi) + ".merylData"
}

func indexFileName(fi uint64) string {
	return fileStem(fi) + ".merylIndex"
}

// AtEnd reports whether the stream has no more blocks to load.
func (r *BlockReader) AtEnd() bool {
	return r.sb.GetPosition() >= r.sb.GetLength()
}

// LoadBlock consumes one block header into a BlockHeader without decoding
// its suffixes. Returns io.EOF once the stream is exhausted.
func (r *BlockReader) LoadBlock() (*BlockHeader, error) {
	if r.AtEnd() {
		return nil, io.EOF
	}

	m1, err := r.sb.GetBinary(64)
	if err != nil {
		return nil, err
	}
	m2, err := r.sb.GetBinary(64)
	if err != nil {
		return nil, err
	}
	if m1 != blockMagic1 || m2 != blockMagic2 {
		return nil, errors.Wrapf(ErrBadBlockMagic, "at bit position %d", r.sb.GetPosition()-128)
	}

	prefix, err := r.sb.GetBinary(64)
	if err != nil {
		return nil, err
	}
	nKmers, err := r.sb.GetBinary(64)
	if err != nil {
		return nil, err
	}

	kCode, err := r.sb.GetBinary(8)
	if err != nil {
		return nil, err
	}
	if _, err := r.sb.GetBinary(32); err != nil { // unaryBits statistic, unused on read
		return nil, err
	}
	if _, err := r.sb.GetBinary(32); err != nil { // binaryBits statistic, unused on read
		return nil, err
	}
	k1, err := r.sb.GetBinary(64)
	if err != nil {
		return nil, err
	}
	cCode, err := r.sb.GetBinary(8)
	if err != nil {
		return nil, err
	}
	minV, err := r.sb.GetBinary(64)
	if err != nil {
		return nil, err
	}
	maxV, err := r.sb.GetBinary(64)
	if err != nil {
		return nil, err
	}

	valWidth := 32
	if uint8(cCode) == cCode64 {
		valWidth = 64
	}

	return &BlockHeader{
		Prefix: prefix, NKmers: nKmers, KCode: uint8(kCode), CCode: uint8(cCode),
		MinValue: minV, MaxValue: maxV, valWidth: valWidth, firstSuffix: k1,
	}, nil
}

// DecodeBlock reconstructs the (suffix, value) arrays for a header
// returned by LoadBlock, leaving the stream positioned at the next
// block's magic.
func (r *BlockReader) DecodeBlock(h *BlockHeader) (*DecodedBlock, error) {
	if h.NKmers == 0 {
		return &DecodedBlock{Prefix: h.Prefix}, nil
	}

	suffixes := make([]uint64, h.NKmers)
	values := make([]uint64, h.NKmers)

	suffixes[0] = h.firstSuffix
	prev := h.firstSuffix
	for i := uint64(1); i < h.NKmers; i++ {
		d, err := r.sb.GetEliasGamma()
		if err != nil {
			return nil, err
		}
		prev += d
		suffixes[i] = prev
	}
	for i := uint64(0); i < h.NKmers; i++ {
		v, err := r.sb.GetBinary(h.valWidth)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	return &DecodedBlock{Prefix: h.Prefix, Suffixes: suffixes, Values: values}, nil
}

// ReadAll drains every block of r into DecodedBlocks, for callers (the
// lookup-index builder, set-algebra operators) that want the whole file
// in memory at once.
func (r *BlockReader) ReadAll() ([]DecodedBlock, error) {
	var out []DecodedBlock
	for {
		h, err := r.LoadBlock()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		blk, err := r.DecodeBlock(h)
		if err != nil {
			return nil, err
		}
		out = append(out, *blk)
	}
}
