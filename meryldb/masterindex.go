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
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	meryl "github.com/shenwei356/merylgo"
)

// Master-index magics: a literal 16-byte ASCII string read as
// two 64-bit big-endian words. v01 predates the isMultiSet flag word; v02
// introduced it; v03 is structurally identical to v02 (this codebase never
// produces v01/v02, only reads them back for compatibility).
const (
	masterMagicV01 = "merylIndex__v.01"
	masterMagicV02 = "merylIndex__v.02"
	masterMagicV03 = "merylIndex__v.03"
)

// ErrBadMasterMagic means a merylIndex file's 128-bit magic matched none
// of the three known versions.
var ErrBadMasterMagic = errors.New("meryldb: unrecognized merylIndex magic")

// MasterIndex is the database-root metadata block: partition geometry
// plus the value -> k-mer-count histogram.
type MasterIndex struct {
	PrefixSize    int
	SuffixSize    int
	NumFilesBits  uint32
	NumBlocksBits uint32
	IsMultiSet    bool

	Histogram map[uint64]uint64
}

// Write always emits the latest (v03) layout: magic, four 32-bit geometry
// fields, a 32-bit flags word (bit0 = isMultiSet), then the histogram.
func (mi *MasterIndex) Write(sb *meryl.StuffedBits) error {
	if err := writeMagic(sb, masterMagicV03); err != nil {
		return err
	}
	if err := sb.SetBinary(32, uint64(mi.PrefixSize)); err != nil {
		return err
	}
	if err := sb.SetBinary(32, uint64(mi.SuffixSize)); err != nil {
		return err
	}
	if err := sb.SetBinary(32, uint64(mi.NumFilesBits)); err != nil {
		return err
	}
	if err := sb.SetBinary(32, uint64(mi.NumBlocksBits)); err != nil {
		return err
	}

	var flags uint64
	if mi.IsMultiSet {
		flags |= 1
	}
	if err := sb.SetBinary(32, flags); err != nil {
		return err
	}

	return writeHistogram(sb, mi.Histogram)
}

func writeMagic(sb *meryl.StuffedBits, magic string) error {
	hi := binary.BigEndian.Uint64([]byte(magic[0:8]))
	lo := binary.BigEndian.Uint64([]byte(magic[8:16]))
	if err := sb.SetBinary(64, hi); err != nil {
		return err
	}
	return sb.SetBinary(64, lo)
}

func readMagic(sb *meryl.StuffedBits) (string, error) {
	hi, err := sb.GetBinary(64)
	if err != nil {
		return "", err
	}
	lo, err := sb.GetBinary(64)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], hi)
	binary.BigEndian.PutUint64(buf[8:16], lo)
	return string(buf), nil
}

func writeHistogram(sb *meryl.StuffedBits, hist map[uint64]uint64) error {
	values := make([]uint64, 0, len(hist))
	for v := range hist {
		values = append(values, v)
	}
	sort.Slice(values, func(a, b int) bool { return values[a] < values[b] })

	if err := sb.SetBinary(64, uint64(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := sb.SetBinary(64, v); err != nil {
			return err
		}
		if err := sb.SetBinary(64, hist[v]); err != nil {
			return err
		}
	}
	return nil
}

func readHistogram(sb *meryl.StuffedBits) (map[uint64]uint64, error) {
	n, err := sb.GetBinary(64)
	if err != nil {
		return nil, err
	}
	hist := make(map[uint64]uint64, n)
	for i := uint64(0); i < n; i++ {
		v, err := sb.GetBinary(64)
		if err != nil {
			return nil, err
		}
		c, err := sb.GetBinary(64)
		if err != nil {
			return nil, err
		}
		hist[v] = c
	}
	return hist, nil
}

// ReadMasterIndex loads a merylIndex file written by any of the three
// on-disk versions, dispatching on magic.
func ReadMasterIndex(sb *meryl.StuffedBits) (*MasterIndex, error) {
	magic, err := readMagic(sb)
	if err != nil {
		return nil, err
	}

	switch magic {
	case masterMagicV01:
		return readMasterIndexV01(sb)
	case masterMagicV02, masterMagicV03:
		return readMasterIndexV02(sb)
	default:
		return nil, errors.Wrapf(ErrBadMasterMagic, "got %q", magic)
	}
}

// readMasterIndexV01 has no flags word: isMultiSet defaults to false,
// matching the era before multi-set databases existed.
func readMasterIndexV01(sb *meryl.StuffedBits) (*MasterIndex, error) {
	mi, err := readGeometry(sb)
	if err != nil {
		return nil, err
	}
	hist, err := readHistogram(sb)
	if err != nil {
		return nil, err
	}
	mi.Histogram = hist
	return mi, nil
}

func readMasterIndexV02(sb *meryl.StuffedBits) (*MasterIndex, error) {
	mi, err := readGeometry(sb)
	if err != nil {
		return nil, err
	}
	flags, err := sb.GetBinary(32)
	if err != nil {
		return nil, err
	}
	mi.IsMultiSet = flags&1 != 0

	hist, err := readHistogram(sb)
	if err != nil {
		return nil, err
	}
	mi.Histogram = hist
	return mi, nil
}

func readGeometry(sb *meryl.StuffedBits) (*MasterIndex, error) {
	prefixSize, err := sb.GetBinary(32)
	if err != nil {
		return nil, err
	}
	suffixSize, err := sb.GetBinary(32)
	if err != nil {
		return nil, err
	}
	numFilesBits, err := sb.GetBinary(32)
	if err != nil {
		return nil, err
	}
	numBlocksBits, err := sb.GetBinary(32)
	if err != nil {
		return nil, err
	}
	return &MasterIndex{
		PrefixSize: int(prefixSize), SuffixSize: int(suffixSize),
		NumFilesBits: uint32(numFilesBits), NumBlocksBits: uint32(numBlocksBits),
	}, nil
}
