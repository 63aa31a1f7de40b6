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
	"testing"

	meryl "github.com/shenwei356/merylgo"
)

func TestMasterIndexWriteReadRoundTrip(t *testing.T) {
	mi := &MasterIndex{
		PrefixSize: 10, SuffixSize: 22, NumFilesBits: 3, NumBlocksBits: 8,
		IsMultiSet: true,
		Histogram:  map[uint64]uint64{1: 100, 2: 40, 5: 3},
	}

	sb := meryl.NewStuffedBits()
	if err := mi.Write(sb); err != nil {
		t.Fatal(err)
	}
	sb.SetPosition(0)

	got, err := ReadMasterIndex(sb)
	if err != nil {
		t.Fatal(err)
	}
	if got.PrefixSize != mi.PrefixSize || got.SuffixSize != mi.SuffixSize {
		t.Errorf("geometry mismatch: got %+v, want %+v", got, mi)
	}
	if got.NumFilesBits != mi.NumFilesBits || got.NumBlocksBits != mi.NumBlocksBits {
		t.Errorf("bit-width mismatch: got %+v, want %+v", got, mi)
	}
	if got.IsMultiSet != mi.IsMultiSet {
		t.Errorf("isMultiSet: got %v, want %v", got.IsMultiSet, mi.IsMultiSet)
	}
	for v, c := range mi.Histogram {
		if got.Histogram[v] != c {
			t.Errorf("histogram[%d]: got %d, want %d", v, got.Histogram[v], c)
		}
	}
}

func TestReadMasterIndexV01HasNoFlags(t *testing.T) {
	sb := meryl.NewStuffedBits()
	if err := writeMagic(sb, masterMagicV01); err != nil {
		t.Fatal(err)
	}
	for _, v := range []uint64{8, 16, 1, 5} {
		if err := sb.SetBinary(32, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeHistogram(sb, map[uint64]uint64{1: 9}); err != nil {
		t.Fatal(err)
	}
	sb.SetPosition(0)

	got, err := ReadMasterIndex(sb)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsMultiSet {
		t.Error("v01 master index must default IsMultiSet to false")
	}
	if got.PrefixSize != 8 || got.SuffixSize != 16 {
		t.Errorf("geometry mismatch: %+v", got)
	}
	if got.Histogram[1] != 9 {
		t.Errorf("histogram mismatch: %+v", got.Histogram)
	}
}

func TestReadMasterIndexRejectsBadMagic(t *testing.T) {
	sb := meryl.NewStuffedBits()
	if err := writeMagic(sb, "notARealMagic!!!"); err != nil {
		t.Fatal(err)
	}
	sb.SetPosition(0)

	if _, err := ReadMasterIndex(sb); err == nil {
		t.Error("expected an error for unrecognized magic")
	}
}
