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

func TestBlockReaderReadAllMultipleBlocks(t *testing.T) {
	sb := meryl.NewStuffedBits()
	if err := encodeBlock(sb, 1, []uint64{1, 2, 3}, []uint64{10, 20, 30}); err != nil {
		t.Fatal(err)
	}
	if err := encodeBlock(sb, 2, []uint64{7}, []uint64{1}); err != nil {
		t.Fatal(err)
	}
	sb.SetPosition(0)

	blocks, err := NewBlockReader(sb).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Prefix != 1 || blocks[1].Prefix != 2 {
		t.Errorf("unexpected prefixes: %+v", blocks)
	}
	if blocks[1].Suffixes[0] != 7 || blocks[1].Values[0] != 1 {
		t.Errorf("second block contents wrong: %+v", blocks[1])
	}
}

func TestBlockReaderLoadBlockRejectsBadMagic(t *testing.T) {
	sb := meryl.NewStuffedBits()
	if err := sb.SetBinary(64, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if err := sb.SetBinary(64, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	sb.SetPosition(0)

	if _, err := NewBlockReader(sb).LoadBlock(); err == nil {
		t.Error("expected a magic-mismatch error")
	}
}

func TestBlockReaderHandlesEmptyBlock(t *testing.T) {
	sb := meryl.NewStuffedBits()
	if err := encodeBlock(sb, 9, nil, nil); err != nil {
		t.Fatal(err)
	}
	sb.SetPosition(0)

	r := NewBlockReader(sb)
	h, err := r.LoadBlock()
	if err != nil {
		t.Fatal(err)
	}
	if h.NKmers != 0 {
		t.Fatalf("expected 0 kmers, got %d", h.NKmers)
	}
	blk, err := r.DecodeBlock(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(blk.Suffixes) != 0 {
		t.Errorf("expected no suffixes, got %v", blk.Suffixes)
	}
}
