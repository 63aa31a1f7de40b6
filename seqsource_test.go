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
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFasta(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.fasta")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSeqSourceSingleSequence(t *testing.T) {
	path := writeTempFasta(t, ">s\nACGTACGT\n")
	src := NewSeqSource([]string{path}, 4)

	b, err := src.Next(100)
	if err != nil {
		t.Fatal(err)
	}
	want := "ACGTACGTN" // breaker appended at sequence end
	if string(b.Bases) != want {
		t.Errorf("got %q, want %q", b.Bases, want)
	}
	if !b.EndOfSequence {
		t.Error("expected EndOfSequence=true")
	}

	if _, err := src.Next(100); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSeqSourceTwoSequencesBreaker(t *testing.T) {
	path := writeTempFasta(t, ">s1\nACG\n>s2\nTAC\n")
	src := NewSeqSource([]string{path}, 3)

	b1, err := src.Next(100)
	if err != nil {
		t.Fatal(err)
	}
	if string(b1.Bases) != "ACGN" {
		t.Errorf("batch1 = %q", b1.Bases)
	}

	b2, err := src.Next(100)
	if err != nil {
		t.Fatal(err)
	}
	if string(b2.Bases) != "TACN" {
		t.Errorf("batch2 = %q", b2.Bases)
	}

	if _, err := src.Next(100); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSeqSourceCarryOverAcrossBuffers(t *testing.T) {
	// k=4 so carry is 3 bases; force a small maxLen to split mid-sequence.
	path := writeTempFasta(t, ">s\nACGTACGTACGT\n")
	src := NewSeqSource([]string{path}, 4)

	b1, err := src.Next(5)
	if err != nil {
		t.Fatal(err)
	}
	if b1.EndOfSequence {
		t.Fatal("expected split batch, not end of sequence")
	}
	if len(b1.Bases) != 5 {
		t.Fatalf("batch1 len = %d, want 5", len(b1.Bases))
	}

	b2, err := src.Next(100)
	if err != nil {
		t.Fatal(err)
	}
	// the last 3 bases of b1 must be duplicated at the start of b2.
	carry := string(b1.Bases[len(b1.Bases)-3:])
	if string(b2.Bases[:3]) != carry {
		t.Errorf("carry-over mismatch: b1 tail=%q, b2 head=%q", carry, b2.Bases[:3])
	}
}

func TestDnaSeqIndexRoundTrip(t *testing.T) {
	idx := &DnaSeqIndex{
		SourceSize:  12345,
		SourceMtime: 67890,
		Entries: []DnaSeqIndexEntry{
			{FileOffset: 0, SequenceLength: 100},
			{FileOffset: 150, SequenceLength: 200},
		},
	}
	buf := idx.Dump()
	got, err := LoadDnaSeqIndex(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceSize != idx.SourceSize || got.SourceMtime != idx.SourceMtime {
		t.Fatalf("header mismatch: %+v vs %+v", got, idx)
	}
	if len(got.Entries) != len(idx.Entries) {
		t.Fatalf("entries len mismatch: %d vs %d", len(got.Entries), len(idx.Entries))
	}
	for i := range idx.Entries {
		if got.Entries[i] != idx.Entries[i] {
			t.Errorf("entry %d mismatch: %+v vs %+v", i, got.Entries[i], idx.Entries[i])
		}
	}
}

func TestDnaSeqIndexBadMagic(t *testing.T) {
	if _, err := LoadDnaSeqIndex([]byte("not an index, too short")); err == nil {
		t.Fatal("expected error for bad magic")
	}
}
