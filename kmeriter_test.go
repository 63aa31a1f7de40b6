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

import "testing"

func TestKmerIteratorBasic(t *testing.T) {
	it := NewKmerIterator(4)
	it.AddSequence([]byte("ACGTACGTN"))

	var got []string
	for {
		fmer, _, ok := it.NextMer()
		if !ok {
			break
		}
		got = append(got, fmer.String())
	}
	want := []string{"ACGT", "CGTA", "GTAC", "TACG", "ACGT"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mer %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestKmerIteratorBreakerMidSequence(t *testing.T) {
	it := NewKmerIterator(3)
	it.AddSequence([]byte("ACGNTAC"))

	var got []string
	for {
		fmer, _, ok := it.NextMer()
		if !ok {
			break
		}
		got = append(got, fmer.String())
	}
	// ACG breaks at N; only "TAC" can form afterward (3 bases exactly).
	want := []string{"ACG", "TAC"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mer %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestKmerIteratorRevCompMatches(t *testing.T) {
	it := NewKmerIterator(4)
	it.AddSequence([]byte("ACGTACGT"))

	for {
		fmer, rmer, ok := it.NextMer()
		if !ok {
			break
		}
		if !Equal(rmer, RevComp(fmer)) {
			t.Errorf("rmer %s != RevComp(fmer) %s", rmer, RevComp(fmer))
		}
	}
}

func TestKmerIteratorNoWindowShorterThanK(t *testing.T) {
	it := NewKmerIterator(10)
	it.AddSequence([]byte("ACGT"))
	if _, _, ok := it.NextMer(); ok {
		t.Fatal("expected no k-mer for a 4-base sequence with k=10")
	}
}
