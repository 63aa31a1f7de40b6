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

import "testing"

func TestConfigureLookupIndexPicksSmallestFittingWPrefix(t *testing.T) {
	hist := map[uint64]uint64{1: 1000, 2: 500}
	w, mem, err := ConfigureLookupIndex(16, hist, 1, 2, 1<<30)
	if err != nil {
		t.Fatal(err)
	}
	if w < lookupMinWPrefix || w > 32 {
		t.Errorf("wPrefix out of range: %d", w)
	}
	if mem == 0 {
		t.Error("expected nonzero memory estimate")
	}
}

func TestConfigureLookupIndexErrorsWhenNothingFits(t *testing.T) {
	hist := map[uint64]uint64{1: 1 << 20}
	if _, _, err := ConfigureLookupIndex(16, hist, 1, 1, 1); err == nil {
		t.Error("expected an error when no wPrefix fits a 1-byte budget")
	}
}

func TestConfigureLookupIndexExcludesOutOfRangeBuckets(t *testing.T) {
	// Only the value=2 bucket is in range; a full-histogram sum would be
	// 1000+500+2000, an in-range sum is 500.
	hist := map[uint64]uint64{1: 1000, 2: 500, 3: 2000}
	_, memInRange, err := ConfigureLookupIndex(16, hist, 2, 2, 1<<30)
	if err != nil {
		t.Fatal(err)
	}
	_, memFull, err := ConfigureLookupIndex(16, hist, 1, 3, 1<<30)
	if err != nil {
		t.Fatal(err)
	}
	if memInRange >= memFull {
		t.Errorf("in-range estimate %d should be smaller than full-histogram estimate %d", memInRange, memFull)
	}
}

func TestBuildLookupIndexContainsMatchesValue(t *testing.T) {
	// Database-level partitioning: k=8 (16 bits total), dbWPrefix=4, so
	// dbSuffixBits = 12.
	k := 8
	dbSuffixBits := 12
	blocks := []DecodedBlock{
		{Prefix: 0, Suffixes: []uint64{5, 20, 4000}, Values: []uint64{1, 2, 3}},
		{Prefix: 1, Suffixes: []uint64{7}, Values: []uint64{9}},
	}

	li := BuildLookupIndex(k, dbSuffixBits, blocks, 6, 1, 9)

	cases := []struct {
		full uint64
		want uint64
	}{
		{0<<uint(dbSuffixBits) | 5, 1},
		{0<<uint(dbSuffixBits) | 20, 2},
		{0<<uint(dbSuffixBits) | 4000, 3},
		{1<<uint(dbSuffixBits) | 7, 9},
		{0<<uint(dbSuffixBits) | 6, 0}, // absent
	}
	for _, c := range cases {
		if got := li.Value(c.full); got != c.want {
			t.Errorf("Value(%d): got %d, want %d", c.full, got, c.want)
		}
		if got, want := li.Contains(c.full), c.want > 0; got != want {
			t.Errorf("Contains(%d): got %v, want %v", c.full, got, want)
		}
	}
}

func TestBuildLookupIndexExcludesOutOfRangeValues(t *testing.T) {
	k := 8
	dbSuffixBits := 12
	blocks := []DecodedBlock{
		{Prefix: 0, Suffixes: []uint64{5, 20, 4000, 50}, Values: []uint64{1, 2, 9, 30}},
	}

	// range [2,20]: value=1 and value=30 are both out of range and must
	// look up as absent even though they were present in the source blocks.
	li := BuildLookupIndex(k, dbSuffixBits, blocks, 6, 2, 20)

	cases := []struct {
		full uint64
		want uint64
	}{
		{0<<uint(dbSuffixBits) | 5, 0},  // value 1, below minValue
		{0<<uint(dbSuffixBits) | 20, 2}, // value 2, in range
		{0<<uint(dbSuffixBits) | 4000, 9},
		{0<<uint(dbSuffixBits) | 50, 0}, // value 30, above maxValue
	}
	for _, c := range cases {
		if got := li.Value(c.full); got != c.want {
			t.Errorf("Value(%d): got %d, want %d", c.full, got, c.want)
		}
	}
}

func TestBuildLookupIndexEmptyPrefixBucket(t *testing.T) {
	li := BuildLookupIndex(8, 12, nil, 6, 0, 0)
	if li.Contains(123) {
		t.Error("empty index must report no k-mer as present")
	}
}
