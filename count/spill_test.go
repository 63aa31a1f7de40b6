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

package count

import "testing"

func TestSpillAllDumpsOnlyNonEmptyBuckets(t *testing.T) {
	cfg := smallConfig(4, 4)
	sink := newRecordingSink()
	e := NewEngine(cfg, 1<<30, sink)

	var dumping int32
	e.buckets[2].Append(7, &dumping)
	e.buckets[2].Append(7, &dumping)
	e.buckets[9].Append(1, &dumping)

	if err := e.spillAll(); err != nil {
		t.Fatal(err)
	}

	if sink.calls != 2 {
		t.Fatalf("got %d WriteBlock calls, want 2 (only populated prefixes)", sink.calls)
	}
	if got := sink.counts[2][7]; got != 2 {
		t.Errorf("prefix 2 suffix 7: got %d, want 2", got)
	}
	if got := sink.counts[9][1]; got != 1 {
		t.Errorf("prefix 9 suffix 1: got %d, want 1", got)
	}

	// Buckets must be reusable after a spill.
	for _, b := range e.buckets {
		if b.Len() != 0 {
			t.Fatalf("bucket %d not reset after spill: len=%d", b.Prefix, b.Len())
		}
	}
}

func TestFinishAfterEmptySpillIsNoop(t *testing.T) {
	cfg := smallConfig(4, 4)
	sink := newRecordingSink()
	e := NewEngine(cfg, 1<<30, sink)

	if err := e.Finish(); err != nil {
		t.Fatal(err)
	}
	if sink.calls != 0 {
		t.Errorf("expected no WriteBlock calls for an empty engine, got %d", sink.calls)
	}
}

func TestSpillThenFinishAccumulatesAcrossSpills(t *testing.T) {
	cfg := smallConfig(4, 4)
	sink := newRecordingSink()
	e := NewEngine(cfg, 1<<30, sink)

	var dumping int32
	e.buckets[5].Append(3, &dumping)
	if err := e.spillAll(); err != nil {
		t.Fatal(err)
	}

	e.buckets[5].Append(3, &dumping)
	e.buckets[5].Append(3, &dumping)
	if err := e.Finish(); err != nil {
		t.Fatal(err)
	}

	if got, want := sink.counts[5][3], uint64(3); got != want {
		t.Errorf("got %d, want %d (sink must sum across separate spills)", got, want)
	}
	if sink.calls != 2 {
		t.Errorf("got %d WriteBlock calls, want 2", sink.calls)
	}
}
