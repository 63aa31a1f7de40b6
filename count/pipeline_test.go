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

import (
	"io"
	"sync"
	"testing"

	merylgo "github.com/shenwei356/merylgo"
)

// batchSource replays a fixed list of batches then returns io.EOF, used in
// place of a real *merylgo.SeqSource so tests don't depend on file I/O.
type batchSource struct {
	mu      sync.Mutex
	batches []*merylgo.Batch
	idx     int
}

func (s *batchSource) Next(maxLen int) (*merylgo.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.batches) {
		return nil, io.EOF
	}
	b := s.batches[s.idx]
	s.idx++
	return b, nil
}

// recordingSink accumulates every WriteBlock call, keyed by prefix, summing
// counts across repeated writes the way a real merge would.
type recordingSink struct {
	mu     sync.Mutex
	counts map[uint64]map[uint64]uint64 // prefix -> suffix -> count
	calls  int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counts: make(map[uint64]map[uint64]uint64)}
}

func (s *recordingSink) WriteBlock(prefix uint64, suffixBits int, suffixes, values []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	m, ok := s.counts[prefix]
	if !ok {
		m = make(map[uint64]uint64)
		s.counts[prefix] = m
	}
	for i, suf := range suffixes {
		m[suf] += values[i]
	}
	return nil
}

func (s *recordingSink) total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint64
	for _, m := range s.counts {
		for _, v := range m {
			total += v
		}
	}
	return total
}

func (s *recordingSink) distinct() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.counts {
		n += len(m)
	}
	return n
}

func smallConfig(k, wPrefix int) *Config {
	return &Config{
		K:          k,
		WPrefix:    wPrefix,
		NPrefix:    uint64(1) << uint(wPrefix),
		SuffixBits: 2*k - wPrefix,
		NBatches:   1,
	}
}

func TestEngineRunNoSpillCountsEveryKmer(t *testing.T) {
	k := 4
	cfg := smallConfig(k, 4)
	sink := newRecordingSink()
	e := NewEngine(cfg, 1<<30, sink) // huge ceiling: never spills mid-run

	src := &batchSource{batches: []*merylgo.Batch{
		{Bases: []byte("ACGTACGT"), EndOfSequence: true},
	}}

	if err := e.Run(src, 2); err != nil {
		t.Fatal(err)
	}

	// "ACGTACGT" (k=4, no breaker, 8 valid bases): 8-4+1 = 5 overlapping
	// windows (ACGT, CGTA, GTAC, TACG, ACGT).
	if got, want := sink.total(), uint64(5); got != want {
		t.Errorf("total count: got %d, want %d", got, want)
	}
	if sink.calls == 0 {
		t.Error("expected at least one WriteBlock call from Finish")
	}
}

func TestEngineRunRepeatedKmerSumsToSameBucket(t *testing.T) {
	k := 3
	cfg := smallConfig(k, 4)
	sink := newRecordingSink()
	e := NewEngine(cfg, 1<<30, sink)

	src := &batchSource{batches: []*merylgo.Batch{
		{Bases: []byte("AAAAAA"), EndOfSequence: true}, // 4 overlapping AAA windows
	}}

	if err := e.Run(src, 1); err != nil {
		t.Fatal(err)
	}

	if got, want := sink.total(), uint64(4); got != want {
		t.Errorf("total: got %d, want %d", got, want)
	}
	if got, want := sink.distinct(), 1; got != want {
		t.Errorf("distinct entries: got %d, want %d", got, want)
	}
}

func TestEngineForcedSpillPreservesTotal(t *testing.T) {
	k := 3
	cfg := smallConfig(k, 4)
	sink := newRecordingSink()
	// Tiny ceiling forces a spill after nearly every worker buffer.
	e := NewEngine(cfg, 1, sink)

	src := &batchSource{batches: []*merylgo.Batch{
		{Bases: []byte("ACGTACGTACGTN"), EndOfSequence: true},
		{Bases: []byte("ACGTACGTN"), EndOfSequence: true},
	}}

	if err := e.Run(src, 2); err != nil {
		t.Fatal(err)
	}

	// First record: ACGTACGTACGT (k=3) -> 10 windows. Second: ACGTACGT -> 6.
	if got, want := sink.total(), uint64(16); got != want {
		t.Errorf("total after forced spills: got %d, want %d", got, want)
	}
	if sink.calls < 2 {
		t.Errorf("expected multiple WriteBlock calls from repeated spills, got %d", sink.calls)
	}
}

func TestEngineSourceErrorPropagates(t *testing.T) {
	cfg := smallConfig(4, 4)
	sink := newRecordingSink()
	e := NewEngine(cfg, 1<<30, sink)

	wantErr := io.ErrUnexpectedEOF
	src := &erroringSource{err: wantErr}

	if err := e.Run(src, 1); err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

type erroringSource struct{ err error }

func (s *erroringSource) Next(maxLen int) (*merylgo.Batch, error) {
	return nil, s.err
}
