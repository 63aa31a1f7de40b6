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

	merylgo "github.com/shenwei356/merylgo"
)

// defaultBatchBases is the size of one buffer handed from the loader to a
// worker.
const defaultBatchBases = 1 << 20

// kmerSizeBytes is the pessimistic per-k-mer size used by the sort-overhead
// estimate: every k-mer is accounted as a full 128-bit value regardless
// of the actual suffix width.
const kmerSizeBytes = 16

// Sink receives one finalized bucket's k-mers as a block. A prefix may be
// written more than once if the engine spills partway through ingest; the
// sink (meryldb's writer) is responsible for the final N-way merge across
// such spills.
type Sink interface {
	WriteBlock(prefix uint64, suffixBits int, suffixes, values []uint64) error
}

// Source supplies successive base buffers, carrying the trailing k-1 bases
// forward across a sequence that spans more than one buffer. *merylgo.SeqSource
// satisfies this.
type Source interface {
	Next(maxLen int) (*merylgo.Batch, error)
}

// Engine runs the Complex-mode counting pipeline: a loader feeds
// fixed-size base buffers to a worker pool, each worker canonicalizes every
// k-mer in its buffer and appends it to the owning per-prefix CountArray,
// and the calling goroutine (acting as the writer role) decides when
// accumulated memory requires a spill.
type Engine struct {
	k          int
	wPrefix    int
	suffixBits int

	buckets []*CountArray

	dumping int32

	memCeiling uint64
	sink       Sink
}

// NewEngine allocates one CountArray per prefix bucket named by cfg (the
// result of Configure) and wires writes to sink. memCeiling is the run's
// memory budget M, independent of cfg.MemoryBytes (which is only the
// estimated footprint of the chosen wPrefix).
func NewEngine(cfg *Config, memCeiling uint64, sink Sink) *Engine {
	e := &Engine{
		k:          cfg.K,
		wPrefix:    cfg.WPrefix,
		suffixBits: cfg.SuffixBits,
		memCeiling: memCeiling,
		sink:       sink,
		buckets:    make([]*CountArray, cfg.NPrefix),
	}
	for i := range e.buckets {
		e.buckets[i] = NewCountArray(uint64(i), cfg.SuffixBits)
	}
	return e
}

// Run drains src through the worker pool, spilling to disk whenever
// accumulated memory would exceed the configured ceiling, then flushes
// whatever remains. numWorkers should be max(T-2, 1), leaving one thread
// for the loader and one for the writer role.
func (e *Engine) Run(src Source, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}

	loaderToWorkers := make(chan *merylgo.Batch, 16*numWorkers)
	workersToWriter := make(chan *merylgo.Batch, numWorkers)

	var errOnce sync.Once
	var firstErr error
	setErr := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	go func() {
		defer close(loaderToWorkers)
		for {
			batch, err := src.Next(defaultBatchBases)
			if err != nil {
				if err != io.EOF {
					setErr(err)
				}
				return
			}
			loaderToWorkers <- batch
		}
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			e.runWorker(loaderToWorkers, workersToWriter)
		}()
	}

	go func() {
		workerWG.Wait()
		close(workersToWriter)
	}()

	for range workersToWriter {
		if e.memoryUsed()+e.sortOverhead(numWorkers) > e.memCeiling {
			if err := e.spillAll(); err != nil {
				setErr(err)
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	return e.Finish()
}

// runWorker is one worker's loop body: run the k-mer iterator over each
// buffer, canonicalize, split into (prefix, suffix), and append.
func (e *Engine) runWorker(in <-chan *merylgo.Batch, out chan<- *merylgo.Batch) {
	it := merylgo.NewKmerIterator(e.k)
	for batch := range in {
		it.AddSequence(batch.Bases)
		for {
			fmer, rmer, ok := it.NextMer()
			if !ok {
				break
			}
			km := fmer
			if merylgo.Less(rmer, fmer) {
				km = rmer
			}
			prefix := km.Prefix(e.wPrefix)
			suffix := km.Suffix(e.wPrefix)
			e.buckets[prefix].Append(suffix, &e.dumping)
		}
		out <- batch
	}
}

// memoryUsed sums the raw footprint of every bucket's backing slices.
func (e *Engine) memoryUsed() uint64 {
	var total uint64
	for _, b := range e.buckets {
		total += b.MemoryBytes()
	}
	return total
}

// sortOverhead pessimistically estimates the scratch space the next sort
// pass would need: W times the largest single bucket, at full k-mer width.
func (e *Engine) sortOverhead(numWorkers int) uint64 {
	var maxLen int
	for _, b := range e.buckets {
		if n := b.Len(); n > maxLen {
			maxLen = n
		}
	}
	return uint64(numWorkers) * uint64(maxLen) * kmerSizeBytes
}
