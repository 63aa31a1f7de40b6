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
	"sync/atomic"

	"github.com/pkg/errors"
)

// spillAll raises the dumping flag so any worker still running backs off
// instead of taking a bucket lock, finalizes and dumps every non-empty
// bucket, then clears the flag. The engine does not decide whether a merge
// is needed across spills — that is the block writer's job, since only it
// sees the files on disk; the engine simply writes one block per spilled
// bucket and lets the sink accumulate them.
func (e *Engine) spillAll() error {
	atomic.StoreInt32(&e.dumping, 1)
	defer atomic.StoreInt32(&e.dumping, 0)

	for _, b := range e.buckets {
		if b.Len() == 0 {
			continue
		}
		if err := e.dumpBucket(b); err != nil {
			return err
		}
	}
	return nil
}

// dumpBucket finalizes, writes, and resets one bucket.
func (e *Engine) dumpBucket(b *CountArray) error {
	b.Finalize()
	if len(b.Suffixes) > 0 {
		if err := e.sink.WriteBlock(b.Prefix, b.SuffixBits, b.Suffixes, b.Values); err != nil {
			return errors.Wrapf(err, "count: writing block for prefix %d", b.Prefix)
		}
	}
	b.Reset()
	return nil
}

// Finish flushes every bucket that still holds data once the input is
// exhausted, so the final partial batch is not lost. Safe to call even if
// Run already spilled everything (remaining buckets are simply empty).
func (e *Engine) Finish() error {
	return e.spillAll()
}
