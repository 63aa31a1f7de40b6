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
	"testing"

	merylgo "github.com/shenwei356/merylgo"
)

func TestSimpleCounterBasic(t *testing.T) {
	c, err := NewSimpleCounter(4, 0)
	if err != nil {
		t.Fatal(err)
	}

	fmer, err := merylgo.Encode([]byte("ACGT"))
	if err != nil {
		t.Fatal(err)
	}
	rmer := merylgo.RevComp(fmer)

	for i := 0; i < 5; i++ {
		c.Add(fmer, rmer)
	}

	km := merylgo.Canonical(fmer)
	if got := c.Value(km); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestSimpleCounterOverflowsToHash(t *testing.T) {
	c, err := NewSimpleCounter(4, 0)
	if err != nil {
		t.Fatal(err)
	}

	fmer, _ := merylgo.Encode([]byte("ACGT"))
	rmer := merylgo.RevComp(fmer)

	const n = 1000
	for i := 0; i < n; i++ {
		c.Add(fmer, rmer)
	}

	km := merylgo.Canonical(fmer)
	if got := c.Value(km); got != n {
		t.Errorf("got %d, want %d", got, n)
	}
}

func TestSimpleCounterDistinctEntriesIndependent(t *testing.T) {
	c, err := NewSimpleCounter(4, 0)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := merylgo.Encode([]byte("AAAA"))
	ra := merylgo.RevComp(a)
	g, _ := merylgo.Encode([]byte("GGGG"))
	rg := merylgo.RevComp(g)

	c.Add(a, ra)
	c.Add(a, ra)
	c.Add(g, rg)

	if got := c.Value(merylgo.Canonical(a)); got != 2 {
		t.Errorf("AAAA: got %d, want 2", got)
	}
	if got := c.Value(merylgo.Canonical(g)); got != 1 {
		t.Errorf("GGGG: got %d, want 1", got)
	}
}

func TestSimpleCounterEachSkipsEmpty(t *testing.T) {
	c, err := NewSimpleCounter(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := merylgo.Encode([]byte("AAA"))
	ra := merylgo.RevComp(a)
	c.Add(a, ra)

	n := 0
	c.Each(func(idx uint64, count uint64) {
		n++
		if count != 1 {
			t.Errorf("got count %d, want 1", count)
		}
	})
	if n != 1 {
		t.Errorf("got %d populated entries, want 1", n)
	}
}

func TestSimpleModeArraySizeWithSuffix(t *testing.T) {
	if got, want := SimpleModeArraySize(8, 4), uint64(1)<<8; got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}
