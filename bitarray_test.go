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

func TestBitArraySetGet(t *testing.T) {
	b := NewBitArray(200)
	for _, i := range []uint64{0, 1, 63, 64, 65, 127, 128, 199} {
		b.Set(i, true)
	}
	for i := uint64(0); i < 200; i++ {
		want := i == 0 || i == 1 || i == 63 || i == 64 || i == 65 || i == 127 || i == 128 || i == 199
		if got := b.Get(i); got != want {
			t.Errorf("Get(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestBitArrayFlipAndClear(t *testing.T) {
	b := NewBitArray(64)
	b.Flip(5)
	if !b.Get(5) {
		t.Fatal("expected bit 5 set after Flip")
	}
	b.Flip(5)
	if b.Get(5) {
		t.Fatal("expected bit 5 clear after second Flip")
	}
	b.Set(10, true)
	b.Set(20, true)
	b.Clear()
	if b.Get(10) || b.Get(20) {
		t.Fatal("expected all bits clear after Clear")
	}
}
