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
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	cases := []string{"A", "ACGT", "TTTTTTTTTTTTTTTT", "ACGTACGTACGTACGTACGTACGTACGTACGT"}
	for _, s := range cases {
		k, err := Encode([]byte(s))
		if err != nil {
			t.Fatalf("Encode(%s): %s", s, err)
		}
		if got := string(Decode(k)); got != s {
			t.Errorf("Decode(Encode(%s)) = %s", s, got)
		}
	}
}

func TestEncodeIllegalBase(t *testing.T) {
	if _, err := Encode([]byte("ACGN")); err != ErrIllegalBase {
		t.Errorf("expected ErrIllegalBase, got %v", err)
	}
}

func TestEncodeLargeK(t *testing.T) {
	s := strings.Repeat("ACGT", 16) // k=64
	k, err := Encode([]byte(s))
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}
	if k.K != 64 {
		t.Fatalf("K = %d, want 64", k.K)
	}
	if got := string(Decode(k)); got != s {
		t.Errorf("Decode(Encode(%s)) = %s", s, got)
	}
}

func TestEncodeKOverflow(t *testing.T) {
	s := strings.Repeat("A", 65)
	if _, err := Encode([]byte(s)); err != ErrKOverflow {
		t.Errorf("expected ErrKOverflow, got %v", err)
	}
}

func TestRevComp(t *testing.T) {
	cases := map[string]string{
		"ACGT": "ACGT", // palindrome
		"AAAT": "ATTT",
		"GATTACA": "TGTAATC",
	}
	for s, want := range cases {
		k, err := Encode([]byte(s))
		if err != nil {
			t.Fatal(err)
		}
		rc := RevComp(k)
		if got := string(Decode(rc)); got != want {
			t.Errorf("RevComp(%s) = %s, want %s", s, got, want)
		}
	}
}

func TestCanonical(t *testing.T) {
	// property P2: canonical(kmer(s)) == canonical(kmer(revcomp(s))) and
	// canonical(x) <= x.
	cases := []string{"ACGT", "AAAT", "GATTACA", "TTTTT", "ACGTACGTACGTACGTACGTACGTACGTACGTACGT"}
	for _, s := range cases {
		k, err := Encode([]byte(s))
		if err != nil {
			t.Fatal(err)
		}
		rc := RevComp(k)
		rcBases := Decode(rc)
		k2, err := Encode(rcBases)
		if err != nil {
			t.Fatal(err)
		}

		c1 := Canonical(k)
		c2 := Canonical(k2)
		if !Equal(c1, c2) {
			t.Errorf("canonical(%s)=%s != canonical(revcomp)=%s", s, c1, c2)
		}
		if Less(k, c1) {
			t.Errorf("canonical(%s) = %s is greater than input", s, c1)
		}
	}
}

func TestPalindromeNotDoubleCounted(t *testing.T) {
	// S2: ACGT is its own reverse complement.
	k, err := Encode([]byte("ACGT"))
	if err != nil {
		t.Fatal(err)
	}
	rc := RevComp(k)
	if !Equal(k, rc) {
		t.Errorf("ACGT should be its own reverse complement, got %s", rc)
	}
}

func TestPrefixSuffixRoundtrip(t *testing.T) {
	k, err := Encode([]byte("ACGTACGT")) // k=8
	if err != nil {
		t.Fatal(err)
	}
	wPrefix := 4
	p := k.Prefix(wPrefix)
	s := k.Suffix(wPrefix)
	// reconstruct: combined = (p << wSuffix) | s
	wSuffix := 2*k.K - wPrefix
	combined := (p << uint(wSuffix)) | s
	if combined != k.Lo {
		t.Errorf("prefix/suffix split doesn't reconstruct: got %d want %d", combined, k.Lo)
	}
}
