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
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
)

// breakerByte is inserted between sequences (and between input files) so
// that the k-mer iterator resets at sequence boundaries. It is not an
// ACGT byte, so base2bit always rejects it.
const breakerByte = 'N'

// Batch is one contiguous slice of bases handed to the k-mer iterator. The
// first K-1 bytes of a Batch following another Batch from the same
// sequence duplicate the last K-1 bytes of the previous Batch, so that
// k-mers spanning the split are emitted exactly once by the caller holding
// the carry (see KmerIterator; the breaker byte that ends a sequence's last
// Batch is what resets the k-mer window).
type Batch struct {
	Bases         []byte
	EndOfSequence bool
}

// SeqSource yields successive Batches of bases from one or more FASTA/FASTQ
// files (optionally compressed, handled transparently by the underlying
// reader), inserting a breaker sentinel between sequences and between
// files. K-1 bases are carried across buffer splits within one sequence so
// that callers never need to special-case a boundary-spanning k-mer.
type SeqSource struct {
	k       int
	files   []string
	fileIdx int
	reader  *fastx.Reader

	cur []byte // bases remaining in the current record, not yet emitted

	carry []byte // up to k-1 trailing bases of the last emitted batch
}

// NewSeqSource opens the first of files lazily (on the first call to Next)
// and returns a SeqSource for k-mers of size k.
func NewSeqSource(files []string, k int) *SeqSource {
	return &SeqSource{k: k, files: files}
}

// openNext advances to the next input file, returning false once all files
// are exhausted.
func (s *SeqSource) openNext() (bool, error) {
	for {
		if s.fileIdx >= len(s.files) {
			return false, nil
		}
		file := s.files[s.fileIdx]
		s.fileIdx++
		r, err := fastx.NewDefaultReader(file)
		if err != nil {
			return false, errors.Wrapf(err, "opening %s", file)
		}
		s.reader = r
		return true, nil
	}
}

// fillCur loads the next non-empty record's bases into s.cur, skipping
// past malformed records by resynchronizing to the next sequence header (a
// line starting with '>' or '@'); the underlying fastx reader already does
// this resynchronization itself, so here we only need to keep pulling
// records until one succeeds or the file (and then the file list) is
// exhausted.
func (s *SeqSource) fillCur() (bool, error) {
	for {
		if s.reader == nil {
			ok, err := s.openNext()
			if err != nil || !ok {
				return ok, err
			}
		}
		record, err := s.reader.Read()
		if err != nil {
			if err == io.EOF {
				s.reader = nil
				continue
			}
			// malformed record: skip it and move on to the next one.
			continue
		}
		if len(record.Seq.Seq) == 0 {
			continue
		}
		s.cur = record.Seq.Seq
		return true, nil
	}
}

// Next returns a newly allocated batch of up to maxLen bases and reports whether this batch ends a sequence. It returns
// io.EOF only once no more bases are available from any input.
func (s *SeqSource) Next(maxLen int) (*Batch, error) {
	if maxLen <= 0 {
		return nil, errors.New("meryl: maxLen must be positive")
	}

	kmerCarryLen := s.k - 1
	if kmerCarryLen < 0 {
		kmerCarryLen = 0
	}

	out := make([]byte, 0, maxLen)
	out = append(out, s.carry...)
	s.carry = nil

	for len(out) < maxLen {
		if len(s.cur) == 0 {
			ok, err := s.fillCur()
			if err != nil {
				return nil, err
			}
			if !ok {
				// true end of input.
				if len(out) == 0 {
					return nil, io.EOF
				}
				return &Batch{Bases: out, EndOfSequence: true}, nil
			}
			// a new sequence was loaded into s.cur; fall through to fill
			// from it below.
			continue
		}

		room := maxLen - len(out)
		n := room
		if n > len(s.cur) {
			n = len(s.cur)
		}
		out = append(out, s.cur[:n]...)
		s.cur = s.cur[n:]

		if len(s.cur) == 0 {
			// end of this sequence: append the breaker sentinel so the
			// k-mer iterator resets, and drop any pending carry since no
			// k-mer may span this boundary.
			out = append(out, breakerByte)
			s.carry = nil
			return &Batch{Bases: out, EndOfSequence: true}, nil
		}
	}

	// buffer full, sequence continues: carry the trailing k-1 bases
	// forward so the next batch can re-derive boundary-spanning k-mers.
	if kmerCarryLen > 0 && kmerCarryLen <= len(out) {
		s.carry = append([]byte(nil), out[len(out)-kmerCarryLen:]...)
	}
	return &Batch{Bases: out, EndOfSequence: false}, nil
}

// dnaSeqIndexMagic is the 64-bit magic value of a .dnaSeqIndex companion
// file.
var dnaSeqIndexMagic = [8]byte{'d', 'n', 'a', 'S', 'e', 'q', '0', '1'}

// DnaSeqIndexEntry records one sequence's location within its source file.
type DnaSeqIndexEntry struct {
	FileOffset     uint64
	SequenceLength uint64
}

// DnaSeqIndex is the companion index of an indexed FASTA input, recording
// each sequence's (fileOffset, sequenceLength) pair alongside the size and
// mtime of the source file it was built from, so staleness can be detected
// without re-scanning.
type DnaSeqIndex struct {
	SourceSize  uint64
	SourceMtime uint64
	Entries     []DnaSeqIndexEntry
}

// IsStale reports whether idx no longer matches the current state of
// sourcePath; any mismatch means the index must be rebuilt.
func (idx *DnaSeqIndex) IsStale(sourcePath string) (bool, error) {
	fi, err := os.Stat(sourcePath)
	if err != nil {
		return true, err
	}
	return uint64(fi.Size()) != idx.SourceSize || uint64(fi.ModTime().Unix()) != idx.SourceMtime, nil
}

// Dump serializes idx to its on-disk wire format.
func (idx *DnaSeqIndex) Dump() []byte {
	buf := make([]byte, 0, 24+16*len(idx.Entries))
	buf = append(buf, dnaSeqIndexMagic[:]...)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], idx.SourceSize)
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint64(tmp[:], idx.SourceMtime)
	buf = append(buf, tmp[:]...)
	for _, e := range idx.Entries {
		binary.BigEndian.PutUint64(tmp[:], e.FileOffset)
		buf = append(buf, tmp[:]...)
		binary.BigEndian.PutUint64(tmp[:], e.SequenceLength)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// ErrBadDnaSeqIndexMagic means a .dnaSeqIndex file's magic did not match.
var ErrBadDnaSeqIndexMagic = errors.New("meryl: bad dnaSeqIndex magic")

// LoadDnaSeqIndex parses a buffer in the on-disk wire format.
func LoadDnaSeqIndex(buf []byte) (*DnaSeqIndex, error) {
	if len(buf) < 24 {
		return nil, ErrBadDnaSeqIndexMagic
	}
	if string(buf[:8]) != string(dnaSeqIndexMagic[:]) {
		return nil, ErrBadDnaSeqIndexMagic
	}
	idx := &DnaSeqIndex{
		SourceSize:  binary.BigEndian.Uint64(buf[8:16]),
		SourceMtime: binary.BigEndian.Uint64(buf[16:24]),
	}
	off := 24
	for off+16 <= len(buf) {
		idx.Entries = append(idx.Entries, DnaSeqIndexEntry{
			FileOffset:     binary.BigEndian.Uint64(buf[off : off+8]),
			SequenceLength: binary.BigEndian.Uint64(buf[off+8 : off+16]),
		})
		off += 16
	}
	return idx, nil
}
