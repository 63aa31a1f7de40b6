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

// Package meryldb implements the on-disk database format: the per-file
// block writer/reader, the master index, and the exact-lookup index.
package meryldb

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	meryl "github.com/shenwei356/merylgo"
)

// Block magic.
const (
	blockMagic1 uint64 = 0x7461446c7972656d // "merylDat"
	blockMagic2 uint64 = 0x0a3030656c694661 // "aFile00\n"
)

// kCodeEliasGamma is the only suffix-coding scheme implemented: unary
// (the Elias-Gamma bit-length prefix) plus a binary tail, exactly Elias-
// Gamma's own structure.
const kCodeEliasGamma uint8 = 1

const (
	cCode32 uint8 = 1
	cCode64 uint8 = 2
)

// blockIndexEntry is one entry of a per-file merylIndex: which prefix a
// block holds, where it starts (in bits) within the sibling merylData
// file, and how many k-mers it holds.
type blockIndexEntry struct {
	Prefix   uint64
	BgnBits  uint64
	NKmers   uint64
}

// BlockWriter writes one merylData/merylIndex file pair per partition. It
// satisfies
// count.Sink (WriteBlock has the same signature) without importing the
// count package, so the counting engine and the database writer never
// need to know about each other directly; cmd/count.go wires them
// together.
//
// Every WriteBlock call is flushed to its own small file under a spill/
// subdirectory immediately, so a caller that spills a CountArray bucket to
// bound its own memory actually frees that memory — nothing accumulates in
// BlockWriter itself between spills. Finalize then does the real merge,
// streaming each output file's spill files back in one at a time rather
// than holding every spill ever written for the whole run.
type BlockWriter struct {
	dir      string
	k        int
	wPrefix  int
	numFiles uint64

	spillDir   string
	spillPaths [][]string // per output file, paths of spill files written so far
	spillSeq   uint64

	finalized bool
	streams   []*meryl.StuffedBits
	entries   [][]blockIndexEntry // per-file index, populated by Finalize
	hist      map[uint64]uint64   // value -> kmer-count, populated by Finalize
}

// decodedWithIndex is one consolidated (prefix, suffixes, values) block
// staged for encoding into a file's final stream.
type decodedWithIndex struct {
	prefix   uint64
	suffixes []uint64
	values   []uint64
}

// NewBlockWriter creates `<dir>/<dbName>.meryl/` (and its spill/
// subdirectory) and allocates the per-output-file bookkeeping for
// 2^numFilesBits files.
func NewBlockWriter(dir, dbName string, k, wPrefix int, numFilesBits uint32) (*BlockWriter, error) {
	root := filepath.Join(dir, dbName+".meryl")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "meryldb: creating %s", root)
	}
	spillDir := filepath.Join(root, "spill")
	if err := os.MkdirAll(spillDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "meryldb: creating %s", spillDir)
	}
	numFiles := uint64(1) << numFilesBits
	w := &BlockWriter{
		dir:        root,
		k:          k,
		wPrefix:    wPrefix,
		numFiles:   numFiles,
		spillDir:   spillDir,
		spillPaths: make([][]string, numFiles),
	}
	return w, nil
}

// fileIndex maps a prefix to its output file, keeping every block for a
// given prefix in the same file regardless of how many times it is
// spilled, so Finalize's merge never needs cross-file coordination.
func (w *BlockWriter) fileIndex(prefix uint64) uint64 {
	return prefix % w.numFiles
}

// WriteBlock encodes one finalized CountArray's worth of (suffix, count)
// pairs as a single block and flushes it straight to its own spill file on
// disk, so the caller's memory is actually freed once this returns.
// suffixes must already be sorted ascending with no duplicates
// (CountArray.Finalize guarantees this).
func (w *BlockWriter) WriteBlock(prefix uint64, suffixBits int, suffixes, values []uint64) error {
	fi := w.fileIndex(prefix)

	sb := meryl.NewStuffedBits()
	if err := encodeBlock(sb, prefix, suffixes, values); err != nil {
		return err
	}

	w.spillSeq++
	path := filepath.Join(w.spillDir, fmt.Sprintf("%s.%08d.spill", fileStem(fi), w.spillSeq))
	if err := os.WriteFile(path, sb.DumpToBuffer(), 0o644); err != nil {
		return errors.Wrapf(err, "meryldb: writing spill file %s", path)
	}
	w.spillPaths[fi] = append(w.spillPaths[fi], path)
	return nil
}

// Finalize merges every spill file written so far: for each output file,
// stream its spill files back one at a time (never holding more than one
// decoded spill file plus the running per-prefix sums in memory at once),
// sum counts for any prefix spilled more than once, then encode exactly
// one block per populated prefix into that file's final stream, in
// ascending prefix order. Call once after all WriteBlock calls are done,
// then Close to flush the merged streams to disk. Removes the spill/
// subdirectory once every file has been merged.
func (w *BlockWriter) Finalize() error {
	w.hist = make(map[uint64]uint64)
	w.streams = make([]*meryl.StuffedBits, w.numFiles)
	w.entries = make([][]blockIndexEntry, w.numFiles)

	for fi := uint64(0); fi < w.numFiles; fi++ {
		merged, err := w.mergeSpillFiles(fi)
		if err != nil {
			return err
		}
		sort.Slice(merged, func(a, b int) bool { return merged[a].prefix < merged[b].prefix })

		sb := meryl.NewStuffedBits()
		var entries []blockIndexEntry
		for _, blk := range merged {
			bgn := sb.GetPosition()
			if err := encodeBlock(sb, blk.prefix, blk.suffixes, blk.values); err != nil {
				return err
			}
			entries = append(entries, blockIndexEntry{Prefix: blk.prefix, BgnBits: bgn, NKmers: uint64(len(blk.suffixes))})
			for _, v := range blk.values {
				w.hist[v]++
			}
		}
		w.streams[fi] = sb
		w.entries[fi] = entries
	}

	w.finalized = true
	return errors.Wrapf(os.RemoveAll(w.spillDir), "meryldb: removing %s", w.spillDir)
}

// mergeSpillFiles streams every spill file staged for output file fi back
// from disk, one file at a time, summing counts for repeated (prefix,
// suffix) pairs into a single running map rather than keeping every spill
// file's decoded contents around simultaneously.
func (w *BlockWriter) mergeSpillFiles(fi uint64) ([]decodedWithIndex, error) {
	byPrefix := make(map[uint64]map[uint64]uint64)
	for _, path := range w.spillPaths[fi] {
		r, err := OpenBlockFile(path)
		if err != nil {
			return nil, err
		}
		blocks, err := r.ReadAll()
		if err != nil {
			return nil, errors.Wrapf(err, "meryldb: decoding spill file %s", path)
		}
		for _, blk := range blocks {
			m, ok := byPrefix[blk.Prefix]
			if !ok {
				m = make(map[uint64]uint64, len(blk.Suffixes))
				byPrefix[blk.Prefix] = m
			}
			for i, s := range blk.Suffixes {
				m[s] += blk.Values[i]
			}
		}
	}
	return blocksFromPrefixMap(byPrefix), nil
}

// Histogram returns the value -> kmer-count table accumulated by the most
// recent Finalize call (Close runs Finalize automatically if needed), for
// callers that don't already have one from elsewhere (cmd/count.go).
func (w *BlockWriter) Histogram() map[uint64]uint64 {
	return w.hist
}

// blocksFromPrefixMap flattens a prefix -> suffix -> value accumulator
// into one consolidated decodedWithIndex per distinct prefix, suffixes
// ascending.
func blocksFromPrefixMap(byPrefix map[uint64]map[uint64]uint64) []decodedWithIndex {
	out := make([]decodedWithIndex, 0, len(byPrefix))
	for prefix, m := range byPrefix {
		suffixes := make([]uint64, 0, len(m))
		for s := range m {
			suffixes = append(suffixes, s)
		}
		sort.Slice(suffixes, func(a, b int) bool { return suffixes[a] < suffixes[b] })
		values := make([]uint64, len(suffixes))
		for i, s := range suffixes {
			values[i] = m[s]
		}
		out = append(out, decodedWithIndex{prefix: prefix, suffixes: suffixes, values: values})
	}
	return out
}

// encodeBlock writes one block body to sb:
// magic, prefix, nKmers, kCode/stats/k1, cCode/min/max, Elias-Gamma
// deltas, then fixed-width values.
func encodeBlock(sb *meryl.StuffedBits, prefix uint64, suffixes, values []uint64) error {
	nKmers := uint64(len(suffixes))

	if err := sb.SetBinary(64, blockMagic1); err != nil {
		return err
	}
	if err := sb.SetBinary(64, blockMagic2); err != nil {
		return err
	}
	if err := sb.SetBinary(64, prefix); err != nil {
		return err
	}
	if err := sb.SetBinary(64, nKmers); err != nil {
		return err
	}

	if nKmers == 0 {
		return writeEmptyBlockTail(sb)
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	cCode := cCode32
	valWidth := 32
	if maxV > 0xFFFFFFFF {
		cCode = cCode64
		valWidth = 64
	}

	var unaryBits, binaryBits uint64
	for i := 1; i < len(suffixes); i++ {
		bl := bitLen64(suffixes[i] - suffixes[i-1])
		unaryBits += uint64(bl)
		binaryBits += uint64(bl - 1)
	}

	if err := sb.SetBinary(8, uint64(kCodeEliasGamma)); err != nil {
		return err
	}
	if err := sb.SetBinary(32, unaryBits); err != nil {
		return err
	}
	if err := sb.SetBinary(32, binaryBits); err != nil {
		return err
	}
	if err := sb.SetBinary(64, suffixes[0]); err != nil {
		return err
	}
	if err := sb.SetBinary(8, uint64(cCode)); err != nil {
		return err
	}
	if err := sb.SetBinary(64, minV); err != nil {
		return err
	}
	if err := sb.SetBinary(64, maxV); err != nil {
		return err
	}

	for i := 1; i < len(suffixes); i++ {
		if err := sb.SetEliasGamma(suffixes[i] - suffixes[i-1]); err != nil {
			return err
		}
	}
	for _, v := range values {
		if err := sb.SetBinary(valWidth, v); err != nil {
			return err
		}
	}
	return nil
}

func writeEmptyBlockTail(sb *meryl.StuffedBits) error {
	for _, w := range []struct {
		width int
		v     uint64
	}{{8, 0}, {32, 0}, {32, 0}, {64, 0}, {8, 0}, {64, 0}, {64, 0}} {
		if err := sb.SetBinary(w.width, w.v); err != nil {
			return err
		}
	}
	return nil
}

// bitLen64 returns the number of bits needed to represent v (1 for v==0,
// matching Elias-Gamma's own convention of treating 0 as a 1-bit value —
// callers never pass a zero delta since suffixes are strictly increasing).
func bitLen64(v uint64) int {
	if v == 0 {
		return 1
	}
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// Close flushes every file's stream and index to disk and writes the
// master index. hist is the value -> k-mer-count histogram across the
// whole database.
func (w *BlockWriter) Close(hist map[uint64]uint64, isMultiSet bool) error {
	if !w.finalized {
		if err := w.Finalize(); err != nil {
			return err
		}
	}
	for fi := uint64(0); fi < w.numFiles; fi++ {
		sb := w.streams[fi]
		if sb == nil {
			sb = meryl.NewStuffedBits()
		}
		dataPath := filepath.Join(w.dir, dataFileName(fi))
		if err := os.WriteFile(dataPath, sb.DumpToBuffer(), 0o644); err != nil {
			return errors.Wrapf(err, "meryldb: writing %s", dataPath)
		}

		indexPath := filepath.Join(w.dir, indexFileName(fi))
		if err := writeFileIndex(indexPath, w.entries[fi]); err != nil {
			return err
		}
	}

	mi := &MasterIndex{
		PrefixSize:    w.wPrefix,
		SuffixSize:    2*w.k - w.wPrefix,
		NumFilesBits:  bitsFor(w.numFiles) - 1,
		NumBlocksBits: bitsFor(totalBlocks(w.entries) - 1),
		IsMultiSet:    isMultiSet,
		Histogram:     hist,
	}
	sb := meryl.NewStuffedBits()
	if err := mi.Write(sb); err != nil {
		return err
	}
	masterPath := filepath.Join(w.dir, "merylIndex")
	return errors.Wrapf(os.WriteFile(masterPath, sb.DumpToBuffer(), 0o644), "meryldb: writing %s", masterPath)
}

func totalBlocks(entries [][]blockIndexEntry) uint64 {
	var n uint64
	for _, e := range entries {
		n += uint64(len(e))
	}
	if n == 0 {
		return 1
	}
	return n
}

// writeFileIndex serializes one file's (prefix, bitOffset, nKmers) triples
// with fixed-width big-endian fields.
func writeFileIndex(path string, entries []blockIndexEntry) error {
	buf := make([]byte, 8+len(entries)*24)
	binary.BigEndian.PutUint64(buf[0:8], uint64(len(entries)))
	off := 8
	for _, e := range entries {
		binary.BigEndian.PutUint64(buf[off:off+8], e.Prefix)
		binary.BigEndian.PutUint64(buf[off+8:off+16], e.BgnBits)
		binary.BigEndian.PutUint64(buf[off+16:off+24], e.NKmers)
		off += 24
	}
	return errors.Wrapf(os.WriteFile(path, buf, 0o644), "meryldb: writing %s", path)
}

// ReadFileIndex reads back a per-file merylIndex written by writeFileIndex.
func ReadFileIndex(path string) ([]blockIndexEntry, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "meryldb: reading %s", path)
	}
	if len(buf) < 8 {
		return nil, errors.Errorf("meryldb: truncated index %s", path)
	}
	n := binary.BigEndian.Uint64(buf[0:8])
	entries := make([]blockIndexEntry, n)
	off := 8
	for i := uint64(0); i < n; i++ {
		if off+24 > len(buf) {
			return nil, errors.Errorf("meryldb: truncated index %s", path)
		}
		entries[i] = blockIndexEntry{
			Prefix:  binary.BigEndian.Uint64(buf[off : off+8]),
			BgnBits: binary.BigEndian.Uint64(buf[off+8 : off+16]),
			NKmers:  binary.BigEndian.Uint64(buf[off+16 : off+24]),
		}
		off += 24
	}
	return entries, nil
}

func bitsFor(n uint64) uint32 {
	if n == 0 {
		return 1
	}
	var b uint32
	for (uint64(1) << b) <= n {
		b++
	}
	return b
}

// fileStem is the "0x<hex>" basename shared by a file's .merylData and
// .merylIndex pair.
func fileStem(fi uint64) string {
	return fmt.Sprintf("0x%06x", fi)
}
