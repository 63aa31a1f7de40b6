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

package cmd

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	meryl "github.com/shenwei356/merylgo"
	"github.com/shenwei356/merylgo/meryldb"
)

// database is one loaded merylIndex database, flattened to a full-kmer ->
// count map in memory. Every set-algebra subcommand (union/intersect/
// subtract/greater-than/less-than) works against this shape: the database
// format's own block/prefix partitioning is an on-disk storage detail, not
// something these operators need to preserve while combining several
// databases: they only need to read and write the on-disk format, not
// reproduce its internal block/prefix layout.
type database struct {
	dir        string
	k          int
	wPrefix    int
	suffixBits int
	isMultiSet bool
	counts     map[uint64]uint64
}

// loadDatabase reads a <name>.meryl directory's merylIndex and every
// merylData/merylIndex file pair, reconstructing each k-mer's full 2*k-bit
// value as (prefix << suffixBits) | suffix.
func loadDatabase(dir string) (*database, error) {
	dir = expandPath(dir)
	miPath := filepath.Join(dir, "merylIndex")
	buf, err := os.ReadFile(miPath)
	if err != nil {
		return nil, errors.Wrapf(err, "meryl: reading %s", miPath)
	}
	sb := meryl.NewStuffedBits()
	if err := sb.LoadFromBuffer(buf); err != nil {
		return nil, errors.Wrapf(err, "meryl: decoding %s", miPath)
	}
	mi, err := meryldb.ReadMasterIndex(sb)
	if err != nil {
		return nil, err
	}

	numFiles := uint64(1) << mi.NumFilesBits
	readers, err := meryldb.OpenDatabase(dir, numFiles)
	if err != nil {
		return nil, err
	}

	k := (mi.PrefixSize + mi.SuffixSize) / 2
	counts := make(map[uint64]uint64, 1<<16)
	for _, r := range readers {
		blocks, err := r.ReadAll()
		if err != nil {
			return nil, errors.Wrapf(err, "meryl: reading blocks of %s", dir)
		}
		for _, blk := range blocks {
			for i, s := range blk.Suffixes {
				full := (blk.Prefix << uint(mi.SuffixSize)) | s
				counts[full] += blk.Values[i]
			}
		}
	}

	return &database{
		dir:        dir,
		k:          k,
		wPrefix:    mi.PrefixSize,
		suffixBits: mi.SuffixSize,
		isMultiSet: mi.IsMultiSet,
		counts:     counts,
	}, nil
}

// loadDatabases loads every listed directory and checks all share the same
// k, since combining databases built with different k-mer lengths is
// meaningless.
func loadDatabases(dirs []string) ([]*database, error) {
	dbs := make([]*database, len(dirs))
	for i, dir := range dirs {
		db, err := loadDatabase(dir)
		if err != nil {
			return nil, err
		}
		if i > 0 && db.k != dbs[0].k {
			return nil, errors.Wrapf(meryl.ErrKMismatch, "%s is k=%d, %s is k=%d", dirs[0], dbs[0].k, dir, db.k)
		}
		dbs[i] = db
	}
	return dbs, nil
}

// writeDatabase re-splits a flattened full-kmer map back into per-prefix
// blocks and writes a complete database directory via meryldb.BlockWriter,
// the same wPrefix the caller's inputs were loaded with (set-algebra
// commands never repartition; see cmd/union.go etc.).
func writeDatabase(outDir, dbName string, k, wPrefix int, counts map[uint64]uint64, isMultiSet bool) error {
	w, err := meryldb.NewBlockWriter(outDir, dbName, k, wPrefix, bitsForFileCount(len(counts)))
	if err != nil {
		return err
	}

	suffixBits := 2*k - wPrefix
	var mask uint64
	if suffixBits >= 64 {
		mask = ^uint64(0)
	} else {
		mask = uint64(1)<<uint(suffixBits) - 1
	}

	grouped := make(map[uint64]map[uint64]uint64)
	for full, c := range counts {
		prefix := full >> uint(suffixBits)
		suffix := full & mask
		m, ok := grouped[prefix]
		if !ok {
			m = make(map[uint64]uint64)
			grouped[prefix] = m
		}
		m[suffix] = c
	}

	for prefix, m := range grouped {
		suffixes := make([]uint64, 0, len(m))
		for s := range m {
			suffixes = append(suffixes, s)
		}
		sort.Slice(suffixes, func(a, b int) bool { return suffixes[a] < suffixes[b] })
		values := make([]uint64, len(suffixes))
		for i, s := range suffixes {
			values[i] = m[s]
		}
		if err := w.WriteBlock(prefix, suffixBits, suffixes, values); err != nil {
			return err
		}
	}

	hist := make(map[uint64]uint64)
	for _, c := range counts {
		hist[c]++
	}

	return w.Close(hist, isMultiSet)
}

// bitsForFileCount picks the number-of-output-files exponent for a result
// database from its size: 0 (one file) up to 2^14 k-mers, 2 (four files)
// up to 2^20, and 4 (sixteen files) beyond that, so a modest result is not
// scattered across many nearly empty files.
func bitsForFileCount(nKmers int) uint32 {
	switch {
	case nKmers > 1<<20:
		return 4
	case nKmers > 1<<14:
		return 2
	default:
		return 0
	}
}

// combineMode picks how two present values merge into one, per the
// original tool's own union-{min,max,sum} / intersect-{min,max,sum} family
// (see merylCommandBuilder.C). "sum" is the default for both union and
// intersect when no suffix is given, matching opUnion/opIntersect falling
// back to count-assign.
type combineMode string

const (
	combineSum combineMode = "sum"
	combineMin combineMode = "min"
	combineMax combineMode = "max"
)

func parseCombineMode(s string) (combineMode, error) {
	switch combineMode(s) {
	case combineSum, combineMin, combineMax, "":
		if s == "" {
			return combineSum, nil
		}
		return combineMode(s), nil
	default:
		return "", errors.Errorf("meryl: unknown combine mode %q (want sum, min or max)", s)
	}
}

func (m combineMode) combine(a, b uint64, aPresent, bPresent bool) uint64 {
	switch {
	case aPresent && bPresent:
		switch m {
		case combineMin:
			if a < b {
				return a
			}
			return b
		case combineMax:
			if a > b {
				return a
			}
			return b
		default:
			return a + b
		}
	case aPresent:
		return a
	default:
		return b
	}
}
