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
	"io"
	"os"
	"path/filepath"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	meryl "github.com/shenwei356/merylgo"
	"github.com/shenwei356/merylgo/count"
	"github.com/shenwei356/merylgo/meryldb"
	"github.com/spf13/cobra"
)

// countCmd implements the Complex/Simple-mode counting engine as a CLI
// front end: read sequence files, configure a Config via count.Configure,
// run count.Engine (or count.SimpleCounter when Configure picks Simple mode
// or a count-suffix is given), and
// persist the result with meryldb.BlockWriter.
var countCmd = &cobra.Command{
	Use:   "count",
	Short: "count k-mers from sequence files into a database",
	Long: `count reads one or more FASTA/FASTQ files (optionally gzip/bzip2/xz
compressed) and writes a k-mer-count database directory.

Simple mode (a dense 4^k array) is used automatically when the estimated
footprint fits the memory ceiling, or always when --count-suffix is given.
Otherwise Complex mode partitions k-mers into per-prefix buckets and spills
to disk as the ceiling is approached.`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		k := getFlagPositiveInt(cmd, "kmer-len")
		if k > 32 {
			checkError(errors.New("meryl count: k must be <= 32"))
		}
		outFile := getFlagString(cmd, "output")
		if outFile == "" {
			checkError(errors.New("meryl count: --output is required"))
		}
		memBudget, err := humanize.ParseBytes(getFlagString(cmd, "memory"))
		checkError(err)
		countSuffix := getFlagString(cmd, "count-suffix")
		forwardOnly := getFlagBool(cmd, "forward-only")
		expected := getFlagUint64(cmd, "expected-kmers")

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list")
		checkFiles("", files...)

		var hist map[uint64]uint64

		if countSuffix != "" {
			hist, err = runSimpleCount(files, k, countSuffix, forwardOnly, outFile)
			checkError(err)
		} else {
			if expected == 0 {
				expected = estimateExpectedKmers(files)
			}
			cfg, err := count.Configure(k, memBudget, expected, false)
			checkError(err)
			if cfg.Simple {
				hist, err = runSimpleCount(files, k, "", forwardOnly, outFile)
				checkError(err)
			} else {
				hist, err = runComplexCount(files, cfg, memBudget, opt.NumCPUs, forwardOnly, outFile)
				checkError(err)
				log.Infof("count: wPrefix=%d estimatedMemory=%s", cfg.WPrefix, humanize.Bytes(cfg.MemoryBytes))
			}
		}
		log.Infof("count: wrote %s, %d distinct values", outFileName(outFile), len(hist))
	},
}

// runSimpleCount drives count.SimpleCounter over every input file, then
// writes the result as a database via writeDatabase (cmd/common.go).
func runSimpleCount(files []string, k int, countSuffix string, forwardOnly bool, outFile string) (hist map[uint64]uint64, err error) {
	suffixLen := 0
	var suffixValue uint64
	if countSuffix != "" {
		suffixLen = len(countSuffix)
		sk, err := meryl.Encode([]byte(countSuffix))
		if err != nil {
			return nil, errors.Wrapf(err, "meryl count: --count-suffix %q", countSuffix)
		}
		suffixValue = sk.Lo
	}

	counter, err := count.NewSimpleCounter(k, suffixLen)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if err := scanFile(file, k, forwardOnly, func(fmer, rmer meryl.Kmer) {
			if suffixLen > 0 {
				km := fmer
				if meryl.Less(rmer, fmer) {
					km = rmer
				}
				if km.Lo&(uint64(1)<<uint(2*suffixLen)-1) != suffixValue {
					return
				}
			}
			counter.Add(fmer, rmer)
		}); err != nil {
			return nil, err
		}
	}

	hist = make(map[uint64]uint64)
	counts := make(map[uint64]uint64)
	counter.Each(func(idx, v uint64) {
		full := idx<<uint(2*suffixLen) | suffixValue
		counts[full] = v
		hist[v]++
	})

	dir, name := splitDatabasePath(outFile)
	if err := writeDatabase(dir, name, k, chooseWPrefixForFullK(k), counts, false); err != nil {
		return nil, err
	}
	return hist, nil
}

// chooseWPrefixForFullK picks a small, fixed wPrefix for databases this
// package writes from an already fully in-memory count map (Simple mode
// and the set-algebra operators): large enough to keep per-prefix buckets
// modest, never exceeding the 2k-1 ceiling count.Configure itself enforces.
func chooseWPrefixForFullK(k int) int {
	w := 10
	if 2*k-1 < w {
		w = 2*k - 1
	}
	if w < 1 {
		w = 1
	}
	return w
}

// splitDatabasePath separates a user-supplied output path into the parent
// directory meryldb.NewBlockWriter should create the database under and
// the bare database name, stripping any trailing extDataFile suffix since
// NewBlockWriter appends ".meryl" itself.
func splitDatabasePath(outFile string) (dir, name string) {
	outFile = expandPath(outFile)
	dir, base := filepath.Split(outFile)
	if dir == "" {
		dir = "."
	}
	base = strings.TrimSuffix(base, extDataFile)
	return dir, base
}

// runComplexCount drives count.Engine end to end and closes the resulting
// database writer, returning its histogram for the summary line.
//
// When cfg.NBatches > 1 (Configure could not find a wPrefix whose estimated
// footprint fits the ceiling for the whole input, only for a 1/NBatches
// slice of it), the input file list is split into cfg.NBatches groups and
// run through the same Engine instance one group at a time: each call to
// Run drains its buckets to empty via Finish before returning, so the next
// group starts from a clean slate instead of compounding memory across
// groups. Every group still spills mid-run whenever memCeiling is
// approached; batching only bounds the work Configure sized buckets for,
// it does not replace spilling.
func runComplexCount(files []string, cfg *count.Config, memBudget uint64, numCPUs int, forwardOnly bool, outFile string) (hist map[uint64]uint64, err error) {
	dir, name := splitDatabasePath(outFile)
	w, err := meryldb.NewBlockWriter(dir, name, cfg.K, cfg.WPrefix, bitsForFileCount(int(cfg.NPrefix)))
	if err != nil {
		return nil, err
	}

	engine := count.NewEngine(cfg, memBudget, w)

	numWorkers := numCPUs - 2
	if numWorkers < 1 {
		numWorkers = 1
	}
	if forwardOnly {
		log.Warning("count: --forward-only is only honored in Simple mode for now")
	}

	batches := splitFilesIntoBatches(files, cfg.NBatches)
	if len(batches) > 1 {
		log.Infof("count: splitting input across %d batches (no single-pass wPrefix fit the memory ceiling)", len(batches))
	}
	for _, batch := range batches {
		src := meryl.NewSeqSource(batch, cfg.K)
		if err := engine.Run(src, numWorkers); err != nil {
			return nil, err
		}
	}

	if err := w.Finalize(); err != nil {
		return nil, err
	}
	hist = w.Histogram()
	if err := w.Close(hist, false); err != nil {
		return nil, err
	}
	return hist, nil
}

// splitFilesIntoBatches distributes files round-robin across n groups (n<=1
// or more groups than files both collapse to the input unsplit). Round-robin
// rather than contiguous slicing keeps each batch's total byte size roughly
// even when large and small input files are interleaved on the command
// line.
func splitFilesIntoBatches(files []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	if n > len(files) {
		n = len(files)
	}
	if n <= 1 {
		return [][]string{files}
	}
	batches := make([][]string, n)
	for i, f := range files {
		g := i % n
		batches[g] = append(batches[g], f)
	}
	out := batches[:0]
	for _, b := range batches {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// scanFile iterates every k-mer of one sequence file (read through
// meryl.SeqSource, whose fastx reader opens compressed input itself),
// calling fn with the forward/reverse pair for each
// window. forwardOnly skips reverse-complement canonicalization entirely.
func scanFile(file string, k int, forwardOnly bool, fn func(fmer, rmer meryl.Kmer)) error {
	src := meryl.NewSeqSource([]string{file}, k)
	for {
		batch, err := src.Next(1 << 20)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		it := meryl.NewKmerIterator(k)
		it.AddSequence(batch.Bases)
		for {
			fmer, rmer, ok := it.NextMer()
			if !ok {
				break
			}
			if forwardOnly {
				fn(fmer, fmer)
			} else {
				fn(fmer, rmer)
			}
		}
	}
}

// estimateExpectedKmers sums input file sizes and applies the uncompressed
// multiplier of count.EstimateExpectedKmers to the total. Compression is not
// detected, so a compressed file's k-mer yield is estimated from its
// compressed size alone.
func estimateExpectedKmers(files []string) uint64 {
	var totalBytes uint64
	for _, file := range files {
		if isStdin(file) {
			continue
		}
		info, err := os.Stat(expandPath(file))
		if err != nil {
			continue
		}
		totalBytes += uint64(info.Size())
	}
	return count.EstimateExpectedKmers(totalBytes, "")
}

func init() {
	RootCmd.AddCommand(countCmd)

	countCmd.Flags().IntP("kmer-len", "k", 21, "k-mer length (<=32)")
	countCmd.Flags().StringP("output", "o", "", "output database name (required)")
	countCmd.Flags().StringP("memory", "m", "4G", "memory ceiling, e.g. 500M, 4G")
	countCmd.Flags().StringP("count-suffix", "s", "", "fixed trailing bases; only k-mers ending in this suffix are counted, forces Simple mode")
	countCmd.Flags().BoolP("forward-only", "f", false, "do not canonicalize via reverse complement (Simple mode only)")
	countCmd.Flags().Uint64P("expected-kmers", "e", 0, "expected total k-mer count (estimated from file sizes if 0)")
}
