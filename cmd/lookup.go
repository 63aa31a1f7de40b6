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
	"fmt"

	"github.com/pkg/errors"
	meryl "github.com/shenwei356/merylgo"
	"github.com/shenwei356/merylgo/meryldb"
	"github.com/spf13/cobra"
)

// lookupCmd answers point queries against a database by building an
// exact-lookup index in memory (meryldb.ConfigureLookupIndex/
// BuildLookupIndex) over every k-mer already loaded, then querying each
// k-mer given on the command line. --min-value/--max-value restrict the
// index to that value range (k-mers outside it look up as absent); with
// neither flag given, the range defaults to the database's own min/max, so
// every stored k-mer is indexed.
var lookupCmd = &cobra.Command{
	Use:   "lookup <db.meryl> <kmer> [kmer...]",
	Short: "query one or more k-mers against a database",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 2 {
			checkError(errors.New("meryl lookup: a database and at least one k-mer are required"))
		}
		memBudget := getFlagUint64(cmd, "memory")

		db, err := loadDatabase(args[0])
		checkError(err)

		var minV, maxV uint64
		first := true
		for _, v := range db.counts {
			if first || v < minV {
				minV = v
			}
			if first || v > maxV {
				maxV = v
			}
			first = false
		}
		if cmd.Flags().Changed("min-value") {
			minV = getFlagUint64(cmd, "min-value")
		}
		if cmd.Flags().Changed("max-value") {
			maxV = getFlagUint64(cmd, "max-value")
		}

		wPrefix, _, err := meryldb.ConfigureLookupIndex(db.k, histogramOf(db), minV, maxV, memBudget)
		checkError(err)

		blocks := []meryldb.DecodedBlock{flattenToBlock(db)}

		idx := meryldb.BuildLookupIndex(db.k, 2*db.k, blocks, wPrefix, minV, maxV)

		for _, s := range args[1:] {
			km, err := meryl.Encode([]byte(s))
			if err != nil {
				checkError(errors.Wrapf(err, "meryl lookup: %q", s))
			}
			canon := meryl.Canonical(km)
			v := idx.Value(canon.Lo)
			fmt.Printf("%s\t%d\n", s, v)
		}
	},
}

// flattenToBlock packs every k-mer of a loaded database into a single
// DecodedBlock at prefix 0 spanning the whole 2k-bit suffix space, for
// BuildLookupIndex to re-split against its own (possibly different)
// wPrefix.
func flattenToBlock(db *database) meryldb.DecodedBlock {
	suffixes := make([]uint64, 0, len(db.counts))
	values := make([]uint64, 0, len(db.counts))
	for km, v := range db.counts {
		suffixes = append(suffixes, km)
		values = append(values, v)
	}
	return meryldb.DecodedBlock{Prefix: 0, Suffixes: suffixes, Values: values}
}

func histogramOf(db *database) map[uint64]uint64 {
	hist := make(map[uint64]uint64, len(db.counts))
	for _, v := range db.counts {
		hist[v]++
	}
	return hist
}

func init() {
	RootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().Uint64P("memory", "m", 1<<30, "memory budget for the lookup index, in bytes")
	lookupCmd.Flags().Uint64("min-value", 0, "only index k-mers with count >= this value (default: database minimum)")
	lookupCmd.Flags().Uint64("max-value", 0, "only index k-mers with count <= this value (default: database maximum)")
}
