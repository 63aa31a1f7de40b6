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
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// intersectCmd computes intersect / intersect-min / intersect-max /
// intersect-sum: only k-mers present in every input database survive, with
// their combined value chosen by --mode.
var intersectCmd = &cobra.Command{
	Use:   "intersect <db1.meryl> <db2.meryl> [...]",
	Short: "intersection of two or more k-mer databases",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 2 {
			checkError(errors.New("meryl intersect: at least two input databases required"))
		}
		mode, err := parseCombineMode(getFlagString(cmd, "mode"))
		checkError(err)
		outFile := getFlagString(cmd, "output")
		if outFile == "" {
			checkError(errors.New("meryl intersect: --output is required"))
		}

		dbs, err := loadDatabases(args)
		checkError(err)

		result := make(map[uint64]uint64, len(dbs[0].counts))
		for km, v := range dbs[0].counts {
			result[km] = v
		}
		for _, db := range dbs[1:] {
			next := make(map[uint64]uint64, len(result))
			for km, v := range result {
				ov, ok := db.counts[km]
				if !ok {
					continue
				}
				next[km] = mode.combine(v, ov, true, true)
			}
			result = next
		}

		dir, name := splitDatabasePath(outFile)
		checkError(writeDatabase(dir, name, dbs[0].k, dbs[0].wPrefix, result, len(dbs) > 1))
		log.Infof("intersect: wrote %s, %d distinct k-mers", outFileName(outFile), len(result))
	},
}

func init() {
	RootCmd.AddCommand(intersectCmd)
	intersectCmd.Flags().StringP("output", "o", "", "output database name (required)")
	intersectCmd.Flags().StringP("mode", "", "sum", "how to combine values present in every input: sum, min or max")
}
