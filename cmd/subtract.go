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

// subtractCmd removes k-mers of the second and later databases from the
// first, matching the original tool's "subtract" operator. Two modes:
//   - kmer (default): drop any k-mer present in any subtrahend, regardless
//     of count, keeping the minuend's original value for survivors.
//   - count: subtract subtrahend counts arithmetically, floored at zero,
//     dropping any k-mer whose value reaches zero.
var subtractCmd = &cobra.Command{
	Use:   "subtract <minuend.meryl> <subtrahend.meryl> [...]",
	Short: "remove k-mers of later databases from the first",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 2 {
			checkError(errors.New("meryl subtract: at least two input databases required"))
		}
		byCount := getFlagBool(cmd, "count")
		outFile := getFlagString(cmd, "output")
		if outFile == "" {
			checkError(errors.New("meryl subtract: --output is required"))
		}

		dbs, err := loadDatabases(args)
		checkError(err)

		result := make(map[uint64]uint64, len(dbs[0].counts))
		for km, v := range dbs[0].counts {
			result[km] = v
		}
		for _, db := range dbs[1:] {
			for km, ov := range db.counts {
				v, present := result[km]
				if !present {
					continue
				}
				if !byCount {
					delete(result, km)
					continue
				}
				if ov >= v {
					delete(result, km)
				} else {
					result[km] = v - ov
				}
			}
		}

		dir, name := splitDatabasePath(outFile)
		checkError(writeDatabase(dir, name, dbs[0].k, dbs[0].wPrefix, result, false))
		log.Infof("subtract: wrote %s, %d distinct k-mers", outFileName(outFile), len(result))
	},
}

func init() {
	RootCmd.AddCommand(subtractCmd)
	subtractCmd.Flags().StringP("output", "o", "", "output database name (required)")
	subtractCmd.Flags().BoolP("count", "", false, "subtract counts arithmetically instead of dropping shared k-mers outright")
}
