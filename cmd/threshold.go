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

// greaterThanCmd and lessThanCmd are the original tool's single-database
// threshold filters (merylCommandBuilder.C's opGreaterThan/opLessThan),
// here reading one --threshold value applied to one input database.
var greaterThanCmd = &cobra.Command{
	Use:   "greater-than <db.meryl>",
	Short: "keep k-mers whose count is greater than a threshold",
	Run: func(cmd *cobra.Command, args []string) {
		runThreshold(cmd, args, func(v, t uint64) bool { return v > t })
	},
}

var lessThanCmd = &cobra.Command{
	Use:   "less-than <db.meryl>",
	Short: "keep k-mers whose count is less than a threshold",
	Run: func(cmd *cobra.Command, args []string) {
		runThreshold(cmd, args, func(v, t uint64) bool { return v < t })
	},
}

func runThreshold(cmd *cobra.Command, args []string, keep func(v, threshold uint64) bool) {
	if len(args) != 1 {
		checkError(errors.New("meryl: exactly one input database required"))
	}
	threshold := getFlagUint64(cmd, "threshold")
	outFile := getFlagString(cmd, "output")
	if outFile == "" {
		checkError(errors.New("meryl: --output is required"))
	}

	db, err := loadDatabase(args[0])
	checkError(err)

	result := make(map[uint64]uint64, len(db.counts))
	for km, v := range db.counts {
		if keep(v, threshold) {
			result[km] = v
		}
	}

	dir, name := splitDatabasePath(outFile)
	checkError(writeDatabase(dir, name, db.k, db.wPrefix, result, db.isMultiSet))
	log.Infof("wrote %s, %d distinct k-mers", outFileName(outFile), len(result))
}

func init() {
	RootCmd.AddCommand(greaterThanCmd, lessThanCmd)
	for _, c := range []*cobra.Command{greaterThanCmd, lessThanCmd} {
		c.Flags().StringP("output", "o", "", "output database name (required)")
		c.Flags().Uint64P("threshold", "t", 0, "count threshold")
	}
}
