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

// unionCmd computes union / union-min / union-max / union-sum across two
// or more databases: a k-mer's result value combines every database that
// contains it (missing databases contribute nothing), and it appears in
// the output if it appears in any input. Named after the original tool's
// own union/union-min/union-max/union-sum operator family.
var unionCmd = &cobra.Command{
	Use:   "union <db1.meryl> <db2.meryl> [...]",
	Short: "union of two or more k-mer databases",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 2 {
			checkError(errors.New("meryl union: at least two input databases required"))
		}
		mode, err := parseCombineMode(getFlagString(cmd, "mode"))
		checkError(err)
		outFile := getFlagString(cmd, "output")
		if outFile == "" {
			checkError(errors.New("meryl union: --output is required"))
		}

		dbs, err := loadDatabases(args)
		checkError(err)

		result := make(map[uint64]uint64, len(dbs[0].counts))
		for _, db := range dbs {
			for km, v := range db.counts {
				prev, ok := result[km]
				result[km] = mode.combine(prev, v, ok, true)
			}
		}

		dir, name := splitDatabasePath(outFile)
		checkError(writeDatabase(dir, name, dbs[0].k, dbs[0].wPrefix, result, len(dbs) > 1))
		log.Infof("union: wrote %s, %d distinct k-mers", outFileName(outFile), len(result))
	},
}

func init() {
	RootCmd.AddCommand(unionCmd)
	unionCmd.Flags().StringP("output", "o", "", "output database name (required)")
	unionCmd.Flags().StringP("mode", "", "sum", "how to combine values present in more than one input: sum, min or max")
}
