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

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/stable"
	"github.com/spf13/cobra"
)

// infoCmd prints per-database geometry and k-mer counts, one row per
// database directory given on the command line.
var infoCmd = &cobra.Command{
	Use:   "info <db1.meryl> [db2.meryl ...]",
	Short: "show database metadata: k, partitioning, k-mer counts",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"."}
		}

		style := &stable.TableStyle{
			Name:      "plain",
			HeaderRow: stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			DataRow:   stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			Padding:   "",
		}
		columns := []stable.Column{
			{Header: "database"},
			{Header: "k", Align: stable.AlignRight},
			{Header: "wPrefix", Align: stable.AlignRight},
			{Header: "multiset", Align: stable.AlignLeft},
			{Header: "distinct-kmers", Align: stable.AlignRight},
			{Header: "total-count", Align: stable.AlignRight},
		}
		tbl := stable.New()
		tbl.HeaderWithFormat(columns)

		for _, dir := range args {
			db, err := loadDatabase(dir)
			if err != nil {
				checkError(err)
			}
			var total uint64
			for _, v := range db.counts {
				total += v
			}
			multiset := "false"
			if db.isMultiSet {
				multiset = "true"
			}
			tbl.AddRow([]interface{}{
				dir,
				db.k,
				db.wPrefix,
				multiset,
				humanize.Comma(int64(len(db.counts))),
				humanize.Comma(int64(total)),
			})
		}
		os.Stdout.Write(tbl.Render(style))
	},
}

func init() {
	RootCmd.AddCommand(infoCmd)
}
