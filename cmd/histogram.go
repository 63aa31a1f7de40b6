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
	"sort"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/stable"
	"github.com/spf13/cobra"
)

// histogramCmd renders a database's value -> distinct-kmer-count table.
var histogramCmd = &cobra.Command{
	Use:   "histogram <db.meryl>",
	Short: "print the count -> number-of-kmers histogram of a database",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			checkError(errors.New("meryl histogram: exactly one input database required"))
		}
		db, err := loadDatabase(args[0])
		checkError(err)

		hist := make(map[uint64]uint64, len(db.counts))
		for _, v := range db.counts {
			hist[v]++
		}
		values := make([]uint64, 0, len(hist))
		for v := range hist {
			values = append(values, v)
		}
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

		style := &stable.TableStyle{
			Name:      "plain",
			HeaderRow: stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			DataRow:   stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			Padding:   "",
		}
		tbl := stable.New()
		tbl.HeaderWithFormat([]stable.Column{
			{Header: "value", Align: stable.AlignRight},
			{Header: "distinct-kmers", Align: stable.AlignRight},
		})
		for _, v := range values {
			tbl.AddRow([]interface{}{v, humanize.Comma(int64(hist[v]))})
		}
		os.Stdout.Write(tbl.Render(style))
	},
}

func init() {
	RootCmd.AddCommand(histogramCmd)
}
