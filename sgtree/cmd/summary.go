// Copyright © 2024 The sgtree Authors
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
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/hits"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	prettytable "github.com/tatsushid/go-prettytable"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "print marker completeness of genomes and stages of a run",
	Long: `print marker completeness of genomes and stages of a run

Columns of the genome table:
  genome        genome ID
  markers       number of markers hit
  hits          number of hits
  multi-copy    number of markers with more than one hit
  completeness  markers / number of marker models
  status        kept, or removed by the completeness filter

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		runDir := getFlagPath(cmd, "run-dir")
		checkRunDir(runDir)
		outFile := getFlagString(cmd, "out-file")
		tabular := getFlagBool(cmd, "tabular")
		showStages := getFlagBool(cmd, "stages")

		info, err := RunInfoFromDir(runDir)
		checkError(err)
		m, err := hits.ReadCountMatrix(filepath.Join(runDir, fileCountMatrix))
		checkError(err)
		removed := readRemovedGenomes(runDir)

		outfh, gw, w, err := outStream(outFile, opt.CompressionLevel)
		checkError(err)
		defer func() {
			checkError(closeOutStream(outfh, gw, w))
		}()

		models := info.ModelCount
		if models <= 0 {
			models = len(m.Markers)
		}

		type row struct {
			genome               string
			markers, hits, multi int
			status               string
		}
		rows := make([]row, 0, len(m.Genomes)+len(removed))
		for _, g := range m.Genomes {
			var multi int
			for _, marker := range m.Markers {
				if m.Count(g, marker) > 1 {
					multi++
				}
			}
			rows = append(rows, row{g, m.MarkersHit(g), m.Hits(g), multi, "kept"})
		}
		for g, n := range removed {
			rows = append(rows, row{g, n, -1, -1, "removed"})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].genome < rows[j].genome })

		completeness := func(n int) string {
			return strconv.FormatFloat(float64(n)/float64(models)*100, 'f', 2, 64) + "%"
		}
		count := func(n int) string {
			if n < 0 {
				return "-"
			}
			return humanize.Comma(int64(n))
		}

		if tabular {
			outfh.WriteString("genome\tmarkers\thits\tmulti-copy\tcompleteness\tstatus\n")
			for _, r := range rows {
				fmt.Fprintf(outfh, "%s\t%d\t%s\t%s\t%s\t%s\n", r.genome, r.markers,
					strings.ReplaceAll(count(r.hits), ",", ""), strings.ReplaceAll(count(r.multi), ",", ""),
					completeness(r.markers), r.status)
			}
			return
		}

		fmt.Fprintf(outfh, "%s\n\n", info)

		tbl, err := prettytable.NewTable([]prettytable.Column{
			{Header: "genome"},
			{Header: "markers", AlignRight: true},
			{Header: "hits", AlignRight: true},
			{Header: "multi-copy", AlignRight: true},
			{Header: "completeness", AlignRight: true},
			{Header: "status", AlignRight: true},
		}...)
		checkError(err)
		tbl.Separator = "  "
		for _, r := range rows {
			tbl.AddRow(r.genome, humanize.Comma(int64(r.markers)), count(r.hits), count(r.multi), completeness(r.markers), r.status)
		}
		outfh.Write(tbl.Bytes())

		if !showStages || len(info.Stages) == 0 {
			return
		}

		outfh.WriteString("\n")
		stages := make([]string, 0, len(info.Stages))
		for name := range info.Stages {
			stages = append(stages, name)
		}
		sort.Slice(stages, func(i, j int) bool { return stageOrder(stages[i]) < stageOrder(stages[j]) })

		tbl, err = prettytable.NewTable([]prettytable.Column{
			{Header: "stage"},
			{Header: "finished"},
			{Header: "elapsed", AlignRight: true},
			{Header: "failed", AlignRight: true},
			{Header: "counts"},
		}...)
		checkError(err)
		tbl.Separator = "  "
		for _, name := range stages {
			s := info.Stages[name]
			keys := make([]string, 0, len(s.Counts))
			for k := range s.Counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			counts := make([]string, len(keys))
			for i, k := range keys {
				counts[i] = fmt.Sprintf("%s: %s", k, humanize.Comma(int64(s.Counts[k])))
			}
			tbl.AddRow(name, s.Finished, s.Elapsed, len(s.Failed), strings.Join(counts, ", "))
		}
		outfh.Write(tbl.Bytes())
	},
}

var stageNames = []string{"curate", "extract", "dedup", "select", "singles", "prune-aln", "concat"}

func stageOrder(name string) int {
	for i, s := range stageNames {
		if s == name {
			return i
		}
	}
	return len(stageNames)
}

// readRemovedGenomes reads log_genomes_removed.txt: genome and number of
// markers hit.
func readRemovedGenomes(runDir string) map[string]int {
	file := filepath.Join(runDir, fileGenomesRemoved)
	removed := make(map[string]int, 16)
	ok, err := pathutil.Exists(file)
	checkError(errors.Wrap(err, file))
	if !ok {
		return removed
	}
	ids, err := readLines(file)
	checkError(err)
	for _, line := range ids {
		items := strings.Split(line, "\t")
		n := 0
		if len(items) > 1 {
			n, err = strconv.Atoi(items[1])
			checkError(errors.Wrapf(err, "%s: %s", file, line))
		}
		removed[items[0]] = n
	}
	return removed
}

func init() {
	RootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().StringP("run-dir", "d", "", `run directory created by "sgtree curate"`)
	summaryCmd.Flags().StringP("out-file", "o", "-", `out file ("-" for stdout, suffix .gz for gzipped out)`)
	summaryCmd.Flags().BoolP("tabular", "T", false, `output in machine-friendly tabular format`)
	summaryCmd.Flags().BoolP("stages", "s", false, `also print stages of the run`)
}
