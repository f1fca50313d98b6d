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
	"os"
	"path/filepath"
	"time"

	"github.com/sgtree/sgtree/sgtree/cmd/phylo"
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

const dirAlignedFinal = "aligned_final"

var pruneAlnCmd = &cobra.Command{
	Use:   "prune-aln",
	Short: "keep aligned sequences present in the final marker trees",
	Long: `keep aligned sequences present in the final marker trees

For every final marker tree, sequences of the marker alignment that are not
leaves of the tree are removed. Markers without a tree are skipped.

Input:
  Trees in --tree-dir (default: <run-dir>/protTrees/no_singles if not
  empty, otherwise <run-dir>/protTrees/no_duplicates), alignments in
  --aln-dir (default: <run-dir>/aln_SpecTree).

Output:
  <run-dir>/aligned_final/<marker>.faa

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.logging() {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		runDir := getFlagPath(cmd, "run-dir")
		checkRunDir(runDir)
		treeDir := getFlagPath(cmd, "tree-dir")
		if treeDir == "" {
			treeDir = filepath.Join(runDir, dirNoSingles)
			if ok, _ := pathutil.DirExists(treeDir); !ok {
				treeDir = filepath.Join(runDir, dirNoDuplicates)
			} else if empty, _ := pathutil.IsEmpty(treeDir); empty {
				treeDir = filepath.Join(runDir, dirNoDuplicates)
			}
		}
		alnDir := getFlagPath(cmd, "aln-dir")
		if alnDir == "" {
			alnDir = filepath.Join(runDir, dirDeduplicated)
		}
		lineWidth := getFlagNonNegativeInt(cmd, "line-width")

		trees := listUnits(opt, treeDir, compileFileRegexp(getFlagString(cmd, "tree-regexp")))
		alns := listUnits(opt, alnDir, compileFileRegexp(getFlagString(cmd, "file-regexp")))
		alnFiles := make(map[string]string, len(alns))
		for _, file := range alns {
			alnFiles[markerName(file)] = file
		}

		if opt.logging() {
			log.Infof("sgtree v%s", VERSION)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("  run directory: %s", runDir)
			log.Infof("  trees: %s, %d file(s)", treeDir, len(trees))
			log.Infof("  alignments: %s, %d file(s)", alnDir, len(alns))
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		outDir := filepath.Join(runDir, dirAlignedFinal)
		resetDir(outDir)

		results := runUnits(opt, "prune-aln", trees, func(file string) unitResult {
			marker := markerName(file)
			alnFile, ok := alnFiles[marker]
			if !ok {
				return unitResult{Name: marker, Err: fmt.Errorf("alignment not found")}
			}
			tree, err := phylo.ParseFile(file)
			if err != nil {
				return unitResult{Name: marker, Err: err}
			}
			records, err := seqs.ReadFile(alnFile)
			if err != nil {
				return unitResult{Name: marker, Err: err}
			}

			leaves := make(map[string]struct{}, len(records))
			for _, name := range phylo.LeafNames(tree) {
				leaves[name] = struct{}{}
			}
			kept := seqs.Filter(records, leaves)
			if len(kept) == 0 {
				return unitResult{Name: marker, Err: fmt.Errorf("no sequences of %s are leaves of the tree", alnFile)}
			}
			err = seqs.WriteFile(filepath.Join(outDir, marker+".faa"), kept, lineWidth)
			if err != nil {
				return unitResult{Name: marker, Err: err}
			}
			return unitResult{Name: marker, Kept: len(kept), Removed: len(records) - len(kept)}
		})

		failed, kept, removed := summarizeUnits(opt, "prune-aln", outDir, results)

		recordStage(runDir, "prune-aln", timeStart,
			map[string]string{"tree-dir": treeDir, "aln-dir": alnDir},
			map[string]int{"markers": len(trees) - len(failed), "kept": kept, "removed": removed},
			failed)
		writeStageMetrics(opt, "prune-aln", timeStart, len(trees), len(failed), kept, removed)
	},
}

func init() {
	RootCmd.AddCommand(pruneAlnCmd)

	pruneAlnCmd.Flags().StringP("run-dir", "d", "", `run directory created by "sgtree curate"`)
	pruneAlnCmd.Flags().StringP("tree-dir", "", "", `directory of final marker trees`)
	pruneAlnCmd.Flags().StringP("aln-dir", "", "", `directory of marker alignments (default: <run-dir>/aln_SpecTree)`)
	pruneAlnCmd.Flags().StringP("tree-regexp", "", `\.nw$`, `regular expression for matching tree files, case ignored`)
	pruneAlnCmd.Flags().StringP("file-regexp", "r", defaultFastaExt, `regular expression for matching alignment files, case ignored`)
	pruneAlnCmd.Flags().IntP("line-width", "w", 0, `line width of sequences, 0 for no wrap`)
}
