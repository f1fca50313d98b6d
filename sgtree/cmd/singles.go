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
	"regexp"
	"strconv"
	"time"

	"github.com/sgtree/sgtree/sgtree/cmd/phylo"
	"github.com/sgtree/sgtree/sgtree/cmd/selection"
	"github.com/spf13/cobra"
)

const fileSinglesScores = "singles_scores.tsv"

var singlesCmd = &cobra.Command{
	Use:   "singles",
	Short: "drop leaves whose neighbors disagree with the reference tree",
	Long: `drop leaves whose neighbors disagree with the reference tree

For a single-copy marker tree T and the reference tree R pruned to the
genomes of T:

  n      = round(leaves * (1 - normalized RF distance of T and R))
  cutoff = n * n / 15

For every leaf, the n nearest leaves in T and those of the same genome in R
are compared: each neighbor in R found among the neighbors in T scores
n - |rank difference|. Leaves scoring <= cutoff are dropped. Leaves of
genomes absent from R are kept.

Input:
  De-duplicated trees in -I/--in-dir (default:
  <run-dir>/protTrees/no_duplicates).

Output:
  <run-dir>/protTrees/no_singles/<marker>.nw
  <run-dir>/protTrees/no_singles/singles_scores.tsv
  <run-dir>/removed/<marker>.singles.txt

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
		inDir := getFlagPath(cmd, "in-dir")
		if inDir == "" {
			inDir = filepath.Join(runDir, dirNoDuplicates)
		}
		treeFile := getFlagPath(cmd, "species-tree")
		if treeFile == "" {
			treeFile = filepath.Join(runDir, fileSpeciesTree)
		}
		reFile := compileFileRegexp(getFlagString(cmd, "tree-regexp"))

		reference, err := phylo.ParseFile(treeFile)
		checkError(err)

		if opt.logging() {
			log.Infof("sgtree v%s", VERSION)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("  run directory: %s", runDir)
			log.Infof("  marker trees: %s", inDir)
			log.Infof("  reference tree: %s, %d leaves", treeFile, len(phylo.LeafNames(reference)))
			log.Infof("  cutoff: n * n / %d", selection.CutoffDivisor)
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		runSinglesStage(opt, runDir, inDir, reference, reFile, timeStart)
	},
}

// runSinglesStage filters every tree in inDir.
func runSinglesStage(opt *Options, runDir string, inDir string, reference *phylo.Tree, reFile *regexp.Regexp, timeStart time.Time) {
	files := listUnits(opt, inDir, reFile)

	outDir := filepath.Join(runDir, dirNoSingles)
	removedDir := filepath.Join(runDir, dirRemoved)
	resetDir(outDir)
	checkError(os.MkdirAll(removedDir, 0777))

	results := runUnits(opt, "singles", files, func(file string) unitResult {
		marker := markerName(file)
		gene, err := phylo.ParseFile(file)
		if err != nil {
			return unitResult{Name: marker, Err: err}
		}

		r, err := selection.FilterSingles(gene, reference)
		if err != nil {
			return unitResult{Name: marker, Err: err}
		}

		removed := make([]string, 0, len(r.Dropped)+1)
		for _, leaf := range r.Dropped {
			removed = append(removed, "sin"+leaf)
		}
		removed = append(removed, fmt.Sprintf("%d/%d %s", len(r.Dropped), len(r.Scores), formatFloat6(r.RFDistance)))
		err = writeLines(filepath.Join(removedDir, marker+".singles.txt"), opt.CompressionLevel, removed)
		if err != nil {
			return unitResult{Name: marker, Err: err}
		}

		lines := make([]string, len(r.Scores))
		for i, s := range r.Scores {
			status := selection.Kept
			if !s.Kept {
				status = selection.Removed
			}
			lines[i] = fmt.Sprintf("%s\t%s\t%d\t%s\t%d\t%s", marker, s.Leaf, s.Score,
				strconv.FormatFloat(r.Cutoff, 'f', 4, 64), r.NumNeighbors, status)
		}

		if r.Tree == nil {
			return unitResult{Name: marker, Removed: len(r.Dropped), Lines: lines,
				Err: fmt.Errorf("all %d leaves dropped", len(r.Dropped))}
		}
		if err = phylo.WriteFile(r.Tree, filepath.Join(outDir, marker+".nw")); err != nil {
			return unitResult{Name: marker, Err: err}
		}
		return unitResult{Name: marker, Kept: len(phylo.LeafNames(r.Tree)), Removed: len(r.Dropped), Lines: lines}
	})

	failed, kept, removed := summarizeUnits(opt, "singles", outDir, results)

	lines := []string{"#marker\tleaf\tscore\tcutoff\tneighbors\tstatus"}
	for _, r := range results {
		lines = append(lines, r.Lines...)
	}
	checkError(writeLines(filepath.Join(outDir, fileSinglesScores), opt.CompressionLevel, lines))

	recordStage(runDir, "singles", timeStart,
		map[string]string{"in-dir": inDir, "cutoff-divisor": strconv.Itoa(selection.CutoffDivisor)},
		map[string]int{"markers": len(files) - len(failed), "kept": kept, "removed": removed},
		failed)
	writeStageMetrics(opt, "singles", timeStart, len(files), len(failed), kept, removed)
}

func init() {
	RootCmd.AddCommand(singlesCmd)

	singlesCmd.Flags().StringP("run-dir", "d", "", `run directory created by "sgtree curate"`)
	singlesCmd.Flags().StringP("in-dir", "I", "", `directory of de-duplicated trees (default: <run-dir>/protTrees/no_duplicates)`)
	singlesCmd.Flags().StringP("species-tree", "t", "", `reference species tree in Newick format (default: <run-dir>/species_tree.nwk)`)
	singlesCmd.Flags().StringP("tree-regexp", "r", `\.nw$`, `regular expression for matching tree files, case ignored`)
}
