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
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/hits"
	"github.com/sgtree/sgtree/sgtree/cmd/phylo"
	"github.com/sgtree/sgtree/sgtree/cmd/selection"
	"github.com/spf13/cobra"
)

const (
	dirGeneTrees      = "protTrees/raw"
	dirNoDuplicates   = "protTrees/no_duplicates"
	dirNoSingles      = "protTrees/no_singles"
	dirRemoved        = "removed"
	fileSpeciesTree   = "species_tree.nwk"
	fileRFValues      = "marker_selection_rf_values.txt"
	defaultTreeRegexp = `(\.(nw|nwk|newick|tre|tree|treefile)$|^RAxML_bestTree\.)`
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "resolve paralogs in marker trees with a reference tree",
	Long: `resolve paralogs in marker trees with a reference tree

For every marker gene tree (leaves: genomeID|sequenceID) and every genome
with more than one leaf, each candidate leaf is put together with the
best-scoring leaf of every other genome. Copies of the reference species
tree (leaves: genomeID) and the gene tree are pruned to this leaf set, and
the candidate with the lowest normalized Robinson-Foulds distance,
RF / (maxRF + 0.0001), is kept. Ties are broken by bit score, then by tree
order. Genomes absent from the reference tree keep their best-scoring leaf.
Reference genomes (tables/reference_genomes.txt) are not resolved.

Input:
  Gene trees (Newick), one per marker, in -I/--in-dir
  (default: <run-dir>/protTrees/raw), and the reference tree -t/--species-tree
  (default: <run-dir>/species_tree.nwk).

Output:
  <run-dir>/protTrees/no_duplicates/<marker>.nw
  <run-dir>/removed/<marker>.txt
  <run-dir>/marker_selection_rf_values.txt, columns:
      ProteinID MarkerGene RFdistance Status

With --singles, "sgtree singles" is run on the de-duplicated trees.
Otherwise <run-dir>/protTrees/no_singles from an earlier run is removed,
so that "sgtree prune-aln" uses the trees of this run.

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
			inDir = filepath.Join(runDir, dirGeneTrees)
		}
		treeFile := getFlagPath(cmd, "species-tree")
		if treeFile == "" {
			treeFile = filepath.Join(runDir, fileSpeciesTree)
		}
		reFile := compileFileRegexp(getFlagString(cmd, "tree-regexp"))
		doSingles := getFlagBool(cmd, "singles")

		exempt := referenceGenomes(runDir)
		if refList := getFlagPath(cmd, "ref-list"); refList != "" {
			ids, err := readIDList(refList)
			checkError(errors.Wrap(err, refList))
			exempt = ids
		}

		files := listUnits(opt, inDir, reFile)

		reference, err := phylo.ParseFile(treeFile)
		checkError(err)

		list, err := hits.ReadTable(filepath.Join(runDir, dirTables, fileHitsBounded))
		checkError(err)
		scores := hits.NewScoreIndex(list, getFlagBool(cmd, "score-fallback"))

		if opt.logging() {
			log.Infof("sgtree v%s", VERSION)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("  run directory: %s", runDir)
			log.Infof("  gene trees: %s, %d file(s)", inDir, len(files))
			log.Infof("  reference tree: %s, %d leaves", treeFile, len(phylo.LeafNames(reference)))
			log.Infof("  reference genomes exempted: %d", len(exempt))
			log.Infof("  neighbor-concordance filter: %v", doSingles)
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		outDir, removedDir := resetSelectDirs(runDir, doSingles)

		ropt := selection.ResolveOptions{Exempt: exempt}
		results := runUnits(opt, "select", files, func(file string) unitResult {
			marker := markerName(file)
			gene, err := phylo.ParseFile(file)
			if err != nil {
				return unitResult{Name: marker, Err: err}
			}

			r, err := selection.Resolve(marker, gene, reference, scores, ropt)
			if err != nil {
				return unitResult{Name: marker, Err: err}
			}

			if err = phylo.WriteFile(r.Tree, filepath.Join(outDir, marker+".nw")); err != nil {
				return unitResult{Name: marker, Err: err}
			}

			removed := make([]string, 0, len(r.Removed)+1)
			removed = append(removed, r.Removed...)
			removed = append(removed, fmt.Sprintf("removed total\t%d", len(r.Removed)))
			err = writeLines(filepath.Join(removedDir, marker+".txt"), opt.CompressionLevel, removed)
			if err != nil {
				return unitResult{Name: marker, Err: err}
			}

			lines := make([]string, len(r.Decisions))
			for i, d := range r.Decisions {
				lines[i] = d.String()
			}
			return unitResult{
				Name:    marker,
				Kept:    len(phylo.LeafNames(r.Tree)),
				Removed: len(r.Removed),
				Lines:   lines,
			}
		})

		failed, kept, removed := summarizeUnits(opt, "select", outDir, results)

		lines := []string{"ProteinID MarkerGene RFdistance Status"}
		for _, r := range results {
			lines = append(lines, r.Lines...)
		}
		checkError(writeLines(filepath.Join(runDir, fileRFValues), opt.CompressionLevel, lines))
		if n := scores.Fallbacks(); n > 0 {
			log.Warningf("[select] %d score(s) taken from other markers (--score-fallback)", n)
		}

		recordStage(runDir, "select", timeStart,
			map[string]string{"in-dir": inDir, "species-tree": treeFile},
			map[string]int{"markers": len(files) - len(failed), "kept": kept, "removed": removed, "decisions": len(lines) - 1},
			failed)
		writeStageMetrics(opt, "select", timeStart, len(files), len(failed), kept, removed)

		if doSingles {
			if opt.logging() {
				log.Info()
				log.Info("running neighbor-concordance filter ...")
			}
			runSinglesStage(opt, runDir, outDir, reference, compileFileRegexp(`\.nw$`), time.Now())
		}
	},
}

// resetSelectDirs recreates the output directories of select. Trees of an
// earlier neighbor-concordance pass are removed unless it runs again.
func resetSelectDirs(runDir string, singles bool) (outDir string, removedDir string) {
	outDir = filepath.Join(runDir, dirNoDuplicates)
	removedDir = filepath.Join(runDir, dirRemoved)
	resetDir(outDir)
	resetDir(removedDir)
	if !singles {
		checkError(os.RemoveAll(filepath.Join(runDir, dirNoSingles)))
	}
	return outDir, removedDir
}

func init() {
	RootCmd.AddCommand(selectCmd)

	selectCmd.Flags().StringP("run-dir", "d", "", `run directory created by "sgtree curate"`)
	selectCmd.Flags().StringP("in-dir", "I", "", `directory of gene trees (default: <run-dir>/protTrees/raw)`)
	selectCmd.Flags().StringP("species-tree", "t", "", `reference species tree in Newick format (default: <run-dir>/species_tree.nwk)`)
	selectCmd.Flags().StringP("tree-regexp", "r", defaultTreeRegexp, `regular expression for matching tree files, case ignored`)
	selectCmd.Flags().StringP("ref-list", "", "", `file of genome IDs exempted from resolving (default: <run-dir>/tables/reference_genomes.txt)`)
	selectCmd.Flags().BoolP("singles", "", false, `also run the neighbor-concordance filter`)
	selectCmd.Flags().BoolP("score-fallback", "", false, `score sequences missing for a marker with their best score over all markers`)
}

func formatFloat6(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
