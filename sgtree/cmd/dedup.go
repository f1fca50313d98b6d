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
	"strings"
	"time"

	"github.com/sgtree/sgtree/sgtree/cmd/hits"
	"github.com/sgtree/sgtree/sgtree/cmd/selection"
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
	"github.com/spf13/cobra"
)

const (
	dirAligned         = "aligned"
	dirDeduplicated    = "aln_SpecTree"
	fileRemovedByScore = "removed_by_score.tsv"
	fileScoreTies      = "ties.tsv"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "keep the best-scoring sequences of each genome in marker alignments",
	Long: `keep the best-scoring sequences of each genome in marker alignments

For every marker alignment, when a genome contributes more than one
sequence, only the sequence(s) with the highest bit score in
tables/hits.bounded.tsv are kept. Sequences tying for the highest score
are all kept and left to "sgtree select".

Scores are looked up for the marker of each alignment, taken from the
file name without known extensions. With --score-fallback, a sequence
without a hit for that marker gets its best score over all markers;
the number of such lookups is logged.

Input:
  Aligned marker files (FASTA), one per marker, named <marker>.<ext>,
  in -I/--in-dir (default: <run-dir>/aligned).

Output:
  <run-dir>/aln_SpecTree/<marker>.faa
  <run-dir>/aln_SpecTree/removed_by_score.tsv
      marker, sequence, score, best score, sequences of the genome
  <run-dir>/aln_SpecTree/ties.tsv
      marker, genome, sequences sharing the best score (";"-separated)
  <run-dir>/aln_SpecTree/failed_units.txt   (if any marker failed)

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
			inDir = filepath.Join(runDir, dirAligned)
		}
		outDir, isDefault := stageOutDir(cmd, runDir, dirDeduplicated)
		if filepath.Clean(inDir) == filepath.Clean(outDir) {
			checkError(fmt.Errorf("input and output paths should not be the same"))
		}
		reFile := compileFileRegexp(getFlagString(cmd, "file-regexp"))
		lineWidth := getFlagNonNegativeInt(cmd, "line-width")

		files := listUnits(opt, inDir, reFile)

		list, err := hits.ReadTable(filepath.Join(runDir, dirTables, fileHitsBounded))
		checkError(err)
		scores := hits.NewScoreIndex(list, getFlagBool(cmd, "score-fallback"))

		if opt.logging() {
			log.Infof("sgtree v%s", VERSION)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("  run directory: %s", runDir)
			log.Infof("  input directory: %s, %d file(s)", inDir, len(files))
			log.Infof("  output directory: %s", outDir)
			log.Infof("  scored marker hits: %d", scores.Len())
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		prepareStageDir(cmd, outDir, isDefault)

		results := runUnits(opt, "dedup", files, func(file string) unitResult {
			return dedupMarker(file, outDir, scores, lineWidth)
		})

		failed, kept, removed := summarizeUnits(opt, "dedup", outDir, results)

		lines := []string{"#marker\tsequence\tscore\tbest_score\tcontests"}
		ties := []string{"#marker\tgenome\tsequences"}
		for _, r := range results {
			lines = append(lines, r.Lines...)
			ties = append(ties, r.Notes...)
		}
		checkError(writeLines(filepath.Join(outDir, fileRemovedByScore), opt.CompressionLevel, lines))
		checkError(writeLines(filepath.Join(outDir, fileScoreTies), opt.CompressionLevel, ties))
		if n := scores.Fallbacks(); n > 0 {
			log.Warningf("[dedup] %d score(s) taken from other markers (--score-fallback)", n)
		}
		if opt.logging() {
			log.Infof("[dedup] %d genome(s) with tying best scores, see %s", len(ties)-1, filepath.Join(outDir, fileScoreTies))
		}

		recordStage(runDir, "dedup", timeStart,
			map[string]string{"in-dir": inDir, "out-dir": outDir},
			map[string]int{"markers": len(files) - len(failed), "kept": kept, "removed": removed},
			failed)
		writeStageMetrics(opt, "dedup", timeStart, len(files), len(failed), kept, removed)
	},
}

// dedupMarker deduplicates one alignment into outDir. Lines are rows of
// removed_by_score.tsv and Notes rows of ties.tsv.
func dedupMarker(file string, outDir string, scores selection.Scorer, lineWidth int) unitResult {
	marker := markerName(file)
	records, err := seqs.ReadFile(file)
	if err != nil {
		return unitResult{Err: err}
	}
	if len(records) == 0 {
		return unitResult{Err: fmt.Errorf("no sequences in %s", file)}
	}

	r, err := selection.Deduplicate(marker, records, scores)
	if err != nil {
		return unitResult{Err: err}
	}

	err = seqs.WriteFile(filepath.Join(outDir, marker+".faa"), r.Kept, lineWidth)
	if err != nil {
		return unitResult{Err: err}
	}

	lines := make([]string, len(r.Removed))
	for i, rm := range r.Removed {
		lines[i] = fmt.Sprintf("%s\t%s\t%s\t%s\t%d", marker, rm.ID,
			strconv.FormatFloat(rm.Score, 'f', -1, 64), strconv.FormatFloat(rm.Best, 'f', -1, 64), rm.Contests)
	}
	notes := make([]string, len(r.Ties))
	for i, tie := range r.Ties {
		notes[i] = fmt.Sprintf("%s\t%s\t%s", marker, tie.Genome, strings.Join(tie.IDs, ";"))
	}
	return unitResult{Name: marker, Kept: len(r.Kept), Removed: len(r.Removed), Lines: lines, Notes: notes}
}

func init() {
	RootCmd.AddCommand(dedupCmd)

	dedupCmd.Flags().StringP("run-dir", "d", "", `run directory created by "sgtree curate"`)
	dedupCmd.Flags().StringP("in-dir", "I", "", `directory of marker alignments (default: <run-dir>/aligned)`)
	dedupCmd.Flags().StringP("out-dir", "O", "", `output directory (default: <run-dir>/aln_SpecTree)`)
	dedupCmd.Flags().BoolP("force", "", false, `overwrite the output directory given by -O/--out-dir`)
	dedupCmd.Flags().StringP("file-regexp", "r", defaultFastaExt, `regular expression for matching alignment files, case ignored`)
	dedupCmd.Flags().IntP("line-width", "w", 0, `line width of sequences, 0 for no wrap`)
	dedupCmd.Flags().BoolP("score-fallback", "", false, `score sequences missing for a marker with their best score over all markers`)
}
