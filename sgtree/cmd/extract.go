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
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
	"github.com/spf13/cobra"
)

const (
	dirExtracted    = "extracted_seqs"
	fileMissingIDs  = "missing_ids.txt"
	defaultFastaExt = `\.(faa|fasta|fa|fas|fna|afa|aln)(\.gz)?$`
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "write per-marker FASTA files from proteomes",
	Long: `write per-marker FASTA files from proteomes

Sequences listed in tables/hits.bounded.tsv of the run directory are
extracted from proteome FASTA files, whose sequence IDs should be in the
format of "genomeID|sequenceID", and saved to extracted_seqs/<marker>.faa
in the order of the table. IDs not found are listed in
extracted_seqs/missing_ids.txt.

Proteome files can be given as positional arguments, or via one or more
-I/--in-dir, e.g., one for query proteomes and one for reference proteomes.

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
		inDirs := getFlagStringSlice(cmd, "in-dir")
		reFile := compileFileRegexp(getFlagString(cmd, "file-regexp"))
		lineWidth := getFlagNonNegativeInt(cmd, "line-width")

		var files []string
		if len(inDirs) > 0 {
			for _, dir := range inDirs {
				files = append(files, listUnits(opt, dir, reFile)...)
			}
		} else {
			files = getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
			if len(files) == 1 && isStdin(files[0]) {
				checkError(fmt.Errorf("proteome files needed"))
			}
		}

		table := filepath.Join(runDir, dirTables, fileHitsBounded)
		list, err := hits.ReadTable(table)
		checkError(err)

		wanted := make(map[string]struct{}, len(list))
		for _, h := range list {
			wanted[h.Sequence] = struct{}{}
		}

		if opt.logging() {
			log.Infof("sgtree v%s", VERSION)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("  run directory: %s", runDir)
			log.Infof("  proteome files: %d", len(files))
			log.Infof("  sequences to extract: %d", len(wanted))
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		// ---------------------------------------------------------------
		// read proteomes

		fileIndex := make(map[string]int, len(files))
		for i, file := range files {
			fileIndex[file] = i
		}
		found := make([][]*seqs.Record, len(files))

		results := runUnits(opt, "extract", files, func(file string) unitResult {
			records, err := seqs.ReadFile(file)
			if err != nil {
				return unitResult{Name: filepath.Base(file), Err: err}
			}
			records = seqs.Filter(records, wanted)
			found[fileIndex[file]] = records
			return unitResult{Name: filepath.Base(file), Kept: len(records)}
		})

		outDir := filepath.Join(runDir, dirExtracted)
		resetDir(outDir)
		failed, _, _ := summarizeUnits(opt, "extract", outDir, results)

		nSeqs, nMarkers, missing, err := extractMarkers(list, found, outDir, lineWidth)
		checkError(err)

		if len(missing) > 0 {
			file := filepath.Join(outDir, fileMissingIDs)
			checkError(writeLines(file, opt.CompressionLevel, missing))
			log.Warningf("%d sequence(s) not found in proteomes, see %s", len(missing), file)
		}

		recordStage(runDir, "extract", timeStart,
			map[string]string{"files": strconv.Itoa(len(files))},
			map[string]int{"markers": nMarkers, "sequences": nSeqs, "missing": len(missing)},
			failed)
		writeStageMetrics(opt, "extract", timeStart, len(files), len(failed), nSeqs, len(missing))

		if opt.logging() {
			log.Infof("%d sequence(s) of %d marker(s) saved to %s", nSeqs, nMarkers, outDir)
		}
	},
}

// extractMarkers writes <marker>.faa files of the hits in table order,
// taking each sequence from the first proteome containing it. It returns
// the numbers of distinct sequences and markers written, and sorted IDs
// found in no proteome.
func extractMarkers(list []*hits.Hit, found [][]*seqs.Record, outDir string, lineWidth int) (int, int, []string, error) {
	index := make(map[string]*seqs.Record, len(list))
	for _, records := range found {
		for _, r := range records {
			if _, ok := index[r.ID]; !ok {
				index[r.ID] = r
			}
		}
	}

	byMarker := make(map[string][]*seqs.Record, 128)
	used := make(map[string]struct{}, len(index))
	missing := make(map[string]struct{}, 16)
	for _, h := range list {
		r, ok := index[h.Sequence]
		if !ok {
			missing[h.Sequence] = struct{}{}
			continue
		}
		used[r.ID] = struct{}{}
		byMarker[h.Marker] = append(byMarker[h.Marker], r)
	}

	for _, marker := range hits.Markers(list) {
		records := byMarker[marker]
		if len(records) == 0 {
			continue
		}
		file := filepath.Join(outDir, marker+".faa")
		if err := seqs.WriteFile(file, records, lineWidth); err != nil {
			return 0, 0, nil, errors.Wrap(err, marker)
		}
	}
	return len(used), len(byMarker), sortedKeys(missing), nil
}

func init() {
	RootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("run-dir", "d", "", `run directory created by "sgtree curate"`)
	extractCmd.Flags().StringSliceP("in-dir", "I", []string{}, `directories of proteome files, multiple values supported`)
	extractCmd.Flags().StringP("file-regexp", "r", defaultFastaExt, `regular expression for matching proteome files in -I/--in-dir, case ignored`)
	extractCmd.Flags().IntP("line-width", "w", 60, `line width of sequences, 0 for no wrap`)
}
