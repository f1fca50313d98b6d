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

	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
	"github.com/sgtree/sgtree/sgtree/cmd/supermatrix"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

const (
	dirTrimmedFinal     = "trimmed_final"
	dirConcat           = "concat"
	fileConcatenated    = "concatenated.faa"
	filePartitions      = "partitions.tsv"
	fileConcatenatedNex = "concatenated.nex"
	fileDuplicateRows   = "duplicate_rows.tsv"
)

var concatCmd = &cobra.Command{
	Use:   "concat",
	Short: "assemble the supermatrix",
	Long: `assemble the supermatrix

Marker alignments are concatenated into one row per genome. Records are
joined by the genome ID prefix of sequence IDs (genomeID|sequenceID). A
genome absent from a marker gets a run of --padding characters as wide as
the marker alignment. Genomes are sorted by ID, and markers follow the
order of sorted file names. Every row must have the same width, otherwise
nothing is written.

Input:
  Trimmed alignments in -I/--in-dir (default: <run-dir>/trimmed_final if
  existed, otherwise <run-dir>/aligned_final).

Output (-O/--out-dir, default: <run-dir>/concat):
  concatenated.faa
  partitions.tsv       marker, start, end, width, number of genomes
  duplicate_rows.tsv   marker, sequence: records dropped because their
                       genome already has a row in the marker
  concatenated.nex     with --nexus

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
			inDir = filepath.Join(runDir, dirTrimmedFinal)
			if ok, _ := pathutil.DirExists(inDir); !ok {
				inDir = filepath.Join(runDir, dirAlignedFinal)
			}
		}
		outDir, isDefault := stageOutDir(cmd, runDir, dirConcat)
		reFile := compileFileRegexp(getFlagString(cmd, "file-regexp"))
		nexus := getFlagBool(cmd, "nexus")
		padding := getFlagString(cmd, "padding")
		if len(padding) != 1 {
			checkError(fmt.Errorf("value of --padding should be a single character"))
		}

		files := listUnits(opt, inDir, reFile)

		if opt.logging() {
			log.Infof("sgtree v%s", VERSION)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("  run directory: %s", runDir)
			log.Infof("  alignments: %s, %d file(s)", inDir, len(files))
			log.Infof("  padding character: %s", padding)
			log.Infof("  output directory: %s", outDir)
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		prepareStageDir(cmd, outDir, isDefault)

		fileIndex := make(map[string]int, len(files))
		for i, file := range files {
			fileIndex[file] = i
		}
		blocks := make([][]*seqs.Record, len(files))
		results := runUnits(opt, "concat", files, func(file string) unitResult {
			records, err := seqs.ReadFile(file)
			if err != nil {
				return unitResult{Err: err}
			}
			if len(records) == 0 {
				return unitResult{Err: supermatrix.ErrEmptyBlock}
			}
			blocks[fileIndex[file]] = records
			return unitResult{Kept: len(records)}
		})
		failed, _, _ := summarizeUnits(opt, "concat", outDir, results)

		assembler := supermatrix.NewAssembler()
		assembler.Padding = padding[0]
		dupLines, err := addBlocks(assembler, results, blocks)
		checkError(err)
		checkError(writeLines(filepath.Join(outDir, fileDuplicateRows), opt.CompressionLevel,
			append([]string{"#marker\tsequence"}, dupLines...)))
		if len(dupLines) > 0 {
			log.Warningf("%d duplicated record(s) dropped, see %s", len(dupLines), filepath.Join(outDir, fileDuplicateRows))
		}

		m, err := assembler.Assemble(opt.NumCPUs)
		checkError(errors.Wrap(err, "assembling supermatrix"))

		checkError(supermatrix.WriteFasta(filepath.Join(outDir, fileConcatenated), m))
		checkError(supermatrix.WritePartitions(filepath.Join(outDir, filePartitions), m))
		if nexus {
			checkError(supermatrix.WriteNexus(filepath.Join(outDir, fileConcatenatedNex), m))
		}

		fingerprint := m.Fingerprint()
		recordStage(runDir, "concat", timeStart,
			map[string]string{"in-dir": inDir, "padding": padding},
			map[string]int{"markers": len(m.Partitions), "genomes": len(m.Genomes), "columns": m.Width()},
			failed)
		info, err := RunInfoFromDir(runDir)
		checkError(err)
		info.Fingerprint = fingerprint
		_, err = info.WriteTo(runDir)
		checkError(err)

		writeStageMetrics(opt, "concat", timeStart, len(files), len(failed), len(m.Genomes), 0)

		if opt.logging() {
			log.Infof("supermatrix of %d genomes x %d columns (%d markers) saved to %s",
				len(m.Genomes), m.Width(), len(m.Partitions), outDir)
			log.Infof("  xxh3: %s", fingerprint)
		}
	},
}

// addBlocks adds alignments of successful units and returns
// "marker<TAB>sequence" lines of records dropped as duplicated genomes.
func addBlocks(assembler *supermatrix.Assembler, results []unitResult, blocks [][]*seqs.Record) ([]string, error) {
	var lines []string
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		dups, err := assembler.Add(r.Name, blocks[i])
		if err != nil {
			return nil, err
		}
		for _, id := range dups {
			lines = append(lines, r.Name+"\t"+id)
		}
	}
	return lines, nil
}

func init() {
	RootCmd.AddCommand(concatCmd)

	concatCmd.Flags().StringP("run-dir", "d", "", `run directory created by "sgtree curate"`)
	concatCmd.Flags().StringP("in-dir", "I", "", `directory of trimmed marker alignments`)
	concatCmd.Flags().StringP("out-dir", "O", "", `output directory (default: <run-dir>/concat)`)
	concatCmd.Flags().BoolP("force", "", false, `overwrite the output directory given by -O/--out-dir`)
	concatCmd.Flags().StringP("file-regexp", "r", defaultFastaExt, `regular expression for matching alignment files, case ignored`)
	concatCmd.Flags().StringP("padding", "", string(supermatrix.DefaultPadding), `character for markers absent from a genome`)
	concatCmd.Flags().BoolP("nexus", "", false, `also write the supermatrix in NEXUS format`)
}
