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
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

const (
	dirTables              = "tables"
	fileCountMatrix        = "marker_count_matrix.csv"
	fileGenomesRemoved     = "log_genomes_removed.txt"
	fileLengthRemoved      = "hits.length_removed.txt"
	fileHitsCleaned        = "hits.cleaned.tsv"
	fileHitsBounded        = "hits.bounded.tsv"
	fileDuplicatesDropped  = "duplicates_dropped.tsv"
	fileReferenceGenomes   = "reference_genomes.txt"
	defaultMinModelPercent = 10
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "clean hit tables, drop incomplete genomes and bound duplicates",
	Long: `clean hit tables, drop incomplete genomes and bound duplicates

Input:
  Profile-search hit tables (e.g., hmmsearch --domtblout) with sequence IDs
  in the format of "genomeID|sequenceID".

Steps:
  1. Hits shorter than --length-filter percent of the median hit length of
     the same marker are removed.
  2. Every (sequence, marker) pair is counted once. A genome hitting fewer
     than --min-model-percent percent of all marker models is incomplete
     and removed.
  3. A (genome, marker) group with more than --max-duplicates hits is
     dropped, other groups are kept.
  4. Hits of a previous run given by --ref-dir are appended without
     filtering. Their genomes are the reference genomes.

Output (in the run directory -O/--out-dir):
  __sgtree.yml                    run manifest
  marker_count_matrix.csv         hit counts, rows: markers, columns: genomes
  log_genomes_removed.txt         incomplete genomes
  tables/hits.length_removed.txt  hits removed by the length filter
  tables/hits.cleaned.tsv         hits of complete genomes
  tables/duplicates_dropped.tsv   dropped (genome, marker) groups
  tables/hits.bounded.tsv         hits for sequence extraction and scoring
  tables/reference_genomes.txt    reference genomes

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

		// ---------------------------------------------------------------
		// flags

		outDir := getFlagPath(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		force := getFlagBool(cmd, "force")

		lengthFilter := getFlagPercentage(cmd, "length-filter")
		minModelPercent := getFlagPercentage(cmd, "min-model-percent")
		modelCount := getFlagNonNegativeInt(cmd, "model-count")
		modelDir := getFlagPath(cmd, "model-dir")
		maxDuplicates := getFlagPositiveInt(cmd, "max-duplicates")
		proteinUnique := getFlagBool(cmd, "protein-unique")
		refDir := getFlagPath(cmd, "ref-dir")
		refList := getFlagPath(cmd, "ref-list")
		chunkSize := getFlagPositiveInt(cmd, "chunk-size")

		fields := hits.Fields{
			ID:     getFlagNonNegativeInt(cmd, "id-field"),
			Length: getFlagNonNegativeInt(cmd, "length-field"),
			Marker: getFlagNonNegativeInt(cmd, "marker-field"),
			Score:  getFlagNonNegativeInt(cmd, "score-field"),
		}

		if modelCount == 0 && modelDir != "" {
			files, err := getFileListFromDir(modelDir, compileFileRegexp(`\.hmm$`), opt.NumCPUs)
			checkError(errors.Wrapf(err, "walking dir: %s", modelDir))
			if len(files) == 0 {
				checkError(fmt.Errorf("no *.hmm files found in %s", modelDir))
			}
			modelCount = len(files)
		}

		// ---------------------------------------------------------------
		// input files

		if opt.logging() {
			log.Infof("sgtree v%s", VERSION)
			log.Info()
			log.Info("checking input files ...")
		}

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if len(files) == 1 && isStdin(files[0]) {
			checkError(fmt.Errorf("hit table files needed"))
		}
		if opt.logging() {
			log.Infof("  %d input file(s) given", len(files))
		}

		var refInfo *RunInfo
		var err error
		if refDir != "" {
			refInfo, err = RunInfoFromDir(refDir)
			checkError(errors.Wrapf(err, "reading reference run: %s", refDir))
		}

		// ---------------------------------------------------------------
		// log

		if opt.logging() {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("  columns: id: %d, length: %d, marker: %d, score: %d", fields.ID, fields.Length, fields.Marker, fields.Score)
			log.Infof("  length filter: %.2f%% of the median length", lengthFilter)
			if modelCount > 0 {
				log.Infof("  number of marker models: %d", modelCount)
			} else {
				log.Infof("  number of marker models: number of markers in tables")
			}
			log.Infof("  minimum percentage of models: %.2f%%", minModelPercent)
			log.Infof("  maximum number of hits per genome and marker: %d", maxDuplicates)
			log.Infof("  keep one marker per sequence: %v", proteinUnique)
			if refDir != "" {
				log.Infof("  reference run: %s", refDir)
			}
			log.Infof("  output directory: %s", outDir)
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		// ---------------------------------------------------------------
		// read tables

		var all []*hits.Hit
		for _, file := range files {
			list, err := hits.ReadRawTable(file, fields, opt.NumCPUs, chunkSize)
			checkError(err)
			if opt.logging() {
				log.Infof("  %d hits read from %s", len(list), file)
			}
			all = append(all, list...)
		}

		refHits, refGenomes, err := loadReference(all, refDir, refList)
		checkError(err)

		// ---------------------------------------------------------------
		// curate

		result, err := hits.Curate(all, hits.CurateOptions{
			LengthFilterFraction: lengthFilter / 100,
			MarkerModelCount:     modelCount,
			MinModelPercent:      minModelPercent,
		})
		checkError(err)

		if refInfo != nil {
			info := RunInfo{Version: RunInfoVersion, ModelCount: result.ModelCount, ScoreField: fields.Score}
			if !info.CompatibleWith(*refInfo) {
				checkError(fmt.Errorf("reference run not compatible (#models: %d, score field: %d): %s",
					refInfo.ModelCount, refInfo.ScoreField, refDir))
			}
		}

		if opt.logging() {
			log.Infof("%d hits removed by the length filter", len(result.LengthRemoved))
			log.Infof("%d genome(s) hitting < %.2f markers removed", len(result.Incomplete), result.Threshold)
			log.Infof("%d hits of %d genome(s) kept", len(result.Cleaned), len(result.Counts.Genomes))
		}

		bounded := hits.BoundDuplicates(result.Cleaned, hits.BoundOptions{
			MaxDuplicates: maxDuplicates,
			ProteinUnique: proteinUnique,
		})
		if opt.logging() {
			log.Infof("%d (genome, marker) group(s) with > %d hits dropped", len(bounded.Dropped), maxDuplicates)
		}

		final := bounded.Kept
		if len(refHits) > 0 {
			final = hits.Union(final, refHits)
			if opt.logging() {
				log.Infof("%d hits of %d reference genome(s) appended", len(refHits), len(hits.Genomes(refHits)))
			}
		}

		// ---------------------------------------------------------------
		// output

		makeOutDir(outDir, force)
		tablesDir := filepath.Join(outDir, dirTables)
		checkError(os.MkdirAll(tablesDir, 0777))

		checkError(hits.WriteTable(filepath.Join(tablesDir, fileLengthRemoved), result.LengthRemoved))
		checkError(hits.WriteTable(filepath.Join(tablesDir, fileHitsCleaned), result.Cleaned))
		checkError(hits.WriteTable(filepath.Join(tablesDir, fileHitsBounded), final))
		checkError(hits.WriteCountMatrix(filepath.Join(outDir, fileCountMatrix), result.Counts))

		lines := make([]string, 0, len(bounded.Dropped)+1)
		lines = append(lines, "#genome\tmarker\thits")
		for _, d := range bounded.Dropped {
			lines = append(lines, fmt.Sprintf("%s\t%s\t%d", d.Genome, d.Marker, d.Hits))
		}
		checkError(writeLines(filepath.Join(tablesDir, fileDuplicatesDropped), opt.CompressionLevel, lines))

		lines = lines[:0]
		for _, g := range result.Incomplete {
			lines = append(lines, fmt.Sprintf("%s\t%d", g, result.MarkersHit[g]))
		}
		checkError(writeLines(filepath.Join(outDir, fileGenomesRemoved), opt.CompressionLevel, lines))

		checkError(writeLines(filepath.Join(tablesDir, fileReferenceGenomes), opt.CompressionLevel, sortedKeys(refGenomes)))

		info := NewRunInfo(result.ModelCount, fields.Score)
		info.Reference = refDir
		info.Stages["curate"] = &StageInfo{
			Finished: time.Now().Format(time.RFC3339),
			Elapsed:  time.Since(timeStart).String(),
			Params: map[string]string{
				"length-filter":     strconv.FormatFloat(lengthFilter, 'f', -1, 64),
				"min-model-percent": strconv.FormatFloat(minModelPercent, 'f', -1, 64),
				"max-duplicates":    strconv.Itoa(maxDuplicates),
				"protein-unique":    strconv.FormatBool(proteinUnique),
				"ref-dir":           refDir,
			},
			Counts: map[string]int{
				"hits":              len(all),
				"length-removed":    len(result.LengthRemoved),
				"genomes-removed":   len(result.Incomplete),
				"genomes-kept":      len(result.Counts.Genomes),
				"groups-dropped":    len(bounded.Dropped),
				"hits-bounded":      len(final),
				"reference-genomes": len(refGenomes),
			},
		}
		_, err = info.WriteTo(outDir)
		checkError(err)

		writeStageMetrics(opt, "curate", timeStart, len(files), 0, len(final), len(all)-len(final))

		if opt.logging() {
			log.Info()
			log.Infof("run directory: %s", outDir)
		}
	},
}

// loadReference reads hits of a reference run and genome IDs of a list
// file. Their union is the reference genome set, which must not overlap
// the query genomes of all.
func loadReference(all []*hits.Hit, refDir string, refList string) ([]*hits.Hit, map[string]struct{}, error) {
	refGenomes := make(map[string]struct{}, 64)
	var refHits []*hits.Hit
	var err error
	if refDir != "" {
		refHits, err = hits.ReadTable(filepath.Join(refDir, dirTables, fileHitsBounded))
		if err != nil {
			return nil, nil, err
		}
		for _, g := range hits.Genomes(refHits) {
			refGenomes[g] = struct{}{}
		}
	}
	if refList != "" {
		ids, err := readIDList(refList)
		if err != nil {
			return nil, nil, errors.Wrap(err, refList)
		}
		for g := range ids {
			refGenomes[g] = struct{}{}
		}
	}
	if len(refGenomes) > 0 {
		if overlap := hits.Overlap(all, refGenomes); len(overlap) > 0 {
			return nil, nil, fmt.Errorf("%d query genome(s) also found in reference genomes, e.g., %s", len(overlap), overlap[0])
		}
	}
	return refHits, refGenomes, nil
}

// referenceGenomes reads the reference genome list of a run directory.
func referenceGenomes(runDir string) map[string]struct{} {
	file := filepath.Join(runDir, dirTables, fileReferenceGenomes)
	ok, err := pathutil.Exists(file)
	checkError(errors.Wrap(err, file))
	if !ok {
		return map[string]struct{}{}
	}
	ids, err := readIDList(file)
	checkError(errors.Wrap(err, file))
	return ids
}

func init() {
	RootCmd.AddCommand(curateCmd)

	curateCmd.Flags().StringP("out-dir", "O", "", `output run directory`)
	curateCmd.Flags().BoolP("force", "", false, `overwrite output directory`)

	curateCmd.Flags().Float64P("length-filter", "", 0, `remove hits shorter than this percentage of the median hit length of the marker, 0 for no filter`)
	curateCmd.Flags().Float64P("min-model-percent", "", defaultMinModelPercent, `minimum percentage of marker models a genome must hit`)
	curateCmd.Flags().IntP("model-count", "", 0, `number of marker models, 0 for the number of *.hmm files in --model-dir or the number of markers in tables`)
	curateCmd.Flags().StringP("model-dir", "", "", `directory of marker models (*.hmm)`)
	curateCmd.Flags().IntP("max-duplicates", "", hits.DefaultMaxDuplicates, `drop (genome, marker) groups with more hits than this`)
	curateCmd.Flags().BoolP("protein-unique", "", false, `keep only the first marker of each sequence`)

	curateCmd.Flags().StringP("ref-dir", "", "", `run directory of reference genomes, whose hits are appended`)
	curateCmd.Flags().StringP("ref-list", "", "", `file of reference genome IDs, one per line`)

	curateCmd.Flags().IntP("id-field", "", hits.DefaultFields.ID, `column of sequence IDs (0-based)`)
	curateCmd.Flags().IntP("length-field", "", hits.DefaultFields.Length, `column of hit lengths (0-based)`)
	curateCmd.Flags().IntP("marker-field", "", hits.DefaultFields.Marker, `column of marker names (0-based)`)
	curateCmd.Flags().IntP("score-field", "", hits.DefaultFields.Score, `column of bit scores (0-based)`)
	curateCmd.Flags().IntP("chunk-size", "", 1000, `number of lines per chunk for parallel parsing`)
}
