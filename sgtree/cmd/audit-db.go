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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/hits"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

const fileAuditDB = "audit.sqlite"

var auditSchema = []string{
	`DROP TABLE IF EXISTS marker_counts`,
	`DROP TABLE IF EXISTS genomes_removed`,
	`DROP TABLE IF EXISTS score_removals`,
	`DROP TABLE IF EXISTS score_ties`,
	`DROP TABLE IF EXISTS rf_decisions`,
	`DROP TABLE IF EXISTS removals`,
	`DROP TABLE IF EXISTS stages`,
	`CREATE TABLE marker_counts (genome TEXT NOT NULL, marker TEXT NOT NULL, hits INTEGER NOT NULL, PRIMARY KEY (genome, marker))`,
	`CREATE TABLE genomes_removed (genome TEXT PRIMARY KEY, markers INTEGER NOT NULL)`,
	`CREATE TABLE score_removals (marker TEXT NOT NULL, sequence TEXT NOT NULL, score REAL, best_score REAL, contests INTEGER)`,
	`CREATE TABLE score_ties (marker TEXT NOT NULL, genome TEXT NOT NULL, sequences TEXT NOT NULL)`,
	`CREATE TABLE rf_decisions (sequence TEXT NOT NULL, marker TEXT NOT NULL, distance REAL, status TEXT NOT NULL)`,
	`CREATE TABLE removals (marker TEXT NOT NULL, stage TEXT NOT NULL, sequence TEXT NOT NULL)`,
	`CREATE TABLE stages (name TEXT PRIMARY KEY, finished TEXT, elapsed TEXT, failed INTEGER)`,
	`CREATE INDEX idx_rf_marker ON rf_decisions (marker)`,
	`CREATE INDEX idx_removals_marker ON removals (marker)`,
}

var auditDBCmd = &cobra.Command{
	Use:   "audit-db",
	Short: "load audit records of a run into a SQLite database",
	Long: `load audit records of a run into a SQLite database

Tables:
  marker_counts    genome, marker, hits        (marker_count_matrix.csv)
  genomes_removed  genome, markers             (log_genomes_removed.txt)
  score_removals   marker, sequence, score, best_score, contests
                                               (aln_SpecTree/removed_by_score.tsv)
  score_ties       marker, genome, sequences   (aln_SpecTree/ties.tsv)
  rf_decisions     sequence, marker, distance, status
                                               (marker_selection_rf_values.txt)
  removals         marker, stage, sequence     (removed/*.txt)
  stages           name, finished, elapsed, failed  (__sgtree.yml)

Existing tables are replaced.

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
		dbFile := getFlagPath(cmd, "out-file")
		if dbFile == "" {
			dbFile = filepath.Join(runDir, fileAuditDB)
		}

		db, err := sql.Open("sqlite", dbFile)
		checkError(errors.Wrap(err, dbFile))
		defer db.Close()

		tx, err := db.Begin()
		checkError(err)
		for _, stmt := range auditSchema {
			_, err = tx.Exec(stmt)
			checkError(errors.Wrap(err, stmt))
		}

		counts := make(map[string]int, 8)
		counts["marker_counts"] = loadMarkerCounts(tx, runDir)
		counts["genomes_removed"] = loadRemovedGenomes(tx, runDir)
		counts["score_removals"] = loadScoreRemovals(tx, runDir)
		counts["score_ties"] = loadScoreTies(tx, runDir)
		counts["rf_decisions"] = loadRFDecisions(tx, runDir)
		counts["removals"] = loadRemovals(tx, runDir)
		counts["stages"] = loadStages(tx, runDir)
		checkError(tx.Commit())

		if opt.logging() {
			for _, table := range []string{"marker_counts", "genomes_removed", "score_removals", "score_ties", "rf_decisions", "removals", "stages"} {
				log.Infof("  %s: %d row(s)", table, counts[table])
			}
			log.Infof("audit database saved to %s", dbFile)
		}
	},
}

func insertRows(tx *sql.Tx, query string, rows [][]interface{}) int {
	stmt, err := tx.Prepare(query)
	checkError(errors.Wrap(err, query))
	defer stmt.Close()
	for _, row := range rows {
		_, err = stmt.Exec(row...)
		checkError(errors.Wrap(err, query))
	}
	return len(rows)
}

func existedFile(file string) bool {
	ok, err := pathutil.Exists(file)
	checkError(errors.Wrap(err, file))
	return ok
}

func loadMarkerCounts(tx *sql.Tx, runDir string) int {
	file := filepath.Join(runDir, fileCountMatrix)
	if !existedFile(file) {
		return 0
	}
	m, err := hits.ReadCountMatrix(file)
	checkError(err)
	rows := make([][]interface{}, 0, len(m.Genomes)*len(m.Markers))
	for _, g := range m.Genomes {
		for _, marker := range m.Markers {
			rows = append(rows, []interface{}{g, marker, m.Count(g, marker)})
		}
	}
	return insertRows(tx, `INSERT INTO marker_counts (genome, marker, hits) VALUES (?, ?, ?)`, rows)
}

func loadRemovedGenomes(tx *sql.Tx, runDir string) int {
	removed := readRemovedGenomes(runDir)
	rows := make([][]interface{}, 0, len(removed))
	for _, g := range sortedKeysInt(removed) {
		rows = append(rows, []interface{}{g, removed[g]})
	}
	return insertRows(tx, `INSERT INTO genomes_removed (genome, markers) VALUES (?, ?)`, rows)
}

func loadScoreRemovals(tx *sql.Tx, runDir string) int {
	file := filepath.Join(runDir, dirDeduplicated, fileRemovedByScore)
	if !existedFile(file) {
		return 0
	}
	lines, err := readLines(file)
	checkError(err)
	rows := make([][]interface{}, 0, len(lines))
	for _, line := range lines {
		if line[0] == '#' {
			continue
		}
		items := strings.Split(line, "\t")
		if len(items) < 4 {
			checkError(fmt.Errorf("%s: invalid line: %s", file, line))
		}
		score, err := strconv.ParseFloat(items[2], 64)
		checkError(errors.Wrap(err, file))
		best, err := strconv.ParseFloat(items[3], 64)
		checkError(errors.Wrap(err, file))
		var contests interface{}
		if len(items) > 4 {
			n, err := strconv.Atoi(items[4])
			checkError(errors.Wrap(err, file))
			contests = n
		}
		rows = append(rows, []interface{}{items[0], items[1], score, best, contests})
	}
	return insertRows(tx, `INSERT INTO score_removals (marker, sequence, score, best_score, contests) VALUES (?, ?, ?, ?, ?)`, rows)
}

func loadScoreTies(tx *sql.Tx, runDir string) int {
	file := filepath.Join(runDir, dirDeduplicated, fileScoreTies)
	if !existedFile(file) {
		return 0
	}
	lines, err := readLines(file)
	checkError(err)
	rows := make([][]interface{}, 0, len(lines))
	for _, line := range lines {
		if line[0] == '#' {
			continue
		}
		items := strings.Split(line, "\t")
		if len(items) != 3 {
			checkError(fmt.Errorf("%s: invalid line: %s", file, line))
		}
		rows = append(rows, []interface{}{items[0], items[1], items[2]})
	}
	return insertRows(tx, `INSERT INTO score_ties (marker, genome, sequences) VALUES (?, ?, ?)`, rows)
}

func loadRFDecisions(tx *sql.Tx, runDir string) int {
	file := filepath.Join(runDir, fileRFValues)
	if !existedFile(file) {
		return 0
	}
	lines, err := readLines(file)
	checkError(err)
	rows := make([][]interface{}, 0, len(lines))
	for i, line := range lines {
		if i == 0 && strings.HasPrefix(line, "ProteinID") {
			continue
		}
		items := strings.Fields(line)
		if len(items) != 4 {
			checkError(fmt.Errorf("%s: invalid line: %s", file, line))
		}
		var distance interface{}
		if items[2] != "NA" {
			d, err := strconv.ParseFloat(items[2], 64)
			checkError(errors.Wrap(err, file))
			distance = d
		}
		rows = append(rows, []interface{}{items[0], items[1], distance, items[3]})
	}
	return insertRows(tx, `INSERT INTO rf_decisions (sequence, marker, distance, status) VALUES (?, ?, ?, ?)`, rows)
}

var reSinglesSummary = regexp.MustCompile(`^\d+/\d+ `)

func loadRemovals(tx *sql.Tx, runDir string) int {
	dir := filepath.Join(runDir, dirRemoved)
	if ok, _ := pathutil.DirExists(dir); !ok {
		return 0
	}
	files, err := getFileListFromDir(dir, regexp.MustCompile(`\.txt$`), 1)
	checkError(errors.Wrap(err, dir))

	rows := make([][]interface{}, 0, 1024)
	for _, file := range files {
		base := filepath.Base(file)
		stage := "select"
		if strings.HasSuffix(base, ".singles.txt") {
			stage = "singles"
		}
		marker := markerName(file)

		lines, err := readLines(file)
		checkError(err)
		for _, line := range lines {
			switch {
			case strings.HasPrefix(line, "removed total"), reSinglesSummary.MatchString(line):
				continue
			case stage == "singles":
				line = strings.TrimPrefix(line, "sin")
			}
			rows = append(rows, []interface{}{marker, stage, line})
		}
	}
	return insertRows(tx, `INSERT INTO removals (marker, stage, sequence) VALUES (?, ?, ?)`, rows)
}

func loadStages(tx *sql.Tx, runDir string) int {
	info, err := RunInfoFromDir(runDir)
	checkError(err)
	rows := make([][]interface{}, 0, len(info.Stages))
	for _, name := range stageNames {
		s, ok := info.Stages[name]
		if !ok {
			continue
		}
		rows = append(rows, []interface{}{name, s.Finished, s.Elapsed, len(s.Failed)})
	}
	return insertRows(tx, `INSERT INTO stages (name, finished, elapsed, failed) VALUES (?, ?, ?, ?)`, rows)
}

func init() {
	RootCmd.AddCommand(auditDBCmd)

	auditDBCmd.Flags().StringP("run-dir", "d", "", `run directory created by "sgtree curate"`)
	auditDBCmd.Flags().StringP("out-file", "o", "", `SQLite database file (default: <run-dir>/audit.sqlite)`)
}
