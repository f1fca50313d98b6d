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
	"os"
	"path/filepath"
	"testing"
)

func TestAuditDB(t *testing.T) {
	runDir := t.TempDir()

	mustWrite := func(file string, lines []string) {
		if err := writeLines(filepath.Join(runDir, file), 5, lines); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite(fileRFValues, []string{
		"ProteinID MarkerGene RFdistance Status",
		"g1|p1 M1 0.250000 Kept",
		"g1|p2 M1 0.500000 Removed",
		"g9|p1 M1 NA Kept",
	})
	mustWrite(filepath.Join(dirRemoved, "M1.txt"), []string{"g1|p2", "removed total\t1"})
	mustWrite(filepath.Join(dirRemoved, "M1.singles.txt"), []string{"sing2|p7", "1/5 0.333333"})
	mustWrite(filepath.Join(dirDeduplicated, fileRemovedByScore), []string{
		"#marker\tsequence\tscore\tbest_score\tcontests",
		"M2\tg3|p4\t10.5\t20.1\t3",
		"M2\tg5|p1\t1\t2",
	})
	mustWrite(filepath.Join(dirDeduplicated, fileScoreTies), []string{
		"#marker\tgenome\tsequences",
		"M3\tg4\tg4|p1;g4|p2",
	})
	mustWrite(fileGenomesRemoved, []string{"g7\t1"})

	db, err := sql.Open("sqlite", filepath.Join(runDir, fileAuditDB))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range auditSchema {
		if _, err = tx.Exec(stmt); err != nil {
			t.Fatalf("%s: %s", stmt, err)
		}
	}

	if n := loadMarkerCounts(tx, runDir); n != 0 {
		t.Errorf("expected no marker counts without a count matrix, returned %d", n)
	}
	if n := loadRFDecisions(tx, runDir); n != 3 {
		t.Errorf("expected 3 RF decisions, returned %d", n)
	}
	if n := loadRemovals(tx, runDir); n != 2 {
		t.Errorf("expected 2 removals, returned %d", n)
	}
	if n := loadScoreRemovals(tx, runDir); n != 2 {
		t.Errorf("expected 2 score removals, returned %d", n)
	}
	if n := loadScoreTies(tx, runDir); n != 1 {
		t.Errorf("expected 1 score tie, returned %d", n)
	}
	if n := loadRemovedGenomes(tx, runDir); n != 1 {
		t.Errorf("expected 1 removed genome, returned %d", n)
	}
	if err = tx.Commit(); err != nil {
		t.Fatal(err)
	}

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM rf_decisions WHERE distance IS NULL`).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 decision without distance, returned %d", n)
	}

	var seq string
	err = db.QueryRow(`SELECT sequence FROM removals WHERE stage = 'singles' AND marker = 'M1'`).Scan(&seq)
	if err != nil {
		t.Fatal(err)
	}
	if seq != "g2|p7" {
		t.Errorf("expected g2|p7, returned %s", seq)
	}

	var best float64
	err = db.QueryRow(`SELECT best_score FROM score_removals WHERE sequence = 'g3|p4'`).Scan(&best)
	if err != nil {
		t.Fatal(err)
	}
	if best != 20.1 {
		t.Errorf("expected best score 20.1, returned %f", best)
	}

	var contests sql.NullInt64
	err = db.QueryRow(`SELECT contests FROM score_removals WHERE sequence = 'g3|p4'`).Scan(&contests)
	if err != nil {
		t.Fatal(err)
	}
	if !contests.Valid || contests.Int64 != 3 {
		t.Errorf("expected 3 contests, returned %v", contests)
	}
	err = db.QueryRow(`SELECT contests FROM score_removals WHERE sequence = 'g5|p1'`).Scan(&contests)
	if err != nil {
		t.Fatal(err)
	}
	if contests.Valid {
		t.Errorf("expected no contests for a four-column line")
	}

	var tied string
	err = db.QueryRow(`SELECT sequences FROM score_ties WHERE genome = 'g4'`).Scan(&tied)
	if err != nil {
		t.Fatal(err)
	}
	if tied != "g4|p1;g4|p2" {
		t.Errorf("expected g4|p1;g4|p2, returned %s", tied)
	}

	if _, err = os.Stat(filepath.Join(runDir, fileAuditDB)); err != nil {
		t.Error(err)
	}
}
