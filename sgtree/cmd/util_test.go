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
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/shenwei356/util/pathutil"
)

func TestMarkerName(t *testing.T) {
	cases := map[string]string{
		"M1.faa":                         "M1",
		"/a/b/M1.faa.gz":                 "M1",
		"RAxML_bestTree.M2.nw":           "M2",
		"RAxML_result.M3":                "M3",
		"dir.x/M4.singles.txt":           "M4",
		"noext":                          "noext",
		"/tmp/RAxML_bestTree.M5":         "M5",
		"PF00001.21.hmm":                 "PF00001.21",
		"aligned/PF00001.21.faa":         "PF00001.21",
		"protTrees/PF00002.3.nw.xz":      "PF00002.3",
		"trimmed/TIGR00001.aln.faa":      "TIGR00001",
		"removed/PF00001.21.singles.txt": "PF00001.21",
		"M6.FASTA":                       "M6",
		"M7.afa":                         "M7",
	}
	for file, want := range cases {
		if got := markerName(file); got != want {
			t.Errorf("markerName(%q): expected %q, returned %q", file, want, got)
		}
	}
}

func TestRunInfo(t *testing.T) {
	dir := t.TempDir()

	info := NewRunInfo(16, 7)
	info.Reference = "ref"
	if _, err := info.WriteTo(dir); err != nil {
		t.Fatal(err)
	}

	info2, err := RunInfoFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if info2.RunID != info.RunID || info2.ModelCount != 16 || info2.ScoreField != 7 || info2.Reference != "ref" {
		t.Errorf("unexpected run info: %s", info2)
	}
	if !info.CompatibleWith(*info2) {
		t.Errorf("run info should be compatible with itself")
	}

	other := NewRunInfo(17, 7)
	if info.CompatibleWith(*other) {
		t.Errorf("runs with different model counts should not be compatible")
	}
	other = NewRunInfo(16, 5)
	if info.CompatibleWith(*other) {
		t.Errorf("runs with different score fields should not be compatible")
	}

	recordStage(dir, "dedup", time.Now(), map[string]string{"in-dir": "aligned"},
		map[string]int{"kept": 10, "removed": 2}, []string{"M9"})
	info3, err := RunInfoFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := info3.Stages["dedup"]
	if !ok {
		t.Fatalf("stage dedup not recorded")
	}
	if s.Counts["kept"] != 10 || s.Counts["removed"] != 2 || len(s.Failed) != 1 || s.Failed[0] != "M9" {
		t.Errorf("unexpected stage info: %+v", s)
	}
	if info3.RunID != info.RunID {
		t.Errorf("run ID changed after recording a stage")
	}
}

func TestRunInfoMissing(t *testing.T) {
	if _, err := RunInfoFromDir(t.TempDir()); err == nil {
		t.Errorf("expected error for a directory without run info")
	}
}

func TestRunUnits(t *testing.T) {
	dir := t.TempDir()
	opt := &Options{NumCPUs: 4}

	files := []string{"a/M1.faa", "a/M2.faa", "a/M3.faa", "a/M4.faa", "a/M5.faa"}
	results := runUnits(opt, "test", files, func(file string) unitResult {
		switch markerName(file) {
		case "M2":
			return unitResult{Err: errors.New("bad input")}
		case "M4":
			panic("boom")
		}
		return unitResult{Kept: 3, Removed: 1}
	})

	if len(results) != len(files) {
		t.Fatalf("expected %d results, returned %d", len(files), len(results))
	}
	for i, r := range results {
		if r.File != files[i] {
			t.Errorf("result %d: expected file %s, returned %s", i, files[i], r.File)
		}
		if r.Name != markerName(files[i]) {
			t.Errorf("result %d: expected name %s, returned %s", i, markerName(files[i]), r.Name)
		}
	}

	failed, kept, removed := summarizeUnits(opt, "test", dir, results)
	sort.Strings(failed)
	if len(failed) != 2 || failed[0] != "M2" || failed[1] != "M4" {
		t.Errorf("unexpected failed units: %v", failed)
	}
	if kept != 9 || removed != 3 {
		t.Errorf("expected 9 kept and 3 removed, returned %d and %d", kept, removed)
	}

	lines, err := readLines(filepath.Join(dir, failedUnitsFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Errorf("expected 2 lines in %s, returned %d", failedUnitsFile, len(lines))
	}

	results = runUnits(opt, "test", files[:1], func(file string) unitResult {
		return unitResult{Kept: 1}
	})
	summarizeUnits(opt, "test", dir, results)
	if ok, _ := pathutil.Exists(filepath.Join(dir, failedUnitsFile)); ok {
		t.Errorf("%s should be removed when no unit fails", failedUnitsFile)
	}
}

func TestWriteLinesGzipped(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "ids.txt.gz")
	if err := writeLines(file, 5, []string{"g1", "g2", "g3"}); err != nil {
		t.Fatal(err)
	}
	lines, err := readLines(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 || lines[0] != "g1" || lines[2] != "g3" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestReadLinesCRLF(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(file, []byte("g1\r\n\r\ng2\n\ng3"), 0644); err != nil {
		t.Fatal(err)
	}
	lines, err := readLines(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 || lines[0] != "g1" || lines[1] != "g2" || lines[2] != "g3" {
		t.Errorf("unexpected lines: %q", lines)
	}
	if _, err = readLines(file + ".missing"); err == nil {
		t.Errorf("expected error for a missing file")
	}
}

func TestReadRemovedGenomes(t *testing.T) {
	dir := t.TempDir()
	if n := len(readRemovedGenomes(dir)); n != 0 {
		t.Errorf("expected no removed genomes, returned %d", n)
	}

	err := writeLines(filepath.Join(dir, fileGenomesRemoved), 5, []string{"g3\t2", "g7\t0", "g9"})
	if err != nil {
		t.Fatal(err)
	}
	removed := readRemovedGenomes(dir)
	if len(removed) != 3 || removed["g3"] != 2 || removed["g7"] != 0 || removed["g9"] != 0 {
		t.Errorf("unexpected removed genomes: %v", removed)
	}
	keys := sortedKeysInt(removed)
	if keys[0] != "g3" || keys[2] != "g9" {
		t.Errorf("unexpected order: %v", keys)
	}
}

func TestStageOrder(t *testing.T) {
	names := []string{"concat", "unknown", "curate", "singles", "select"}
	sort.Slice(names, func(i, j int) bool { return stageOrder(names[i]) < stageOrder(names[j]) })
	want := []string{"curate", "select", "singles", "concat", "unknown"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, returned %v", want, names)
		}
	}
}
