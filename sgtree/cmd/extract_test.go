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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sgtree/sgtree/sgtree/cmd/hits"
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
)

func TestExtractMarkers(t *testing.T) {
	outDir := t.TempDir()
	list := []*hits.Hit{
		{Genome: "g1", Sequence: "g1|a", Marker: "M2", Score: 10},
		{Genome: "g2", Sequence: "g2|a", Marker: "M1", Score: 10},
		{Genome: "g1", Sequence: "g1|b", Marker: "M1", Score: 10},
		{Genome: "g3", Sequence: "g3|x", Marker: "M1", Score: 10},
		{Genome: "g3", Sequence: "g3|y", Marker: "M3", Score: 10},
	}
	found := [][]*seqs.Record{
		{{ID: "g1|a", Seq: []byte("MKV")}, {ID: "g1|b", Seq: []byte("MLL")}},
		{{ID: "g2|a", Seq: []byte("MAA")}, {ID: "g1|a", Seq: []byte("XXX")}},
	}

	nSeqs, nMarkers, missing, err := extractMarkers(list, found, outDir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if nSeqs != 3 || nMarkers != 2 {
		t.Errorf("expected 3 sequences of 2 markers, returned %d, %d", nSeqs, nMarkers)
	}
	if strings.Join(missing, ",") != "g3|x,g3|y" {
		t.Errorf("wrong missing sequences: %q", missing)
	}

	// table order within a marker
	if ids := readIDs(t, filepath.Join(outDir, "M1.faa")); ids != "g2|a,g1|b" {
		t.Errorf("wrong sequences of M1: %s", ids)
	}

	// first proteome wins
	records, err := seqs.ReadFile(filepath.Join(outDir, "M2.faa"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || string(records[0].Seq) != "MKV" {
		t.Errorf("wrong record of M2: %v", records)
	}

	if _, err := os.Stat(filepath.Join(outDir, "M3.faa")); !os.IsNotExist(err) {
		t.Errorf("marker without sequences should not be written")
	}
}
