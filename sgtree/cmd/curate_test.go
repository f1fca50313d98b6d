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
)

func TestLoadReference(t *testing.T) {
	refDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(refDir, dirTables), 0777); err != nil {
		t.Fatal(err)
	}
	refHits := []*hits.Hit{
		{Genome: "r1", Sequence: "r1|a", Marker: "M1", Length: 100, Score: 50},
		{Genome: "r2", Sequence: "r2|a", Marker: "M1", Length: 100, Score: 40},
	}
	err := hits.WriteTable(filepath.Join(refDir, dirTables, fileHitsBounded), refHits)
	if err != nil {
		t.Fatal(err)
	}
	refList := filepath.Join(t.TempDir(), "refs.txt")
	if err = os.WriteFile(refList, []byte("#genome\nr3\tnote\n\n"), 0644); err != nil {
		t.Fatal(err)
	}

	query := []*hits.Hit{
		{Genome: "q1", Sequence: "q1|a", Marker: "M1", Length: 100, Score: 30},
	}
	list, genomes, err := loadReference(query, refDir, refList)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 reference hits, returned %d", len(list))
	}
	if got := strings.Join(sortedKeys(genomes), ","); got != "r1,r2,r3" {
		t.Errorf("wrong reference genomes: %s", got)
	}

	list, genomes, err = loadReference(query, "", "")
	if err != nil || len(list) != 0 || len(genomes) != 0 {
		t.Errorf("no reference expected, returned %d hit(s), %d genome(s), %v", len(list), len(genomes), err)
	}

	query = append(query, &hits.Hit{Genome: "r3", Sequence: "r3|a", Marker: "M1", Length: 100, Score: 30})
	_, _, err = loadReference(query, refDir, refList)
	if err == nil || !strings.Contains(err.Error(), "1 query genome(s) also found in reference genomes, e.g., r3") {
		t.Errorf("expected an overlap error, returned %v", err)
	}
}
