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

package supermatrix

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
)

func rec(id, s string) *seqs.Record {
	return &seqs.Record{ID: id, Seq: []byte(s)}
}

func TestFill(t *testing.T) {
	cells := []Cell{Absent(), Absent(), Present([]byte("AC-")), Absent(), Present([]byte("GGT")), Absent()}
	Fill(cells, 'X')
	for i, c := range cells {
		if len(c.Residues) != 3 {
			t.Errorf("cell %d: wrong width %d", i, len(c.Residues))
		}
	}
	if string(cells[0].Residues) != "XXX" || string(cells[3].Residues) != "XXX" || cells[3].Present {
		t.Errorf("wrong padding")
	}

	none := []Cell{Absent(), Absent()}
	Fill(none, 'X')
	if none[0].Residues != nil {
		t.Errorf("column without present cell should stay empty")
	}
}

// a genome absent from a marker gets a run of X as wide as the marker.
func TestAssembleAbsentGenome(t *testing.T) {
	w := strings.Repeat("A", 120)
	a := NewAssembler()
	if _, err := a.Add("M1", []*seqs.Record{rec("g1|a", "MKV"), rec("g2|a", "MK-"), rec("g3|a", "M-V")}); err != nil {
		t.Fatal(err)
	}
	dups, err := a.Add("M2", []*seqs.Record{rec("g2|b", w), rec("g1|b", w), rec("g1|c", w)})
	if err != nil {
		t.Fatal(err)
	}
	if len(dups) != 1 || dups[0] != "g1|c" {
		t.Errorf("wrong duplicated records: %v", dups)
	}

	m, err := a.Assemble(2)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(m.Genomes, ",") != "g1,g2,g3" || m.Width() != 123 {
		t.Fatalf("wrong matrix: %v %d", m.Genomes, m.Width())
	}
	row, ok := m.Row("g3")
	if !ok {
		t.Fatal("g3 not found")
	}
	block := row[m.Partitions[1].Start-1 : m.Partitions[1].End]
	if string(block) != strings.Repeat("X", 120) {
		t.Errorf("wrong padding for g3: %s", block)
	}
	for i, r := range m.Rows {
		if len(r) != m.Width() {
			t.Errorf("row %s: wrong width %d", m.Genomes[i], len(r))
		}
	}
	if m.Partitions[0] != (Partition{"M1", 1, 3, 3, 3}) || m.Partitions[1] != (Partition{"M2", 4, 123, 120, 2}) {
		t.Errorf("wrong partitions: %+v", m.Partitions)
	}
}

func TestAssembleErrors(t *testing.T) {
	a := NewAssembler()
	if _, err := a.Add("M1", nil); errors.Cause(err) != ErrEmptyBlock {
		t.Errorf("expected ErrEmptyBlock, got %v", err)
	}
	a.Add("M1", []*seqs.Record{rec("g1|a", "MKV"), rec("g2|a", "MK")})
	if _, err := a.Assemble(1); errors.Cause(err) != ErrRowWidth {
		t.Errorf("expected ErrRowWidth, got %v", err)
	}
}

func TestDeterminism(t *testing.T) {
	build := func(order []int) *Supermatrix {
		list := []*seqs.Record{rec("g2|a", "MKV"), rec("g1|a", "MRV"), rec("g3|a", "M-V")}
		shuffled := make([]*seqs.Record, len(list))
		for i, j := range order {
			shuffled[i] = list[j]
		}
		a := NewAssembler()
		a.Add("M1", shuffled)
		a.Add("M2", []*seqs.Record{rec("g3|b", "WW")})
		m, err := a.Assemble(4)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}
	m1, m2 := build([]int{0, 1, 2}), build([]int{2, 0, 1})
	if m1.Fingerprint() != m2.Fingerprint() {
		t.Errorf("fingerprints differ")
	}

	dir := t.TempDir()
	f1, f2 := filepath.Join(dir, "a.faa"), filepath.Join(dir, "b.faa")
	if err := WriteFasta(f1, m1); err != nil {
		t.Fatal(err)
	}
	if err := WriteFasta(f2, m2); err != nil {
		t.Fatal(err)
	}
	d1, _ := os.ReadFile(f1)
	d2, _ := os.ReadFile(f2)
	if !bytes.Equal(d1, d2) {
		t.Errorf("outputs differ")
	}
	if string(d1) != ">g1\nMRVXX\n>g2\nMKVXX\n>g3\nM-VWW\n" {
		t.Errorf("wrong output: %q", d1)
	}

	pf := filepath.Join(dir, "partitions.tsv")
	if err := WritePartitions(pf, m1); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(pf)
	if string(data) != "marker\tstart\tend\twidth\tgenomes\nM1\t1\t3\t3\t3\nM2\t4\t5\t2\t1\n" {
		t.Errorf("wrong partitions: %q", data)
	}

	if err := WriteNexus(filepath.Join(dir, "c.nex"), m1); err != nil {
		t.Fatal(err)
	}
}
