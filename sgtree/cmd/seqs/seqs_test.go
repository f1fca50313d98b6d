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

package seqs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestReadWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "M1.faa")
	data := ">g1|a desc\nMK-LV\nAA\n>g2|b\n--MKL*X\n"
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "g1|a" || string(records[0].Seq) != "MK-LVAA" || records[0].Genome() != "g1" {
		t.Errorf("wrong record: %s %s", records[0].ID, records[0].Seq)
	}
	if string(records[1].Seq) != "--MKL*X" {
		t.Errorf("wrong sequence: %s", records[1].Seq)
	}

	var buf bytes.Buffer
	if err = Write(&buf, records, 4); err != nil {
		t.Fatal(err)
	}
	if buf.String() != ">g1|a\nMK-L\nVAA\n>g2|b\n--MK\nL*X\n" {
		t.Errorf("wrong output: %q", buf.String())
	}

	out := filepath.Join(dir, "out.faa.gz")
	if err = WriteFile(out, records, 0); err != nil {
		t.Fatal(err)
	}
	again, err := ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 || string(again[0].Seq) != "MK-LVAA" {
		t.Errorf("gzip round trip failed")
	}

	kept := Filter(records, map[string]struct{}{"g2|b": {}})
	if len(kept) != 1 || Index(kept)["g2|b"] == nil {
		t.Errorf("wrong filter result")
	}
}

func TestReadEmptyFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty.faa")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	records, err := ReadFile(file)
	if err != nil || len(records) != 0 {
		t.Errorf("expected no records: %v", err)
	}
}

// without wrapping, each sequence stays on one line whatever its length
func TestWriteNoWrap(t *testing.T) {
	records := []*Record{
		{ID: "g1|a", Seq: []byte("MKV")},
		{ID: "g2|b", Seq: []byte("MKVLAAGT")},
		{ID: "g3|c", Seq: []byte("M")},
	}
	var buf bytes.Buffer
	if err := Write(&buf, records, 0); err != nil {
		t.Fatal(err)
	}
	if buf.String() != ">g1|a\nMKV\n>g2|b\nMKVLAAGT\n>g3|c\nM\n" {
		t.Errorf("wrong output: %q", buf.String())
	}
	if records[1].Genome() != "g2" {
		t.Errorf("wrong genome: %s", records[1].Genome())
	}
}
