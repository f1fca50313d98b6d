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

// Package supermatrix concatenates per-marker alignments into one row per
// genome, padding absent markers.
package supermatrix

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/exascience/pargo/parallel"
	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
	"github.com/twotwotwo/sorts"
	"github.com/zeebo/xxh3"
)

// ErrRowWidth means a row length differs from the sum of marker widths.
var ErrRowWidth = errors.New("supermatrix: row width mismatch")

// ErrEmptyBlock means a marker alignment has no records.
var ErrEmptyBlock = errors.New("supermatrix: empty alignment")

// DefaultPadding fills the block of a genome absent from a marker.
const DefaultPadding = 'X'

// Cell is a genome x marker block, either present with residues or absent.
type Cell struct {
	Residues []byte
	Present  bool
}

// Present returns a present cell.
func Present(residues []byte) Cell { return Cell{Residues: residues, Present: true} }

// Absent returns an absent cell.
func Absent() Cell { return Cell{} }

// Block is the alignment of one marker keyed by genome.
type Block struct {
	Marker string
	rows   map[string][]byte
}

// Partition locates a marker in the supermatrix, positions being 1-based
// and inclusive.
type Partition struct {
	Marker  string
	Start   int
	End     int
	Width   int
	Present int // genomes with residues
}

// Supermatrix is the assembled alignment.
type Supermatrix struct {
	Genomes    []string // sorted
	Rows       [][]byte // same order as Genomes
	Partitions []Partition
}

// Assembler collects marker blocks.
type Assembler struct {
	Padding byte
	blocks  []*Block
}

// NewAssembler returns an Assembler padding with DefaultPadding.
func NewAssembler() *Assembler {
	return &Assembler{Padding: DefaultPadding}
}

// Add adds the alignment of a marker. Records are joined by genome; a
// genome seen twice keeps its first record and is returned as duplicated.
func (a *Assembler) Add(marker string, records []*seqs.Record) (duplicated []string, err error) {
	if len(records) == 0 {
		return nil, errors.Wrap(ErrEmptyBlock, marker)
	}
	b := &Block{Marker: marker, rows: make(map[string][]byte, len(records))}
	for _, r := range records {
		g := r.Genome()
		if _, ok := b.rows[g]; ok {
			duplicated = append(duplicated, r.ID)
			continue
		}
		b.rows[g] = bytes.TrimSpace(r.Seq)
	}
	a.blocks = append(a.blocks, b)
	return duplicated, nil
}

// Markers returns the markers added, in order.
func (a *Assembler) Markers() []string {
	list := make([]string, len(a.blocks))
	for i, b := range a.blocks {
		list[i] = b.Marker
	}
	return list
}

// Fill pads absent cells of one marker column in place. The first pass runs
// down the column with the width of the previous present cell. Leading
// absent cells, preceding any present one, are then padded with the width
// of the last present cell.
func Fill(cells []Cell, padding byte) {
	prev := -1
	for i := range cells {
		if cells[i].Present {
			prev = len(cells[i].Residues)
			continue
		}
		if prev >= 0 {
			cells[i].Residues = bytes.Repeat([]byte{padding}, prev)
		}
	}

	last := -1
	for i := len(cells) - 1; i >= 0; i-- {
		if cells[i].Present {
			last = len(cells[i].Residues)
			break
		}
	}
	if last < 0 {
		return
	}
	for i := range cells {
		if cells[i].Present || cells[i].Residues != nil {
			break
		}
		cells[i].Residues = bytes.Repeat([]byte{padding}, last)
	}
}

// Assemble builds the supermatrix. Genomes are sorted, markers keep the
// order they were added. Rows are built with the given number of workers.
func (a *Assembler) Assemble(threads int) (*Supermatrix, error) {
	if len(a.blocks) == 0 {
		return nil, ErrEmptyBlock
	}
	if threads < 1 {
		threads = 1
	}

	set := make(map[string]struct{}, 1024)
	for _, b := range a.blocks {
		for g := range b.rows {
			set[g] = struct{}{}
		}
	}
	genomes := make([]string, 0, len(set))
	for g := range set {
		genomes = append(genomes, g)
	}
	sorts.Quicksort(sort.StringSlice(genomes))

	// columns[j][i]: marker j, genome i
	columns := make([][]Cell, len(a.blocks))
	m := &Supermatrix{Genomes: genomes, Partitions: make([]Partition, len(a.blocks))}
	var start int
	for j, b := range a.blocks {
		cells := make([]Cell, len(genomes))
		var present, width int
		for i, g := range genomes {
			if s, ok := b.rows[g]; ok {
				cells[i] = Present(s)
				if present == 0 {
					width = len(s)
				}
				present++
			} else {
				cells[i] = Absent()
			}
		}
		Fill(cells, a.Padding)
		columns[j] = cells

		m.Partitions[j] = Partition{
			Marker:  b.Marker,
			Start:   start + 1,
			End:     start + width,
			Width:   width,
			Present: present,
		}
		start += width
	}
	total := start

	m.Rows = make([][]byte, len(genomes))
	parallel.Range(0, len(genomes), threads, func(low, high int) {
		for i := low; i < high; i++ {
			row := make([]byte, 0, total)
			for j := range columns {
				row = append(row, columns[j][i].Residues...)
			}
			m.Rows[i] = row
		}
	})

	for i, row := range m.Rows {
		if len(row) != total {
			return nil, errors.Wrapf(ErrRowWidth, "%s: %d != %d", genomes[i], len(row), total)
		}
	}
	return m, nil
}

// Width returns the number of columns.
func (m *Supermatrix) Width() int {
	if len(m.Partitions) == 0 {
		return 0
	}
	return m.Partitions[len(m.Partitions)-1].End
}

// Row returns the row of a genome.
func (m *Supermatrix) Row(genome string) ([]byte, bool) {
	i := sort.SearchStrings(m.Genomes, genome)
	if i < len(m.Genomes) && m.Genomes[i] == genome {
		return m.Rows[i], true
	}
	return nil, false
}

// Fingerprint is the xxh3 hash of the FASTA serialization.
func (m *Supermatrix) Fingerprint() string {
	h := xxh3.New()
	for i, g := range m.Genomes {
		h.WriteString(">" + g + "\n")
		h.Write(m.Rows[i])
		h.WriteString("\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
