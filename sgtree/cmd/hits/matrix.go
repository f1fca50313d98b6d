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

package hits

import (
	"encoding/csv"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	"github.com/twotwotwo/sorts"
)

// CountMatrix is the genome x marker hit-count matrix, 0-filled.
type CountMatrix struct {
	Genomes []string // sorted
	Markers []string // sorted
	counts  map[string]map[string]int
}

// Matrix builds the count matrix, leaving out the given genomes.
func (c *Curator) Matrix(exclude map[string]struct{}) *CountMatrix {
	m := &CountMatrix{counts: make(map[string]map[string]int, len(c.counts))}
	markers := make(map[string]struct{}, 64)
	for g, mc := range c.counts {
		if _, ok := exclude[g]; ok {
			continue
		}
		m.Genomes = append(m.Genomes, g)
		m.counts[g] = mc
		for marker := range mc {
			markers[marker] = struct{}{}
		}
	}
	for marker := range markers {
		m.Markers = append(m.Markers, marker)
	}
	sorts.Quicksort(sort.StringSlice(m.Genomes))
	sorts.Quicksort(sort.StringSlice(m.Markers))
	return m
}

// Count returns the number of hits of a marker in a genome.
func (m *CountMatrix) Count(genome, marker string) int {
	return m.counts[genome][marker]
}

// MarkersHit returns the number of markers with at least one hit.
func (m *CountMatrix) MarkersHit(genome string) int {
	var n int
	for _, c := range m.counts[genome] {
		if c > 0 {
			n++
		}
	}
	return n
}

// Hits returns the total number of hits of a genome.
func (m *CountMatrix) Hits(genome string) int {
	var n int
	for _, c := range m.counts[genome] {
		n += c
	}
	return n
}

// WriteCountMatrix writes the matrix as CSV, one row per marker and one
// column per genome.
func WriteCountMatrix(file string, m *CountMatrix) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()

	w := csv.NewWriter(outfh)
	record := make([]string, len(m.Genomes)+1)
	copy(record[1:], m.Genomes)
	if err = w.Write(record); err != nil {
		return errors.Wrap(err, file)
	}
	for _, marker := range m.Markers {
		record[0] = marker
		for i, g := range m.Genomes {
			record[i+1] = strconv.Itoa(m.Count(g, marker))
		}
		if err = w.Write(record); err != nil {
			return errors.Wrap(err, file)
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), file)
}

// ReadCountMatrix reads a matrix written by WriteCountMatrix.
func ReadCountMatrix(file string) (*CountMatrix, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()

	records, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	if len(records) == 0 {
		return nil, errors.Wrap(ErrEmptyTable, file)
	}

	m := &CountMatrix{
		Genomes: append([]string{}, records[0][1:]...),
		counts:  make(map[string]map[string]int, len(records[0])),
	}
	for _, g := range m.Genomes {
		m.counts[g] = make(map[string]int, len(records))
	}
	for i, record := range records[1:] {
		marker := record[0]
		m.Markers = append(m.Markers, marker)
		for j, g := range m.Genomes {
			n, err := strconv.Atoi(record[j+1])
			if err != nil {
				return nil, errors.Wrapf(err, "%s: line %d", file, i+2)
			}
			if n > 0 {
				m.counts[g][marker] = n
			}
		}
	}
	return m, nil
}
