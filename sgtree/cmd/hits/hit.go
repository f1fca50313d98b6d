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

// Package hits parses profile-search hit tables and curates them into
// per-genome, per-marker hit sets.
package hits

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IDSeparator separates the genome ID from the local sequence ID.
const IDSeparator = '|'

// ErrMissingColumns means a data row has fewer columns than required.
var ErrMissingColumns = errors.New("hits: missing columns")

// Hit is one detected occurrence of a marker in a genome.
// Hits are never modified after parsing.
type Hit struct {
	Genome   string
	Sequence string // genome-qualified ID: genomeID|localID
	Marker   string
	Length   int
	Score    float64
}

// GenomeOf returns the genome part of a genome-qualified sequence ID.
func GenomeOf(id string) string {
	if i := strings.IndexByte(id, IDSeparator); i >= 0 {
		return id[:i]
	}
	return id
}

// Fields is the column layout (0-based) of a raw hit table.
type Fields struct {
	ID     int
	Length int
	Marker int
	Score  int
}

// DefaultFields matches HMMER --domtblout output, the score being the
// full-sequence bit score.
var DefaultFields = Fields{ID: 0, Length: 2, Marker: 3, Score: 7}

// Max returns the largest column index used.
func (f Fields) Max() int {
	m := f.ID
	for _, v := range []int{f.Length, f.Marker, f.Score} {
		if v > m {
			m = v
		}
	}
	return m
}

// Validate checks that all columns are non-negative.
func (f Fields) Validate() error {
	if f.ID < 0 || f.Length < 0 || f.Marker < 0 || f.Score < 0 {
		return fmt.Errorf("hits: negative column index in %+v", f)
	}
	return nil
}

// ParseLine parses one whitespace-delimited line. Blank and comment lines
// return ok == false and no error.
func ParseLine(line string, f Fields) (*Hit, bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || line[0] == '#' {
		return nil, false, nil
	}
	items := strings.Fields(line)
	if len(items) == 0 {
		return nil, false, nil
	}
	if len(items) <= f.Max() {
		return nil, false, errors.Wrapf(ErrMissingColumns, "%d columns found, %d needed", len(items), f.Max()+1)
	}

	length, err := strconv.Atoi(items[f.Length])
	if err != nil {
		return nil, false, fmt.Errorf("hits: invalid length at column %d: %s", f.Length, items[f.Length])
	}
	score, err := strconv.ParseFloat(items[f.Score], 64)
	if err != nil {
		return nil, false, fmt.Errorf("hits: invalid score at column %d: %s", f.Score, items[f.Score])
	}

	id := items[f.ID]
	return &Hit{
		Genome:   GenomeOf(id),
		Sequence: id,
		Marker:   items[f.Marker],
		Length:   length,
		Score:    score,
	}, true, nil
}
