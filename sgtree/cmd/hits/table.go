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
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
	"github.com/shenwei356/xopen"
)

// ErrEmptyTable means the hit table contains no data rows.
var ErrEmptyTable = errors.New("hits: empty hit table")

// ReadRawTable reads a raw hit table with a parallel buffered reader.
// Row order is preserved.
func ReadRawTable(file string, f Fields, threads int, chunkSize int) ([]*Hit, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if threads < 1 {
		threads = 1
	}
	if chunkSize < 1 {
		chunkSize = 1000
	}

	fn := func(line string) (interface{}, bool, error) {
		hit, ok, err := ParseLine(line, f)
		if err != nil || !ok {
			return nil, false, err
		}
		return hit, true, nil
	}

	reader, err := breader.NewBufferedReader(file, threads, chunkSize, fn)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}

	hits := make([]*Hit, 0, 1024)
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, file)
		}
		for _, data := range chunk.Data {
			hits = append(hits, data.(*Hit))
		}
	}
	if len(hits) == 0 {
		return nil, errors.Wrap(ErrEmptyTable, file)
	}
	return hits, nil
}

// TableHeader is the header line of curated tables.
const TableHeader = "#genome\tsequence\tmarker\tlength\tscore"

// WriteTable writes hits as a tab-delimited table.
func WriteTable(file string, hits []*Hit) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()

	fmt.Fprintln(outfh, TableHeader)
	for _, h := range hits {
		fmt.Fprintf(outfh, "%s\t%s\t%s\t%d\t%s\n", h.Genome, h.Sequence, h.Marker, h.Length,
			strconv.FormatFloat(h.Score, 'f', -1, 64))
	}
	return nil
}

// ReadTable reads a table written by WriteTable.
func ReadTable(file string) ([]*Hit, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()

	hits := make([]*Hit, 0, 1024)
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64<<10), 16<<20)
	var items []string
	var lineNum int
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || line[0] == '#' {
			continue
		}
		items = strings.Split(line, "\t")
		if len(items) < 5 {
			return nil, errors.Wrapf(ErrMissingColumns, "%s: line %d", file, lineNum)
		}
		length, err := strconv.Atoi(items[3])
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: invalid length: %s", file, lineNum, items[3])
		}
		score, err := strconv.ParseFloat(items[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: invalid score: %s", file, lineNum, items[4])
		}
		hits = append(hits, &Hit{
			Genome:   items[0],
			Sequence: items[1],
			Marker:   items[2],
			Length:   length,
			Score:    score,
		})
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, file)
	}
	return hits, nil
}

// Genomes returns genome IDs in order of first appearance.
func Genomes(hits []*Hit) []string {
	seen := make(map[string]struct{}, 64)
	list := make([]string, 0, 64)
	for _, h := range hits {
		if _, ok := seen[h.Genome]; ok {
			continue
		}
		seen[h.Genome] = struct{}{}
		list = append(list, h.Genome)
	}
	return list
}

// Markers returns marker names in order of first appearance.
func Markers(hits []*Hit) []string {
	seen := make(map[string]struct{}, 64)
	list := make([]string, 0, 64)
	for _, h := range hits {
		if _, ok := seen[h.Marker]; ok {
			continue
		}
		seen[h.Marker] = struct{}{}
		list = append(list, h.Marker)
	}
	return list
}
