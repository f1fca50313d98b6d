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

// Package selection keeps a single sequence per genome in each marker,
// first by bit score, then by tree topology.
package selection

import (
	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
)

// ErrMissingScore means a contending sequence has no score.
var ErrMissingScore = errors.New("selection: score not found")

// Scorer looks up the bit score of a sequence for a marker.
type Scorer interface {
	Score(marker, seqID string) (float64, bool)
}

// Removal is a sequence removed by score.
type Removal struct {
	ID       string
	Score    float64
	Best     float64
	Contests int // sequences of the genome in the marker
}

// Tie lists the sequences of a genome sharing the highest score.
type Tie struct {
	Genome string
	IDs    []string
}

// DedupResult is the output of Deduplicate.
type DedupResult struct {
	Kept    []*seqs.Record // input order
	Removed []Removal
	Ties    []Tie // genomes with more than one best sequence
}

// Deduplicate keeps, for each genome with several sequences, those with the
// highest score. Sequences tying for the highest score are all kept.
func Deduplicate(marker string, records []*seqs.Record, scores Scorer) (*DedupResult, error) {
	groups := make(map[string][]int, len(records))
	order := make([]string, 0, len(records))
	for i, r := range records {
		g := r.Genome()
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], i)
	}

	result := &DedupResult{}
	drop := make(map[int]struct{}, 8)
	values := make([]float64, 0, 8)
	for _, g := range order {
		idx := groups[g]
		if len(idx) < 2 {
			continue
		}

		values = values[:0]
		best := 0.0
		for j, i := range idx {
			s, ok := scores.Score(marker, records[i].ID)
			if !ok {
				return nil, errors.Wrapf(ErrMissingScore, "%s in %s", records[i].ID, marker)
			}
			values = append(values, s)
			if j == 0 || s > best {
				best = s
			}
		}

		var tied []string
		for j, i := range idx {
			if values[j] < best {
				drop[i] = struct{}{}
				result.Removed = append(result.Removed, Removal{
					ID:       records[i].ID,
					Score:    values[j],
					Best:     best,
					Contests: len(idx),
				})
			} else {
				tied = append(tied, records[i].ID)
			}
		}
		if len(tied) > 1 {
			result.Ties = append(result.Ties, Tie{Genome: g, IDs: tied})
		}
	}

	result.Kept = make([]*seqs.Record, 0, len(records)-len(drop))
	for i, r := range records {
		if _, ok := drop[i]; !ok {
			result.Kept = append(result.Kept, r)
		}
	}
	return result, nil
}
