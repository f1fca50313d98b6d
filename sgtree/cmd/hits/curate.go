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
	"sort"

	"github.com/pkg/errors"
	"github.com/shenwei356/util/stats"
	"github.com/twotwotwo/sorts"
	"github.com/zeebo/wyhash"
)

// ErrNoMarkers means no hit survived curation.
var ErrNoMarkers = errors.New("hits: no markers survived curation")

// CurateOptions contains the thresholds of the curation stage.
type CurateOptions struct {
	// hits shorter than LengthFilterFraction * median length of the marker
	// are removed. 0 disables the filter.
	LengthFilterFraction float64

	// number of marker models searched, 0 for the number of distinct markers.
	MarkerModelCount int

	// a genome hitting fewer than MarkerModelCount * MinModelPercent / 100
	// markers is incomplete.
	MinModelPercent float64
}

// CurateResult is the output of Curate.
type CurateResult struct {
	Cleaned       []*Hit         // hits of complete genomes, in input order
	LengthRemoved []*Hit         // hits removed by the length filter
	Incomplete    []string       // removed genomes, sorted
	MarkersHit    map[string]int // distinct markers hit by each removed genome
	Counts        *CountMatrix
	Threshold     float64 // minimum number of markers a genome must hit
	ModelCount    int
}

// Curator accumulates the seen set and the marker counts of one curation
// pass. A Curator must not be reused across runs.
type Curator struct {
	seen   map[uint64]struct{}
	counts map[string]map[string]int
}

// NewCurator returns an empty Curator.
func NewCurator() *Curator {
	return &Curator{
		seen:   make(map[uint64]struct{}, 4096),
		counts: make(map[string]map[string]int, 256),
	}
}

func pairKey(seq, marker string) uint64 {
	return wyhash.HashString(seq+"\t"+marker, 1)
}

// Add counts a hit once per (sequence, marker) pair. It returns false if
// the pair was seen before.
func (c *Curator) Add(h *Hit) bool {
	key := pairKey(h.Sequence, h.Marker)
	if _, ok := c.seen[key]; ok {
		return false
	}
	c.seen[key] = struct{}{}

	m, ok := c.counts[h.Genome]
	if !ok {
		m = make(map[string]int, 64)
		c.counts[h.Genome] = m
	}
	m[h.Marker]++
	return true
}

// MarkersHit returns the number of distinct markers hit by a genome.
func (c *Curator) MarkersHit(genome string) int {
	return len(c.counts[genome])
}

// LengthFilter removes hits shorter than fraction * the median length of
// hits of the same marker.
func LengthFilter(hits []*Hit, fraction float64) (kept []*Hit, removed []*Hit) {
	if fraction <= 0 {
		return hits, nil
	}

	quantilers := make(map[string]*stats.Quantiler, 64)
	for _, h := range hits {
		q, ok := quantilers[h.Marker]
		if !ok {
			q = stats.NewQuantiler()
			quantilers[h.Marker] = q
		}
		q.Add(float64(h.Length))
	}
	thresholds := make(map[string]float64, len(quantilers))
	for marker, q := range quantilers {
		thresholds[marker] = q.Median() * fraction
	}

	kept = make([]*Hit, 0, len(hits))
	for _, h := range hits {
		if float64(h.Length) < thresholds[h.Marker] {
			removed = append(removed, h)
			continue
		}
		kept = append(kept, h)
	}
	return kept, removed
}

// Curate applies the length filter, counts distinct markers per genome and
// drops incomplete genomes.
func Curate(hits []*Hit, opt CurateOptions) (*CurateResult, error) {
	if len(hits) == 0 {
		return nil, ErrEmptyTable
	}

	modelCount := opt.MarkerModelCount
	if modelCount <= 0 {
		modelCount = len(Markers(hits))
	}

	kept, lengthRemoved := LengthFilter(hits, opt.LengthFilterFraction)
	if len(kept) == 0 {
		return nil, errors.Wrap(ErrNoMarkers, "all hits removed by the length filter")
	}

	curator := NewCurator()
	for _, h := range kept {
		curator.Add(h)
	}

	threshold := float64(modelCount) * opt.MinModelPercent / 100
	incomplete := make(map[string]struct{}, 16)
	for _, g := range Genomes(kept) {
		if float64(curator.MarkersHit(g)) < threshold {
			incomplete[g] = struct{}{}
		}
	}

	cleaned := make([]*Hit, 0, len(kept))
	for _, h := range kept {
		if _, ok := incomplete[h.Genome]; ok {
			continue
		}
		cleaned = append(cleaned, h)
	}
	if len(cleaned) == 0 {
		return nil, errors.Wrapf(ErrNoMarkers, "all %d genomes are incomplete", len(incomplete))
	}

	removedGenomes := make([]string, 0, len(incomplete))
	for g := range incomplete {
		removedGenomes = append(removedGenomes, g)
	}
	sorts.Quicksort(sort.StringSlice(removedGenomes))
	markersHit := make(map[string]int, len(removedGenomes))
	for _, g := range removedGenomes {
		markersHit[g] = curator.MarkersHit(g)
	}

	return &CurateResult{
		Cleaned:       cleaned,
		LengthRemoved: lengthRemoved,
		Incomplete:    removedGenomes,
		MarkersHit:    markersHit,
		Counts:        curator.Matrix(incomplete),
		Threshold:     threshold,
		ModelCount:    modelCount,
	}, nil
}
