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

// DefaultMaxDuplicates is the default maximum number of hits of one marker
// in one genome.
const DefaultMaxDuplicates = 5

// BoundOptions controls BoundDuplicates.
type BoundOptions struct {
	MaxDuplicates int

	// keep only the first row of each sequence ID.
	ProteinUnique bool
}

// DroppedGroup is a (genome, marker) group with too many hits.
type DroppedGroup struct {
	Genome string
	Marker string
	Hits   int
}

// BoundResult is the output of BoundDuplicates.
type BoundResult struct {
	Kept    []*Hit
	Dropped []DroppedGroup // in order of first appearance
}

type groupKey struct {
	genome string
	marker string
}

// BoundDuplicates drops every (genome, marker) group having more than
// MaxDuplicates hits. Repeated (sequence, marker) rows count once.
func BoundDuplicates(hits []*Hit, opt BoundOptions) *BoundResult {
	if opt.MaxDuplicates <= 0 {
		opt.MaxDuplicates = DefaultMaxDuplicates
	}

	uniq := make([]*Hit, 0, len(hits))
	seenPair := make(map[uint64]struct{}, len(hits))
	seenSeq := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		if opt.ProteinUnique {
			if _, ok := seenSeq[h.Sequence]; ok {
				continue
			}
			seenSeq[h.Sequence] = struct{}{}
		}
		key := pairKey(h.Sequence, h.Marker)
		if _, ok := seenPair[key]; ok {
			continue
		}
		seenPair[key] = struct{}{}
		uniq = append(uniq, h)
	}

	sizes := make(map[groupKey]int, len(uniq))
	order := make([]groupKey, 0, len(uniq))
	for _, h := range uniq {
		k := groupKey{h.Genome, h.Marker}
		if _, ok := sizes[k]; !ok {
			order = append(order, k)
		}
		sizes[k]++
	}

	result := &BoundResult{Kept: make([]*Hit, 0, len(uniq))}
	for _, k := range order {
		if n := sizes[k]; n > opt.MaxDuplicates {
			result.Dropped = append(result.Dropped, DroppedGroup{Genome: k.genome, Marker: k.marker, Hits: n})
		}
	}
	for _, h := range uniq {
		if sizes[groupKey{h.Genome, h.Marker}] > opt.MaxDuplicates {
			continue
		}
		result.Kept = append(result.Kept, h)
	}
	return result
}

// Union appends reference hits to the query hits without re-filtering.
// A (sequence, marker) pair already present is not added twice.
func Union(query, reference []*Hit) []*Hit {
	list := make([]*Hit, 0, len(query)+len(reference))
	seen := make(map[uint64]struct{}, len(query)+len(reference))
	for _, hs := range [][]*Hit{query, reference} {
		for _, h := range hs {
			key := pairKey(h.Sequence, h.Marker)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			list = append(list, h)
		}
	}
	return list
}

// Overlap returns genomes of the hits that also appear in the given set,
// in order of first appearance.
func Overlap(hits []*Hit, genomes map[string]struct{}) []string {
	var list []string
	for _, g := range Genomes(hits) {
		if _, ok := genomes[g]; ok {
			list = append(list, g)
		}
	}
	return list
}
