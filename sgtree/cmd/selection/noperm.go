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

package selection

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/hits"
	"github.com/sgtree/sgtree/sgtree/cmd/phylo"
)

// Status of a candidate paralog.
const (
	Kept    = "Kept"
	Removed = "Removed"
)

// Decision is one line of the paralog audit log.
type Decision struct {
	Leaf        string
	Marker      string
	Distance    float64
	HasDistance bool // false if the genome is absent from the reference tree
	Score       float64
	Status      string
}

// String formats the decision as "proteinID markerID RFdistance status".
func (d Decision) String() string {
	dist := "NA"
	if d.HasDistance {
		dist = strconv.FormatFloat(d.Distance, 'f', 6, 64)
	}
	return fmt.Sprintf("%s %s %s %s", d.Leaf, d.Marker, dist, d.Status)
}

// ResolveOptions controls Resolve.
type ResolveOptions struct {
	// genomes whose paralogs are never resolved here, e.g. reference genomes.
	Exempt map[string]struct{}
}

// Resolution is the output of Resolve.
type Resolution struct {
	Tree      *phylo.Tree // gene tree without removed leaves
	Decisions []Decision
	Removed   []string
	Ambiguous int // number of genomes resolved
}

type candidate struct {
	leaf  string
	score float64
}

// Resolve keeps one leaf per genome in a gene tree. For each genome with
// several leaves, every candidate is substituted into a leaf set holding the
// best-scoring leaf of every other genome, and the candidate whose gene
// tree is closest to the reference tree, in normalized Robinson-Foulds
// distance, is kept. Ties on distance are broken by score, then tree order.
//
// Neither tree is modified.
func Resolve(marker string, gene, reference *phylo.Tree, scores Scorer, opt ResolveOptions) (*Resolution, error) {
	groups := make(map[string][]candidate, 64)
	order := make([]string, 0, 64)
	for _, name := range phylo.LeafNames(gene) {
		g := hits.GenomeOf(name)
		s, ok := scores.Score(marker, name)
		if !ok {
			return nil, errors.Wrapf(ErrMissingScore, "%s in %s", name, marker)
		}
		if _, ok = groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], candidate{leaf: name, score: s})
	}

	inReference := make(map[string]struct{}, 64)
	for _, name := range phylo.LeafNames(reference) {
		inReference[name] = struct{}{}
	}

	// the first leaf with the highest score
	best := make(map[string]candidate, len(groups))
	for g, cs := range groups {
		b := cs[0]
		for _, c := range cs[1:] {
			if c.score > b.score {
				b = c
			}
		}
		best[g] = b
	}

	result := &Resolution{}
	removed := make(map[string]struct{}, 16)
	for _, g := range order {
		cs := groups[g]
		if len(cs) < 2 {
			continue
		}
		if _, ok := opt.Exempt[g]; ok {
			continue
		}
		result.Ambiguous++

		if _, ok := inReference[g]; !ok {
			b := best[g]
			for _, c := range cs {
				d := Decision{Leaf: c.leaf, Marker: marker, Score: c.score, Status: Kept}
				if c.leaf != b.leaf {
					d.Status = Removed
					removed[c.leaf] = struct{}{}
					result.Removed = append(result.Removed, c.leaf)
				}
				result.Decisions = append(result.Decisions, d)
			}
			continue
		}

		others := make([]string, 0, len(order))
		genomes := make([]string, 0, len(order))
		for _, h := range order {
			if h == g {
				continue
			}
			if _, ok := inReference[h]; !ok {
				continue
			}
			others = append(others, best[h].leaf)
			genomes = append(genomes, h)
		}

		dists := make([]float64, len(cs))
		chosen := -1
		for i, c := range cs {
			d, err := candidateDistance(c.leaf, g, others, genomes, gene, reference)
			if err != nil {
				return nil, errors.Wrapf(err, "%s in %s", c.leaf, marker)
			}
			dists[i] = d
			if chosen < 0 || d < dists[chosen] || (d == dists[chosen] && c.score > cs[chosen].score) {
				chosen = i
			}
		}

		for i, c := range cs {
			d := Decision{Leaf: c.leaf, Marker: marker, Distance: dists[i], HasDistance: true, Score: c.score, Status: Kept}
			if i != chosen {
				d.Status = Removed
				removed[c.leaf] = struct{}{}
				result.Removed = append(result.Removed, c.leaf)
			}
			result.Decisions = append(result.Decisions, d)
		}
	}

	result.Tree = gene.Clone()
	if len(removed) > 0 {
		names := phylo.LeafNames(gene)
		keep := make([]string, 0, len(names))
		for _, name := range names {
			if _, ok := removed[name]; !ok {
				keep = append(keep, name)
			}
		}
		if err := phylo.Prune(result.Tree, keep); err != nil {
			return nil, errors.Wrap(err, marker)
		}
	}
	return result, nil
}

// candidateDistance prunes copies of both trees to the candidate leaf set
// and returns their normalized RF distance.
func candidateDistance(leaf, genome string, others, otherGenomes []string, gene, reference *phylo.Tree) (float64, error) {
	leaves := make([]string, 0, len(others)+1)
	leaves = append(leaves, leaf)
	leaves = append(leaves, others...)

	genomes := make([]string, 0, len(otherGenomes)+1)
	genomes = append(genomes, genome)
	genomes = append(genomes, otherGenomes...)

	ref := reference.Clone()
	if err := phylo.Prune(ref, genomes); err != nil {
		return 0, err
	}
	gt := gene.Clone()
	if err := phylo.Prune(gt, leaves); err != nil {
		return 0, err
	}
	if err := phylo.RenameLeaves(gt, hits.GenomeOf); err != nil {
		return 0, err
	}

	return phylo.NormalizedRF(ref, gt)
}
