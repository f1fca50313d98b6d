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
	"math"

	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/hits"
	"github.com/sgtree/sgtree/sgtree/cmd/phylo"
)

// CutoffDivisor divides the squared neighbor count into the score cutoff.
const CutoffDivisor = 15

// LeafScore is the neighbor concordance of one leaf.
type LeafScore struct {
	Leaf  string
	Score int
	Kept  bool
}

// SinglesResult is the output of FilterSingles.
type SinglesResult struct {
	Tree         *phylo.Tree // nil if every leaf was dropped
	Scores       []LeafScore // tree order
	Dropped      []string
	RFDistance   float64
	NumNeighbors int
	Cutoff       float64
}

// NumNeighbors returns round(leaves * (1 - rfDist)), halves rounded to even.
func NumNeighbors(leaves int, rfDist float64) int {
	return int(math.RoundToEven(float64(leaves) * (1 - rfDist)))
}

// ConcordanceScore awards n - |rank difference| for every reference
// neighbor found among the tree neighbors.
func ConcordanceScore(treeNeighbors, refNeighbors []string, n int) int {
	rank := make(map[string]int, len(treeNeighbors))
	for i := len(treeNeighbors) - 1; i >= 0; i-- {
		rank[treeNeighbors[i]] = i
	}
	var score int
	for i, name := range refNeighbors {
		j, ok := rank[name]
		if !ok {
			continue
		}
		diff := i - j
		if diff < 0 {
			diff = -diff
		}
		score += n - diff
	}
	return score
}

// FilterSingles drops leaves of a single-copy gene tree whose nearest
// neighbors disagree with those of the same genome in the reference tree.
// Leaves of genomes absent from the reference tree are kept.
//
// Neither tree is modified.
func FilterSingles(gene, reference *phylo.Tree) (*SinglesResult, error) {
	leaves := phylo.LeafNames(gene)
	if len(leaves) == 0 {
		return nil, phylo.ErrNoLeaves
	}

	inReference := make(map[string]struct{}, len(leaves))
	for _, name := range phylo.LeafNames(reference) {
		inReference[name] = struct{}{}
	}
	shared := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		g := hits.GenomeOf(leaf)
		if _, ok := inReference[g]; ok {
			shared = append(shared, g)
		}
	}

	result := &SinglesResult{}
	if len(shared) == 0 {
		result.Tree = gene.Clone()
		for _, leaf := range leaves {
			result.Scores = append(result.Scores, LeafScore{Leaf: leaf, Kept: true})
		}
		return result, nil
	}

	ref := reference.Clone()
	if err := phylo.Prune(ref, shared); err != nil {
		return nil, err
	}
	renamed := gene.Clone()
	if err := phylo.RenameLeaves(renamed, hits.GenomeOf); err != nil {
		return nil, err
	}
	rfDist, err := phylo.NormalizedRF(ref, renamed)
	if err != nil {
		return nil, err
	}

	n := NumNeighbors(len(leaves), rfDist)
	result.RFDistance = rfDist
	result.NumNeighbors = n
	result.Cutoff = float64(n*n) / CutoffDivisor

	geneNb, err := phylo.NewNeighborhood(gene)
	if err != nil {
		return nil, err
	}
	refNb, err := phylo.NewNeighborhood(ref)
	if err != nil {
		return nil, err
	}

	keep := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		g := hits.GenomeOf(leaf)
		if _, ok := inReference[g]; !ok {
			result.Scores = append(result.Scores, LeafScore{Leaf: leaf, Kept: true})
			keep = append(keep, leaf)
			continue
		}

		treeNeighbors, err := geneNb.Neighbors(leaf, n)
		if err != nil {
			return nil, err
		}
		for i, name := range treeNeighbors {
			treeNeighbors[i] = hits.GenomeOf(name)
		}
		refNeighbors, err := refNb.Neighbors(g, n)
		if err != nil {
			return nil, err
		}

		score := ConcordanceScore(treeNeighbors, refNeighbors, n)
		kept := float64(score) > result.Cutoff
		result.Scores = append(result.Scores, LeafScore{Leaf: leaf, Score: score, Kept: kept})
		if kept {
			keep = append(keep, leaf)
		} else {
			result.Dropped = append(result.Dropped, leaf)
		}
	}

	if len(keep) == 0 {
		return result, nil
	}
	result.Tree = gene.Clone()
	if len(result.Dropped) > 0 {
		if err = phylo.Prune(result.Tree, keep); err != nil {
			return nil, errors.Wrap(err, "prune gene tree")
		}
	}
	return result, nil
}
