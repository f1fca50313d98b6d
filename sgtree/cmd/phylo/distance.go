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

package phylo

import (
	"fmt"
	"sort"

	gtree "github.com/evolbioinfo/gotree/tree"
)

// patristic returns a copy of t where missing branch lengths count as 0,
// its tips in preorder, their distance matrix and the index of each tip
// name.
func patristic(t *Tree) (*Tree, []*gtree.Node, [][]float64, map[string]int) {
	c := t.Clone()
	var tips []*gtree.Node
	var dist [][]float64
	if c.Root().Nneigh() == 0 {
		tips, dist = []*gtree.Node{c.Root()}, [][]float64{{0}}
	} else {
		for _, e := range c.Edges() {
			if e.Length() < 0 {
				e.SetLength(0)
			}
		}
		tips = c.Tips()
		dist = c.ToDistanceMatrix()
	}
	index := make(map[string]int, len(tips))
	for i, tip := range tips {
		index[tip.Name()] = i
	}
	return c, tips, dist, index
}

// Neighborhood answers nearest-leaf queries on one tree. It holds its own
// copy of the tree and is safe for concurrent reads.
type Neighborhood struct {
	tips   []*gtree.Node
	dist   [][]float64
	index  map[string]int
	parent map[*gtree.Node]*gtree.Node
	ntips  map[*gtree.Node]int
}

// NewNeighborhood computes patristic distances of all leaves of t.
func NewNeighborhood(t *Tree) (*Neighborhood, error) {
	if t.Root() == nil {
		return nil, ErrNoLeaves
	}
	nb := &Neighborhood{}
	var c *Tree
	c, nb.tips, nb.dist, nb.index = patristic(t)
	if len(nb.index) != len(nb.tips) {
		return nil, fmt.Errorf("phylo: duplicated leaf names")
	}

	nb.parent = make(map[*gtree.Node]*gtree.Node, 2*len(nb.tips))
	nb.ntips = make(map[*gtree.Node]int, 2*len(nb.tips))
	var count func(cur, prev *gtree.Node) int
	count = func(cur, prev *gtree.Node) int {
		nb.parent[cur] = prev
		if cur.Tip() && prev != nil {
			nb.ntips[cur] = 1
			return 1
		}
		var n int
		for _, next := range cur.Neigh() {
			if next != prev {
				n += count(next, cur)
			}
		}
		nb.ntips[cur] = n
		return n
	}
	count(c.Root(), nil)
	return nb, nil
}

// Distance returns the patristic distance between two leaves.
func (nb *Neighborhood) Distance(a, b string) (float64, error) {
	i, ok := nb.index[a]
	if !ok {
		return 0, fmt.Errorf("phylo: leaf not found: %s", a)
	}
	j, ok := nb.index[b]
	if !ok {
		return 0, fmt.Errorf("phylo: leaf not found: %s", b)
	}
	return nb.dist[i][j], nil
}

// Neighbors returns the n leaves closest to leaf: ancestors are climbed
// until the subtree has at least n other leaves, which are then sorted by
// patristic distance, ties keeping preorder.
func (nb *Neighborhood) Neighbors(leaf string, n int) ([]string, error) {
	i, ok := nb.index[leaf]
	if !ok {
		return nil, fmt.Errorf("phylo: leaf not found: %s", leaf)
	}
	if n <= 0 {
		return nil, nil
	}

	node := nb.tips[i]
	for nb.parent[node] != nil && nb.ntips[node]-1 < n {
		node = nb.parent[node]
	}

	if node == nb.tips[i] {
		return nil, nil
	}

	others := make([]int, 0, nb.ntips[node])
	var walk func(cur, prev *gtree.Node)
	walk = func(cur, prev *gtree.Node) {
		if cur.Tip() && prev != nil {
			if j := nb.index[cur.Name()]; j != i {
				others = append(others, j)
			}
			return
		}
		for _, next := range cur.Neigh() {
			if next != prev {
				walk(next, cur)
			}
		}
	}
	walk(node, nb.parent[node])

	d := nb.dist[i]
	sort.SliceStable(others, func(a, b int) bool { return d[others[a]] < d[others[b]] })
	if len(others) > n {
		others = others[:n]
	}
	names := make([]string, len(others))
	for k, j := range others {
		names[k] = nb.tips[j].Name()
	}
	return names, nil
}
