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
)

// Epsilon keeps the normalized distance finite when maxRF is 0.
const Epsilon = 1e-4

// RF computes the unrooted Robinson-Foulds distance on the leaves shared by
// both trees, and the maximum possible distance, i.e., the number of
// internal edges of both trees restricted to those leaves.
func RF(t1, t2 *Tree) (rf int, maxRF int, err error) {
	names1, err := uniqueLeafNames(t1)
	if err != nil {
		return 0, 0, err
	}
	names2, err := uniqueLeafNames(t2)
	if err != nil {
		return 0, 0, err
	}

	common := make([]string, 0, len(names1))
	for name := range names1 {
		if _, ok := names2[name]; ok {
			common = append(common, name)
		}
	}
	if len(common) < 4 {
		return 0, 0, nil
	}
	sort.Strings(common)

	c1, err := unrootedOn(t1, common)
	if err != nil {
		return 0, 0, err
	}
	c2, err := unrootedOn(t2, common)
	if err != nil {
		return 0, 0, err
	}

	specific1, shared, err := c1.CommonEdges(c2, false)
	if err != nil {
		return 0, 0, err
	}
	specific2, _, err := c2.CommonEdges(c1, false)
	if err != nil {
		return 0, 0, err
	}
	return specific1 + specific2, specific1 + specific2 + 2*shared, nil
}

// NormalizedRF returns rf / (maxRF + Epsilon).
func NormalizedRF(t1, t2 *Tree) (float64, error) {
	rf, maxRF, err := RF(t1, t2)
	if err != nil {
		return 0, err
	}
	return float64(rf) / (float64(maxRF) + Epsilon), nil
}

// unrootedOn returns an unrooted copy of t restricted to names, with
// bitsets and edge hashes ready for comparison.
func unrootedOn(t *Tree, names []string) (*Tree, error) {
	c := t.Clone()
	if err := Prune(c, names); err != nil {
		return nil, err
	}
	c.UnRoot()
	return c, c.ReinitIndexes()
}

func uniqueLeafNames(t *Tree) (map[string]struct{}, error) {
	leaves := LeafNames(t)
	names := make(map[string]struct{}, len(leaves))
	for _, name := range leaves {
		if _, ok := names[name]; ok {
			return nil, fmt.Errorf("phylo: duplicated leaf name: %s", name)
		}
		names[name] = struct{}{}
	}
	return names, nil
}
