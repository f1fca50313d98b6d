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
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func mustParse(t *testing.T, s string) *Tree {
	tree, err := ParseString(s)
	if err != nil {
		t.Fatalf("parse %s: %s", s, err)
	}
	return tree
}

func TestParseAndWrite(t *testing.T) {
	tree := mustParse(t, "((g1|a:1,g2|b:2):0.5,(g3|c:1,g4|d:1.25):0.5);")
	names := strings.Join(LeafNames(tree), ",")
	if names != "g1|a,g2|b,g3|c,g4|d" {
		t.Errorf("wrong leaves: %s", names)
	}
	s := tree.Newick()
	if s != "((g1|a:1,g2|b:2):0.5,(g3|c:1,g4|d:1.25):0.5);" {
		t.Errorf("wrong newick: %s", s)
	}

	file := filepath.Join(t.TempDir(), "t.nw.gz")
	if err := WriteFile(tree, file); err != nil {
		t.Fatal(err)
	}
	tree2, err := ParseFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if tree2.Newick() != s {
		t.Errorf("file round trip: %s", tree2.Newick())
	}
}

func TestCloneAndPrune(t *testing.T) {
	tree := mustParse(t, "((A:1,B:2):1,(C:1,D:5):1,E:3);")
	c := tree.Clone()
	if err := Prune(c, []string{"A", "C", "D"}); err != nil {
		t.Fatal(err)
	}
	if c.Newick() != "(C:1,D:5,A:3);" {
		t.Errorf("wrong pruned tree: %s", c.Newick())
	}
	if len(LeafNames(tree)) != 5 {
		t.Errorf("pruning a copy changed the original")
	}

	c = tree.Clone()
	if err := Prune(c, []string{"A", "X"}); err == nil {
		t.Errorf("unknown leaf accepted")
	}
	c = tree.Clone()
	if err := Prune(c, nil); err != ErrNoLeaves {
		t.Errorf("expected ErrNoLeaves, got %v", err)
	}
	c = tree.Clone()
	if err := Prune(c, []string{"B"}); err != nil || c.Newick() != "B;" {
		t.Errorf("single leaf: %v %s", err, c.Newick())
	}
	if names := LeafNames(c); len(names) != 1 || names[0] != "B" {
		t.Errorf("wrong leaves of a single leaf tree: %v", names)
	}
	c = tree.Clone()
	if err := Prune(c, []string{"D", "A"}); err != nil || c.Newick() != "(A:4,D:4);" {
		t.Errorf("two leaves: %v %s", err, c.Newick())
	}
}

func TestRenameLeaves(t *testing.T) {
	tree := mustParse(t, "((g1|a,g2|b),(g3|c,g4|d));")
	if err := RenameLeaves(tree, func(s string) string { return s[:2] }); err != nil {
		t.Fatal(err)
	}
	if s := strings.Join(LeafNames(tree), ","); s != "g1,g2,g3,g4" {
		t.Errorf("wrong renamed leaves: %s", s)
	}

	tree = mustParse(t, "((g1|a,g1|b),(g3|c,g4|d));")
	if err := RenameLeaves(tree, func(s string) string { return s[:2] }); err == nil {
		t.Errorf("duplicated names after renaming accepted")
	}
}

func TestRF(t *testing.T) {
	t1 := mustParse(t, "((A,B),(C,D),E);")
	t2 := mustParse(t, "((A,B),(C,E),D);")
	t3 := mustParse(t, "(E,((B,A),(D,C)));")

	rf, maxRF, err := RF(t1, t3)
	if err != nil || rf != 0 || maxRF != 4 {
		t.Errorf("identical topologies: %d %d %v", rf, maxRF, err)
	}
	rf, maxRF, err = RF(t1, t2)
	if err != nil || rf != 2 || maxRF != 4 {
		t.Errorf("different topologies: %d %d %v", rf, maxRF, err)
	}

	d, _ := NormalizedRF(t1, t2)
	if math.Abs(d-2/(4+Epsilon)) > 1e-12 {
		t.Errorf("wrong normalized distance %f", d)
	}

	// only shared leaves count
	t4 := mustParse(t, "(((A,B),X),(C,E),D);")
	rf, maxRF, err = RF(t4, t2)
	if err != nil || rf != 0 || maxRF != 4 {
		t.Errorf("shared leaves: %d %d %v", rf, maxRF, err)
	}
	if len(LeafNames(t4)) != 6 {
		t.Errorf("RF changed its input")
	}

	// three leaves have no nontrivial split
	d, err = NormalizedRF(mustParse(t, "(A,B,C);"), mustParse(t, "((A,C),B);"))
	if err != nil || d != 0 {
		t.Errorf("expected 0, got %f %v", d, err)
	}

	if _, _, err = RF(mustParse(t, "((A,A),(C,D));"), t1); err == nil {
		t.Errorf("duplicated leaves accepted")
	}
}

func TestNeighbors(t *testing.T) {
	tree := mustParse(t, "((A:1,B:2):1,(C:1,D:5):1);")
	nb, err := NewNeighborhood(tree)
	if err != nil {
		t.Fatal(err)
	}

	if d, _ := nb.Distance("A", "D"); d != 8 {
		t.Errorf("wrong distance A-D: %f", d)
	}
	names, err := nb.Neighbors("A", 2)
	if err != nil || strings.Join(names, ",") != "B,C" {
		t.Errorf("wrong neighbors of A: %v %v", names, err)
	}
	names, _ = nb.Neighbors("D", 1)
	if strings.Join(names, ",") != "C" {
		t.Errorf("wrong neighbors of D: %v", names)
	}
	if names, _ = nb.Neighbors("D", 0); len(names) != 0 {
		t.Errorf("expected no neighbors")
	}
	if _, err = nb.Neighbors("X", 1); err == nil {
		t.Errorf("unknown leaf accepted")
	}

	// missing lengths count as 0, ties keep preorder
	nb, err = NewNeighborhood(mustParse(t, "((A,B),(C,D));"))
	if err != nil {
		t.Fatal(err)
	}
	names, _ = nb.Neighbors("D", 3)
	if strings.Join(names, ",") != "A,B,C" {
		t.Errorf("wrong neighbors of D without lengths: %v", names)
	}

	single := mustParse(t, "((A:1,B:1):1,C:1);")
	if err = Prune(single, []string{"C"}); err != nil {
		t.Fatal(err)
	}
	nb, err = NewNeighborhood(single)
	if err != nil {
		t.Fatal(err)
	}
	if names, err = nb.Neighbors("C", 2); err != nil || len(names) != 0 {
		t.Errorf("expected no neighbors in a single leaf tree: %v %v", names, err)
	}
}
