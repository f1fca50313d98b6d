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
	"sort"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/phylo"
	"github.com/sgtree/sgtree/sgtree/cmd/seqs"
)

type scoreMap map[string]float64

func (m scoreMap) Score(marker, seqID string) (float64, bool) {
	s, ok := m[seqID]
	return s, ok
}

func records(ids ...string) []*seqs.Record {
	list := make([]*seqs.Record, len(ids))
	for i, id := range ids {
		list[i] = &seqs.Record{ID: id, Seq: []byte("MKV")}
	}
	return list
}

func ids(list []*seqs.Record) string {
	s := make([]string, len(list))
	for i, r := range list {
		s[i] = r.ID
	}
	return strings.Join(s, ",")
}

func mustParse(t *testing.T, s string) *phylo.Tree {
	tree, err := phylo.ParseString(s)
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

// a lower-scoring copy is removed and other genomes are untouched.
func TestDeduplicate(t *testing.T) {
	scores := scoreMap{"g1|a": 10, "g1|b": 7, "g2|a": 5}
	r, err := Deduplicate("M", records("g1|a", "g1|b", "g2|a"), scores)
	if err != nil {
		t.Fatal(err)
	}
	if ids(r.Kept) != "g1|a,g2|a" {
		t.Errorf("wrong kept records: %s", ids(r.Kept))
	}
	if len(r.Removed) != 1 || r.Removed[0].ID != "g1|b" || r.Removed[0].Best != 10 || r.Removed[0].Contests != 2 {
		t.Errorf("wrong removals: %+v", r.Removed)
	}

	again, err := Deduplicate("M", r.Kept, scores)
	if err != nil {
		t.Fatal(err)
	}
	if ids(again.Kept) != ids(r.Kept) || len(again.Removed) != 0 {
		t.Errorf("not idempotent: %s", ids(again.Kept))
	}
}

func TestDeduplicateTies(t *testing.T) {
	scores := scoreMap{"g1|a": 10, "g1|b": 10, "g1|c": 3}
	r, err := Deduplicate("M", records("g1|a", "g1|b", "g1|c"), scores)
	if err != nil {
		t.Fatal(err)
	}
	if ids(r.Kept) != "g1|a,g1|b" || len(r.Ties) != 1 || r.Ties[0].Genome != "g1" ||
		strings.Join(r.Ties[0].IDs, ",") != "g1|a,g1|b" {
		t.Errorf("tying sequences should all be kept: %s %v", ids(r.Kept), r.Ties)
	}

	_, err = Deduplicate("M", records("g1|a", "g1|x"), scores)
	if errors.Cause(err) != ErrMissingScore {
		t.Errorf("expected ErrMissingScore, got %v", err)
	}
}

// a score tie is resolved by topology and both candidates are logged.
func TestResolve(t *testing.T) {
	ref := mustParse(t, "(((g1,g2),(g3,g4)),(g5,g6));")
	gene := mustParse(t, "(((g1|a,g2|x),(g3|x,g4|x)),((g1|b,g5|x),g6|x));")
	scores := scoreMap{"g1|a": 10, "g1|b": 10, "g2|x": 1, "g3|x": 1, "g4|x": 1, "g5|x": 1, "g6|x": 1}

	r, err := Resolve("M3", gene, ref, scores, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Decisions) != 2 || r.Ambiguous != 1 {
		t.Fatalf("expected 2 decisions, got %d", len(r.Decisions))
	}
	a, b := r.Decisions[0], r.Decisions[1]
	if a.Leaf != "g1|a" || a.Status != Kept || a.Distance != 0 {
		t.Errorf("wrong decision: %s", a)
	}
	if b.Leaf != "g1|b" || b.Status != Removed || b.Distance <= 0 {
		t.Errorf("wrong decision: %s", b)
	}
	if a.String() != "g1|a M3 0.000000 Kept" {
		t.Errorf("wrong log line: %s", a)
	}
	if len(r.Removed) != 1 || r.Removed[0] != "g1|b" {
		t.Errorf("wrong removed leaves: %v", r.Removed)
	}
	if len(phylo.LeafNames(r.Tree)) != 6 || len(phylo.LeafNames(gene)) != 7 {
		t.Errorf("wrong pruning")
	}

	r, err = Resolve("M3", gene, ref, scores, ResolveOptions{Exempt: map[string]struct{}{"g1": {}}})
	if err != nil || len(r.Decisions) != 0 || len(phylo.LeafNames(r.Tree)) != 7 {
		t.Errorf("exempt genome resolved: %v", err)
	}
}

// every other genome contributes its best-scoring leaf, whatever was
// decided for it, so two ambiguous genomes are resolved independently.
func TestResolveTwoGenomes(t *testing.T) {
	ref := mustParse(t, "(((g1,g2),g3),(g4,g5));")
	gene := mustParse(t, "(((g1|a,g2|a),g3|x),((g4|x,g5|x),(g1|b,g2|b)));")
	scores := scoreMap{"g1|a": 9, "g1|b": 5, "g2|a": 5, "g2|b": 9, "g3|x": 1, "g4|x": 1, "g5|x": 1}

	r, err := Resolve("M", gene, ref, scores, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Ambiguous != 2 || len(r.Decisions) != 4 {
		t.Fatalf("expected 4 decisions for 2 genomes, got %d for %d", len(r.Decisions), r.Ambiguous)
	}
	want := []string{
		"g1|a M 0.499988 Removed",
		"g1|b M 0.000000 Kept",
		"g2|a M 0.000000 Kept",
		"g2|b M 0.499988 Removed",
	}
	for i, d := range r.Decisions {
		if d.String() != want[i] {
			t.Errorf("decision %d: expected %q, returned %q", i, want[i], d)
		}
	}
	leaves := phylo.LeafNames(r.Tree)
	sort.Strings(leaves)
	if s := strings.Join(leaves, ","); s != "g1|b,g2|a,g3|x,g4|x,g5|x" {
		t.Errorf("wrong leaves: %s", s)
	}
}

// candidates at the same distance are decided by score, not tree order.
func TestResolveDistanceTie(t *testing.T) {
	ref := mustParse(t, "((g1,g2),(g3,g4));")
	gene := mustParse(t, "(((g1|a,g1|b),g2|x),(g3|x,g4|x));")
	scores := scoreMap{"g1|a": 2, "g1|b": 7, "g2|x": 1, "g3|x": 1, "g4|x": 1}

	r, err := Resolve("M", gene, ref, scores, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(r.Decisions))
	}
	a, b := r.Decisions[0], r.Decisions[1]
	if a.Distance != b.Distance {
		t.Errorf("expected equal distances: %s, %s", a, b)
	}
	if a.Status != Removed || b.Status != Kept {
		t.Errorf("higher score should win the tie: %s, %s", a, b)
	}
}

func TestResolveAbsentFromReference(t *testing.T) {
	ref := mustParse(t, "((g2,g3),(g4,g5));")
	gene := mustParse(t, "((g1|a,g2|x),((g1|b,g3|x),(g4|x,g5|x)));")
	scores := scoreMap{"g1|a": 3, "g1|b": 8, "g2|x": 1, "g3|x": 1, "g4|x": 1, "g5|x": 1}

	r, err := Resolve("M", gene, ref, scores, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Decisions) != 2 || r.Decisions[1].Status != Kept || r.Decisions[0].HasDistance {
		t.Errorf("best score should be kept: %v", r.Decisions)
	}
	if r.Decisions[0].String() != "g1|a M NA Removed" {
		t.Errorf("wrong log line: %s", r.Decisions[0])
	}
}

func TestNumNeighbors(t *testing.T) {
	if n := NumNeighbors(5, 0.5); n != 2 {
		t.Errorf("2.5 should round to 2, got %d", n)
	}
	if n := NumNeighbors(7, 0.5); n != 4 {
		t.Errorf("3.5 should round to 4, got %d", n)
	}
	if s := ConcordanceScore([]string{"a", "b", "c"}, []string{"b", "a", "x"}, 3); s != 4 {
		t.Errorf("wrong score %d", s)
	}
}

func TestFilterSingles(t *testing.T) {
	ref := mustParse(t, "(((A,B),(C,D)),((E,F),(G,H)));")
	gene := mustParse(t, "(((E|1,B|1),(C|1,D|1)),((A|1,F|1),(G|1,H|1)));")

	r, err := FilterSingles(gene, ref)
	if err != nil {
		t.Fatal(err)
	}
	if r.NumNeighbors != 3 || r.Cutoff != 0.6 {
		t.Errorf("wrong parameters: %d %f", r.NumNeighbors, r.Cutoff)
	}
	if strings.Join(r.Dropped, ",") != "E|1,A|1" {
		t.Errorf("wrong dropped leaves: %v", r.Dropped)
	}
	if r.Tree == nil || len(phylo.LeafNames(r.Tree)) != 6 {
		t.Errorf("wrong filtered tree")
	}

	r, err = FilterSingles(ref.Clone(), mustParse(t, "((A,B),C);"))
	if err != nil || len(r.Dropped) != 0 {
		t.Errorf("concordant tree should be kept: %v %v", err, r.Dropped)
	}

	r, err = FilterSingles(gene, mustParse(t, "((X,Y),Z);"))
	if err != nil || len(phylo.LeafNames(r.Tree)) != 8 {
		t.Errorf("leaves absent from the reference should be kept")
	}
}
