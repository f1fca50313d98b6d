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

// Package phylo wraps the gotree operations used to resolve paralogs:
// Newick I/O, pruning, Robinson-Foulds distance and leaf neighborhoods.
package phylo

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/evolbioinfo/gotree/io/newick"
	gtree "github.com/evolbioinfo/gotree/tree"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// Tree is a gotree tree. Trees shared between goroutines must be cloned
// before any mutation.
type Tree = gtree.Tree

// ErrNoLeaves means pruning would remove every leaf.
var ErrNoLeaves = errors.New("phylo: no leaves left")

// Parse reads one Newick tree.
func Parse(r io.Reader) (*Tree, error) {
	t, err := newick.NewParser(r).Parse()
	if err != nil {
		return nil, err
	}
	if t.Root() == nil {
		return nil, ErrNoLeaves
	}
	return t, nil
}

// ParseString parses a Newick string.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads the first tree of a Newick file, plain or compressed.
func ParseFile(file string) (*Tree, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()

	t, err := Parse(fh)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	return t, nil
}

// WriteFile writes the tree in Newick format and a trailing newline.
func WriteFile(t *Tree, file string) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()

	_, err = outfh.WriteString(t.Newick() + "\n")
	return errors.Wrap(err, file)
}

// LeafNames returns leaf names in preorder. A tree pruned to one leaf is a
// single named node.
func LeafNames(t *Tree) []string {
	root := t.Root()
	if root == nil {
		return nil
	}
	if root.Nneigh() == 0 {
		if root.Name() == "" {
			return nil
		}
		return []string{root.Name()}
	}
	tips := t.Tips()
	names := make([]string, len(tips))
	for i, tip := range tips {
		names[i] = tip.Name()
	}
	return names
}

// RenameLeaves renames every leaf with fn. Leaf names must stay unique.
func RenameLeaves(t *Tree, fn func(string) string) error {
	names := LeafNames(t)
	namemap := make(map[string]string, len(names))
	for _, name := range names {
		namemap[name] = fn(name)
	}
	return t.Rename(namemap)
}

// Prune keeps only leaves with the given names. Internal nodes left with
// one child are removed and their branch lengths summed. Unknown names are
// an error.
func Prune(t *Tree, names []string) error {
	if t.Root() == nil {
		return ErrNoLeaves
	}
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		keep[name] = false
	}
	for _, name := range LeafNames(t) {
		if _, ok := keep[name]; ok {
			keep[name] = true
		}
	}
	for _, name := range names {
		if !keep[name] {
			return fmt.Errorf("phylo: leaf not found: %s", name)
		}
	}

	switch len(keep) {
	case 0:
		return ErrNoLeaves
	case 1, 2:
		return shrink(t, sortedNames(keep))
	}

	if err := t.RemoveTips(true, names...); err != nil {
		return err
	}
	return t.ReinitIndexes()
}

// shrink replaces t by a tree of one or two leaves, which gotree can not
// reach by removing tips. Two leaves hang from a new root, each at half
// their patristic distance.
func shrink(t *Tree, names []string) error {
	root := t.NewNode()
	if len(names) == 1 {
		root.SetName(names[0])
		t.SetRoot(root)
		return t.UpdateTipIndex()
	}

	withLengths := hasLengths(t)
	_, _, dist, index := patristic(t)
	half := dist[index[names[0]]][index[names[1]]] / 2
	for _, name := range names {
		tip := t.NewNode()
		tip.SetName(name)
		e := t.ConnectNodes(root, tip)
		if withLengths {
			e.SetLength(half)
		}
	}
	t.SetRoot(root)
	return t.ReinitIndexes()
}

func hasLengths(t *Tree) bool {
	for _, e := range t.Edges() {
		if e.Length() != gtree.NIL_LENGTH {
			return true
		}
	}
	return false
}

func sortedNames(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
