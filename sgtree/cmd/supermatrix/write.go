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

package supermatrix

import (
	"fmt"

	"github.com/evolbioinfo/goalign/align"
	"github.com/evolbioinfo/goalign/io/nexus"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// WriteFasta writes one unwrapped record per genome.
func WriteFasta(file string, m *Supermatrix) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()

	for i, g := range m.Genomes {
		fmt.Fprintf(outfh, ">%s\n", g)
		outfh.Write(m.Rows[i])
		outfh.WriteByte('\n')
	}
	return nil
}

// WritePartitions writes the partition table.
func WritePartitions(file string, m *Supermatrix) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()

	fmt.Fprintf(outfh, "marker\tstart\tend\twidth\tgenomes\n")
	for _, p := range m.Partitions {
		fmt.Fprintf(outfh, "%s\t%d\t%d\t%d\t%d\n", p.Marker, p.Start, p.End, p.Width, p.Present)
	}
	return nil
}

// Alignment converts the supermatrix to a protein alignment.
func (m *Supermatrix) Alignment() (align.Alignment, error) {
	al := align.NewAlign(align.AMINOACIDS)
	for i, g := range m.Genomes {
		if err := al.AddSequence(g, string(m.Rows[i]), ""); err != nil {
			return nil, errors.Wrap(err, g)
		}
	}
	return al, nil
}

// WriteNexus writes the supermatrix in NEXUS format.
func WriteNexus(file string, m *Supermatrix) error {
	al, err := m.Alignment()
	if err != nil {
		return err
	}

	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()

	_, err = outfh.WriteString(nexus.WriteAlignment(al))
	return errors.Wrap(err, file)
}
