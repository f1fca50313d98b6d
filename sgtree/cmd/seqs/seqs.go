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

// Package seqs reads and writes FASTA records with genome-qualified IDs.
package seqs

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sgtree/sgtree/sgtree/cmd/hits"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

func init() {
	// aligned records contain gaps and other non-IUPAC symbols
	seq.ValidateSeq = false
}

// Record is a FASTA record. ID is the first word of the header.
type Record struct {
	ID  string
	Seq []byte
}

// Genome returns the genome part of the ID.
func (r *Record) Genome() string {
	return hits.GenomeOf(r.ID)
}

// ReadFile reads all records of a FASTA file, plain or compressed.
// An empty file gives no records.
func ReadFile(file string) ([]*Record, error) {
	if file != "-" {
		info, err := os.Stat(file)
		if err != nil {
			return nil, errors.Wrap(err, file)
		}
		if info.Size() == 0 {
			return nil, nil
		}
	}

	reader, err := fastx.NewDefaultReader(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer reader.Close()

	records := make([]*Record, 0, 64)
	var record *fastx.Record
	for {
		record, err = reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, file)
		}
		s := make([]byte, len(record.Seq.Seq))
		copy(s, record.Seq.Seq)
		records = append(records, &Record{ID: string(record.ID), Seq: s})
	}
	return records, nil
}

// Write writes records in FASTA format. Sequences are wrapped at lineWidth
// residues, 0 for no wrapping.
func Write(w io.Writer, records []*Record, lineWidth int) error {
	var err error
	for _, r := range records {
		if _, err = io.WriteString(w, ">"+r.ID+"\n"); err != nil {
			return err
		}
		s := r.Seq
		width := lineWidth
		if width <= 0 {
			width = len(s) + 1
		}
		for i := 0; i < len(s); i += width {
			j := i + width
			if j > len(s) {
				j = len(s)
			}
			if _, err = w.Write(s[i:j]); err != nil {
				return err
			}
			if _, err = w.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteFile writes records to a file, gzipped if the name ends with ".gz".
func WriteFile(file string, records []*Record, lineWidth int) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()
	return errors.Wrap(Write(outfh, records, lineWidth), file)
}

// Index maps IDs to records. Later duplicates win.
func Index(records []*Record) map[string]*Record {
	m := make(map[string]*Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}

// Filter returns records whose IDs are in the set, keeping order.
func Filter(records []*Record, ids map[string]struct{}) []*Record {
	list := make([]*Record, 0, len(ids))
	for _, r := range records {
		if _, ok := ids[r.ID]; ok {
			list = append(list, r)
		}
	}
	return list
}
