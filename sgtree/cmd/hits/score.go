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

import (
	"strings"
	"sync/atomic"
)

// ScoreIndex looks up bit scores by marker and sequence ID.
// It is read-only after construction and safe for concurrent use.
type ScoreIndex struct {
	byMarker map[string]float64
	bySeq    map[string]float64

	fallback  bool
	fallbacks int64
}

// NewScoreIndex indexes the hits. For a repeated (marker, sequence) pair
// the first score wins. With fallback, a sequence missing for a marker
// gets its best score over all markers.
func NewScoreIndex(hits []*Hit, fallback bool) *ScoreIndex {
	idx := &ScoreIndex{
		byMarker: make(map[string]float64, len(hits)),
		fallback: fallback,
	}
	if fallback {
		idx.bySeq = make(map[string]float64, len(hits))
	}
	for _, h := range hits {
		key := h.Marker + "\t" + h.Sequence
		if _, ok := idx.byMarker[key]; !ok {
			idx.byMarker[key] = h.Score
		}
		if !fallback {
			continue
		}
		if s, ok := idx.bySeq[h.Sequence]; !ok || h.Score > s {
			idx.bySeq[h.Sequence] = h.Score
		}
	}
	return idx
}

// Score returns the score of a sequence for a marker. Fallback lookups
// are counted.
func (idx *ScoreIndex) Score(marker, seqID string) (float64, bool) {
	seqID = strings.TrimSpace(seqID)
	if s, ok := idx.byMarker[marker+"\t"+seqID]; ok {
		return s, true
	}
	if !idx.fallback {
		return 0, false
	}
	s, ok := idx.bySeq[seqID]
	if ok {
		atomic.AddInt64(&idx.fallbacks, 1)
	}
	return s, ok
}

// Fallbacks returns the number of scores taken from other markers.
func (idx *ScoreIndex) Fallbacks() int64 {
	return atomic.LoadInt64(&idx.fallbacks)
}

// Len returns the number of indexed (marker, sequence) pairs.
func (idx *ScoreIndex) Len() int {
	return len(idx.byMarker)
}
