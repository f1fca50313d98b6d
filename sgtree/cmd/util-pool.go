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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

const failedUnitsFile = "failed_units.txt"

// unitResult is the outcome of one marker file.
type unitResult struct {
	Name    string // marker
	File    string
	Err     error
	Kept    int
	Removed int
	Lines   []string // audit lines collected by the stage
	Notes   []string // secondary audit lines, e.g., score ties
}

// runUnits applies fn to every file with opt.NumCPUs workers and returns
// results in the order of files. A failing or panicking unit does not stop
// the others.
func runUnits(opt *Options, stage string, files []string, fn func(file string) unitResult) []unitResult {
	results := make([]unitResult, len(files))

	var pbs *mpb.Progress
	var bar *mpb.Bar
	var chDuration chan time.Duration
	var doneDuration chan int
	if opt.Verbose {
		pbs = mpb.New(mpb.WithWidth(79), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(files)),
			mpb.BarStyle("[=>-]<+"),
			mpb.PrependDecorators(
				decor.Name(stage+": ", decor.WC{W: len(stage) + 2, C: decor.DidentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)

		chDuration = make(chan time.Duration, opt.NumCPUs)
		doneDuration = make(chan int)
		go func() {
			for t := range chDuration {
				bar.Increment()
				bar.DecoratorEwmaUpdate(t)
			}
			doneDuration <- 1
		}()
	}

	var wg sync.WaitGroup
	tokens := make(chan int, opt.NumCPUs)
	for i, file := range files {
		tokens <- 1
		wg.Add(1)

		go func(i int, file string) {
			startTime := time.Now()
			defer func() {
				if r := recover(); r != nil {
					results[i] = unitResult{Name: markerName(file), File: file, Err: fmt.Errorf("panic: %v", r)}
				}
				if opt.Verbose {
					chDuration <- time.Since(startTime)
				}
				wg.Done()
				<-tokens
			}()

			results[i] = fn(file)
			if results[i].Name == "" {
				results[i].Name = markerName(file)
			}
			results[i].File = file
		}(i, file)
	}
	wg.Wait()

	if opt.Verbose {
		close(chDuration)
		<-doneDuration
		pbs.Wait()
	}
	return results
}

// summarizeUnits logs failures, writes them to failed_units.txt in the
// stage directory and returns names of failed units.
func summarizeUnits(opt *Options, stage string, dir string, results []unitResult) (failed []string, kept int, removed int) {
	lines := make([]string, 0, 8)
	for _, r := range results {
		if r.Err != nil {
			log.Warningf("[%s] %s: %s", stage, r.Name, r.Err)
			failed = append(failed, r.Name)
			lines = append(lines, fmt.Sprintf("%s\t%s\t%s", r.Name, r.File, r.Err))
			continue
		}
		kept += r.Kept
		removed += r.Removed
	}

	file := filepath.Join(dir, failedUnitsFile)
	if len(failed) == 0 {
		os.Remove(file)
	} else {
		checkError(writeLines(file, opt.CompressionLevel, lines))
		log.Warningf("[%s] %d of %d unit(s) failed, see %s", stage, len(failed), len(results), file)
	}
	if opt.logging() {
		log.Infof("[%s] %d unit(s) done, %d sequence(s) kept, %d removed", stage, len(results)-len(failed), kept, removed)
	}
	return failed, kept, removed
}
