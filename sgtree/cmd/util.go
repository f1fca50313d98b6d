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
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/iafan/cwalk"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// Options contains the global flags
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool

	MetricsFile string

	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagPath(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",

		MetricsFile: getFlagPath(cmd, "metrics-file"),

		CompressionLevel: -1,
	}
}

func (opt *Options) logging() bool {
	return opt.Verbose || opt.Log2File
}

var reIgnoreCaseStr = "(?i)"
var reIgnoreCase = regexp.MustCompile(`\(\?i\)`)

func compileFileRegexp(s string) *regexp.Regexp {
	if !reIgnoreCase.MatchString(s) {
		s = reIgnoreCaseStr + s
	}
	re, err := regexp.Compile(s)
	checkError(errors.Wrapf(err, "failed to parse regular expression for matching file: %s", s))
	return re
}

func makeOutDir(outDir string, force bool) {
	pwd, _ := os.Getwd()
	if outDir != "./" && outDir != "." && pwd != filepath.Clean(outDir) {
		existed, err := pathutil.DirExists(outDir)
		checkError(errors.Wrap(err, outDir))
		if existed {
			empty, err := pathutil.IsEmpty(outDir)
			checkError(errors.Wrap(err, outDir))
			if !empty {
				if force {
					log.Infof("removing old output directory: %s", outDir)
					checkError(os.RemoveAll(outDir))
				} else {
					checkError(fmt.Errorf("out-dir not empty: %s, use --force to overwrite", outDir))
				}
			} else {
				checkError(os.RemoveAll(outDir))
			}
		}
		checkError(os.MkdirAll(outDir, 0777))
	}
}

// checkRunDir makes sure the run directory was created by "sgtree curate".
func checkRunDir(runDir string) {
	if runDir == "" {
		checkError(fmt.Errorf("flag -d/--run-dir needed"))
	}
	ok, err := pathutil.Exists(filepath.Join(runDir, runInfoFile))
	checkError(errors.Wrap(err, runDir))
	if !ok {
		checkError(fmt.Errorf("not a run directory of sgtree curate: %s", runDir))
	}
}

// resetDir recreates a stage directory inside the run directory, so that a
// stage can be re-run.
func resetDir(dir string) {
	checkError(os.RemoveAll(dir))
	checkError(os.MkdirAll(dir, 0777))
}

// stageOutDir returns the value of -O/--out-dir or the default directory
// in the run directory. A default directory is always recreated, while a
// given one follows makeOutDir.
func stageOutDir(cmd *cobra.Command, runDir string, name string) (string, bool) {
	outDir := getFlagPath(cmd, "out-dir")
	if outDir == "" {
		return filepath.Join(runDir, name), true
	}
	return outDir, false
}

func prepareStageDir(cmd *cobra.Command, outDir string, isDefault bool) {
	if isDefault {
		resetDir(outDir)
		return
	}
	makeOutDir(outDir, getFlagBool(cmd, "force"))
}

// getFileListFromDir walks a directory and returns sorted matched files.
func getFileListFromDir(path string, pattern *regexp.Regexp, threads int) ([]string, error) {
	files := make([]string, 0, 512)
	ch := make(chan string, threads)
	done := make(chan int)
	go func() {
		for file := range ch {
			files = append(files, file)
		}
		done <- 1
	}()

	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(path, func(_path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			ch <- filepath.Join(path, _path)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}

	sorts.Quicksort(sort.StringSlice(files))
	return files, nil
}

// listUnits returns files of a stage directory, failing on errors.
func listUnits(opt *Options, dir string, pattern *regexp.Regexp) []string {
	isDir, err := pathutil.IsDir(dir)
	if err != nil || !isDir {
		checkError(fmt.Errorf("input directory not found: %s", dir))
	}
	files, err := getFileListFromDir(dir, pattern, opt.NumCPUs)
	checkError(errors.Wrapf(err, "walking dir: %s", dir))
	if len(files) == 0 {
		checkError(fmt.Errorf("no files matching regular expression %s in %s", pattern, dir))
	}
	return files
}

var (
	compressionExts = []string{".gz", ".xz", ".zst", ".bz2"}
	// longer suffixes first: ".afa" before ".fa"
	markerFileExts = []string{".faa", ".afa", ".fasta", ".fas", ".fa", ".aln",
		".nw", ".nwk", ".newick", ".treefile", ".tree", ".tre", ".txt", ".hmm"}
)

// trimSuffixFold removes the first matching suffix, case ignored.
func trimSuffixFold(name string, suffixes []string) (string, bool) {
	for _, suffix := range suffixes {
		n := len(name) - len(suffix)
		if n > 0 && strings.EqualFold(name[n:], suffix) {
			return name[:n], true
		}
	}
	return name, false
}

// markerName strips known extensions from the file name, so versioned
// accessions keep their dots: "PF00001.21.faa.gz" -> "PF00001.21".
// Trees produced by some tools carry prefixes such as "RAxML_bestTree.".
func markerName(file string) string {
	base := filepath.Base(file)
	for _, prefix := range []string{"RAxML_bestTree.", "RAxML_result."} {
		base = strings.TrimPrefix(base, prefix)
	}
	base, _ = trimSuffixFold(base, compressionExts)
	for ok := true; ok; {
		base, ok = trimSuffixFold(base, markerFileExts)
	}
	base = strings.TrimSuffix(base, ".singles")
	return base
}

func sortedKeys(m map[string]struct{}) []string {
	list := make([]string, 0, len(m))
	for k := range m {
		list = append(list, k)
	}
	sorts.Quicksort(sort.StringSlice(list))
	return list
}

func sortedKeysInt(m map[string]int) []string {
	list := make([]string, 0, len(m))
	for k := range m {
		list = append(list, k)
	}
	sorts.Quicksort(sort.StringSlice(list))
	return list
}
