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
	"runtime"

	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "sgtree",
	Short: "Single-copy marker curation and supermatrix assembly for species trees",
	Long: fmt.Sprintf(`
    Program: sgtree (Species tree from single-copy marker Genes)
    Version: v%s

sgtree curates marker-gene hits of many genomes into a gap-free,
single-copy-per-genome supermatrix for species-tree inference.

Stages, each reading the output of the previous one from the run directory:

    curate      clean hit tables, drop incomplete genomes, bound duplicates
    extract     write per-marker FASTA files from proteomes
    dedup       keep the best-scoring sequences per genome in alignments
    select      resolve paralogs in marker trees with a reference tree
    singles     drop leaves whose neighbors disagree with the reference tree
    prune-aln   keep aligned sequences present in the final marker trees
    concat      assemble the supermatrix

Alignment, trimming and tree inference are done by external tools.

`, VERSION),
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

func init() {

	defaultThreads := runtime.NumCPU()

	RootCmd.PersistentFlags().IntP("threads", "j", defaultThreads, "number of CPUs to use")
	RootCmd.PersistentFlags().BoolP("quiet", "q", false, "do not print any verbose information")
	RootCmd.PersistentFlags().StringP("log", "", "", "log file")
	RootCmd.PersistentFlags().StringP("infile-list", "i", "", "file of input files list (one file per line), if given, they are appended to files from cli arguments")
	RootCmd.PersistentFlags().StringP("metrics-file", "", "", "write stage metrics in Prometheus text format to this file")
}
