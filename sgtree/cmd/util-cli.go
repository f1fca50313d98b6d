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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/util/cliutil"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
)

var log = logging.MustGetLogger("sgtree")

func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

func isStdin(file string) bool {
	return file == "-"
}

func getFileListFromArgsAndFile(cmd *cobra.Command, args []string, checkFileFromArgs bool, flag string, checkFileFromFile bool) []string {
	infileList := cliutil.GetFlagString(cmd, flag)
	files := cliutil.GetFileList(args, checkFileFromArgs)
	if infileList != "" {
		_files, err := cliutil.GetFileListFromFile(infileList, checkFileFromFile)
		checkError(err)
		if len(_files) == 0 {
			log.Warningf("no files found in file list: %s", infileList)
			return files
		}

		if len(files) == 1 && isStdin(files[0]) {
			return _files
		}
		files = append(files, _files...)
	}
	return files
}

// readIDList reads one ID per line, the first column of tab-delimited
// lines, skipping blank and comment lines.
func readIDList(file string) (map[string]struct{}, error) {
	lines, err := readLines(file)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(lines))
	var id string
	for _, line := range lines {
		id = strings.TrimSpace(strings.SplitN(line, "\t", 2)[0])
		if id == "" || id[0] == '#' {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

func getFlagString(cmd *cobra.Command, flag string) string {
	value, err := cmd.Flags().GetString(flag)
	checkError(err)
	return value
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	value, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return value
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return value
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	value := getFlagInt(cmd, flag)
	if value <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be greater than 0", flag))
	}
	return value
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	value := getFlagInt(cmd, flag)
	if value < 0 {
		checkError(fmt.Errorf("value of flag --%s should be greater than or equal to 0", flag))
	}
	return value
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	value, err := cmd.Flags().GetFloat64(flag)
	checkError(err)
	return value
}

func getFlagPercentage(cmd *cobra.Command, flag string) float64 {
	value := getFlagFloat64(cmd, flag)
	if value < 0 || value > 100 {
		checkError(fmt.Errorf("value of flag --%s should be in range of [0, 100]", flag))
	}
	return value
}

// getFlagPath expands the home directory.
func getFlagPath(cmd *cobra.Command, flag string) string {
	value := getFlagString(cmd, flag)
	if value == "" {
		return value
	}
	value, err := homedir.Expand(value)
	checkError(errors.Wrapf(err, "expanding --%s", flag))
	return value
}

func getFlagStringSlice(cmd *cobra.Command, flag string) []string {
	value, err := cmd.Flags().GetStringSlice(flag)
	checkError(err)
	return value
}

// readLines returns non-empty lines of a file, plain or compressed.
func readLines(file string) ([]string, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()

	lines := make([]string, 0, 64)
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, BufferSize), 64<<20)
	var line string
	for scanner.Scan() {
		line = strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, file)
	}
	return lines, nil
}
