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
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"gopkg.in/yaml.v2"
)

const runInfoFile = "__sgtree.yml"

// ErrVersionMismatch indicates mismatched version
var ErrVersionMismatch = errors.New("sgtree: run info version mismatch")

// RunInfoVersion is the version of the run info file.
const RunInfoVersion uint8 = 1

// RunInfo is the manifest of a run directory.
type RunInfo struct {
	Version     uint8  `yaml:"version"`
	Program     string `yaml:"program"`
	RunID       string `yaml:"run-id"`
	Created     string `yaml:"created"`
	ModelCount  int    `yaml:"model-count"`
	ScoreField  int    `yaml:"score-field"`
	Reference   string `yaml:"reference,omitempty"`
	Fingerprint string `yaml:"supermatrix-xxh3,omitempty"`

	Stages map[string]*StageInfo `yaml:"stages"`
}

// StageInfo records the parameters and counts of one stage.
type StageInfo struct {
	Finished string            `yaml:"finished"`
	Elapsed  string            `yaml:"elapsed"`
	Params   map[string]string `yaml:"params,omitempty"`
	Counts   map[string]int    `yaml:"counts,omitempty"`
	Failed   []string          `yaml:"failed,omitempty"`
}

func (i RunInfo) String() string {
	return fmt.Sprintf("sgtree run (v%d): %s, created: %s, #models: %d, score field: %d, stages: %d",
		i.Version, i.RunID, i.Created, i.ModelCount, i.ScoreField, len(i.Stages))
}

// NewRunInfo creates a RunInfo with a new run ID.
func NewRunInfo(modelCount int, scoreField int) *RunInfo {
	return &RunInfo{
		Version:    RunInfoVersion,
		Program:    "sgtree v" + VERSION,
		RunID:      uuid.New().String(),
		Created:    time.Now().Format(time.RFC3339),
		ModelCount: modelCount,
		ScoreField: scoreField,
		Stages:     make(map[string]*StageInfo, 8),
	}
}

// RunInfoFromDir reads the manifest of a run directory.
func RunInfoFromDir(dir string) (*RunInfo, error) {
	file := filepath.Join(dir, runInfoFile)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("fail to read sgtree run info file: %s", file)
	}

	info := &RunInfo{}
	if err = yaml.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("fail to unmarshal sgtree run info: %s", file)
	}
	if info.Version != RunInfoVersion {
		return nil, ErrVersionMismatch
	}
	if info.Stages == nil {
		info.Stages = make(map[string]*StageInfo, 8)
	}
	return info, nil
}

// WriteTo dumps RunInfo to the run directory.
func (i *RunInfo) WriteTo(dir string) (int, error) {
	data, err := yaml.Marshal(i)
	if err != nil {
		return 0, fmt.Errorf("fail to marshal run info")
	}

	dirExisted, err := pathutil.DirExists(dir)
	if err != nil {
		return 0, errors.Wrap(err, dir)
	}
	if !dirExisted {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return 0, errors.Wrap(err, dir)
		}
	}

	file := filepath.Join(dir, runInfoFile)
	if err = os.WriteFile(file, data, 0644); err != nil {
		return 0, fmt.Errorf("fail to write sgtree run info file: %s", file)
	}
	return len(data), nil
}

// CompatibleWith checks whether hits of two runs can be merged.
func (i RunInfo) CompatibleWith(j RunInfo) bool {
	return i.Version == j.Version &&
		i.ModelCount == j.ModelCount &&
		i.ScoreField == j.ScoreField
}

// recordStage adds a stage to the manifest of a run directory.
func recordStage(runDir string, name string, timeStart time.Time, params map[string]string, counts map[string]int, failed []string) {
	info, err := RunInfoFromDir(runDir)
	checkError(err)
	info.Stages[name] = &StageInfo{
		Finished: time.Now().Format(time.RFC3339),
		Elapsed:  time.Since(timeStart).String(),
		Params:   params,
		Counts:   counts,
		Failed:   failed,
	}
	_, err = info.WriteTo(runDir)
	checkError(err)
}
