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
	"os"

	colorable "github.com/mattn/go-colorable"
	"github.com/shenwei356/go-logging"
)

var logFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{color}[%{level:.4s}]%{color:reset} %{message}`,
)

var logFormatPlain = logging.MustStringFormatter(
	`%{time:15:04:05.000} [%{level:.4s}] %{message}`,
)

// InitLogger sets the colored stderr backend.
func InitLogger() {
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	logging.SetBackend(logging.NewBackendFormatter(backend, logFormat))
}

// addLog writes log to a file too, and only to the file if not verbose.
func addLog(file string, verbose bool) *os.File {
	w, err := os.Create(file)
	checkError(err)

	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, logFormat)

	backend2 := logging.NewLogBackend(w, "", 0)
	backendFormatter2 := logging.NewBackendFormatter(backend2, logFormatPlain)

	if verbose {
		logging.SetBackend(backendFormatter, backendFormatter2)
	} else {
		logging.SetBackend(backendFormatter2)
	}
	return w
}
