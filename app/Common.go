/*
Copyright 2011-2024 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	fse "github.com/flanglet/fse-go"
	"github.com/flanglet/fse-go/internal"
)

const (
	_APP_DEFAULT_BUFFER_SIZE = 65536
	_APP_NONE                = "NONE"
	_APP_STDIN               = "STDIN"
	_APP_STDOUT              = "STDOUT"
)

type fileResult struct {
	read    uint64
	written uint64
}

// fileJob one input/output file pair
type fileJob struct {
	inputName  string
	outputName string
	size       int64
}

// nopCloser prevents the streams from closing stdout
type nopCloser struct {
	io.Writer
}

// Close does nothing
func (nopCloser) Close() error {
	return nil
}

// createJobs lists the input files and computes the output names.
// A directory input requires a directory output (or a special output).
func createJobs(inputName, outputName string, recursive bool, rename func(string) string) ([]fileJob, error) {
	if strings.ToUpper(inputName) == _APP_STDIN {
		if len(outputName) == 0 {
			outputName = _APP_STDOUT
		}

		return []fileJob{{inputName: _APP_STDIN, outputName: outputName, size: -1}}, nil
	}

	fi, err := os.Stat(inputName)

	if err != nil {
		return nil, newFileError(fse.ERR_OPEN_FILE, "Cannot access input file '%s'", inputName)
	}

	files, err := internal.CreateFileList(inputName, make([]internal.FileData, 0, 16), recursive, true)

	if err != nil {
		return nil, newFileError(fse.ERR_OPEN_FILE, "Cannot list input files: %v", err)
	}

	if len(files) == 0 {
		return nil, newFileError(fse.ERR_OPEN_FILE, "Cannot open input file '%s'", inputName)
	}

	sort.Sort(internal.NewFileCompare(files))
	specialOutput := isSpecialOutput(outputName)
	jobs := make([]fileJob, 0, len(files))

	if fi.IsDir() == false {
		oName := outputName

		if len(oName) == 0 {
			oName = rename(inputName)
		} else if specialOutput == false {
			if ofi, err := os.Stat(oName); err == nil && ofi.IsDir() {
				return nil, newFileError(fse.ERR_OUTPUT_IS_DIR, "Output must be a file (or 'NONE')")
			}
		}

		return append(jobs, fileJob{inputName: inputName, outputName: oName, size: files[0].Size}), nil
	}

	if len(outputName) > 0 && specialOutput == false {
		ofi, err := os.Stat(outputName)

		if err != nil {
			return nil, newFileError(fse.ERR_OPEN_FILE, "Output must be an existing directory (or 'NONE')")
		}

		if ofi.IsDir() == false {
			return nil, newFileError(fse.ERR_CREATE_FILE, "Output must be a directory (or 'NONE')")
		}
	}

	if strings.ToUpper(outputName) == _APP_STDOUT && len(files) > 1 {
		return nil, newFileError(fse.ERR_CREATE_FILE, "Cannot output multiple files to STDOUT")
	}

	for _, f := range files {
		oName := outputName

		if len(oName) == 0 {
			oName = rename(f.FullPath)
		} else if specialOutput == false {
			rel, err := filepath.Rel(inputName, f.FullPath)

			if err != nil {
				return nil, newFileError(fse.ERR_CREATE_FILE, "Cannot compute output name for '%s'", f.FullPath)
			}

			oName = rename(filepath.Join(outputName, rel))
		}

		jobs = append(jobs, fileJob{inputName: f.FullPath, outputName: oName, size: f.Size})
	}

	return jobs, nil
}

func isSpecialOutput(name string) bool {
	name = strings.ToUpper(name)
	return name == _APP_NONE || name == _APP_STDOUT
}

// openInput opens the named file (or stdin)
func openInput(inputName string) (io.ReadCloser, error) {
	if strings.ToUpper(inputName) == _APP_STDIN {
		return io.NopCloser(os.Stdin), nil
	}

	input, err := os.Open(inputName)

	if err != nil {
		return nil, newFileError(fse.ERR_OPEN_FILE, "Cannot open input file '%s': %v", inputName, err)
	}

	return input, nil
}

// createOutput creates the named file (or a null/stdout sink) after the
// overwrite checks
func createOutput(inputName, outputName string, overwrite bool) (io.WriteCloser, error) {
	switch strings.ToUpper(outputName) {
	case _APP_NONE:
		return nopCloser{io.Discard}, nil

	case _APP_STDOUT:
		return nopCloser{os.Stdout}, nil
	}

	if internal.IsReservedName(filepath.Base(outputName)) {
		return nil, newFileError(fse.ERR_CREATE_FILE, "Invalid output file name '%s'", outputName)
	}

	if fi, err := os.Stat(outputName); err == nil {
		if fi.IsDir() {
			return nil, newFileError(fse.ERR_OUTPUT_IS_DIR, "Output file '%s' is a directory", outputName)
		}

		if overwrite == false {
			return nil, newFileError(fse.ERR_OVERWRITE_FILE,
				"File '%s' exists and the 'force' command line option has not been provided", outputName)
		}

		path1, _ := filepath.Abs(inputName)
		path2, _ := filepath.Abs(outputName)

		if path1 == path2 {
			return nil, newFileError(fse.ERR_CREATE_FILE, "The input and output files must be different")
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputName), os.ModePerm); err != nil {
		return nil, newFileError(fse.ERR_CREATE_FILE, "Cannot create output directory for '%s': %v", outputName, err)
	}

	output, err := os.Create(outputName)

	if err != nil {
		return nil, newFileError(fse.ERR_CREATE_FILE, "Cannot open output file '%s' for writing: %v", outputName, err)
	}

	return output, nil
}

func formatDuration(delta time.Duration) string {
	ms := delta.Milliseconds()

	if ms >= 100000 {
		return fmt.Sprintf("%.1f s", float64(ms)/1000)
	}

	return fmt.Sprintf("%d ms", ms)
}
