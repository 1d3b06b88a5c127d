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
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"

	fse "github.com/flanglet/fse-go"
	kio "github.com/flanglet/fse-go/io"
	"github.com/urfave/cli/v2"
)

const (
	APP_HEADER = "FSE 1.0 (C) 2024,  Frederic Langlet"
)

var (
	mutex sync.Mutex
	log   = Printer{os: bufio.NewWriter(os.Stdout)}
)

func main() {
	os.Exit(run(os.Args))
}

// run executes the command line and returns the process exit status
func run(args []string) int {
	status := 0
	app := newApp(&status)

	if err := app.Run(args); err != nil {
		fmt.Printf("%v\n", err)

		if status == 0 {
			status = fse.ERR_INVALID_PARAM
		}
	}

	return status
}

func newApp(status *int) *cli.App {
	common := []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input file or directory (or 'STDIN')"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file or directory (or 'NONE', 'STDOUT')"},
		&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite existing output files"},
		&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Value: true, Usage: "process sub-directories"},
		&cli.UintFlag{Name: "verbose", Aliases: []string{"v"}, Value: 1, Usage: "verbosity level [0..4]"},
		&cli.StringFlag{Name: "info", Usage: "print block information ('text' or 'csv')"},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML file providing default option values"},
	}

	compressFlags := append([]cli.Flag{
		&cli.UintFlag{Name: "block", Aliases: []string{"b"}, Value: fse.DEFAULT_BLOCK_SIZE_ID,
			Usage: "block size id, blocks are 2^id KiB [0..6]"},
		&cli.UintFlag{Name: "table-log", Aliases: []string{"t"}, Value: fse.DEFAULT_TABLELOG,
			Usage: "maximum FSE table log [5..15]"},
	}, common...)

	decompressFlags := append([]cli.Flag{
		&cli.BoolFlag{Name: "checksum", Aliases: []string{"x"}, Value: true, Usage: "verify the stream checksum"},
	}, common...)

	return &cli.App{
		Name:        "fse",
		Usage:       "Compress and decompress files with the FSE entropy codec",
		Description: APP_HEADER,
		Commands: []*cli.Command{
			{
				Name:      "compress",
				Usage:     "Compress a file or a directory",
				ArgsUsage: "[INPUT]",
				Flags:     compressFlags,
				Action: func(c *cli.Context) error {
					argsMap, err := buildArgs(c, true)

					if err != nil {
						*status = fse.ERR_INVALID_PARAM
						return err
					}

					*status = compress(argsMap)
					return nil
				},
			},
			{
				Name:      "decompress",
				Usage:     "Decompress a file or a directory",
				ArgsUsage: "[INPUT]",
				Flags:     decompressFlags,
				Action: func(c *cli.Context) error {
					argsMap, err := buildArgs(c, false)

					if err != nil {
						*status = fse.ERR_INVALID_PARAM
						return err
					}

					*status = decompress(argsMap)
					return nil
				},
			},
		},
	}
}

func compress(argsMap map[string]any) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("An unexpected error occurred during compression: %v\n", r)
			code = fse.ERR_UNKNOWN
		}
	}()

	bc, err := NewBlockCompressor(argsMap)

	if err != nil {
		fmt.Printf("Failed to create block compressor: %v\n", err)
		return fse.ERR_CREATE_COMPRESSOR
	}

	code, _ = bc.Compress()
	return code
}

func decompress(argsMap map[string]any) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("An unexpected error occurred during decompression: %v\n", r)
			code = fse.ERR_UNKNOWN
		}
	}()

	bd, err := NewBlockDecompressor(argsMap)

	if err != nil {
		fmt.Printf("Failed to create block decompressor: %v\n", err)
		return fse.ERR_CREATE_DECOMPRESSOR
	}

	code, _ = bd.Decompress()
	return code
}

// fileError an error carrying the exit code of a failed file operation
type fileError struct {
	msg  string
	code int
}

func newFileError(code int, format string, args ...any) *fileError {
	return &fileError{msg: fmt.Sprintf(format, args...), code: code}
}

// Error returns the message of the error
func (this fileError) Error() string {
	return this.msg
}

// ErrorCode returns the exit code of the error
func (this fileError) ErrorCode() int {
	return this.code
}

// errorCode extracts the exit code carried by err (or one of its causes)
func errorCode(err error) int {
	var fErr *fileError
	var ioErr *kio.IOError

	if errors.As(err, &fErr) {
		return fErr.ErrorCode()
	}

	if errors.As(err, &ioErr) {
		return ioErr.ErrorCode()
	}

	return fse.ERR_UNKNOWN
}

// Printer a buffered printer (required in concurrent code)
type Printer struct {
	os *bufio.Writer
}

// Println concurrently safe version (order wise) of Println
func (this *Printer) Println(msg string, printFlag bool) {
	if printFlag == true {
		mutex.Lock()

		// Best effort, ignore error
		if w, _ := this.os.Write([]byte(msg + "\n")); w > 0 {
			_ = this.os.Flush()
		}

		mutex.Unlock()
	}
}
