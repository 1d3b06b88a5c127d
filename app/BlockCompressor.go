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
	"io"
	"os"
	"strings"
	"time"

	fse "github.com/flanglet/fse-go"
	"github.com/flanglet/fse-go/internal"
	kio "github.com/flanglet/fse-go/io"
	"github.com/hashicorp/go-multierror"
)

// BlockCompressor main block compressor struct
type BlockCompressor struct {
	verbosity   uint
	overwrite   bool
	recursive   bool
	inputName   string
	outputName  string
	blockSizeID uint
	tableLog    uint
	info        string
	listeners   []fse.Listener
}

// NewBlockCompressor creates a new instance of BlockCompressor given
// a map of argument name/value pairs.
func NewBlockCompressor(argsMap map[string]any) (*BlockCompressor, error) {
	this := &BlockCompressor{}
	this.listeners = make([]fse.Listener, 0)
	this.verbosity = 1
	this.recursive = true
	this.blockSizeID = fse.DEFAULT_BLOCK_SIZE_ID
	this.tableLog = fse.DEFAULT_TABLELOG

	if name, prst := argsMap["inputName"]; prst == true {
		this.inputName = name.(string)
		delete(argsMap, "inputName")
	} else {
		return nil, errors.New("missing input name")
	}

	if name, prst := argsMap["outputName"]; prst == true {
		this.outputName = name.(string)
		delete(argsMap, "outputName")
	}

	if force, prst := argsMap["overwrite"]; prst == true {
		this.overwrite = force.(bool)
		delete(argsMap, "overwrite")
	}

	if rec, prst := argsMap["recursive"]; prst == true {
		this.recursive = rec.(bool)
		delete(argsMap, "recursive")
	}

	if id, prst := argsMap["blockSizeId"]; prst == true {
		this.blockSizeID = id.(uint)
		delete(argsMap, "blockSizeId")

		if this.blockSizeID > fse.MAX_BLOCK_SIZE_ID {
			return nil, fmt.Errorf("Invalid block size id %d, must be in [0..%d]", this.blockSizeID, fse.MAX_BLOCK_SIZE_ID)
		}
	}

	if logMax, prst := argsMap["tableLog"]; prst == true {
		this.tableLog = logMax.(uint)
		delete(argsMap, "tableLog")

		if this.tableLog < fse.MIN_TABLELOG || this.tableLog > fse.MAX_TABLELOG {
			return nil, fmt.Errorf("Invalid table log %d, must be in [%d..%d]", this.tableLog, fse.MIN_TABLELOG, fse.MAX_TABLELOG)
		}
	}

	if verbose, prst := argsMap["verbose"]; prst == true {
		this.verbosity = verbose.(uint)
		delete(argsMap, "verbose")
	}

	if info, prst := argsMap["info"]; prst == true {
		this.info = info.(string)
		delete(argsMap, "info")
	}

	if this.verbosity > 0 && len(argsMap) > 0 {
		for k := range argsMap {
			log.Println("Ignoring invalid option ["+k+"]", true)
		}
	}

	return this, nil
}

// AddListener adds an event listener to this compressor.
// Returns true if the listener has been added.
func (this *BlockCompressor) AddListener(bl fse.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this compressor.
// Returns true if the listener has been removed.
func (this *BlockCompressor) RemoveListener(bl fse.Listener) bool {
	for i, e := range this.listeners {
		if e == bl {
			this.listeners = append(this.listeners[:i], this.listeners[i+1:]...)
			return true
		}
	}

	return false
}

// Compress is the main function to compress the files or directories.
// It returns the error code of the first failure (or 0) and the number
// of bytes written.
func (this *BlockCompressor) Compress() (int, uint64) {
	before := time.Now()

	if strings.ToUpper(this.outputName) == _APP_STDOUT {
		this.verbosity = 0
	}

	printFlag := this.verbosity > 2
	jobs, err := createJobs(this.inputName, this.outputName, this.recursive, internal.CompressedName)

	if err != nil {
		fmt.Printf("%v\n", err)
		return errorCode(err), 0
	}

	if len(jobs) > 1 {
		log.Println(fmt.Sprintf("%d files to compress\n", len(jobs)), this.verbosity > 0)
	} else {
		log.Println(fmt.Sprintf("%d file to compress\n", len(jobs)), this.verbosity > 0)
	}

	log.Println(fmt.Sprintf("Block size set to %d bytes", fse.BlockSize(this.blockSizeID)), printFlag)
	log.Println(fmt.Sprintf("Table log set to %d", this.tableLog), printFlag)
	log.Println(fmt.Sprintf("Verbosity set to %d", this.verbosity), printFlag)
	log.Println(fmt.Sprintf("Overwrite set to %t", this.overwrite), printFlag)

	if len(this.info) > 0 {
		infoWriter := io.Writer(os.Stdout)

		if strings.ToUpper(this.outputName) == _APP_STDOUT {
			infoWriter = os.Stderr
		}

		if listener, err := NewInfoPrinter(this.info, ENCODING, infoWriter); err == nil {
			this.AddListener(listener)
		}
	}

	var errs *multierror.Error
	code := 0
	read := uint64(0)
	written := uint64(0)

	for _, job := range jobs {
		res, err := this.compressFile(job)
		read += res.read
		written += res.written

		if err != nil {
			errs = multierror.Append(errs, err)

			if code == 0 {
				code = errorCode(err)
			}
		}
	}

	if errs != nil {
		fmt.Printf("%v\n", errs)
	}

	if len(jobs) > 1 {
		log.Println("", this.verbosity > 0)
		log.Println("Total encoding time: "+formatDuration(time.Since(before)), this.verbosity > 0)
		log.Println(fmt.Sprintf("Total output size: %d bytes", written), this.verbosity > 0)

		if read > 0 {
			log.Println(fmt.Sprintf("Compression ratio: %f", float64(written)/float64(read)), this.verbosity > 0)
		}
	}

	return code, written
}

func (this *BlockCompressor) compressFile(job fileJob) (fileResult, error) {
	res := fileResult{}
	printFlag := this.verbosity > 2
	log.Println("Input file name set to '"+job.inputName+"'", printFlag)
	log.Println("Output file name set to '"+job.outputName+"'", printFlag)

	input, err := openInput(job.inputName)

	if err != nil {
		return res, err
	}

	defer input.Close()
	bufIn := bufio.NewReaderSize(input, _APP_DEFAULT_BUFFER_SIZE)

	if magic, err := bufIn.Peek(4); err == nil {
		if t := internal.GetMagicType(magic); internal.IsDataCompressed(t) {
			log.Println(fmt.Sprintf("Warning: input file '%s' is already compressed (magic %#x)", job.inputName, t),
				this.verbosity > 0)
		}
	}

	output, err := createOutput(job.inputName, job.outputName, this.overwrite)

	if err != nil {
		return res, err
	}

	defer output.Close()

	ctx := make(map[string]any)
	ctx["blockSizeId"] = this.blockSizeID
	ctx["tableLog"] = this.tableLog
	cos, err := kio.NewWriterWithCtx(output, ctx)

	if err != nil {
		return res, err
	}

	for _, bl := range this.listeners {
		cos.AddListener(bl)
	}

	log.Println("\nEncoding "+job.inputName+" ...", this.verbosity > 1)
	before := time.Now()
	buffer := make([]byte, _APP_DEFAULT_BUFFER_SIZE)

	for {
		n, err := bufIn.Read(buffer)

		if n > 0 {
			res.read += uint64(n)

			if _, err := cos.Write(buffer[0:n]); err != nil {
				res.written = cos.GetWritten()
				return res, err
			}
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			res.written = cos.GetWritten()
			return res, newFileError(fse.ERR_READ_FILE, "Failed to read block from file '%s': %v", job.inputName, err)
		}
	}

	// Also closes the output file
	if err := cos.Close(); err != nil {
		res.written = cos.GetWritten()
		return res, err
	}

	res.written = cos.GetWritten()
	delta := time.Since(before)

	if res.read == 0 {
		log.Println(fmt.Sprintf("Input file %s is empty", job.inputName), this.verbosity > 1)
	}

	printFlag = this.verbosity > 1
	log.Println("", printFlag)
	log.Println("Encoding:          "+formatDuration(delta), printFlag)
	log.Println(fmt.Sprintf("Input size:        %d", res.read), printFlag)
	log.Println(fmt.Sprintf("Output size:       %d", res.written), printFlag)

	if res.read > 0 {
		log.Println(fmt.Sprintf("Compression ratio: %f", float64(res.written)/float64(res.read)), printFlag)
	}

	msg := fmt.Sprintf("Encoding %s: %d => %d bytes in %s", job.inputName, res.read, res.written, formatDuration(delta))
	log.Println(msg, this.verbosity == 1)

	if ms := delta.Milliseconds(); ms > 0 {
		log.Println(fmt.Sprintf("Throughput (KB/s): %d", (int64(res.read*1000)>>10)/ms), printFlag)
	}

	return res, nil
}
