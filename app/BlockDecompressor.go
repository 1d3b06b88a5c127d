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

// BlockDecompressor main block decompressor struct
type BlockDecompressor struct {
	verbosity  uint
	overwrite  bool
	recursive  bool
	checksum   bool
	inputName  string
	outputName string
	info       string
	listeners  []fse.Listener
}

// NewBlockDecompressor creates a new instance of BlockDecompressor given
// a map of argument name/value pairs.
func NewBlockDecompressor(argsMap map[string]any) (*BlockDecompressor, error) {
	this := &BlockDecompressor{}
	this.listeners = make([]fse.Listener, 0)
	this.verbosity = 1
	this.recursive = true
	this.checksum = true

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

	if check, prst := argsMap["checksum"]; prst == true {
		this.checksum = check.(bool)
		delete(argsMap, "checksum")
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

// AddListener adds an event listener to this decompressor.
// Returns true if the listener has been added.
func (this *BlockDecompressor) AddListener(bl fse.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this decompressor.
// Returns true if the listener has been removed.
func (this *BlockDecompressor) RemoveListener(bl fse.Listener) bool {
	for i, e := range this.listeners {
		if e == bl {
			this.listeners = append(this.listeners[:i], this.listeners[i+1:]...)
			return true
		}
	}

	return false
}

// Decompress is the main function to decompress the files or directories.
// It returns the error code of the first failure (or 0) and the number
// of bytes read.
func (this *BlockDecompressor) Decompress() (int, uint64) {
	before := time.Now()

	if strings.ToUpper(this.outputName) == _APP_STDOUT {
		this.verbosity = 0
	}

	printFlag := this.verbosity > 2
	jobs, err := createJobs(this.inputName, this.outputName, this.recursive, internal.DecompressedName)

	if err != nil {
		fmt.Printf("%v\n", err)
		return errorCode(err), 0
	}

	if len(jobs) > 1 {
		log.Println(fmt.Sprintf("%d files to decompress\n", len(jobs)), this.verbosity > 0)
	} else {
		log.Println(fmt.Sprintf("%d file to decompress\n", len(jobs)), this.verbosity > 0)
	}

	log.Println(fmt.Sprintf("Verbosity set to %d", this.verbosity), printFlag)
	log.Println(fmt.Sprintf("Overwrite set to %t", this.overwrite), printFlag)
	log.Println(fmt.Sprintf("Checksum set to %t", this.checksum), printFlag)

	if len(this.info) > 0 {
		infoWriter := io.Writer(os.Stdout)

		if strings.ToUpper(this.outputName) == _APP_STDOUT {
			infoWriter = os.Stderr
		}

		if listener, err := NewInfoPrinter(this.info, DECODING, infoWriter); err == nil {
			this.AddListener(listener)
		}
	}

	var errs *multierror.Error
	code := 0
	read := uint64(0)
	written := uint64(0)

	for _, job := range jobs {
		res, err := this.decompressFile(job)
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
		log.Println("Total decoding time: "+formatDuration(time.Since(before)), this.verbosity > 0)
		log.Println(fmt.Sprintf("Total output size: %d bytes", written), this.verbosity > 0)
	}

	return code, read
}

func (this *BlockDecompressor) decompressFile(job fileJob) (fileResult, error) {
	res := fileResult{}
	printFlag := this.verbosity > 2
	log.Println("Input file name set to '"+job.inputName+"'", printFlag)
	log.Println("Output file name set to '"+job.outputName+"'", printFlag)

	input, err := openInput(job.inputName)

	if err != nil {
		return res, err
	}

	defer input.Close()
	counter := &countingReader{r: input}
	bufIn := bufio.NewReaderSize(counter, _APP_DEFAULT_BUFFER_SIZE)
	magic, _ := bufIn.Peek(4)

	if t := internal.GetMagicType(magic); t != internal.FSE_MAGIC {
		if internal.IsContainer(t) {
			return res, newFileError(fse.ERR_INVALID_CODEC, "Cannot decompress '%s': %v (tag %#x)",
				job.inputName, fse.ErrUnsupportedAlgorithm, t)
		}

		return res, newFileError(fse.ERR_INVALID_FILE, "Cannot decompress '%s': not an FSE compressed file", job.inputName)
	}

	output, err := createOutput(job.inputName, job.outputName, this.overwrite)

	if err != nil {
		return res, err
	}

	defer output.Close()

	ctx := make(map[string]any)
	ctx["checksum"] = this.checksum
	cis, err := kio.NewReaderWithCtx(bufIn, ctx)

	if err != nil {
		return res, err
	}

	for _, bl := range this.listeners {
		cis.AddListener(bl)
	}

	log.Println("\nDecoding "+job.inputName+" ...", this.verbosity > 1)
	before := time.Now()
	buffer := make([]byte, _APP_DEFAULT_BUFFER_SIZE)

	for {
		n, err := cis.Read(buffer)

		if n > 0 {
			if _, err := output.Write(buffer[0:n]); err != nil {
				res.read = counter.n
				return res, newFileError(fse.ERR_WRITE_FILE, "Failed to write decompressed block to file '%s': %v",
					job.outputName, err)
			}

			res.written += uint64(n)
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			res.read = counter.n

			if errors.Is(err, io.ErrUnexpectedEOF) {
				return res, newFileError(fse.ERR_READ_FILE, "Cannot decompress '%s': %v", job.inputName, err)
			}

			return res, err
		}
	}

	if err := cis.Close(); err != nil {
		res.read = counter.n
		return res, err
	}

	if err := output.Close(); err != nil {
		return res, newFileError(fse.ERR_WRITE_FILE, "Cannot close output file '%s': %v", job.outputName, err)
	}

	res.read = counter.n
	delta := time.Since(before)
	printFlag = this.verbosity > 1
	log.Println("", printFlag)
	log.Println("Decoding:          "+formatDuration(delta), printFlag)
	log.Println(fmt.Sprintf("Input size:        %d", res.read), printFlag)
	log.Println(fmt.Sprintf("Output size:       %d", res.written), printFlag)
	msg := fmt.Sprintf("Decoding %s: %d => %d bytes in %s", job.inputName, res.read, res.written, formatDuration(delta))
	log.Println(msg, this.verbosity == 1)

	if ms := delta.Milliseconds(); ms > 0 {
		log.Println(fmt.Sprintf("Throughput (KB/s): %d", (int64(res.written*1000)>>10)/ms), printFlag)
	}

	return res, nil
}

// countingReader counts the compressed bytes read from the input
type countingReader struct {
	r io.Reader
	n uint64
}

func (this *countingReader) Read(p []byte) (int, error) {
	n, err := this.r.Read(p)
	this.n += uint64(n)
	return n, err
}
