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

package io

import (
	"io"
	"sync/atomic"

	fse "github.com/flanglet/fse-go"
	"github.com/hashicorp/go-multierror"
)

// DecompressingWriter a Writer that decompresses the compressed data
// written to it and pushes the decoded blocks to an underlying io.Writer.
// Concatenated streams are decoded one after the other.
type DecompressingWriter struct {
	dec     *Decompressor
	os      io.Writer
	closed  int32
	fed     uint64
	written uint64
}

// NewDecompressingWriter creates a new instance of DecompressingWriter.
// The decoded data is written to the provided os.
func NewDecompressingWriter(os io.Writer, checksum bool) (*DecompressingWriter, error) {
	ctx := make(map[string]any)
	ctx["checksum"] = checksum
	return NewDecompressingWriterWithCtx(os, ctx)
}

// NewDecompressingWriterWithCtx creates a new instance of DecompressingWriter
// using a map of parameters ('checksum', 'maxTableLog') and a writer.
func NewDecompressingWriterWithCtx(os io.Writer, ctx map[string]any) (*DecompressingWriter, error) {
	if os == nil {
		return nil, newIOError(fse.ERR_INVALID_PARAM, nil, "Invalid null output stream parameter")
	}

	if ctx == nil {
		return nil, newIOError(fse.ERR_INVALID_PARAM, nil, "Invalid null context parameter")
	}

	dec, err := NewDecompressorWithCtx(ctx)

	if err != nil {
		return nil, newIOError(fse.ERR_CREATE_DECOMPRESSOR, err, "Cannot create decompressor")
	}

	return &DecompressingWriter{dec: dec, os: os}, nil
}

// AddListener adds an event listener to this writer.
// Returns true if the listener has been added.
func (this *DecompressingWriter) AddListener(bl fse.Listener) bool {
	return this.dec.AddListener(bl)
}

// RemoveListener removes an event listener from this writer.
// Returns true if the listener has been removed.
func (this *DecompressingWriter) RemoveListener(bl fse.Listener) bool {
	return this.dec.RemoveListener(bl)
}

// Write consumes compressed data and writes every block decoded so far to
// the underlying stream. Returns the number of compressed bytes consumed.
func (this *DecompressingWriter) Write(block []byte) (int, error) {
	if atomic.LoadInt32(&this.closed) == 1 {
		return 0, newIOError(fse.ERR_WRITE_FILE, nil, "Stream closed")
	}

	off := 0

	for {
		if err := this.drain(); err != nil {
			return off, err
		}

		switch this.dec.State() {
		case INVALID_CHECKSUM:
			return off, newIOError(fse.ERR_CRC_CHECK, this.dec.Err(), "Invalid stream")

		case INVALID_DATA:
			return off, newIOError(fse.ERR_INVALID_FILE, this.dec.Err(), "Invalid stream")
		}

		if off == len(block) {
			return off, nil
		}

		n, err := this.dec.SetInput(block[off:])
		off += n
		atomic.AddUint64(&this.fed, uint64(n))

		if err != nil {
			return off, newIOError(fse.ERR_PROCESS_BLOCK, err, "Cannot decompress block")
		}

		if n == 0 && this.dec.State() == NEED_INPUT {
			return off, newIOError(fse.ERR_PROCESS_BLOCK, io.ErrNoProgress, "Cannot decompress block")
		}
	}
}

// Close checks that the last stream is complete, then closes the underlying
// stream if it is an io.Closer. Idempotent.
func (this *DecompressingWriter) Close() error {
	if atomic.SwapInt32(&this.closed, 1) == 1 {
		return nil
	}

	var res error

	if atomic.LoadUint64(&this.fed) > 0 && this.dec.State() != COMPLETED {
		res = multierror.Append(res, newIOError(fse.ERR_READ_FILE, io.ErrUnexpectedEOF,
			"Truncated stream, %d more bytes needed", this.dec.Needed()))
	}

	if c, ok := this.os.(io.Closer); ok == true {
		if err := c.Close(); err != nil {
			res = multierror.Append(res, newIOError(fse.ERR_WRITE_FILE, err, "Cannot close output stream"))
		}
	}

	return res
}

// GetWritten returns the number of decompressed bytes written so far
func (this *DecompressingWriter) GetWritten() uint64 {
	return atomic.LoadUint64(&this.written)
}

func (this *DecompressingWriter) drain() error {
	for this.dec.State() == WRITE_OUTPUT {
		out := this.dec.Output()
		n, err := this.os.Write(out)

		if n > 0 {
			atomic.AddUint64(&this.written, uint64(n))
			this.dec.Advance(n)
		}

		if err != nil {
			return newIOError(fse.ERR_WRITE_FILE, err, "Cannot write decompressed block")
		}

		if n < len(out) {
			return newIOError(fse.ERR_WRITE_FILE, io.ErrShortWrite, "Cannot write decompressed block")
		}
	}

	return nil
}
