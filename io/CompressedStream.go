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

// Package io provides the FSE container format: non blocking compression
// and decompression sessions plus a Writer and a Reader built on top of them.
package io

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	fse "github.com/flanglet/fse-go"
	"github.com/hashicorp/go-multierror"
)

// Container layout:
// - file header: 4 byte little endian algorithm tag + 1 byte block size id
// - blocks: 1 byte header (bits 7-6 type, bit 5 full block) followed by
//   big endian sizes and the block content
// - trailing checksum block carrying 22 bits of the XXHash32 of the data

const (
	_STREAM_DEFAULT_BUFFER_SIZE = 64 * 1024
	_MAX_EMPTY_READS            = 100
)

// IOError an extended error containing a message and a code value
type IOError struct {
	msg  string
	code int
	err  error
}

// Error returns the underlying error
func (this IOError) Error() string {
	return fmt.Sprintf("%v (code %v)", this.msg, this.code)
}

// Message returns the message string associated with the error
func (this IOError) Message() string {
	return this.msg
}

// ErrorCode returns the code value associated with the error
func (this IOError) ErrorCode() int {
	return this.code
}

// Unwrap returns the cause of the error (may be nil)
func (this IOError) Unwrap() error {
	return this.err
}

func newIOError(code int, err error, format string, args ...any) *IOError {
	msg := fmt.Sprintf(format, args...)

	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}

	return &IOError{msg: msg, code: code, err: err}
}

// Writer a Writer that compresses data to an underlying io.Writer
type Writer struct {
	comp    *Compressor
	os      io.Writer
	closed  int32
	written uint64
}

// NewWriter creates a new instance of Writer.
// The writer writes compressed blocks of 2^blockSizeID KiB to the provided os.
func NewWriter(os io.Writer, blockSizeID, tableLog uint) (*Writer, error) {
	ctx := make(map[string]any)
	ctx["blockSizeId"] = blockSizeID
	ctx["tableLog"] = tableLog
	return NewWriterWithCtx(os, ctx)
}

// NewWriterWithCtx creates a new instance of Writer using a
// map of parameters ('blockSizeId', 'tableLog') and a writer.
func NewWriterWithCtx(os io.Writer, ctx map[string]any) (*Writer, error) {
	if os == nil {
		return nil, newIOError(fse.ERR_INVALID_PARAM, nil, "Invalid null output stream parameter")
	}

	if ctx == nil {
		return nil, newIOError(fse.ERR_INVALID_PARAM, nil, "Invalid null context parameter")
	}

	comp, err := NewCompressorWithCtx(ctx)

	if err != nil {
		return nil, newIOError(fse.ERR_CREATE_COMPRESSOR, err, "Cannot create compressor")
	}

	this := &Writer{}
	this.comp = comp
	this.os = os
	return this, nil
}

// AddListener adds an event listener to this writer.
// Returns true if the listener has been added.
func (this *Writer) AddListener(bl fse.Listener) bool {
	return this.comp.AddListener(bl)
}

// RemoveListener removes an event listener from this writer.
// Returns true if the listener has been removed.
func (this *Writer) RemoveListener(bl fse.Listener) bool {
	return this.comp.RemoveListener(bl)
}

// Write writes len(block) bytes from block to the underlying data stream.
// Returns the number of bytes written from block (0 <= n <= len(block)) and
// any error encountered that caused the write to stop early.
func (this *Writer) Write(block []byte) (int, error) {
	if atomic.LoadInt32(&this.closed) == 1 {
		return 0, newIOError(fse.ERR_WRITE_FILE, nil, "Stream closed")
	}

	off := 0

	for off < len(block) {
		n, err := this.comp.SetInput(block[off:])
		off += n

		if err != nil {
			return off, newIOError(fse.ERR_PROCESS_BLOCK, err, "Cannot compress block")
		}

		if err = this.drain(); err != nil {
			return off, err
		}
	}

	return off, nil
}

// Flush compresses the buffered data as a partial block and writes it
func (this *Writer) Flush() error {
	if atomic.LoadInt32(&this.closed) == 1 {
		return newIOError(fse.ERR_WRITE_FILE, nil, "Stream closed")
	}

	if err := this.comp.Flush(); err != nil {
		return newIOError(fse.ERR_PROCESS_BLOCK, err, "Cannot compress block")
	}

	return this.drain()
}

// Close writes the buffered data and the checksum block, then closes the
// underlying stream if it is an io.Closer. Idempotent.
func (this *Writer) Close() error {
	if atomic.SwapInt32(&this.closed, 1) == 1 {
		return nil
	}

	var res error

	if err := this.comp.Complete(); err != nil {
		res = multierror.Append(res, newIOError(fse.ERR_PROCESS_BLOCK, err, "Cannot compress block"))
	} else if err := this.drain(); err != nil {
		res = multierror.Append(res, err)
	}

	if c, ok := this.os.(io.Closer); ok == true {
		if err := c.Close(); err != nil {
			res = multierror.Append(res, newIOError(fse.ERR_WRITE_FILE, err, "Cannot close output stream"))
		}
	}

	return res
}

// GetWritten returns the number of compressed bytes written so far
func (this *Writer) GetWritten() uint64 {
	return atomic.LoadUint64(&this.written)
}

func (this *Writer) drain() error {
	for this.comp.State() == WRITE_OUTPUT {
		out := this.comp.Output()
		n, err := this.os.Write(out)

		if n > 0 {
			atomic.AddUint64(&this.written, uint64(n))
			this.comp.Advance(n)
		}

		if err != nil {
			return newIOError(fse.ERR_WRITE_FILE, err, "Cannot write compressed block")
		}

		if n < len(out) {
			return newIOError(fse.ERR_WRITE_FILE, io.ErrShortWrite, "Cannot write compressed block")
		}
	}

	return nil
}

// Reader a Reader that decompresses data read from an underlying io.Reader.
// Concatenated streams are decoded one after the other.
type Reader struct {
	dec        *Decompressor
	is         io.Reader
	buf        []byte
	bufStart   int
	bufEnd     int
	eof        bool
	emptyReads int
	closed     int32
	read       uint64
}

// NewReader creates a new instance of Reader.
// The reader reads compressed data from the provided is.
func NewReader(is io.Reader, checksum bool) (*Reader, error) {
	ctx := make(map[string]any)
	ctx["checksum"] = checksum
	return NewReaderWithCtx(is, ctx)
}

// NewReaderWithCtx creates a new instance of Reader using a map of
// parameters ('checksum', 'maxTableLog') and a reader.
func NewReaderWithCtx(is io.Reader, ctx map[string]any) (*Reader, error) {
	if is == nil {
		return nil, newIOError(fse.ERR_INVALID_PARAM, nil, "Invalid null input stream parameter")
	}

	if ctx == nil {
		return nil, newIOError(fse.ERR_INVALID_PARAM, nil, "Invalid null context parameter")
	}

	dec, err := NewDecompressorWithCtx(ctx)

	if err != nil {
		return nil, newIOError(fse.ERR_CREATE_DECOMPRESSOR, err, "Cannot create decompressor")
	}

	this := &Reader{}
	this.dec = dec
	this.is = is
	this.buf = make([]byte, _STREAM_DEFAULT_BUFFER_SIZE)
	return this, nil
}

// AddListener adds an event listener to this reader.
// Returns true if the listener has been added.
func (this *Reader) AddListener(bl fse.Listener) bool {
	return this.dec.AddListener(bl)
}

// RemoveListener removes an event listener from this reader.
// Returns true if the listener has been removed.
func (this *Reader) RemoveListener(bl fse.Listener) bool {
	return this.dec.RemoveListener(bl)
}

// Read reads up to len(block) bytes and copies them into block.
// Returns the number of bytes read (0 <= n <= len(block)) and any error encountered.
// io.EOF is returned when the end of stream is reached and io.ErrUnexpectedEOF
// when the underlying stream ends in the middle of a compressed stream.
func (this *Reader) Read(block []byte) (int, error) {
	if atomic.LoadInt32(&this.closed) == 1 {
		return 0, newIOError(fse.ERR_READ_FILE, nil, "Stream closed")
	}

	if len(block) == 0 {
		return 0, nil
	}

	for {
		switch this.dec.State() {
		case WRITE_OUTPUT:
			n := this.dec.CopyOutput(block)
			atomic.AddUint64(&this.read, uint64(n))
			return n, nil

		case INVALID_CHECKSUM:
			return 0, newIOError(fse.ERR_CRC_CHECK, this.dec.Err(), "Invalid stream")

		case INVALID_DATA:
			return 0, newIOError(fse.ERR_INVALID_FILE, this.dec.Err(), "Invalid stream")

		case COMPLETED:
			if this.bufStart == this.bufEnd {
				if err := this.fill(); err != nil {
					return 0, err
				}

				if this.bufStart == this.bufEnd && this.eof == true {
					return 0, io.EOF
				}

				continue
			}

			// Another stream follows
			if err := this.feed(); err != nil {
				return 0, err
			}

		default:
			if this.bufStart == this.bufEnd {
				if this.eof == true {
					return 0, io.ErrUnexpectedEOF
				}

				if err := this.fill(); err != nil {
					return 0, err
				}

				continue
			}

			if err := this.feed(); err != nil {
				return 0, err
			}
		}
	}
}

func (this *Reader) feed() error {
	n, err := this.dec.SetInput(this.buf[this.bufStart:this.bufEnd])
	this.bufStart += n

	if err != nil {
		return newIOError(fse.ERR_PROCESS_BLOCK, err, "Cannot decompress block")
	}

	return nil
}

func (this *Reader) fill() error {
	if this.eof == true {
		return nil
	}

	n, err := this.is.Read(this.buf)
	this.bufStart = 0
	this.bufEnd = n

	if n == 0 && err == nil {
		this.emptyReads++

		if this.emptyReads >= _MAX_EMPTY_READS {
			return newIOError(fse.ERR_READ_FILE, io.ErrNoProgress, "Cannot read compressed stream")
		}

		return nil
	}

	this.emptyReads = 0

	if err != nil {
		if errors.Is(err, io.EOF) == false {
			return newIOError(fse.ERR_READ_FILE, err, "Cannot read compressed stream")
		}

		this.eof = true
	}

	return nil
}

// Close releases resources and closes the underlying stream if it is an
// io.Closer. Idempotent.
func (this *Reader) Close() error {
	if atomic.SwapInt32(&this.closed, 1) == 1 {
		return nil
	}

	this.bufStart = 0
	this.bufEnd = 0

	if c, ok := this.is.(io.Closer); ok == true {
		if err := c.Close(); err != nil {
			return newIOError(fse.ERR_READ_FILE, err, "Cannot close input stream")
		}
	}

	return nil
}

// GetRead returns the number of decompressed bytes read so far
func (this *Reader) GetRead() uint64 {
	return atomic.LoadUint64(&this.read)
}

// CompressBytes compresses src into a complete stream using blocks of
// 2^blockSizeID KiB
func CompressBytes(src []byte, blockSizeID uint) ([]byte, error) {
	comp, err := NewCompressor(blockSizeID, 0)

	if err != nil {
		return nil, err
	}

	dst := make([]byte, 0, len(src)/2+16)
	off := 0

	for off < len(src) {
		n, err := comp.SetInput(src[off:])
		off += n

		if err != nil {
			return nil, err
		}

		dst = drainCompressor(comp, dst)
	}

	if err := comp.Complete(); err != nil {
		return nil, err
	}

	return drainCompressor(comp, dst), nil
}

func drainCompressor(comp *Compressor, dst []byte) []byte {
	for comp.State() == WRITE_OUTPUT {
		out := comp.Output()
		dst = append(dst, out...)
		comp.Advance(len(out))
	}

	return dst
}

// DecompressBytes decompresses the stream(s) in src
func DecompressBytes(src []byte) ([]byte, error) {
	dec, err := NewDecompressor()

	if err != nil {
		return nil, err
	}

	dst := make([]byte, 0, 2*len(src))
	off := 0

	for {
		switch dec.State() {
		case WRITE_OUTPUT:
			out := dec.Output()
			dst = append(dst, out...)
			dec.Advance(len(out))
			continue

		case INVALID_DATA, INVALID_CHECKSUM:
			return nil, dec.Err()

		case COMPLETED:
			if off == len(src) {
				return dst, nil
			}

		default:
			if off == len(src) {
				return nil, fmt.Errorf("Truncated stream, %d more bytes needed: %w", dec.Needed(), fse.ErrInvalidData)
			}
		}

		n, err := dec.SetInput(src[off:])
		off += n

		if err != nil {
			return nil, err
		}
	}
}

func removeListener(listeners *[]fse.Listener, bl fse.Listener) bool {
	if bl == nil {
		return false
	}

	for i, e := range *listeners {
		if e == bl {
			*listeners = append((*listeners)[:i], (*listeners)[i+1:]...)
			return true
		}
	}

	return false
}

func notifyListeners(listeners []fse.Listener, evt *fse.Event) {
	defer func() {
		//nolint
		if r := recover(); r != nil {
			//lint:ignore SA9003
			// Ignore panics in block listeners
		}
	}()

	for _, bl := range listeners {
		bl.ProcessEvent(evt)
	}
}
