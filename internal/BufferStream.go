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

package internal

import (
	"bytes"
	"errors"
)

// ErrStreamClosed is returned by a closed BufferStream
var ErrStreamClosed = errors.New("stream closed")

// BufferStream a closable read/write stream of bytes backed by a bytes.Buffer.
// Closing twice returns ErrStreamClosed.
type BufferStream struct {
	buf    *bytes.Buffer
	closed bool
}

// NewBufferStream creates a new instance of BufferStream, optionally
// initialized with the provided content
func NewBufferStream(args ...[]byte) *BufferStream {
	this := &BufferStream{}

	if len(args) == 1 {
		this.buf = bytes.NewBuffer(args[0])
	} else {
		this.buf = bytes.NewBuffer(make([]byte, 0))
	}

	return this
}

// Write appends the data to the stream
func (this *BufferStream) Write(b []byte) (int, error) {
	if this.closed == true {
		return 0, ErrStreamClosed
	}

	return this.buf.Write(b)
}

// Read reads from the current read position.
// Returns (0, io.EOF) when no more data remains.
func (this *BufferStream) Read(b []byte) (int, error) {
	if this.closed == true {
		return 0, ErrStreamClosed
	}

	return this.buf.Read(b)
}

// Close makes the stream unavailable for future reads or writes
func (this *BufferStream) Close() error {
	if this.closed == true {
		return ErrStreamClosed
	}

	this.closed = true
	return nil
}

// Closed returns true once Close has been called
func (this *BufferStream) Closed() bool {
	return this.closed
}

// Bytes returns the unread content, even after Close
func (this *BufferStream) Bytes() []byte {
	return this.buf.Bytes()
}

// Len returns the number of unread bytes
func (this *BufferStream) Len() int {
	return this.buf.Len()
}
