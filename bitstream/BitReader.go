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

package bitstream

import (
	"encoding/binary"
	"fmt"

	fse "github.com/flanglet/fse-go"
)

// BitReader reads back the bits produced by a BitWriter, starting from the
// end of the buffer (last written bits come out first). The last byte holds
// a sentinel bit marking the end of the data.
type BitReader struct {
	src    []byte // bytes not yet loaded
	bits   uint64 // loaded bits, low 'nbBits' valid
	nbBits uint
}

// NewBitReader creates a new instance of BitReader over src
func NewBitReader(src []byte) (*BitReader, error) {
	this := &BitReader{}

	if err := this.Reset(src); err != nil {
		return nil, err
	}

	return this, nil
}

// Reset positions the reader at the end of src, past the sentinel bit
func (this *BitReader) Reset(src []byte) error {
	if len(src) == 0 {
		return fmt.Errorf("empty bit stream: %w", fse.ErrInvalidData)
	}

	last := src[len(src)-1]

	if last == 0 {
		return fmt.Errorf("missing end of stream marker: %w", fse.ErrInvalidData)
	}

	this.src = src[:len(src)-1]
	this.bits = uint64(last)
	this.nbBits = uint(fse.Log2NoCheck(uint32(last)))
	return nil
}

// fill loads bytes until at least 'count' bits are available or the
// buffer is exhausted. 'count' must be at most 32.
func (this *BitReader) fill(count uint) {
	if this.nbBits >= count {
		return
	}

	if len(this.src) >= 4 {
		n := len(this.src) - 4
		this.bits = (this.bits << 32) | uint64(binary.LittleEndian.Uint32(this.src[n:]))
		this.nbBits += 32
		this.src = this.src[:n]
		return
	}

	for this.nbBits < count && len(this.src) > 0 {
		n := len(this.src) - 1
		this.bits = (this.bits << 8) | uint64(this.src[n])
		this.nbBits += 8
		this.src = this.src[:n]
	}
}

// PeekBits returns the next 'count' (in [0..32]) bits without consuming them.
// Returns false if fewer bits remain.
func (this *BitReader) PeekBits(count uint) (uint32, bool) {
	if count == 0 {
		return 0, true
	}

	this.fill(count)

	if this.nbBits < count {
		return 0, false
	}

	return uint32((this.bits >> (this.nbBits - count)) & ((uint64(1) << count) - 1)), true
}

// ReadBits returns and consumes the next 'count' (in [0..32]) bits.
// Returns false if fewer bits remain.
func (this *BitReader) ReadBits(count uint) (uint32, bool) {
	v, ok := this.PeekBits(count)

	if ok == true {
		this.nbBits -= count
	}

	return v, ok
}

// SkipBits consumes 'count' (in [0..32]) bits.
// Returns false if fewer bits remain.
func (this *BitReader) SkipBits(count uint) bool {
	this.fill(count)

	if this.nbBits < count {
		return false
	}

	this.nbBits -= count
	return true
}

// Remaining returns the number of bits not yet consumed
func (this *BitReader) Remaining() int {
	return len(this.src)<<3 + int(this.nbBits)
}

// Finished returns true when every bit has been consumed
func (this *BitReader) Finished() bool {
	return this.nbBits == 0 && len(this.src) == 0
}
