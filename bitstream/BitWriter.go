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

// Package bitstream provides the bit packer and the backward bit reader
// used by the FSE block codec.
package bitstream

import (
	"encoding/binary"
	"errors"

	fse "github.com/flanglet/fse-go"
)

// BitWriter packs bit fields (least significant bits first) into a fixed
// destination slice. Capacity errors are sticky and reported by Close.
type BitWriter struct {
	dst    []byte
	pos    int    // number of bytes committed to dst
	bits   uint64 // pending bits, low 'nbBits' valid
	nbBits uint
	err    error
}

// NewBitWriter creates a new instance of BitWriter writing to dst
func NewBitWriter(dst []byte) (*BitWriter, error) {
	if dst == nil {
		return nil, errors.New("Invalid null destination parameter")
	}

	this := &BitWriter{}
	this.dst = dst
	return this, nil
}

// Reset rewinds the writer to the start of dst
func (this *BitWriter) Reset(dst []byte) {
	this.dst = dst
	this.pos = 0
	this.bits = 0
	this.nbBits = 0
	this.err = nil
}

// WriteBits appends the 'count' (in [0..31]) least significant bits of value.
func (this *BitWriter) WriteBits(value uint32, count uint) {
	if this.err != nil {
		return
	}

	if this.nbBits+count > 64 {
		if this.flush(); this.err != nil {
			return
		}
	}

	this.bits |= uint64(value&((1<<count)-1)) << this.nbBits
	this.nbBits += count
}

// Flush commits whole pending bytes to the destination once at least 32
// bits are pending.
func (this *BitWriter) Flush() {
	if this.nbBits >= 32 && this.err == nil {
		this.flush()
	}
}

func (this *BitWriter) flush() {
	nbBytes := int(this.nbBits >> 3)

	if this.pos+8 <= len(this.dst) {
		binary.LittleEndian.PutUint64(this.dst[this.pos:], this.bits)
	} else {
		if this.pos+nbBytes > len(this.dst) {
			this.err = fse.ErrDstTooSmall
			return
		}

		for i := 0; i < nbBytes; i++ {
			this.dst[this.pos+i] = byte(this.bits >> (uint(i) << 3))
		}
	}

	this.pos += nbBytes
	this.bits >>= uint(nbBytes) << 3
	this.nbBits &= 7
}

// Close writes the pending bits, including a partial last byte.
// Returns the total number of bytes written to the destination.
func (this *BitWriter) Close() (int, error) {
	if this.err == nil {
		this.flush()
	}

	if this.err != nil {
		return this.pos, this.err
	}

	if this.nbBits > 0 {
		if this.pos >= len(this.dst) {
			this.err = fse.ErrDstTooSmall
			return this.pos, this.err
		}

		this.dst[this.pos] = byte(this.bits)
		this.pos++
		this.bits = 0
		this.nbBits = 0
	}

	return this.pos, nil
}

// Written returns the number of bits written so far
func (this *BitWriter) Written() uint64 {
	return uint64(this.pos)<<3 + uint64(this.nbBits)
}

// Err returns the sticky capacity error, if any
func (this *BitWriter) Err() error {
	return this.err
}
