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

// Package hash provides the running checksum of the FSE container.
package hash

import (
	"encoding/binary"
)

// XXHash32 is an extremely fast hash algorithm. It was written by Yann Collet.
// Port to Go from the original source code: https://github.com/Cyan4973/xxHash
// This version can be fed incrementally and implements hash.Hash32.

const (
	_XXHASH_PRIME32_1 = uint32(2654435761)
	_XXHASH_PRIME32_2 = uint32(2246822519)
	_XXHASH_PRIME32_3 = uint32(3266489917)
	_XXHASH_PRIME32_4 = uint32(668265263)
	_XXHASH_PRIME32_5 = uint32(374761393)

	// CHECKSUM_MASK keeps the 22 bits stored in a container checksum block
	CHECKSUM_MASK = 0x3FFFFF
)

// XXHash32 streaming hash state
type XXHash32 struct {
	seed   uint32
	v1     uint32
	v2     uint32
	v3     uint32
	v4     uint32
	total  uint64
	buf    [16]byte
	bufLen int
}

// NewXXHash32 creates a new instance of XXHash32
func NewXXHash32(seed uint32) (*XXHash32, error) {
	this := &XXHash32{}
	this.seed = seed
	this.Reset()
	return this, nil
}

// SetSeed sets the hash seed and resets the state
func (this *XXHash32) SetSeed(seed uint32) {
	this.seed = seed
	this.Reset()
}

// Reset restores the initial state
func (this *XXHash32) Reset() {
	this.v1 = this.seed + _XXHASH_PRIME32_1 + _XXHASH_PRIME32_2
	this.v2 = this.seed + _XXHASH_PRIME32_2
	this.v3 = this.seed
	this.v4 = this.seed - _XXHASH_PRIME32_1
	this.total = 0
	this.bufLen = 0
}

// Size returns the number of bytes Sum will return
func (this *XXHash32) Size() int {
	return 4
}

// BlockSize returns the hash's underlying block size
func (this *XXHash32) BlockSize() int {
	return 16
}

// Write folds data into the running hash. It never fails.
func (this *XXHash32) Write(data []byte) (int, error) {
	n := len(data)
	this.total += uint64(n)

	if this.bufLen+n < 16 {
		copy(this.buf[this.bufLen:], data)
		this.bufLen += n
		return n, nil
	}

	if this.bufLen > 0 {
		c := copy(this.buf[this.bufLen:], data)
		this.stripe(this.buf[:])
		data = data[c:]
		this.bufLen = 0
	}

	for len(data) >= 16 {
		this.stripe(data)
		data = data[16:]
	}

	this.bufLen = copy(this.buf[:], data)
	return n, nil
}

func (this *XXHash32) stripe(buf []byte) {
	this.v1 = xxHash32Round(this.v1, binary.LittleEndian.Uint32(buf[0:4]))
	this.v2 = xxHash32Round(this.v2, binary.LittleEndian.Uint32(buf[4:8]))
	this.v3 = xxHash32Round(this.v3, binary.LittleEndian.Uint32(buf[8:12]))
	this.v4 = xxHash32Round(this.v4, binary.LittleEndian.Uint32(buf[12:16]))
}

// Sum32 returns the hash of the data written so far. The state is unchanged.
func (this *XXHash32) Sum32() uint32 {
	var h32 uint32

	if this.total >= 16 {
		h32 = ((this.v1 << 1) | (this.v1 >> 31)) + ((this.v2 << 7) | (this.v2 >> 25)) +
			((this.v3 << 12) | (this.v3 >> 20)) + ((this.v4 << 18) | (this.v4 >> 14))
	} else {
		h32 = this.seed + _XXHASH_PRIME32_5
	}

	h32 += uint32(this.total)
	return finalize(h32, this.buf[:this.bufLen])
}

// Sum appends the big endian hash to b
func (this *XXHash32) Sum(b []byte) []byte {
	h := this.Sum32()
	return append(b, byte(h>>24), byte(h>>16), byte(h>>8), byte(h))
}

// Hash hashes the provided data in one shot. The streaming state is unchanged.
func (this *XXHash32) Hash(data []byte) uint32 {
	end := len(data)
	var h32 uint32
	n := 0

	if end >= 16 {
		end16 := end - 16
		v1 := this.seed + _XXHASH_PRIME32_1 + _XXHASH_PRIME32_2
		v2 := this.seed + _XXHASH_PRIME32_2
		v3 := this.seed
		v4 := this.seed - _XXHASH_PRIME32_1

		for n <= end16 {
			buf := data[n : n+16]
			v1 = xxHash32Round(v1, binary.LittleEndian.Uint32(buf[0:4]))
			v2 = xxHash32Round(v2, binary.LittleEndian.Uint32(buf[4:8]))
			v3 = xxHash32Round(v3, binary.LittleEndian.Uint32(buf[8:12]))
			v4 = xxHash32Round(v4, binary.LittleEndian.Uint32(buf[12:16]))
			n += 16
		}

		h32 = ((v1 << 1) | (v1 >> 31)) + ((v2 << 7) | (v2 >> 25)) +
			((v3 << 12) | (v3 >> 20)) + ((v4 << 18) | (v4 >> 14))
	} else {
		h32 = this.seed + _XXHASH_PRIME32_5
	}

	h32 += uint32(end)
	return finalize(h32, data[n:])
}

// Truncate22 returns the 22 bit value stored in a container checksum block
func Truncate22(h32 uint32) uint32 {
	return (h32 >> 5) & CHECKSUM_MASK
}

func finalize(h32 uint32, tail []byte) uint32 {
	n := 0
	end := len(tail)

	for n+4 <= end {
		h32 += (binary.LittleEndian.Uint32(tail[n:n+4]) * _XXHASH_PRIME32_3)
		h32 = ((h32 << 17) | (h32 >> 15)) * _XXHASH_PRIME32_4
		n += 4
	}

	for n < end {
		h32 += (uint32(tail[n]) * _XXHASH_PRIME32_5)
		h32 = ((h32 << 11) | (h32 >> 21)) * _XXHASH_PRIME32_1
		n++
	}

	h32 ^= (h32 >> 15)
	h32 *= _XXHASH_PRIME32_2
	h32 ^= (h32 >> 13)
	h32 *= _XXHASH_PRIME32_3
	return h32 ^ (h32 >> 16)
}

func xxHash32Round(acc, val uint32) uint32 {
	acc += (val * _XXHASH_PRIME32_2)
	return ((acc << 13) | (acc >> 19)) * _XXHASH_PRIME32_1
}
