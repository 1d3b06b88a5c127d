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

// Package fse defines the top level interfaces, errors and constants used
// by the FSE (Finite State Entropy) lossless compressor/decompressor.
//
// The implementations are available in sub-folders like bitstream and entropy.
// In particular, the io package contains the incremental Compressor and
// Decompressor state machines as well as the blocking Writer and Reader.
package fse

import (
	"errors"
)

const (
	ERR_MISSING_PARAM       = 1
	ERR_BLOCK_SIZE          = 2
	ERR_INVALID_CODEC       = 3
	ERR_CREATE_COMPRESSOR   = 4
	ERR_CREATE_DECOMPRESSOR = 5
	ERR_OUTPUT_IS_DIR       = 6
	ERR_OVERWRITE_FILE      = 7
	ERR_CREATE_FILE         = 8
	ERR_OPEN_FILE           = 10
	ERR_READ_FILE           = 11
	ERR_WRITE_FILE          = 12
	ERR_PROCESS_BLOCK       = 13
	ERR_INVALID_FILE        = 15
	ERR_CREATE_STREAM       = 17
	ERR_INVALID_PARAM       = 18
	ERR_CRC_CHECK           = 19
	ERR_UNKNOWN             = 127
)

const (
	// MAX_SYMBOL_VALUE is the largest byte value handled by the codec
	MAX_SYMBOL_VALUE = 255

	// MIN_TABLELOG is the smallest accepted table log
	MIN_TABLELOG = 5

	// DEFAULT_TABLELOG is used when no table log is requested
	DEFAULT_TABLELOG = 11

	// MAX_TABLELOG is the largest table log the encoders and decoders accept
	MAX_TABLELOG = 15

	// ALGORITHM_FSE is the container tag of FSE compressed streams ("\x09\x23\x3E\x18")
	ALGORITHM_FSE = 0x183E2309

	// ALGORITHM_HUF is the container tag of Huffman compressed streams
	ALGORITHM_HUF = 0x183E3309

	// ALGORITHM_ZLIB is the container tag of zlib compressed streams
	ALGORITHM_ZLIB = 0x183E4309

	// MAX_BLOCK_SIZE_ID is the largest block size id (block size = 1 << id KiB)
	MAX_BLOCK_SIZE_ID = 6

	// DEFAULT_BLOCK_SIZE_ID selects 32 KiB blocks
	DEFAULT_BLOCK_SIZE_ID = 5
)

var (
	// ErrInvalidData is returned when compressed data is malformed
	ErrInvalidData = errors.New("invalid data")

	// ErrInvalidChecksum is returned when the trailing checksum does not match
	ErrInvalidChecksum = errors.New("invalid checksum")

	// ErrDstTooSmall is returned when a destination buffer cannot hold the result
	ErrDstTooSmall = errors.New("destination buffer too small")

	// ErrTableLog is returned when a table log is out of the accepted range
	ErrTableLog = errors.New("invalid table log")

	// ErrMaxSymbolValueTooSmall is returned when a symbol exceeds the declared maximum
	ErrMaxSymbolValueTooSmall = errors.New("max symbol value too small")

	// ErrIncompressible is returned when the encoded block would not be smaller
	// than the input. The block should be stored raw.
	ErrIncompressible = errors.New("input is not compressible")

	// ErrUseRLE is returned when the block contains a single repeated symbol.
	// The block should be stored as a run.
	ErrUseRLE = errors.New("input is a single repeated symbol")

	// ErrUnsupportedAlgorithm is returned for container tags that are
	// recognized but not handled
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrInvalidOperation is returned when an operation is not allowed in
	// the current state
	ErrInvalidOperation = errors.New("invalid operation for current state")
)

// BlockEncoder entropy encodes a block of bytes
type BlockEncoder interface {
	// Encode compresses src into dst and returns the number of bytes written.
	// Returns ErrUseRLE if src is made of one repeated symbol and
	// ErrIncompressible if the result would not be smaller than src.
	Encode(dst, src []byte) (int, error)

	// MaxEncodedLen returns the max size required for the encoding output buffer
	MaxEncodedLen(srcLen int) int
}

// BlockDecoder entropy decodes a block of bytes
type BlockDecoder interface {
	// Decode decompresses src and fills exactly len(dst) bytes.
	// Returns the number of bytes written to dst.
	Decode(dst, src []byte) (int, error)
}
