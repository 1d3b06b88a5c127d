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
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	fse "github.com/flanglet/fse-go"
	"github.com/flanglet/fse-go/entropy"
	"github.com/flanglet/fse-go/hash"
)

// State is the externally visible state of a compression or decompression session
type State int

const (
	NEED_INPUT       State = 0 // More input is required to make progress
	WRITE_OUTPUT     State = 1 // Output is ready and must be consumed
	COMPLETED        State = 2 // The stream is finished
	INVALID_DATA     State = 3 // Terminal: malformed stream
	INVALID_CHECKSUM State = 4 // Terminal: checksum mismatch
)

const (
	_FILE_HEADER_SIZE   = 5
	_MAX_BLOCK_HEADER   = 5
	_CRC_BLOCK_SIZE     = 3
	_OUTPUT_RESERVED    = _FILE_HEADER_SIZE + _MAX_BLOCK_HEADER
	_BLOCK_TYPE_SHIFT   = 6
	_FULL_BLOCK_MASK    = 0x20
	_CRC_HIGH_BITS_MASK = 0x3F
)

func (this State) String() string {
	switch this {
	case NEED_INPUT:
		return "NEED_INPUT"
	case WRITE_OUTPUT:
		return "WRITE_OUTPUT"
	case COMPLETED:
		return "COMPLETED"
	case INVALID_DATA:
		return "INVALID_DATA"
	case INVALID_CHECKSUM:
		return "INVALID_CHECKSUM"
	default:
		return fmt.Sprintf("State(%d)", int(this))
	}
}

// Compressor is a non blocking compression session. Input is buffered until
// a full block is available (or Flush/Complete is called), then one block
// of output is made available through Output and must be consumed with
// Advance before more input is accepted.
type Compressor struct {
	state         State
	blockSizeID   uint
	blockSize     int
	headerWritten bool
	hasher        *hash.XXHash32
	encoder       fse.BlockEncoder
	input         []byte
	inputLen      int
	output        []byte
	outStart      int
	outEnd        int
	blockID       int
	listeners     []fse.Listener
}

// NewCompressor creates a new compression session. The block size is
// 2^blockSizeID KiB (blockSizeID in [0..6]). The table log is the maximum
// FSE precision, 0 means default.
func NewCompressor(blockSizeID, tableLog uint) (*Compressor, error) {
	ctx := make(map[string]any)
	ctx["blockSizeId"] = blockSizeID
	ctx["tableLog"] = tableLog
	return NewCompressorWithCtx(ctx)
}

// NewCompressorWithCtx creates a new compression session using the
// 'blockSizeId' and 'tableLog' entries of the context map.
func NewCompressorWithCtx(ctx map[string]any) (*Compressor, error) {
	blockSizeID := uint(fse.DEFAULT_BLOCK_SIZE_ID)

	if val, containsKey := ctx["blockSizeId"]; containsKey {
		id, ok := val.(uint)

		if ok == false {
			return nil, fmt.Errorf("Invalid block size id parameter type: %T (must be uint): %w", val, fse.ErrInvalidOperation)
		}

		blockSizeID = id
	}

	if blockSizeID > fse.MAX_BLOCK_SIZE_ID {
		return nil, fmt.Errorf("Invalid block size id: %d (must be in [0..%d]): %w", blockSizeID,
			fse.MAX_BLOCK_SIZE_ID, fse.ErrInvalidOperation)
	}

	encoder, err := entropy.NewBlockEncoder(ctx, fse.ALGORITHM_FSE)

	if err != nil {
		return nil, err
	}

	this := &Compressor{}
	this.blockSizeID = blockSizeID
	this.blockSize = fse.BlockSize(blockSizeID)
	this.encoder = encoder
	this.hasher, _ = hash.NewXXHash32(0)
	this.input = make([]byte, this.blockSize)
	this.output = make([]byte, _OUTPUT_RESERVED+encoder.MaxEncodedLen(this.blockSize)+_CRC_BLOCK_SIZE)
	this.listeners = make([]fse.Listener, 0)
	this.Reset()
	return this, nil
}

// Reset abandons the current session. Buffered input and pending output are dropped.
func (this *Compressor) Reset() {
	this.state = NEED_INPUT
	this.headerWritten = false
	this.hasher.Reset()
	this.inputLen = 0
	this.outStart = 0
	this.outEnd = 0
	this.blockID = 0
}

// State returns the current session state
func (this *Compressor) State() State {
	return this.state
}

// BlockSize returns the size of the blocks produced by this session
func (this *Compressor) BlockSize() int {
	return this.blockSize
}

// Output returns the bytes ready to be consumed. The slice is only valid
// until the next call to a method of the session.
func (this *Compressor) Output() []byte {
	return this.output[this.outStart:this.outEnd]
}

// AddListener adds an event listener to this session.
// Returns true if the listener has been added.
func (this *Compressor) AddListener(bl fse.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this session.
// Returns true if the listener has been removed.
func (this *Compressor) RemoveListener(bl fse.Listener) bool {
	return removeListener(&this.listeners, bl)
}

// SetInput buffers as much of p as fits in the current block and returns
// the number of bytes consumed. A full block is compressed immediately and
// the session switches to WRITE_OUTPUT. Calling SetInput after COMPLETED
// starts a new stream.
func (this *Compressor) SetInput(p []byte) (int, error) {
	if this.state == WRITE_OUTPUT {
		return 0, fmt.Errorf("Cannot accept input, pending output must be consumed first: %w", fse.ErrInvalidOperation)
	}

	if this.state == COMPLETED {
		this.Reset()
	}

	n := copy(this.input[this.inputLen:], p)
	this.inputLen += n

	if this.inputLen == this.blockSize {
		if err := this.compress(); err != nil {
			return n, err
		}
	}

	return n, nil
}

// Advance marks n bytes of Output as consumed. Once all the output is
// consumed, the session goes back to NEED_INPUT (or COMPLETED after Complete).
func (this *Compressor) Advance(n int) error {
	if this.state != WRITE_OUTPUT {
		return fmt.Errorf("No pending output in state %s: %w", this.state, fse.ErrInvalidOperation)
	}

	if n < 0 || n > this.outEnd-this.outStart {
		return fmt.Errorf("Cannot advance by %d bytes, %d available: %w", n, this.outEnd-this.outStart, fse.ErrInvalidOperation)
	}

	this.outStart += n

	if this.outStart == this.outEnd {
		this.outStart = 0
		this.outEnd = 0

		if this.headerWritten == true {
			this.state = NEED_INPUT
		} else {
			this.state = COMPLETED
		}
	}

	return nil
}

// Flush compresses the buffered input as a (possibly partial) block
func (this *Compressor) Flush() error {
	if this.state != NEED_INPUT {
		return fmt.Errorf("Cannot flush in state %s: %w", this.state, fse.ErrInvalidOperation)
	}

	return this.compress()
}

// Complete compresses the buffered input and appends the checksum block.
// The stream is finished once the output has been consumed.
func (this *Compressor) Complete() error {
	if this.state == COMPLETED {
		return nil
	}

	if this.state == WRITE_OUTPUT && this.headerWritten == false {
		// Already completing
		return nil
	}

	if this.state == NEED_INPUT {
		if err := this.compress(); err != nil {
			return err
		}
	}

	checksum := hash.Truncate22(this.hasher.Sum32())
	block := this.output[this.outEnd : this.outEnd+_CRC_BLOCK_SIZE]
	block[0] = byte(checksum>>16) | byte(fse.BLOCK_CRC)<<_BLOCK_TYPE_SHIFT
	block[1] = byte(checksum >> 8)
	block[2] = byte(checksum)
	this.outEnd += _CRC_BLOCK_SIZE
	this.state = WRITE_OUTPUT
	this.headerWritten = false
	this.hasher.Reset()

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, fse.NewEvent(fse.EVT_CHECKSUM, this.blockID, 0,
			uint64(checksum), fse.EVT_HASH_22BITS, time.Time{}))
		notifyListeners(this.listeners, fse.NewEventFromString(fse.EVT_COMPRESSION_END, -1,
			"", time.Time{}))
	}

	return nil
}

func (this *Compressor) compress() error {
	inSize := this.inputLen
	src := this.input[0:inSize]
	payload := this.output[_OUTPUT_RESERVED:]
	headerSize := 0
	blockType := fse.BLOCK_NONE
	full := inSize == this.blockSize
	generated := 0

	if inSize > 0 {
		this.hasher.Write(src)
		cSize, err := this.encoder.Encode(payload, src)

		switch {
		case err == nil:
			blockType = fse.BLOCK_COMPRESSED
			generated = cSize

		case errors.Is(err, fse.ErrUseRLE):
			blockType = fse.BLOCK_RLE
			payload[0] = src[0]
			generated = 1

		case errors.Is(err, fse.ErrIncompressible):
			blockType = fse.BLOCK_RAW
			generated = copy(payload, src)

		default:
			return err
		}

		headerSize = this.writeBlockHeader(blockType, full, inSize, generated)
	}

	blockBytes := headerSize + generated

	if this.headerWritten == false {
		start := _OUTPUT_RESERVED - headerSize - _FILE_HEADER_SIZE
		binary.LittleEndian.PutUint32(this.output[start:], fse.ALGORITHM_FSE)
		this.output[start+4] = byte(this.blockSizeID)
		headerSize += _FILE_HEADER_SIZE
		this.headerWritten = true

		if len(this.listeners) > 0 {
			notifyListeners(this.listeners, fse.NewEventFromString(fse.EVT_COMPRESSION_START, -1,
				fmt.Sprintf("Compression starts, block size %d", this.blockSize), time.Time{}))
		}
	}

	this.inputLen = 0
	this.outStart = _OUTPUT_RESERVED - headerSize
	this.outEnd = _OUTPUT_RESERVED + generated

	if blockType != fse.BLOCK_NONE {
		this.blockID++

		if len(this.listeners) > 0 {
			notifyListeners(this.listeners, fse.NewBlockEvent(fse.EVT_BLOCK_ENCODED, this.blockID, blockType,
				int64(inSize), int64(blockBytes), time.Time{}))
		}
	}

	if this.outEnd == this.outStart {
		this.outStart = 0
		this.outEnd = 0
		this.state = NEED_INPUT
	} else {
		this.state = WRITE_OUTPUT
	}

	return nil
}

// writeBlockHeader writes the block header right before the payload and
// returns its size
func (this *Compressor) writeBlockHeader(blockType fse.BlockType, full bool, rawSize, cSize int) int {
	hdr := this.output[0:_OUTPUT_RESERVED]
	tag := byte(blockType) << _BLOCK_TYPE_SHIFT

	if blockType == fse.BLOCK_COMPRESSED {
		binary.BigEndian.PutUint16(hdr[_OUTPUT_RESERVED-2:], uint16(cSize))

		if full == true {
			hdr[_OUTPUT_RESERVED-3] = tag | _FULL_BLOCK_MASK
			return 3
		}

		binary.BigEndian.PutUint16(hdr[_OUTPUT_RESERVED-4:], uint16(rawSize))
		hdr[_OUTPUT_RESERVED-5] = tag
		return 5
	}

	if full == true {
		hdr[_OUTPUT_RESERVED-1] = tag | _FULL_BLOCK_MASK
		return 1
	}

	binary.BigEndian.PutUint16(hdr[_OUTPUT_RESERVED-2:], uint16(rawSize))
	hdr[_OUTPUT_RESERVED-3] = tag
	return 3
}
