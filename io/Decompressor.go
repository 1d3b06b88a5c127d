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
	"fmt"
	"time"

	fse "github.com/flanglet/fse-go"
	"github.com/flanglet/fse-go/entropy"
	"github.com/flanglet/fse-go/hash"
)

// Parsing steps of the decompressor
const (
	_STEP_FILE_HEADER     = 0
	_STEP_BLOCK_TYPE      = 1
	_STEP_RAW_SIZE        = 2
	_STEP_COMPRESSED_SIZE = 3
	_STEP_BLOCK_CONTENT   = 4
	_STEP_CRC_BLOCK       = 5
)

// Decompressor is a non blocking decompression session. Each parsing step
// waits for an exact number of bytes: SetInput consumes only what the
// current steps need and the session suspends in NEED_INPUT when the input
// runs out. Decoded blocks are exposed through Output one at a time.
type Decompressor struct {
	state            State
	step             int
	err              error
	validateChecksum bool
	hasher           *hash.XXHash32
	decoder          fse.BlockDecoder
	ctx              map[string]any
	pending          []byte
	desired          int
	algorithm        uint32
	blockSize        int
	blockHeader      byte
	rawSize          int
	compressedSize   int
	output           []byte
	outStart         int
	outEnd           int
	blockID          int
	listeners        []fse.Listener
}

// NewDecompressor creates a new decompression session with checksum validation
func NewDecompressor() (*Decompressor, error) {
	return NewDecompressorWithCtx(make(map[string]any))
}

// NewDecompressorWithCtx creates a new decompression session using the
// 'checksum' (bool) and 'maxTableLog' (uint) entries of the context map.
func NewDecompressorWithCtx(ctx map[string]any) (*Decompressor, error) {
	if ctx == nil {
		ctx = make(map[string]any)
	}

	if val, containsKey := ctx["maxTableLog"]; containsKey {
		mtl, ok := val.(uint)

		if ok == false {
			return nil, fmt.Errorf("Invalid max table log parameter type: %T (must be uint): %w", val, fse.ErrTableLog)
		}

		if mtl != 0 && (mtl < fse.MIN_TABLELOG || mtl > fse.MAX_TABLELOG) {
			return nil, fmt.Errorf("Invalid max table log: %d (must be 0 or in [%d..%d]): %w",
				mtl, fse.MIN_TABLELOG, fse.MAX_TABLELOG, fse.ErrTableLog)
		}
	}

	this := &Decompressor{}
	this.ctx = ctx
	this.validateChecksum = true

	if val, containsKey := ctx["checksum"]; containsKey {
		check, ok := val.(bool)

		if ok == false {
			return nil, fmt.Errorf("Invalid checksum parameter type: %T (must be bool): %w", val, fse.ErrInvalidOperation)
		}

		this.validateChecksum = check
	}

	this.hasher, _ = hash.NewXXHash32(0)
	this.pending = make([]byte, 0, 64)
	this.listeners = make([]fse.Listener, 0)
	this.Reset()
	return this, nil
}

// Reset abandons the current session, including a failed one
func (this *Decompressor) Reset() {
	this.state = NEED_INPUT
	this.err = nil
	this.pending = this.pending[:0]
	this.desired = _FILE_HEADER_SIZE
	this.step = _STEP_FILE_HEADER
	this.algorithm = 0
	this.blockSize = 0
	this.blockHeader = 0
	this.rawSize = 0
	this.compressedSize = 0
	this.outStart = 0
	this.outEnd = 0
	this.blockID = 0
	this.hasher.Reset()
}

// State returns the current session state
func (this *Decompressor) State() State {
	return this.state
}

// Err returns the cause of a terminal INVALID_DATA or INVALID_CHECKSUM state
func (this *Decompressor) Err() error {
	return this.err
}

// ValidateChecksum returns true if the trailing checksum is verified
func (this *Decompressor) ValidateChecksum() bool {
	return this.validateChecksum
}

// SetValidateChecksum enables or disables checksum verification
func (this *Decompressor) SetValidateChecksum(validate bool) {
	this.validateChecksum = validate
}

// BlockSize returns the block size of the current stream (0 before the file header)
func (this *Decompressor) BlockSize() int {
	return this.blockSize
}

// Needed returns the number of bytes required to complete the current
// parsing step (0 unless the state is NEED_INPUT)
func (this *Decompressor) Needed() int {
	if this.state != NEED_INPUT {
		return 0
	}

	return this.desired - len(this.pending)
}

// Output returns the decoded bytes ready to be consumed. The slice is only
// valid until the next call to a method of the session.
func (this *Decompressor) Output() []byte {
	return this.output[this.outStart:this.outEnd]
}

// AddListener adds an event listener to this session.
// Returns true if the listener has been added.
func (this *Decompressor) AddListener(bl fse.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this session.
// Returns true if the listener has been removed.
func (this *Decompressor) RemoveListener(bl fse.Listener) bool {
	return removeListener(&this.listeners, bl)
}

// SetInput consumes the bytes of p required by the parsing steps and
// returns the number of bytes consumed. It stops as soon as a block has
// been decoded (WRITE_OUTPUT) or the stream ends. Calling SetInput after
// COMPLETED starts a new stream.
func (this *Decompressor) SetInput(p []byte) (int, error) {
	if this.state == INVALID_DATA || this.state == INVALID_CHECKSUM {
		return 0, fmt.Errorf("Cannot accept input in state %s: %w", this.state, fse.ErrInvalidOperation)
	}

	if this.state == COMPLETED {
		this.Reset()
	}

	consumed := 0

	for this.state == NEED_INPUT {
		n := min(this.desired-len(this.pending), len(p)-consumed)
		this.pending = append(this.pending, p[consumed:consumed+n]...)
		consumed += n

		if len(this.pending) < this.desired {
			break
		}

		this.processInput()
	}

	return consumed, nil
}

// Advance marks n bytes of Output as consumed. Once all the output is
// consumed, parsing resumes.
func (this *Decompressor) Advance(n int) error {
	if n < 0 || n > this.outEnd-this.outStart {
		return fmt.Errorf("Cannot advance by %d bytes, %d available: %w", n, this.outEnd-this.outStart, fse.ErrInvalidOperation)
	}

	this.outStart += n

	if this.outStart == this.outEnd {
		this.outStart = 0
		this.outEnd = 0

		if this.state == WRITE_OUTPUT {
			this.state = NEED_INPUT
			this.processInput()
		}
	}

	return nil
}

// CopyOutput copies decoded bytes into p, marks them as consumed and
// returns the number of bytes copied
func (this *Decompressor) CopyOutput(p []byte) int {
	n := copy(p, this.Output())
	this.Advance(n)
	return n
}

func (this *Decompressor) processInput() {
	for this.state == NEED_INPUT && len(this.pending) == this.desired {
		switch this.step {
		case _STEP_FILE_HEADER:
			this.processFileHeader()

		case _STEP_BLOCK_TYPE:
			this.processBlockType()

		case _STEP_RAW_SIZE:
			this.processRawSize()

		case _STEP_COMPRESSED_SIZE:
			this.processCompressedSize()

		case _STEP_BLOCK_CONTENT:
			this.processBlockContent()

		case _STEP_CRC_BLOCK:
			this.processCrcBlock()
		}
	}
}

func (this *Decompressor) moveTo(step, size int) {
	this.step = step
	this.pending = this.pending[:0]
	this.desired = size
}

func (this *Decompressor) fail(state State, err error) {
	this.state = state
	this.err = err
	this.pending = this.pending[:0]
	this.desired = 0
}

func (this *Decompressor) processFileHeader() {
	algorithm := binary.LittleEndian.Uint32(this.pending[0:4])
	blockSizeID := uint(this.pending[4])

	if blockSizeID > fse.MAX_BLOCK_SIZE_ID {
		this.fail(INVALID_DATA, fmt.Errorf("Invalid block size id in header: %d: %w", blockSizeID, fse.ErrInvalidData))
		return
	}

	if this.decoder == nil || this.algorithm != algorithm {
		decoder, err := entropy.NewBlockDecoder(this.ctx, algorithm)

		if err != nil {
			this.fail(INVALID_DATA, err)
			return
		}

		this.decoder = decoder
	}

	this.algorithm = algorithm
	this.blockSize = fse.BlockSize(blockSizeID)
	this.hasher.Reset()

	if cap(this.output) < this.blockSize {
		this.output = make([]byte, this.blockSize)
	}

	this.output = this.output[0:this.blockSize]

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, fse.NewEventFromString(fse.EVT_DECOMPRESSION_START, -1,
			fmt.Sprintf("Decompression starts, block size %d", this.blockSize), time.Time{}))
	}

	this.moveTo(_STEP_BLOCK_TYPE, 1)
}

func (this *Decompressor) blockType() fse.BlockType {
	return fse.BlockType(this.blockHeader >> _BLOCK_TYPE_SHIFT)
}

func (this *Decompressor) processBlockType() {
	this.blockHeader = this.pending[0]
	blockType := this.blockType()

	if blockType == fse.BLOCK_CRC {
		this.moveTo(_STEP_CRC_BLOCK, 2)
		return
	}

	if this.blockHeader&_FULL_BLOCK_MASK == 0 {
		this.moveTo(_STEP_RAW_SIZE, 2)
		return
	}

	this.rawSize = this.blockSize
	this.selectContentSize()
}

func (this *Decompressor) processRawSize() {
	this.rawSize = int(binary.BigEndian.Uint16(this.pending[0:2]))

	if this.rawSize > this.blockSize {
		this.fail(INVALID_DATA, fmt.Errorf("Invalid block size: %d (max %d): %w", this.rawSize, this.blockSize, fse.ErrInvalidData))
		return
	}

	this.selectContentSize()
}

func (this *Decompressor) selectContentSize() {
	switch this.blockType() {
	case fse.BLOCK_COMPRESSED:
		this.moveTo(_STEP_COMPRESSED_SIZE, 2)

	case fse.BLOCK_RAW:
		this.compressedSize = this.rawSize
		this.moveTo(_STEP_BLOCK_CONTENT, this.compressedSize)

	case fse.BLOCK_RLE:
		this.compressedSize = 1
		this.moveTo(_STEP_BLOCK_CONTENT, 1)
	}
}

func (this *Decompressor) processCompressedSize() {
	this.compressedSize = int(binary.BigEndian.Uint16(this.pending[0:2]))
	this.moveTo(_STEP_BLOCK_CONTENT, this.compressedSize)
}

func (this *Decompressor) processBlockContent() {
	blockType := this.blockType()
	dst := this.output[0:this.rawSize]

	switch blockType {
	case fse.BLOCK_COMPRESSED:
		if _, err := this.decoder.Decode(dst, this.pending); err != nil {
			this.fail(INVALID_DATA, fmt.Errorf("Block %d: %w", this.blockID+1, err))
			return
		}

	case fse.BLOCK_RAW:
		copy(dst, this.pending)

	case fse.BLOCK_RLE:
		val := this.pending[0]

		for i := range dst {
			dst[i] = val
		}
	}

	if this.validateChecksum == true {
		this.hasher.Write(dst)
	}

	this.blockID++

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, fse.NewBlockEvent(fse.EVT_BLOCK_DECODED, this.blockID, blockType,
			int64(this.rawSize), int64(this.compressedSize), time.Time{}))
	}

	this.moveTo(_STEP_BLOCK_TYPE, 1)
	this.outStart = 0
	this.outEnd = this.rawSize

	if this.outEnd > 0 {
		this.state = WRITE_OUTPUT
	}
}

func (this *Decompressor) processCrcBlock() {
	stored := uint32(this.blockHeader&_CRC_HIGH_BITS_MASK)<<16 | uint32(binary.BigEndian.Uint16(this.pending[0:2]))
	this.pending = this.pending[:0]
	this.desired = 0

	if this.validateChecksum == true {
		computed := hash.Truncate22(this.hasher.Sum32())

		if len(this.listeners) > 0 {
			notifyListeners(this.listeners, fse.NewEvent(fse.EVT_CHECKSUM, this.blockID, 0,
				uint64(computed), fse.EVT_HASH_22BITS, time.Time{}))
		}

		if stored != computed {
			this.fail(INVALID_CHECKSUM, fmt.Errorf("Corrupted stream: checksum 0x%06X, expected 0x%06X: %w",
				computed, stored, fse.ErrInvalidChecksum))
			return
		}
	}

	this.state = COMPLETED

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, fse.NewEventFromString(fse.EVT_DECOMPRESSION_END, -1, "", time.Time{}))
	}
}
