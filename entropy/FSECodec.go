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

package entropy

import (
	"fmt"

	fse "github.com/flanglet/fse-go"
	"github.com/flanglet/fse-go/bitstream"
	"github.com/flanglet/fse-go/internal"
)

// Implementation of a tabled asymmetric numeral system (FSE) block codec.
// A compressed block is a normalized distribution header (see NCount.go)
// followed by a backward bit stream interleaving two coding states.
// Even positions are coded by the first state, odd positions by the second.

// FSEEncoder entropy encoder
type FSEEncoder struct {
	tableLog int
	counts   [256]uint32
	norm     [256]int32
	ct       EncodeTable
	bw       *bitstream.BitWriter
}

// FSEDecoder entropy decoder
type FSEDecoder struct {
	maxTableLog int
	norm        [256]int32
	dt          DecodeTable
	br          *bitstream.BitReader
}

type encodingState struct {
	value uint32
}

// The initial state is the first state of the symbol, so nothing is written
func (this *encodingState) init(ct *EncodeTable, symbol byte) {
	this.value = uint32(ct.nextStateNumber[ct.symbolTT[symbol].start])
}

func (this *encodingState) encode(bw *bitstream.BitWriter, ct *EncodeTable, symbol byte) {
	tt := ct.symbolTT[symbol]
	nbBitsOut := (this.value + tt.deltaNbBits) >> 16
	bw.WriteBits(this.value, uint(nbBitsOut))
	this.value = uint32(ct.nextStateNumber[int32(this.value>>nbBitsOut)+tt.deltaFindState])
}

func (this *encodingState) flush(bw *bitstream.BitWriter, tableLog int) {
	bw.WriteBits(this.value, uint(tableLog))
	bw.Flush()
}

// NewFSEEncoder creates an instance of FSEEncoder. The table log is the
// requested precision in [5..15], 0 means default. It is lowered for small
// blocks and raised when needed by large alphabets.
func NewFSEEncoder(tableLog uint) (*FSEEncoder, error) {
	if tableLog != 0 && (tableLog < fse.MIN_TABLELOG || tableLog > fse.MAX_TABLELOG) {
		return nil, fmt.Errorf("FSE codec: Invalid table log parameter: %d (must be 0 or in [%d..%d]): %w",
			tableLog, fse.MIN_TABLELOG, fse.MAX_TABLELOG, fse.ErrTableLog)
	}

	this := &FSEEncoder{}
	this.tableLog = int(tableLog)
	this.bw, _ = bitstream.NewBitWriter(make([]byte, 0))
	return this, nil
}

// NewFSEEncoderWithCtx creates an instance of FSEEncoder using the
// 'tableLog' entry of the context map (if present)
func NewFSEEncoderWithCtx(ctx *map[string]any) (*FSEEncoder, error) {
	tableLog := uint(0)

	if ctx != nil {
		if val, containsKey := (*ctx)["tableLog"]; containsKey {
			tl, ok := val.(uint)

			if ok == false {
				return nil, fmt.Errorf("FSE codec: Invalid table log parameter type: %T (must be uint): %w", val, fse.ErrTableLog)
			}

			tableLog = tl
		}
	}

	return NewFSEEncoder(tableLog)
}

// MaxEncodedLen returns the max size required for the encoding output buffer
func (this *FSEEncoder) MaxEncodedLen(srcLen int) int {
	return fse.CompressBound(srcLen)
}

// Encode compresses src into dst and returns the number of bytes written.
// Returns fse.ErrUseRLE if src is a single repeated symbol and
// fse.ErrIncompressible if the encoded block would not be smaller than
// len(src)-1 bytes.
func (this *FSEEncoder) Encode(dst, src []byte) (int, error) {
	if len(src) <= 1 {
		return 0, fse.ErrIncompressible
	}

	maxSymbolValue, largest, _ := internal.ComputeHistogram(src, &this.counts, fse.MAX_SYMBOL_VALUE, false)

	if int(largest) == len(src) {
		return 0, fse.ErrUseRLE
	}

	// Each symbol present at most once or a flat distribution
	if largest == 1 || int(largest) < len(src)>>7 {
		return 0, fse.ErrIncompressible
	}

	tableLog := OptimizeTableLog(this.tableLog, len(src), maxSymbolValue)

	if _, err := NormalizeCount(this.norm[:], tableLog, this.counts[:], len(src), maxSymbolValue); err != nil {
		return 0, err
	}

	headerSize, err := WriteNCount(dst, this.norm[:], maxSymbolValue, tableLog)

	if err != nil {
		return 0, err
	}

	if err = BuildEncodeTable(&this.ct, this.norm[:], maxSymbolValue, tableLog); err != nil {
		return 0, err
	}

	n, err := this.encodeBlock(dst[headerSize:], src)

	if err != nil {
		return 0, err
	}

	if headerSize+n >= len(src)-1 {
		return 0, fse.ErrIncompressible
	}

	return headerSize + n, nil
}

func (this *FSEEncoder) encodeBlock(dst, src []byte) (int, error) {
	if len(src) <= 2 {
		return 0, fse.ErrIncompressible
	}

	ct := &this.ct
	bw := this.bw
	bw.Reset(dst)
	var s1, s2 encodingState
	n := len(src)

	if n&1 != 0 {
		s1.init(ct, src[n-1])
		s2.init(ct, src[n-2])
		s1.encode(bw, ct, src[n-3])
		n -= 3
	} else {
		s2.init(ct, src[n-1])
		s1.init(ct, src[n-2])
		n -= 2
	}

	for n > 0 {
		s2.encode(bw, ct, src[n-1])
		s1.encode(bw, ct, src[n-2])
		bw.Flush()
		n -= 2
	}

	s2.flush(bw, ct.tableLog)
	s1.flush(bw, ct.tableLog)
	bw.WriteBits(1, 1)
	return bw.Close()
}

// NewFSEDecoder creates an instance of FSEDecoder. Blocks using a table log
// above maxTableLog (0 means MAX_TABLELOG) are rejected.
func NewFSEDecoder(maxTableLog uint) (*FSEDecoder, error) {
	if maxTableLog == 0 {
		maxTableLog = fse.MAX_TABLELOG
	}

	if maxTableLog < fse.MIN_TABLELOG || maxTableLog > fse.MAX_TABLELOG {
		return nil, fmt.Errorf("FSE codec: Invalid max table log parameter: %d (must be 0 or in [%d..%d]): %w",
			maxTableLog, fse.MIN_TABLELOG, fse.MAX_TABLELOG, fse.ErrTableLog)
	}

	this := &FSEDecoder{}
	this.maxTableLog = int(maxTableLog)
	this.br = &bitstream.BitReader{}
	return this, nil
}

// NewFSEDecoderWithCtx creates an instance of FSEDecoder using the
// 'maxTableLog' entry of the context map (if present)
func NewFSEDecoderWithCtx(ctx *map[string]any) (*FSEDecoder, error) {
	maxTableLog := uint(0)

	if ctx != nil {
		if val, containsKey := (*ctx)["maxTableLog"]; containsKey {
			tl, ok := val.(uint)

			if ok == false {
				return nil, fmt.Errorf("FSE codec: Invalid max table log parameter type: %T (must be uint): %w", val, fse.ErrTableLog)
			}

			maxTableLog = tl
		}
	}

	return NewFSEDecoder(maxTableLog)
}

// Decode decompresses the block in src and fills exactly len(dst) bytes.
// Any inconsistency between the bit stream and len(dst) is reported as
// fse.ErrInvalidData.
func (this *FSEDecoder) Decode(dst, src []byte) (int, error) {
	if len(dst) == 0 {
		return 0, fmt.Errorf("empty block: %w", fse.ErrInvalidData)
	}

	maxSymbolValue, tableLog, headerSize, err := ReadNCount(this.norm[:], src)

	if err != nil {
		return 0, err
	}

	if tableLog > this.maxTableLog {
		return 0, fmt.Errorf("table log %d above maximum %d: %w", tableLog, this.maxTableLog, fse.ErrInvalidData)
	}

	if err = BuildDecodeTable(&this.dt, this.norm[:], maxSymbolValue, tableLog); err != nil {
		return 0, err
	}

	br := this.br

	if err = br.Reset(src[headerSize:]); err != nil {
		return 0, err
	}

	var states [2]uint32
	var ok1, ok2 bool
	states[0], ok1 = br.ReadBits(uint(tableLog))
	states[1], ok2 = br.ReadBits(uint(tableLog))

	if ok1 == false || ok2 == false {
		return 0, fmt.Errorf("truncated block: %w", fse.ErrInvalidData)
	}

	entries := this.dt.entries
	last := len(dst) - 2

	for i := range dst {
		e := entries[states[i&1]]
		dst[i] = e.Symbol

		// The last two symbols are the initial encoder states
		if i < last {
			bits, ok := br.ReadBits(uint(e.NbBits))

			if ok == false {
				return i + 1, fmt.Errorf("truncated block: %w", fse.ErrInvalidData)
			}

			states[i&1] = uint32(e.NewState) + bits
		}
	}

	if br.Finished() == false {
		return len(dst), fmt.Errorf("%d bits left after block: %w", br.Remaining(), fse.ErrInvalidData)
	}

	return len(dst), nil
}
