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
)

// symbolTransform drives the encoding of one symbol
type symbolTransform struct {
	deltaNbBits    uint32
	deltaFindState int32
	start          int32 // first cumulative slot of the symbol
}

// EncodeTable is the encoder view of a normalized distribution
type EncodeTable struct {
	tableLog        int
	maxSymbolValue  int
	nextStateNumber []uint16
	symbolTT        [256]symbolTransform
	tableSymbol     []byte // symbol spread, slot order
	cumul           [257]int
}

// DecodeEntry is one slot of a DecodeTable
type DecodeEntry struct {
	NewState uint16
	Symbol   byte
	NbBits   uint8
}

// DecodeTable is the decoder view of a normalized distribution
type DecodeTable struct {
	tableLog   int
	entries    []DecodeEntry
	symbolNext [256]uint32
}

func tableStep(tableSize int) int {
	return (tableSize >> 1) + (tableSize >> 3) + 3
}

// TableLog returns the table log of the last built table
func (this *EncodeTable) TableLog() int {
	return this.tableLog
}

// SymbolAt returns the symbol spread at the given slot
func (this *EncodeTable) SymbolAt(slot int) byte {
	return this.tableSymbol[slot]
}

// TableLog returns the table log of the last built table
func (this *DecodeTable) TableLog() int {
	return this.tableLog
}

// Entries returns the slots of the table
func (this *DecodeTable) Entries() []DecodeEntry {
	return this.entries
}

// BuildEncodeTable fills ct from the normalized distribution norm.
// The table buffers are reused when large enough.
func BuildEncodeTable(ct *EncodeTable, norm []int32, maxSymbolValue, tableLog int) error {
	if tableLog < fse.MIN_TABLELOG || tableLog > fse.MAX_TABLELOG {
		return fmt.Errorf("table log %d not in [%d..%d]: %w", tableLog,
			fse.MIN_TABLELOG, fse.MAX_TABLELOG, fse.ErrTableLog)
	}

	if maxSymbolValue > fse.MAX_SYMBOL_VALUE || len(norm) <= maxSymbolValue {
		return fmt.Errorf("invalid max symbol value %d: %w", maxSymbolValue, fse.ErrInvalidData)
	}

	tableSize := 1 << uint(tableLog)
	tableMask := tableSize - 1
	step := tableStep(tableSize)
	highThreshold := tableSize - 1

	if cap(ct.nextStateNumber) < tableSize {
		ct.nextStateNumber = make([]uint16, tableSize)
		ct.tableSymbol = make([]byte, tableSize)
	}

	ct.nextStateNumber = ct.nextStateNumber[:tableSize]
	ct.tableSymbol = ct.tableSymbol[:tableSize]
	ct.tableLog = tableLog
	ct.maxSymbolValue = maxSymbolValue
	tableSymbol := ct.tableSymbol
	cumul := ct.cumul[:]

	// Symbol start positions, low probability symbols at the top
	cumul[0] = 0

	for u := 1; u <= maxSymbolValue+1; u++ {
		if norm[u-1] == -1 {
			cumul[u] = cumul[u-1] + 1
			tableSymbol[highThreshold] = byte(u - 1)
			highThreshold--
		} else {
			if norm[u-1] < 0 {
				return fmt.Errorf("invalid weight %d for symbol %d: %w", norm[u-1], u-1, fse.ErrInvalidData)
			}

			cumul[u] = cumul[u-1] + int(norm[u-1])
		}
	}

	if cumul[maxSymbolValue+1] != tableSize {
		return fmt.Errorf("distribution does not sum to %d: %w", tableSize, fse.ErrInvalidData)
	}

	cumul[maxSymbolValue+1] = tableSize + 1

	// Spread symbols
	position := 0

	for s := 0; s <= maxSymbolValue; s++ {
		for n := int32(0); n < norm[s]; n++ {
			tableSymbol[position] = byte(s)
			position = (position + step) & tableMask

			for position > highThreshold {
				position = (position + step) & tableMask
			}
		}
	}

	if position != 0 {
		return fmt.Errorf("invalid symbol spread: %w", fse.ErrInvalidData)
	}

	// Build table
	for u := 0; u < tableSize; u++ {
		s := tableSymbol[u]
		ct.nextStateNumber[cumul[s]] = uint16(tableSize + u)
		cumul[s]++
	}

	// Build symbol transformation table
	total := int32(0)
	tl := uint32(tableLog)

	for s := 0; s <= maxSymbolValue; s++ {
		switch norm[s] {
		case 0:
			ct.symbolTT[s].deltaNbBits = ((tl + 1) << 16) - (1 << tl)
			ct.symbolTT[s].deltaFindState = 0
			ct.symbolTT[s].start = 0

		case -1, 1:
			ct.symbolTT[s].deltaNbBits = (tl << 16) - (1 << tl)
			ct.symbolTT[s].deltaFindState = total - 1
			ct.symbolTT[s].start = total
			total++

		default:
			maxBitsOut := tl - fse.Log2NoCheck(uint32(norm[s]-1))
			minStatePlus := uint32(norm[s]) << maxBitsOut
			ct.symbolTT[s].deltaNbBits = (maxBitsOut << 16) - minStatePlus
			ct.symbolTT[s].deltaFindState = total - norm[s]
			ct.symbolTT[s].start = total
			total += norm[s]
		}
	}

	return nil
}

// BuildDecodeTable fills dt from the normalized distribution norm.
// The table buffer is reused when large enough.
func BuildDecodeTable(dt *DecodeTable, norm []int32, maxSymbolValue, tableLog int) error {
	if tableLog < fse.MIN_TABLELOG || tableLog > fse.MAX_TABLELOG {
		return fmt.Errorf("table log %d not in [%d..%d]: %w", tableLog,
			fse.MIN_TABLELOG, fse.MAX_TABLELOG, fse.ErrTableLog)
	}

	if maxSymbolValue > fse.MAX_SYMBOL_VALUE || len(norm) <= maxSymbolValue {
		return fmt.Errorf("invalid max symbol value %d: %w", maxSymbolValue, fse.ErrInvalidData)
	}

	tableSize := 1 << uint(tableLog)
	tableMask := tableSize - 1
	step := tableStep(tableSize)
	highThreshold := tableSize - 1

	if cap(dt.entries) < tableSize {
		dt.entries = make([]DecodeEntry, tableSize)
	}

	dt.entries = dt.entries[:tableSize]
	dt.tableLog = tableLog
	entries := dt.entries
	symbolNext := dt.symbolNext[:]
	sum := 0

	// Lay down low probability symbols
	for s := 0; s <= maxSymbolValue; s++ {
		if norm[s] == -1 {
			entries[highThreshold].Symbol = byte(s)
			highThreshold--
			symbolNext[s] = 1
			sum++
		} else {
			if norm[s] < 0 {
				return fmt.Errorf("invalid weight %d for symbol %d: %w", norm[s], s, fse.ErrInvalidData)
			}

			symbolNext[s] = uint32(norm[s])
			sum += int(norm[s])
		}
	}

	if sum != tableSize {
		return fmt.Errorf("distribution does not sum to %d: %w", tableSize, fse.ErrInvalidData)
	}

	// Spread symbols
	position := 0

	for s := 0; s <= maxSymbolValue; s++ {
		for n := int32(0); n < norm[s]; n++ {
			entries[position].Symbol = byte(s)
			position = (position + step) & tableMask

			for position > highThreshold {
				position = (position + step) & tableMask
			}
		}
	}

	if position != 0 {
		return fmt.Errorf("invalid symbol spread: %w", fse.ErrInvalidData)
	}

	// Build decoding table
	for u := range entries {
		s := entries[u].Symbol
		nextState := symbolNext[s]
		symbolNext[s]++
		nbBits := uint32(tableLog) - fse.Log2NoCheck(nextState)
		entries[u].NbBits = uint8(nbBits)
		entries[u].NewState = uint16((nextState << nbBits) - uint32(tableSize))
	}

	return nil
}
