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

// The normalized distribution header ("NCount") is a little endian bit
// stream: 4 bits for tableLog-5, then one variable length value per symbol.
// A null weight is followed by the number of additional null weights
// (0xFFFF means 24 more, each 2 bit group of 3 means 3 more, then a final
// 2 bit remainder).

// NCOUNT_BOUND is the max size of a header for any distribution
const NCOUNT_BOUND = 512

// NCountWriteBound returns the max size of the header of a distribution
func NCountWriteBound(maxSymbolValue, tableLog int) int {
	if maxSymbolValue == 0 {
		return NCOUNT_BOUND
	}

	return (((maxSymbolValue + 1) * tableLog) >> 3) + 3
}

// WriteNCount serializes the normalized distribution norm into dst.
// Returns the number of bytes written.
func WriteNCount(dst []byte, norm []int32, maxSymbolValue, tableLog int) (int, error) {
	if tableLog < fse.MIN_TABLELOG || tableLog > fse.MAX_TABLELOG {
		return 0, fmt.Errorf("table log %d not in [%d..%d]: %w", tableLog,
			fse.MIN_TABLELOG, fse.MAX_TABLELOG, fse.ErrTableLog)
	}

	if maxSymbolValue > fse.MAX_SYMBOL_VALUE || len(norm) <= maxSymbolValue {
		return 0, fmt.Errorf("invalid max symbol value %d: %w", maxSymbolValue, fse.ErrInvalidData)
	}

	tableSize := 1 << uint(tableLog)
	bitStream := uint32(tableLog - fse.MIN_TABLELOG)
	bitCount := uint(4)
	remaining := tableSize + 1 // +1 for extra accuracy
	threshold := tableSize
	nbBits := uint(tableLog + 1)
	charnum := 0
	previous0 := false
	out := 0

	for remaining > 1 {
		if charnum > maxSymbolValue {
			return 0, fmt.Errorf("distribution does not sum to %d: %w", tableSize, fse.ErrInvalidData)
		}

		if previous0 == true {
			start := charnum

			for charnum <= maxSymbolValue && norm[charnum] == 0 {
				charnum++
			}

			if charnum > maxSymbolValue {
				return 0, fmt.Errorf("distribution does not sum to %d: %w", tableSize, fse.ErrInvalidData)
			}

			for charnum >= start+24 {
				start += 24
				bitStream += 0xFFFF << bitCount

				if out+2 > len(dst) {
					return 0, fse.ErrDstTooSmall
				}

				dst[out] = byte(bitStream)
				dst[out+1] = byte(bitStream >> 8)
				out += 2
				bitStream >>= 16
			}

			for charnum >= start+3 {
				start += 3
				bitStream += 3 << bitCount
				bitCount += 2
			}

			bitStream += uint32(charnum-start) << bitCount
			bitCount += 2

			if bitCount > 16 {
				if out+2 > len(dst) {
					return 0, fse.ErrDstTooSmall
				}

				dst[out] = byte(bitStream)
				dst[out+1] = byte(bitStream >> 8)
				out += 2
				bitStream >>= 16
				bitCount -= 16
			}
		}

		count := int(norm[charnum])
		charnum++
		max := (2*threshold - 1) - remaining

		if count < 0 {
			remaining += count
		} else {
			remaining -= count
		}

		count++ // +1 for extra accuracy

		if count >= threshold {
			count += max
		}

		bitStream += uint32(count) << bitCount
		bitCount += nbBits

		if count < max {
			bitCount--
		}

		previous0 = count == 1

		if remaining < 1 {
			return 0, fmt.Errorf("distribution exceeds %d: %w", tableSize, fse.ErrInvalidData)
		}

		for remaining < threshold {
			nbBits--
			threshold >>= 1
		}

		if bitCount > 16 {
			if out+2 > len(dst) {
				return 0, fse.ErrDstTooSmall
			}

			dst[out] = byte(bitStream)
			dst[out+1] = byte(bitStream >> 8)
			out += 2
			bitStream >>= 16
			bitCount -= 16
		}
	}

	// Flush remaining bits
	n := int(bitCount+7) >> 3

	if out+n > len(dst) {
		return 0, fse.ErrDstTooSmall
	}

	for i := 0; i < n; i++ {
		dst[out+i] = byte(bitStream >> (uint(i) << 3))
	}

	return out + n, nil
}

// nCountReader reads little endian bit fields, zero padded past the end
type nCountReader struct {
	src []byte
	pos uint // bit position
}

func (this *nCountReader) peek() uint32 {
	idx := int(this.pos >> 3)
	var v uint32

	for i := 0; i < 4; i++ {
		if idx+i < len(this.src) {
			v |= uint32(this.src[idx+i]) << (uint(i) << 3)
		}
	}

	return v >> (this.pos & 7)
}

// ReadNCount parses a distribution header from src into norm (at least 256
// entries). Returns the max symbol value, the table log and the number of
// bytes of src used by the header.
func ReadNCount(norm []int32, src []byte) (int, int, int, error) {
	if len(src) == 0 {
		return 0, 0, 0, fmt.Errorf("empty distribution header: %w", fse.ErrInvalidData)
	}

	if len(norm) <= fse.MAX_SYMBOL_VALUE {
		return 0, 0, 0, fmt.Errorf("distribution buffer too small: %w", fse.ErrInvalidData)
	}

	r := nCountReader{src: src}
	tableLog := int(r.peek()&0xF) + fse.MIN_TABLELOG

	if tableLog > fse.MAX_TABLELOG {
		return 0, 0, 0, fmt.Errorf("table log %d too large: %w", tableLog, fse.ErrInvalidData)
	}

	r.pos = 4
	remaining := (1 << uint(tableLog)) + 1
	threshold := 1 << uint(tableLog)
	nbBits := uint(tableLog + 1)
	charnum := 0
	previous0 := false

	for remaining > 1 && charnum <= fse.MAX_SYMBOL_VALUE {
		if previous0 == true {
			n0 := charnum

			for r.peek()&0xFFFF == 0xFFFF {
				n0 += 24
				r.pos += 16

				if n0 > fse.MAX_SYMBOL_VALUE {
					return 0, 0, 0, fmt.Errorf("null weight run too long: %w", fse.ErrInvalidData)
				}
			}

			for r.peek()&3 == 3 {
				n0 += 3
				r.pos += 2
			}

			n0 += int(r.peek() & 3)
			r.pos += 2

			if n0 > fse.MAX_SYMBOL_VALUE {
				return 0, 0, 0, fmt.Errorf("null weight run too long: %w", fse.ErrInvalidData)
			}

			for charnum < n0 {
				norm[charnum] = 0
				charnum++
			}
		}

		max := (2*threshold - 1) - remaining
		bits := int(r.peek())
		var count int

		if bits&(threshold-1) < max {
			count = bits & (threshold - 1)
			r.pos += nbBits - 1
		} else {
			count = bits & (2*threshold - 1)

			if count >= threshold {
				count -= max
			}

			r.pos += nbBits
		}

		count-- // extra accuracy

		if count < 0 {
			remaining += count
		} else {
			remaining -= count
		}

		norm[charnum] = int32(count)
		charnum++
		previous0 = count == 0

		if remaining < 1 {
			return 0, 0, 0, fmt.Errorf("distribution exceeds table size: %w", fse.ErrInvalidData)
		}

		for remaining < threshold {
			nbBits--
			threshold >>= 1
		}
	}

	if remaining != 1 {
		return 0, 0, 0, fmt.Errorf("distribution does not sum to table size: %w", fse.ErrInvalidData)
	}

	if r.pos > uint(len(src))<<3 {
		return 0, 0, 0, fmt.Errorf("truncated distribution header: %w", fse.ErrInvalidData)
	}

	for s := charnum; s <= fse.MAX_SYMBOL_VALUE; s++ {
		norm[s] = 0
	}

	return charnum - 1, tableLog, int(r.pos+7) >> 3, nil
}
