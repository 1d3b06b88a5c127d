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

const (
	_NOT_YET_ASSIGNED = -2
)

// Rounding bias for probabilities below 8, scaled by 2^20
var _RTB_TABLE = [8]uint64{0, 473195, 504333, 520860, 550000, 700000, 750000, 830000}

// MinTableLog returns the smallest table log able to represent a block of
// srcSize bytes with symbols up to maxSymbolValue. srcSize must be > 1.
func MinTableLog(srcSize, maxSymbolValue int) int {
	minBitsSrc := int(fse.Log2NoCheck(uint32(srcSize-1))) + 1
	minBitsSymbols := 2

	if maxSymbolValue > 0 {
		minBitsSymbols = int(fse.Log2NoCheck(uint32(maxSymbolValue))) + 2
	}

	return min(minBitsSrc, minBitsSymbols)
}

// OptimizeTableLog picks the table log used to encode a block of srcSize
// bytes given the requested table log (0 means default). Small blocks lower
// it, large alphabets may raise it. srcSize must be > 1.
func OptimizeTableLog(maxTableLog, srcSize, maxSymbolValue int) int {
	maxBitsSrc := int(fse.Log2NoCheck(uint32(srcSize-1))) - 2
	tableLog := maxTableLog

	if tableLog == 0 {
		tableLog = fse.DEFAULT_TABLELOG
	}

	if maxBitsSrc < tableLog {
		tableLog = maxBitsSrc
	}

	if minBits := MinTableLog(srcSize, maxSymbolValue); minBits > tableLog {
		tableLog = minBits
	}

	if tableLog < fse.MIN_TABLELOG {
		tableLog = fse.MIN_TABLELOG
	}

	if tableLog > fse.MAX_TABLELOG {
		tableLog = fse.MAX_TABLELOG
	}

	return tableLog
}

// NormalizeCount scales the symbol counts of a block of 'total' bytes so that
// they sum to 2^tableLog. Symbols with a non null count at or below
// total>>tableLog get the special weight -1 (one slot). The result is written
// to norm. Returns the table log used (0 means default), or 0 if one symbol
// holds all the mass (the block should be stored as a run).
func NormalizeCount(norm []int32, tableLog int, counts []uint32, total, maxSymbolValue int) (int, error) {
	if tableLog == 0 {
		tableLog = fse.DEFAULT_TABLELOG
	}

	if tableLog < fse.MIN_TABLELOG || tableLog > fse.MAX_TABLELOG {
		return 0, fmt.Errorf("table log %d not in [%d..%d]: %w", tableLog,
			fse.MIN_TABLELOG, fse.MAX_TABLELOG, fse.ErrTableLog)
	}

	if total < 2 || maxSymbolValue > fse.MAX_SYMBOL_VALUE || len(norm) <= maxSymbolValue || len(counts) <= maxSymbolValue {
		return 0, fmt.Errorf("invalid normalization parameters (total=%d, maxSymbolValue=%d): %w",
			total, maxSymbolValue, fse.ErrInvalidData)
	}

	if minLog := MinTableLog(total, maxSymbolValue); tableLog < minLog {
		return 0, fmt.Errorf("table log %d too small, at least %d required: %w", tableLog, minLog, fse.ErrTableLog)
	}

	scale := uint(62 - tableLog)
	step := (uint64(1) << 62) / uint64(total)
	vStep := uint64(1) << (scale - 20)
	stillToDistribute := 1 << uint(tableLog)
	largest := 0
	largestP := int32(0)
	lowThreshold := uint32(total >> uint(tableLog))

	for s := 0; s <= maxSymbolValue; s++ {
		if int(counts[s]) == total {
			// RLE special case
			return 0, nil
		}

		if counts[s] == 0 {
			norm[s] = 0
			continue
		}

		if counts[s] <= lowThreshold {
			norm[s] = -1
			stillToDistribute--
			continue
		}

		scaled := uint64(counts[s]) * step
		proba := int32(scaled >> scale)

		if proba < 8 {
			restToBeat := vStep * _RTB_TABLE[proba]

			if scaled-(uint64(proba)<<scale) > restToBeat {
				proba++
			}
		}

		if proba > largestP {
			largestP = proba
			largest = s
		}

		norm[s] = proba
		stillToDistribute -= int(proba)
	}

	if -stillToDistribute >= int(norm[largest]>>1) {
		// Corner case, need another normalization method
		if err := normalizeCountExact(norm, tableLog, counts, total, maxSymbolValue); err != nil {
			return 0, err
		}
	} else {
		norm[largest] += int32(stillToDistribute)
	}

	return tableLog, nil
}

// normalizeCountExact is the fallback normalization: low counts are fixed
// first (-1 or 1) then the remaining slots are shared proportionally.
func normalizeCountExact(norm []int32, tableLog int, counts []uint32, total, maxSymbolValue int) error {
	distributed := 0
	lowThreshold := uint32(total >> uint(tableLog))
	lowOne := uint32((total * 3) >> uint(tableLog+1))

	for s := 0; s <= maxSymbolValue; s++ {
		if counts[s] == 0 {
			norm[s] = 0
			continue
		}

		if counts[s] <= lowThreshold {
			norm[s] = -1
			distributed++
			total -= int(counts[s])
			continue
		}

		if counts[s] <= lowOne {
			norm[s] = 1
			distributed++
			total -= int(counts[s])
			continue
		}

		norm[s] = _NOT_YET_ASSIGNED
	}

	toDistribute := (1 << uint(tableLog)) - distributed

	if toDistribute <= 0 {
		return fmt.Errorf("cannot normalize counts: %w", fse.ErrInvalidData)
	}

	if uint32(total/toDistribute) > lowOne {
		// Risk of rounding to zero
		lowOne = uint32((total * 3) / (toDistribute * 2))

		for s := 0; s <= maxSymbolValue; s++ {
			if norm[s] == _NOT_YET_ASSIGNED && counts[s] <= lowOne {
				norm[s] = 1
				distributed++
				total -= int(counts[s])
			}
		}

		toDistribute = (1 << uint(tableLog)) - distributed
	}

	if distributed == maxSymbolValue+1 {
		// All values are pretty poor, give all remaining points to max
		maxV := 0
		maxC := uint32(0)

		for s := 0; s <= maxSymbolValue; s++ {
			if counts[s] > maxC {
				maxV = s
				maxC = counts[s]
			}
		}

		norm[maxV] += int32(toDistribute)
		return nil
	}

	if total == 0 {
		// All of the symbols were low enough for the lowOne or lowThreshold
		for s := 0; toDistribute > 0; s = (s + 1) % (maxSymbolValue + 1) {
			if norm[s] > 0 {
				toDistribute--
				norm[s]++
			}
		}

		return nil
	}

	vStepLog := uint(62 - tableLog)
	mid := (uint64(1) << (vStepLog - 1)) - 1
	rStep := ((uint64(1)<<vStepLog)*uint64(toDistribute) + mid) / uint64(total)
	tmpTotal := mid

	for s := 0; s <= maxSymbolValue; s++ {
		if norm[s] != _NOT_YET_ASSIGNED {
			continue
		}

		end := tmpTotal + uint64(counts[s])*rStep
		sStart := int(tmpTotal >> vStepLog)
		sEnd := int(end >> vStepLog)
		weight := sEnd - sStart

		if weight < 1 {
			return fmt.Errorf("cannot normalize counts, null weight for symbol %d: %w", s, fse.ErrInvalidData)
		}

		norm[s] = int32(weight)
		tmpTotal = end
	}

	return nil
}
