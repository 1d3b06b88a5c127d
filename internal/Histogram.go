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

package internal

import (
	"encoding/binary"
	"fmt"

	fse "github.com/flanglet/fse-go"
)

// Blocks smaller than this are counted with a single pass
const HISTOGRAM_FAST_THRESHOLD = 1500

// ComputeHistogram counts the occurrences of each byte value of block into
// freqs. Returns the highest symbol observed (0 for an empty block) and the
// largest count. If strict is true and a symbol above maxSymbolValue is seen,
// an error is returned.
func ComputeHistogram(block []byte, freqs *[256]uint32, maxSymbolValue int, strict bool) (int, uint32, error) {
	for i := range freqs {
		freqs[i] = 0
	}

	if len(block) == 0 {
		return 0, 0, nil
	}

	if len(block) < HISTOGRAM_FAST_THRESHOLD {
		for _, b := range block {
			freqs[b]++
		}
	} else {
		f0 := [256]uint32{}
		f1 := [256]uint32{}
		f2 := [256]uint32{}
		f3 := [256]uint32{}
		end4 := len(block) & -4

		for i := 0; i < end4; i += 4 {
			v := binary.LittleEndian.Uint32(block[i:])
			f0[byte(v)]++
			f1[byte(v>>8)]++
			f2[byte(v>>16)]++
			f3[v>>24]++
		}

		for i := end4; i < len(block); i++ {
			freqs[block[i]]++
		}

		for i := 0; i < 256; i++ {
			freqs[i] += f0[i] + f1[i] + f2[i] + f3[i]
		}
	}

	maxSym := 255

	for freqs[maxSym] == 0 {
		maxSym--
	}

	if strict == true && maxSym > maxSymbolValue {
		return maxSym, 0, fmt.Errorf("symbol %d above declared maximum %d: %w",
			maxSym, maxSymbolValue, fse.ErrMaxSymbolValueTooSmall)
	}

	largest := uint32(0)

	for i := 0; i <= maxSym; i++ {
		if freqs[i] > largest {
			largest = freqs[i]
		}
	}

	return maxSym, largest, nil
}
