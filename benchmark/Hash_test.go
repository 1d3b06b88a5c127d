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

package benchmark

import (
	"testing"

	"github.com/flanglet/fse-go/hash"
)

func BenchmarkXXHash32(b *testing.B) {
	buffer := make([]byte, 1024*1024)

	for i := range buffer {
		buffer[i] = byte(i * i)
	}

	h, err := hash.NewXXHash32(0)

	if err != nil {
		b.Fatalf("Failed to create XXHash32: %v", err)
	}

	b.SetBytes(int64(len(buffer)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		h.SetSeed(uint32(i))
		expected := h.Hash(buffer)
		h.Reset()

		// Streaming in odd-sized chunks must match the one-shot hash
		for off := 0; off < len(buffer); off += 1000 {
			h.Write(buffer[off:min(off+1000, len(buffer))])
		}

		if h.Sum32() != expected {
			b.Fatalf("Incorrect streaming result for XXHash32")
		}
	}
}
