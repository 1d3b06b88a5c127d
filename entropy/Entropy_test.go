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
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	fse "github.com/flanglet/fse-go"
	"github.com/flanglet/fse-go/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skewed returns n bytes with a geometric like distribution
func skewed(rnd *rand.Rand, n int, spread float64) []byte {
	res := make([]byte, n)

	for i := range res {
		v := rnd.ExpFloat64() * spread

		if v > 255 {
			v = 255
		}

		res[i] = byte(v)
	}

	return res
}

// letters returns n bytes drawn from a small alphabet with no dominant symbol
func letters(rnd *rand.Rand, n, alphabet int) []byte {
	res := make([]byte, n)

	for i := range res {
		// Triangular distribution, max probability well below 50%
		res[i] = byte('a' + (rnd.Intn(alphabet)+rnd.Intn(alphabet))/2)
	}

	return res
}

func roundTrip(t *testing.T, tableLog uint, src []byte) int {
	enc, err := NewFSEEncoder(tableLog)
	require.NoError(t, err)
	dec, err := NewFSEDecoder(0)
	require.NoError(t, err)

	dst := make([]byte, enc.MaxEncodedLen(len(src)))
	n, err := enc.Encode(dst, src)
	require.NoError(t, err)
	require.Less(t, n, len(src)-1)

	res := make([]byte, len(src))
	m, err := dec.Decode(res, dst[:n])
	require.NoError(t, err)
	require.Equal(t, len(src), m)
	require.True(t, bytes.Equal(src, res), "decoded data differs from source")
	return n
}

func TestFSECodecRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for ii := 0; ii < 20; ii++ {
		size := 1000 + rnd.Intn(70000)
		src := skewed(rnd, size, 1+float64(ii))
		fmt.Printf("Test %d, size %d\n", ii, size)
		n := roundTrip(t, 0, src)
		fmt.Printf("Encoded: %d => %d bytes\n", size, n)
	}
}

func TestFSECodecTableLogs(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	src := skewed(rnd, 300000, 12)

	for tl := uint(fse.MIN_TABLELOG); tl <= fse.MAX_TABLELOG; tl++ {
		roundTrip(t, tl, src)
	}

	// Small inputs
	for size := 3; size < 64; size++ {
		src := letters(rnd, size, 2)
		enc, _ := NewFSEEncoder(0)
		dst := make([]byte, enc.MaxEncodedLen(size))
		n, err := enc.Encode(dst, src)

		if err != nil {
			// Small blocks rarely compress
			if errors.Is(err, fse.ErrUseRLE) == false {
				require.ErrorIs(t, err, fse.ErrIncompressible)
			}

			continue
		}

		dec, _ := NewFSEDecoder(0)
		res := make([]byte, size)
		_, err = dec.Decode(res, dst[:n])
		require.NoError(t, err)
		require.Equal(t, src, res)
	}
}

func TestFSECodecMaxTableLogDominantSymbol(t *testing.T) {
	rnd := rand.New(rand.NewSource(15))

	for _, pct := range []int{51, 70, 90, 99} {
		src := skewed(rnd, 200000, 6)

		// One symbol holds more than half of the mass: its weight exceeds 2^14
		for i := range src {
			if rnd.Intn(100) < pct {
				src[i] = 'z'
			}
		}

		var counts [256]uint32
		maxSym, _, err := internal.ComputeHistogram(src, &counts, 255, false)
		require.NoError(t, err)
		norm := make([]int32, 256)
		tl, err := NormalizeCount(norm, fse.MAX_TABLELOG, counts[:], len(src), maxSym)
		require.NoError(t, err)
		require.Equal(t, fse.MAX_TABLELOG, tl)
		require.Greater(t, norm['z'], int32(1<<14), "pct %d", pct)

		n := roundTrip(t, fse.MAX_TABLELOG, src)
		fmt.Printf("Dominant symbol %d%%: %d => %d bytes\n", pct, len(src), n)
	}
}

func TestFSECodecSpecialBlocks(t *testing.T) {
	enc, err := NewFSEEncoder(0)
	require.NoError(t, err)
	dst := make([]byte, fse.CompressBound(65536))

	_, err = enc.Encode(dst, nil)
	assert.ErrorIs(t, err, fse.ErrIncompressible)

	_, err = enc.Encode(dst, []byte{7})
	assert.ErrorIs(t, err, fse.ErrIncompressible)

	_, err = enc.Encode(dst, []byte{0x41, 0x41, 0x41, 0x41, 0x41})
	assert.ErrorIs(t, err, fse.ErrUseRLE)

	// Every byte value equally represented
	uniform := make([]byte, 1024)

	for i := range uniform {
		uniform[i] = byte(i)
	}

	_, err = enc.Encode(dst, uniform)
	assert.ErrorIs(t, err, fse.ErrIncompressible)

	// Random data
	rnd := rand.New(rand.NewSource(3))
	random := make([]byte, 32768)
	rnd.Read(random)
	_, err = enc.Encode(dst, random)
	assert.ErrorIs(t, err, fse.ErrIncompressible)
}

func TestFSECodecInvalidParameters(t *testing.T) {
	_, err := NewFSEEncoder(4)
	assert.ErrorIs(t, err, fse.ErrTableLog)
	_, err = NewFSEEncoder(16)
	assert.ErrorIs(t, err, fse.ErrTableLog)
	_, err = NewFSEDecoder(16)
	assert.ErrorIs(t, err, fse.ErrTableLog)

	ctx := map[string]any{"tableLog": uint(9)}
	enc, err := NewFSEEncoderWithCtx(&ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, enc.tableLog)

	ctx = map[string]any{"tableLog": 9, "maxTableLog": int64(12)}
	_, err = NewFSEEncoderWithCtx(&ctx)
	assert.ErrorIs(t, err, fse.ErrTableLog)
	_, err = NewFSEDecoderWithCtx(&ctx)
	assert.ErrorIs(t, err, fse.ErrTableLog)
}

func TestFSECodecDestinationTooSmall(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	src := skewed(rnd, 10000, 4)
	enc, _ := NewFSEEncoder(0)
	_, err := enc.Encode(make([]byte, 100), src)
	assert.ErrorIs(t, err, fse.ErrDstTooSmall)
}

func TestFSEDecoderRejectsWrongSize(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	src := letters(rnd, 5000, 12)
	enc, _ := NewFSEEncoder(0)
	dst := make([]byte, enc.MaxEncodedLen(len(src)))
	n, err := enc.Encode(dst, src)
	require.NoError(t, err)

	dec, _ := NewFSEDecoder(0)
	_, err = dec.Decode(make([]byte, len(src)+1), dst[:n])
	assert.ErrorIs(t, err, fse.ErrInvalidData)
	_, err = dec.Decode(make([]byte, len(src)-1), dst[:n])
	assert.ErrorIs(t, err, fse.ErrInvalidData)
	_, err = dec.Decode(nil, dst[:n])
	assert.ErrorIs(t, err, fse.ErrInvalidData)

	// Truncated bit stream
	_, err = dec.Decode(make([]byte, len(src)), dst[:n/2])
	assert.Error(t, err)

	// Table log above the decoder limit
	small, _ := NewFSEDecoder(fse.MIN_TABLELOG)
	_, err = small.Decode(make([]byte, len(src)), dst[:n])
	assert.ErrorIs(t, err, fse.ErrInvalidData)
}

func TestFSEDecoderCorruptedInput(t *testing.T) {
	rnd := rand.New(rand.NewSource(13))
	src := skewed(rnd, 20000, 6)
	enc, _ := NewFSEEncoder(0)
	dst := make([]byte, enc.MaxEncodedLen(len(src)))
	n, err := enc.Encode(dst, src)
	require.NoError(t, err)
	dec, _ := NewFSEDecoder(0)
	res := make([]byte, len(src))

	for ii := 0; ii < 500; ii++ {
		corrupted := append([]byte(nil), dst[:n]...)

		for j := 0; j < 1+ii%4; j++ {
			corrupted[rnd.Intn(n)] ^= byte(1 + rnd.Intn(255))
		}

		// Must fail cleanly or decode garbage, never panic
		assert.NotPanics(t, func() { dec.Decode(res, corrupted) })
	}
}

func TestNormalizeCountSum(t *testing.T) {
	rnd := rand.New(rand.NewSource(17))
	var counts [256]uint32
	var norm [256]int32

	for ii := 0; ii < 50; ii++ {
		var src []byte

		if ii&1 == 0 {
			src = skewed(rnd, 100+rnd.Intn(100000), 1+rnd.Float64()*30)
		} else {
			src = letters(rnd, 100+rnd.Intn(100000), 2+rnd.Intn(60))
		}

		maxSym, largest, err := internal.ComputeHistogram(src, &counts, 255, false)
		require.NoError(t, err)

		if int(largest) == len(src) {
			continue
		}

		for tl := fse.MIN_TABLELOG; tl <= fse.MAX_TABLELOG; tl++ {
			if tl < MinTableLog(len(src), maxSym) {
				_, err = NormalizeCount(norm[:], tl, counts[:], len(src), maxSym)
				assert.ErrorIs(t, err, fse.ErrTableLog)
				continue
			}

			res, err := NormalizeCount(norm[:], tl, counts[:], len(src), maxSym)
			require.NoError(t, err)
			require.Equal(t, tl, res)
			sum := 0
			lowThreshold := uint32(len(src) >> uint(tl))

			for s := 0; s <= maxSym; s++ {
				switch {
				case norm[s] == -1:
					sum++
					assert.LessOrEqual(t, counts[s], lowThreshold, "symbol %d", s)
				case norm[s] == 0:
					assert.Equal(t, uint32(0), counts[s], "symbol %d", s)
				default:
					assert.Greater(t, norm[s], int32(0))
					sum += int(norm[s])
				}
			}

			assert.Equal(t, 1<<uint(tl), sum, "table log %d", tl)
		}
	}
}

func TestNormalizeCountSpecialCases(t *testing.T) {
	var norm [256]int32
	counts := make([]uint32, 256)

	// Single symbol: run length
	counts[65] = 100
	tl, err := NormalizeCount(norm[:], 0, counts, 100, 65)
	require.NoError(t, err)
	assert.Equal(t, 0, tl)

	_, err = NormalizeCount(norm[:], 4, counts, 100, 65)
	assert.ErrorIs(t, err, fse.ErrTableLog)
	_, err = NormalizeCount(norm[:], 16, counts, 100, 65)
	assert.ErrorIs(t, err, fse.ErrTableLog)

	// Many rare symbols and one large symbol
	for i := range counts {
		counts[i] = 1
	}

	counts[0] = 20000 - 255
	tl, err = NormalizeCount(norm[:], 10, counts, 20000, 255)
	require.NoError(t, err)
	assert.Equal(t, 10, tl)
	assert.Equal(t, int32(769), norm[0])
	sum := 0

	for s := 0; s < 256; s++ {
		if norm[s] == -1 {
			sum++
		} else {
			sum += int(norm[s])
		}
	}

	assert.Equal(t, 1024, sum)

	// Many symbols rounded up: the residual is too large for the largest
	// symbol and the exact method is used
	for i := range counts {
		counts[i] = 0
	}

	counts[0] = 1900

	for s := 1; s <= 30; s++ {
		counts[s] = 150
	}

	tl, err = NormalizeCount(norm[:], 6, counts, 6400, 30)
	require.NoError(t, err)
	assert.Equal(t, 6, tl)
	assert.Equal(t, int32(34), norm[0])
	sum = int(norm[0])

	for s := 1; s <= 30; s++ {
		assert.Equal(t, int32(1), norm[s], "symbol %d", s)
		sum += int(norm[s])
	}

	assert.Equal(t, 64, sum)
}

func TestOptimizeTableLog(t *testing.T) {
	// Default, limited by the block size
	assert.Equal(t, 11, OptimizeTableLog(0, 65536, 255))
	assert.Equal(t, 9, OptimizeTableLog(0, 2048, 255))

	// Raised by the alphabet size
	assert.Equal(t, 9, OptimizeTableLog(5, 65536, 255))

	// Clamped to the minimum
	assert.Equal(t, fse.MIN_TABLELOG, OptimizeTableLog(0, 10, 3))

	// Large requests need large blocks
	assert.Equal(t, 15, OptimizeTableLog(15, 1<<18, 255))
	assert.Equal(t, 13, OptimizeTableLog(15, 1<<16, 255))
}

func TestNCountRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(19))
	var counts [256]uint32
	var norm, norm2 [256]int32

	for ii := 0; ii < 40; ii++ {
		var src []byte

		if ii%3 == 0 {
			// Sparse alphabet with long runs of null weights
			src = make([]byte, 5000)

			for i := range src {
				src[i] = byte(rnd.Intn(4) * (1 + rnd.Intn(60)))
			}
		} else {
			src = skewed(rnd, 1000+rnd.Intn(50000), 1+rnd.Float64()*20)
		}

		maxSym, largest, _ := internal.ComputeHistogram(src, &counts, 255, false)

		if int(largest) == len(src) {
			continue
		}

		tl := OptimizeTableLog(int(5+ii%11), len(src), maxSym)
		_, err := NormalizeCount(norm[:], tl, counts[:], len(src), maxSym)
		require.NoError(t, err)

		buf := make([]byte, NCountWriteBound(maxSym, tl))
		n, err := WriteNCount(buf, norm[:], maxSym, tl)
		require.NoError(t, err)
		require.LessOrEqual(t, n, len(buf))

		// Trailing bytes must not be consumed
		buf = append(buf[:n], 0xAA, 0x55)
		maxSym2, tl2, n2, err := ReadNCount(norm2[:], buf)
		require.NoError(t, err)
		assert.Equal(t, tl, tl2)
		assert.Equal(t, n, n2)

		// The header stops at the last symbol with a non null weight
		assert.LessOrEqual(t, maxSym2, maxSym)

		for s := 0; s < 256; s++ {
			if s <= maxSym {
				require.Equal(t, norm[s], norm2[s], "symbol %d", s)
			} else {
				require.Equal(t, int32(0), norm2[s], "symbol %d", s)
			}
		}
	}
}

func TestNCountInvalidHeaders(t *testing.T) {
	var norm [256]int32

	_, _, _, err := ReadNCount(norm[:], nil)
	assert.ErrorIs(t, err, fse.ErrInvalidData)

	// Table log 5+15 = 20
	_, _, _, err = ReadNCount(norm[:], []byte{0x0F, 0, 0, 0})
	assert.ErrorIs(t, err, fse.ErrInvalidData)

	// Truncated header
	src := []byte{0x00}
	_, _, _, err = ReadNCount(norm[:], src)
	assert.ErrorIs(t, err, fse.ErrInvalidData)

	// Too small destination
	counts := make([]uint32, 256)
	counts[1] = 10
	counts[2] = 20
	counts[3] = 30
	var n [256]int32
	_, err = NormalizeCount(n[:], 6, counts, 60, 3)
	require.NoError(t, err)
	_, err = WriteNCount(make([]byte, 1), n[:], 3, 6)
	assert.ErrorIs(t, err, fse.ErrDstTooSmall)

	// Distribution that does not sum to the table size
	n[1]++
	_, err = WriteNCount(make([]byte, 64), n[:], 3, 6)
	assert.ErrorIs(t, err, fse.ErrInvalidData)
}

func TestTablesAgree(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))
	src := skewed(rnd, 300000, 20)
	var counts [256]uint32
	var norm [256]int32
	maxSym, _, _ := internal.ComputeHistogram(src, &counts, 255, false)

	for _, tl := range []int{fse.MIN_TABLELOG, 10, fse.MAX_TABLELOG} {
		if tl < MinTableLog(len(src), maxSym) {
			// Use a smaller alphabet for the small table
			continue
		}

		_, err := NormalizeCount(norm[:], tl, counts[:], len(src), maxSym)
		require.NoError(t, err)
		checkTables(t, norm[:], maxSym, tl)
	}

	// Small alphabet for the smallest table
	small := make([]byte, 10000)

	for i := range small {
		small[i] = byte((rnd.Intn(8) + rnd.Intn(8)) / 2)
	}

	maxSym, _, _ = internal.ComputeHistogram(small, &counts, 255, false)
	_, err := NormalizeCount(norm[:], fse.MIN_TABLELOG, counts[:], len(small), maxSym)
	require.NoError(t, err)
	checkTables(t, norm[:], maxSym, fse.MIN_TABLELOG)
}

func checkTables(t *testing.T, norm []int32, maxSym, tl int) {
	var ct EncodeTable
	var dt DecodeTable
	require.NoError(t, BuildEncodeTable(&ct, norm, maxSym, tl))
	require.NoError(t, BuildDecodeTable(&dt, norm, maxSym, tl))
	require.Equal(t, tl, ct.TableLog())
	require.Equal(t, tl, dt.TableLog())
	entries := dt.Entries()
	require.Equal(t, 1<<uint(tl), len(entries))
	seen := make([]int, maxSym+1)

	for u := range entries {
		require.Equal(t, ct.SymbolAt(u), entries[u].Symbol, "slot %d", u)
		require.LessOrEqual(t, int(entries[u].NbBits), tl)
		require.Less(t, int(entries[u].NewState)+(1<<entries[u].NbBits)-1, 1<<uint(tl))
		seen[entries[u].Symbol]++
	}

	for s := 0; s <= maxSym; s++ {
		expected := int(norm[s])

		if expected == -1 {
			expected = 1
		}

		require.Equal(t, expected, seen[s], "symbol %d", s)
	}
}

func TestBuildTablesInvalid(t *testing.T) {
	var ct EncodeTable
	var dt DecodeTable
	norm := make([]int32, 256)
	norm[0] = 20
	norm[1] = 10

	assert.ErrorIs(t, BuildEncodeTable(&ct, norm, 1, 5), fse.ErrInvalidData)
	assert.ErrorIs(t, BuildDecodeTable(&dt, norm, 1, 5), fse.ErrInvalidData)
	assert.ErrorIs(t, BuildEncodeTable(&ct, norm, 1, 4), fse.ErrTableLog)
	assert.ErrorIs(t, BuildDecodeTable(&dt, norm, 1, 16), fse.ErrTableLog)

	norm[1] = 12
	assert.NoError(t, BuildEncodeTable(&ct, norm, 1, 5))
	assert.NoError(t, BuildDecodeTable(&dt, norm, 1, 5))
}

func TestCodecFactory(t *testing.T) {
	ctx := map[string]any{}
	dec, err := NewBlockDecoder(ctx, fse.ALGORITHM_FSE)
	require.NoError(t, err)
	require.NotNil(t, dec)

	_, err = NewBlockDecoder(ctx, fse.ALGORITHM_HUF)
	assert.ErrorIs(t, err, fse.ErrUnsupportedAlgorithm)
	_, err = NewBlockDecoder(ctx, fse.ALGORITHM_ZLIB)
	assert.ErrorIs(t, err, fse.ErrUnsupportedAlgorithm)
	_, err = NewBlockDecoder(ctx, 0x12345678)
	assert.ErrorIs(t, err, fse.ErrInvalidData)

	enc, err := NewBlockEncoder(ctx, fse.ALGORITHM_FSE)
	require.NoError(t, err)
	require.NotNil(t, enc)

	name, err := GetName(fse.ALGORITHM_HUF)
	require.NoError(t, err)
	assert.Equal(t, "HUF", name)

	tag, err := GetType("fse")
	require.NoError(t, err)
	assert.Equal(t, uint32(fse.ALGORITHM_FSE), tag)

	_, err = GetType("lz4")
	assert.Error(t, err)
}
