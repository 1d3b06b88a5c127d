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

package bitstream

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	fse "github.com/flanglet/fse-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitStreamRandomWidths(t *testing.T) {
	for test := 1; test <= 20; test++ {
		if err := testCorrectness(test); err != nil {
			t.Errorf(err.Error())
		}
	}
}

func testCorrectness(test int) error {
	fmt.Printf("Correctness Test %d\n", test)
	rnd := rand.New(rand.NewSource(int64(test)))
	count := 1 + rnd.Intn(test*100)
	values := make([]uint32, count)
	widths := make([]uint, count)
	total := 0

	for i := range values {
		widths[i] = uint(rnd.Intn(32))
		values[i] = rnd.Uint32() & ((1 << widths[i]) - 1)
		total += int(widths[i])
	}

	buf := make([]byte, (total+1+7)/8)
	bw, err := NewBitWriter(buf)

	if err != nil {
		return err
	}

	for i := range values {
		bw.WriteBits(values[i], widths[i])

		if i&1 == 1 {
			bw.Flush()
		}
	}

	bw.WriteBits(1, 1)
	n, err := bw.Close()

	if err != nil {
		return err
	}

	if n != len(buf) {
		return fmt.Errorf("Invalid size: expected %d, got %d", len(buf), n)
	}

	br, err := NewBitReader(buf[:n])

	if err != nil {
		return err
	}

	if br.Remaining() != total {
		return fmt.Errorf("Invalid number of available bits: expected %d, got %d", total, br.Remaining())
	}

	// Values come back in reverse order
	for i := len(values) - 1; i >= 0; i-- {
		v, ok := br.ReadBits(widths[i])

		if ok == false {
			return fmt.Errorf("Premature end of stream at index %d", i)
		}

		if v != values[i] {
			return fmt.Errorf("Invalid value at index %d: expected %d, got %d", i, values[i], v)
		}
	}

	if br.Finished() == false {
		return errors.New("Bits left in stream")
	}

	return nil
}

func TestBitWriterDestinationTooSmall(t *testing.T) {
	buf := make([]byte, 3)
	bw, err := NewBitWriter(buf)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		bw.WriteBits(0x1FFF, 13)
	}

	_, err = bw.Close()
	require.ErrorIs(t, err, fse.ErrDstTooSmall)
}

func TestBitWriterSmallTail(t *testing.T) {
	// Fewer than 8 bytes available forces the byte per byte path
	buf := make([]byte, 5)
	bw, _ := NewBitWriter(buf)
	bw.WriteBits(0x1234567, 27)
	bw.WriteBits(0x1F, 5)
	bw.WriteBits(1, 1)
	n, err := bw.Close()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, byte(1), buf[4])

	br, err := NewBitReader(buf)
	require.NoError(t, err)
	v, ok := br.ReadBits(5)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x1F), v)
	v, ok = br.ReadBits(27)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x1234567), v)
	assert.True(t, br.Finished())
}

func TestBitReaderExhaustion(t *testing.T) {
	// 3 bits of data then the sentinel
	br, err := NewBitReader([]byte{0x0D})
	require.NoError(t, err)
	assert.Equal(t, 3, br.Remaining())

	v, ok := br.PeekBits(3)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), v)

	_, ok = br.ReadBits(4)
	assert.False(t, ok)
	assert.True(t, br.SkipBits(2))
	v, ok = br.ReadBits(1)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), v)
	assert.False(t, br.SkipBits(1))
	assert.True(t, br.Finished())
}

func TestBitReaderInvalidInput(t *testing.T) {
	_, err := NewBitReader([]byte{})
	assert.ErrorIs(t, err, fse.ErrInvalidData)

	_, err = NewBitReader([]byte{0xFF, 0x00})
	assert.ErrorIs(t, err, fse.ErrInvalidData)
}
