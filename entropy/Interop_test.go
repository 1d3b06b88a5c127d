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
	"math/rand"
	"testing"

	kfse "github.com/klauspost/compress/fse"
	"github.com/stretchr/testify/require"
)

// The klauspost decoder caps the table log at 12, so blocks are produced
// with the default table log.

func TestInteropEncodeKlauspostDecode(t *testing.T) {
	rnd := rand.New(rand.NewSource(1234))
	enc, err := NewFSEEncoder(0)
	require.NoError(t, err)

	for ii := 0; ii < 16; ii++ {
		src := skewed(rnd, 2048+rnd.Intn(60000), 1+float64(ii))
		dst := make([]byte, enc.MaxEncodedLen(len(src)))
		n, err := enc.Encode(dst, src)
		require.NoError(t, err)

		var s kfse.Scratch
		res, err := kfse.Decompress(dst[:n], &s)
		require.NoError(t, err, "block %d", ii)
		require.True(t, bytes.Equal(src, res), "block %d differs", ii)
	}
}

func TestInteropKlauspostEncodeDecode(t *testing.T) {
	rnd := rand.New(rand.NewSource(4321))
	dec, err := NewFSEDecoder(0)
	require.NoError(t, err)

	for ii := 0; ii < 16; ii++ {
		src := skewed(rnd, 2048+rnd.Intn(60000), 1+float64(ii))

		var s kfse.Scratch
		out, err := kfse.Compress(src, &s)
		require.NoError(t, err)

		res := make([]byte, len(src))
		n, err := dec.Decode(res, out)
		require.NoError(t, err, "block %d", ii)
		require.Equal(t, len(src), n)
		require.True(t, bytes.Equal(src, res), "block %d differs", ii)
	}
}

func TestInteropSpecialBlocks(t *testing.T) {
	enc, err := NewFSEEncoder(0)
	require.NoError(t, err)
	dst := make([]byte, enc.MaxEncodedLen(1024))

	// Both implementations agree on the blocks they refuse to encode
	rle := bytes.Repeat([]byte{'A'}, 1024)
	_, err = enc.Encode(dst, rle)
	require.Error(t, err)
	_, kerr := kfse.Compress(rle, &kfse.Scratch{})
	require.ErrorIs(t, kerr, kfse.ErrUseRLE)

	uniform := make([]byte, 1024)

	for i := range uniform {
		uniform[i] = byte(i)
	}

	_, err = enc.Encode(dst, uniform)
	require.Error(t, err)
	_, kerr = kfse.Compress(uniform, &kfse.Scratch{})
	require.ErrorIs(t, kerr, kfse.ErrIncompressible)
}
