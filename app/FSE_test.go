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

package main

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	fse "github.com/flanglet/fse-go"
	"github.com/flanglet/fse-go/internal"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSampleFiles(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	rnd := rand.New(rand.NewSource(12345))
	files := map[string][]byte{
		"empty.txt":      {},
		"text.txt":       bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 2000),
		"sub/random.bin": make([]byte, 70000),
		"sub/skewed.bin": make([]byte, 100000),
	}

	rnd.Read(files["sub/random.bin"])

	for i := range files["sub/skewed.bin"] {
		files["sub/skewed.bin"][i] = byte(rnd.Intn(8) * rnd.Intn(8))
	}

	for name, data := range files {
		fullPath := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, data, 0o644))
	}

	return files
}

func TestCompressDecompressDirectory(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	packed := filepath.Join(root, "packed")
	unpacked := filepath.Join(root, "unpacked")
	files := writeSampleFiles(t, in)
	require.NoError(t, os.Mkdir(packed, 0o755))
	require.NoError(t, os.Mkdir(unpacked, 0o755))

	bc, err := NewBlockCompressor(map[string]any{
		"inputName":   in,
		"outputName":  packed,
		"blockSizeId": uint(4),
		"tableLog":    uint(10),
		"verbose":     uint(0),
	})
	require.NoError(t, err)
	code, written := bc.Compress()
	require.Equal(t, 0, code)
	assert.Greater(t, written, uint64(0))

	for name := range files {
		data, err := os.ReadFile(filepath.Join(packed, internal.CompressedName(name)))
		require.NoError(t, err, name)
		require.GreaterOrEqual(t, len(data), 4)
		assert.Equal(t, uint(internal.FSE_MAGIC), internal.GetMagicType(data), name)
	}

	bd, err := NewBlockDecompressor(map[string]any{
		"inputName":  packed,
		"outputName": unpacked,
		"verbose":    uint(0),
	})
	require.NoError(t, err)
	code, _ = bd.Decompress()
	require.Equal(t, 0, code)

	for name, expected := range files {
		data, err := os.ReadFile(filepath.Join(unpacked, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.Equal(expected, data), name)
	}
}

func TestOverwrite(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(name, []byte("some data some data some data"), 0o644))

	args := func(force bool) map[string]any {
		return map[string]any{"inputName": name, "verbose": uint(0), "overwrite": force}
	}

	bc, err := NewBlockCompressor(args(false))
	require.NoError(t, err)
	code, _ := bc.Compress()
	require.Equal(t, 0, code)

	bc, err = NewBlockCompressor(args(false))
	require.NoError(t, err)
	code, _ = bc.Compress()
	assert.Equal(t, fse.ERR_OVERWRITE_FILE, code)

	bc, err = NewBlockCompressor(args(true))
	require.NoError(t, err)
	code, _ = bc.Compress()
	assert.Equal(t, 0, code)
}

func TestDecompressRejectsInvalidInput(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.txt")
	huf := filepath.Join(dir, "huf.fse")
	corrupt := filepath.Join(dir, "corrupt.fse")
	require.NoError(t, os.WriteFile(plain, []byte("not compressed at all"), 0o644))
	require.NoError(t, os.WriteFile(huf, []byte{0x09, 0x33, 0x3E, 0x18, 0x05}, 0o644))

	// Empty stream with a flipped checksum bit
	require.NoError(t, os.WriteFile(corrupt, []byte{0x09, 0x23, 0x3E, 0x18, 0x05, 0xD6, 0x62, 0xE9}, 0o644))

	decompressOne := func(name string) int {
		bd, err := NewBlockDecompressor(map[string]any{
			"inputName":  name,
			"outputName": "NONE",
			"verbose":    uint(0),
		})
		require.NoError(t, err)
		code, _ := bd.Decompress()
		return code
	}

	assert.Equal(t, fse.ERR_INVALID_FILE, decompressOne(plain))
	assert.Equal(t, fse.ERR_INVALID_CODEC, decompressOne(huf))
	assert.Equal(t, fse.ERR_CRC_CHECK, decompressOne(corrupt))

	// Without checksum validation the corrupted trailer is accepted
	bd, err := NewBlockDecompressor(map[string]any{
		"inputName":  corrupt,
		"outputName": "NONE",
		"checksum":   false,
		"verbose":    uint(0),
	})
	require.NoError(t, err)
	code, _ := bd.Decompress()
	assert.Equal(t, 0, code)
}

func TestMissingInput(t *testing.T) {
	bc, err := NewBlockCompressor(map[string]any{
		"inputName": filepath.Join(t.TempDir(), "missing"),
		"verbose":   uint(0),
	})
	require.NoError(t, err)
	code, _ := bc.Compress()
	assert.Equal(t, fse.ERR_OPEN_FILE, code)

	_, err = NewBlockCompressor(map[string]any{"verbose": uint(0)})
	assert.Error(t, err)

	_, err = NewBlockCompressor(map[string]any{"inputName": "x", "blockSizeId": uint(7)})
	assert.Error(t, err)

	_, err = NewBlockCompressor(map[string]any{"inputName": "x", "tableLog": uint(4)})
	assert.Error(t, err)
}

func TestInfoPrinterCSV(t *testing.T) {
	var buf bytes.Buffer
	ip, err := NewInfoPrinter(INFO_CSV, ENCODING, &buf)
	require.NoError(t, err)

	now := time.Now()
	ip.ProcessEvent(fse.NewEventFromString(fse.EVT_COMPRESSION_START, -1, "", now))
	ip.ProcessEvent(fse.NewBlockEvent(fse.EVT_BLOCK_ENCODED, 1, fse.BLOCK_COMPRESSED, 1000, 500, now))
	ip.ProcessEvent(fse.NewBlockEvent(fse.EVT_BLOCK_ENCODED, 2, fse.BLOCK_RLE, 200, 1, now))
	ip.ProcessEvent(fse.NewEvent(fse.EVT_CHECKSUM, 3, 0, 0x12345, fse.EVT_HASH_22BITS, now))
	ip.ProcessEvent(fse.NewEventFromString(fse.EVT_COMPRESSION_END, -1, "", now))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "event,id,type,size,compressed,ratio,hash", lines[0])
	assert.Equal(t, "ENCODED,1,COMPRESSED,1000,500,0.5000,", lines[1])
	assert.Equal(t, "ENCODED,2,RLE,200,1,0.0050,", lines[2])
	assert.Equal(t, "CHECKSUM,3,CRC,0,0,,012345", lines[3])

	rows := []*blockRow{}
	require.NoError(t, gocsv.UnmarshalString(buf.String(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1000), rows[0].Size)
	assert.Equal(t, "RLE", rows[1].Type)
}

func TestInfoPrinterText(t *testing.T) {
	var buf bytes.Buffer
	ip, err := NewInfoPrinter(INFO_TEXT, DECODING, &buf)
	require.NoError(t, err)

	now := time.Now()
	ip.ProcessEvent(fse.NewBlockEvent(fse.EVT_BLOCK_DECODED, 1, fse.BLOCK_RAW, 100, 100, now))
	ip.ProcessEvent(fse.NewEventFromString(fse.EVT_DECOMPRESSION_END, -1, "", now))
	out := buf.String()
	assert.Contains(t, out, "Decoded")
	assert.Contains(t, out, "RAW")
	assert.Contains(t, out, "Blocks:     1, 100 => 100 bytes (1.0000)")

	_, err = NewInfoPrinter("xml", ENCODING, &buf)
	assert.Error(t, err)
	_, err = NewInfoPrinter(INFO_TEXT, ENCODING, nil)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "fse.yaml")
	require.NoError(t, os.WriteFile(name, []byte("block: 3\ntableLog: 9\nchecksum: false\ninfo: csv\n"), 0o644))

	cfg, err := LoadConfig(name)
	require.NoError(t, err)
	assert.Equal(t, uint(3), cfg.BlockSizeID)
	assert.Equal(t, uint(9), cfg.TableLog)
	assert.False(t, cfg.Checksum)
	assert.Equal(t, "csv", cfg.Info)
	assert.True(t, cfg.Recursive)
	assert.Equal(t, uint(1), cfg.Verbose)

	require.NoError(t, os.WriteFile(name, []byte("tableLog: 16\n"), 0o644))
	_, err = LoadConfig(name)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRunCommandLine(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "data.txt")
	data := bytes.Repeat([]byte("abcabcabd"), 5000)
	require.NoError(t, os.WriteFile(name, data, 0o644))
	cfgName := filepath.Join(dir, "fse.yaml")
	require.NoError(t, os.WriteFile(cfgName, []byte("verbose: 0\nblock: 2\n"), 0o644))

	assert.Equal(t, 0, run([]string{"fse", "compress", "--config", cfgName, "--table-log", "8", name}))
	assert.Equal(t, 0, run([]string{"fse", "decompress", "-c", cfgName, "-o", filepath.Join(dir, "copy.txt"),
		internal.CompressedName(name)}))

	copied, err := os.ReadFile(filepath.Join(dir, "copy.txt"))
	require.NoError(t, err)
	assert.Equal(t, data, copied)

	assert.Equal(t, fse.ERR_INVALID_PARAM, run([]string{"fse", "compress", "--verbose", "0", "--block", "9", name}))
	assert.Equal(t, fse.ERR_INVALID_PARAM, run([]string{"fse", "compress", "--verbose", "0"}))
}
