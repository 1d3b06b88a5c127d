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

	fse "github.com/flanglet/fse-go"
	"golang.org/x/exp/slices"
)

const (
	NO_MAGIC     = 0
	JPG_MAGIC    = 0xFFD8FFE0
	GIF_MAGIC    = 0x47494638
	PDF_MAGIC    = 0x25504446
	ZIP_MAGIC    = 0x504B0304 // Works for jar & office docs
	LZMA_MAGIC   = 0x377ABCAF // Works for 7z  37 7A BC AF 27 1C
	PNG_MAGIC    = 0x89504E47
	ZSTD_MAGIC   = 0x28B52FFD
	BROTLI_MAGIC = 0x81CFB2CE
	CAB_MAGIC    = 0x4D534346
	FLAC_MAGIC   = 0x664C6143
	XZ_MAGIC     = 0xFD377A58 // FD 37 7A 58 5A 00
	RAR_MAGIC    = 0x52617221 // 42 61 72 21 1A 07 00
	KNZ_MAGIC    = 0x4B414E5A

	BZIP2_MAGIC   = 0x425A68
	MP3_ID3_MAGIC = 0x494433

	GZIP_MAGIC = 0x1F8B

	// Container tags, stored little endian
	FSE_MAGIC  = fse.ALGORITHM_FSE
	HUF_MAGIC  = fse.ALGORITHM_HUF
	ZLIB_MAGIC = fse.ALGORITHM_ZLIB
)

var (
	_CONTAINER_KEYS = []uint{FSE_MAGIC, HUF_MAGIC, ZLIB_MAGIC}

	_KEYS32 = []uint{
		GIF_MAGIC, PDF_MAGIC, ZIP_MAGIC, LZMA_MAGIC, PNG_MAGIC,
		ZSTD_MAGIC, BROTLI_MAGIC, CAB_MAGIC, FLAC_MAGIC, XZ_MAGIC,
		KNZ_MAGIC, RAR_MAGIC,
	}

	_COMPRESSED_KEYS = []uint{
		JPG_MAGIC, GIF_MAGIC, PNG_MAGIC, LZMA_MAGIC, ZSTD_MAGIC,
		BROTLI_MAGIC, CAB_MAGIC, ZIP_MAGIC, GZIP_MAGIC, BZIP2_MAGIC,
		FLAC_MAGIC, MP3_ID3_MAGIC, XZ_MAGIC, KNZ_MAGIC, RAR_MAGIC,
		FSE_MAGIC, HUF_MAGIC, ZLIB_MAGIC,
	}
)

// GetMagicType checks the first bytes of the slice against the container
// tags and a list of common magic values
func GetMagicType(src []byte) uint {
	if len(src) < 4 {
		return NO_MAGIC
	}

	if tag := uint(binary.LittleEndian.Uint32(src)); slices.Contains(_CONTAINER_KEYS, tag) {
		return tag
	}

	key := uint(binary.BigEndian.Uint32(src))

	if (key & ^uint(0x0F)) == JPG_MAGIC {
		return JPG_MAGIC
	}

	if ((key >> 8) == BZIP2_MAGIC) || ((key >> 8) == MP3_ID3_MAGIC) {
		return key >> 8
	}

	if slices.Contains(_KEYS32, key) {
		return key
	}

	if key>>16 == GZIP_MAGIC {
		return GZIP_MAGIC
	}

	return NO_MAGIC
}

// IsContainer returns true if the magic value is one of the container
// algorithm tags (supported or not)
func IsContainer(magic uint) bool {
	return slices.Contains(_CONTAINER_KEYS, magic)
}

// IsDataCompressed return true if the provided magic parameter corresponds
// to a known compressed data type.
func IsDataCompressed(magic uint) bool {
	return slices.Contains(_COMPRESSED_KEYS, magic)
}
