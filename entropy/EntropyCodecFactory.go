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

// Package entropy implements the FSE block codec: symbol statistics
// normalization, distribution header serialization, table construction
// and the encoding and decoding loops.
package entropy

import (
	"fmt"
	"strings"

	fse "github.com/flanglet/fse-go"
)

// NewBlockDecoder creates a new block decoder for the provided container
// algorithm tag. Known but unsupported algorithms return an error wrapping
// fse.ErrUnsupportedAlgorithm.
func NewBlockDecoder(ctx map[string]any, algorithm uint32) (fse.BlockDecoder, error) {
	switch algorithm {

	case fse.ALGORITHM_FSE:
		return NewFSEDecoderWithCtx(&ctx)

	case fse.ALGORITHM_HUF, fse.ALGORITHM_ZLIB:
		name, _ := GetName(algorithm)
		return nil, fmt.Errorf("%s blocks cannot be decoded: %w", name, fse.ErrUnsupportedAlgorithm)

	default:
		return nil, fmt.Errorf("Unknown algorithm tag: 0x%08X: %w", algorithm, fse.ErrInvalidData)
	}
}

// NewBlockEncoder creates a new block encoder for the provided container
// algorithm tag
func NewBlockEncoder(ctx map[string]any, algorithm uint32) (fse.BlockEncoder, error) {
	switch algorithm {

	case fse.ALGORITHM_FSE:
		return NewFSEEncoderWithCtx(&ctx)

	case fse.ALGORITHM_HUF, fse.ALGORITHM_ZLIB:
		name, _ := GetName(algorithm)
		return nil, fmt.Errorf("%s blocks cannot be encoded: %w", name, fse.ErrUnsupportedAlgorithm)

	default:
		return nil, fmt.Errorf("Unknown algorithm tag: 0x%08X: %w", algorithm, fse.ErrInvalidData)
	}
}

// GetName returns the name of the algorithm given its container tag
func GetName(algorithm uint32) (string, error) {
	switch algorithm {

	case fse.ALGORITHM_FSE:
		return "FSE", nil

	case fse.ALGORITHM_HUF:
		return "HUF", nil

	case fse.ALGORITHM_ZLIB:
		return "ZLIB", nil

	default:
		return "", fmt.Errorf("Unknown algorithm tag: 0x%08X", algorithm)
	}
}

// GetType returns the container tag of the algorithm given its name
func GetType(name string) (uint32, error) {
	switch strings.ToUpper(name) {

	case "FSE":
		return fse.ALGORITHM_FSE, nil

	case "HUF", "HUFFMAN":
		return fse.ALGORITHM_HUF, nil

	case "ZLIB":
		return fse.ALGORITHM_ZLIB, nil

	default:
		return 0, fmt.Errorf("Unknown algorithm: '%v'", name)
	}
}
