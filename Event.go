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

package fse

import (
	"fmt"
	"time"
)

const (
	EVT_COMPRESSION_START   = 0 // Compression starts
	EVT_DECOMPRESSION_START = 1 // Decompression starts
	EVT_BLOCK_ENCODED       = 2 // A block has been encoded
	EVT_BLOCK_DECODED       = 3 // A block has been decoded
	EVT_CHECKSUM            = 4 // Checksum block written or verified
	EVT_COMPRESSION_END     = 5 // Compression ends
	EVT_DECOMPRESSION_END   = 6 // Decompression ends

	EVT_HASH_NONE   = 0
	EVT_HASH_22BITS = 22
	EVT_HASH_32BITS = 32
)

// BlockType is the representation chosen for a block in a container
type BlockType int

const (
	BLOCK_COMPRESSED BlockType = 0 // 0b00: entropy coded
	BLOCK_RAW        BlockType = 1 // 0b01: stored
	BLOCK_RLE        BlockType = 2 // 0b10: one repeated byte
	BLOCK_CRC        BlockType = 3 // 0b11: trailing checksum
	BLOCK_NONE       BlockType = -1
)

// String returns the name of the block type
func (this BlockType) String() string {
	switch this {
	case BLOCK_COMPRESSED:
		return "COMPRESSED"
	case BLOCK_RAW:
		return "RAW"
	case BLOCK_RLE:
		return "RLE"
	case BLOCK_CRC:
		return "CRC"
	default:
		return "NONE"
	}
}

// Event a compression/decompression event
type Event struct {
	eventType      int
	id             int
	size           int64
	compressedSize int64
	blockType      BlockType
	hash           uint64
	hashType       int
	eventTime      time.Time
	msg            string
}

// NewEventFromString creates a new Event instance that wraps a message
func NewEventFromString(evtType, id int, msg string, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	return &Event{eventType: evtType, id: id, blockType: BLOCK_NONE, msg: msg, eventTime: evtTime}
}

// NewEvent creates a new Event instance with size and hash info
// Returns nil if the hashType is not in { EVT_HASH_NONE, EVT_HASH_22BITS, EVT_HASH_32BITS }
func NewEvent(evtType, id int, size int64, hash uint64, hashType int, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	if hashType != EVT_HASH_NONE && hashType != EVT_HASH_22BITS && hashType != EVT_HASH_32BITS {
		return nil
	}

	return &Event{eventType: evtType, id: id, size: size, hash: hash,
		hashType: hashType, blockType: BLOCK_NONE, eventTime: evtTime}
}

// NewBlockEvent creates a new Event instance describing one container block
func NewBlockEvent(evtType, id int, blockType BlockType, size, compressedSize int64, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	return &Event{eventType: evtType, id: id, size: size, compressedSize: compressedSize,
		blockType: blockType, eventTime: evtTime}
}

// Type returns the type info
func (this *Event) Type() int {
	return this.eventType
}

// ID returns the id info
func (this *Event) ID() int {
	return this.id
}

// Time returns the time info
func (this *Event) Time() time.Time {
	return this.eventTime
}

// Size returns the size info (raw size for block events)
func (this *Event) Size() int64 {
	return this.size
}

// CompressedSize returns the size of the block payload on the wire
func (this *Event) CompressedSize() int64 {
	return this.compressedSize
}

// BlockType returns the block representation for block events, BLOCK_NONE otherwise
func (this *Event) BlockType() BlockType {
	return this.blockType
}

// Hash returns the hash info
func (this *Event) Hash() uint64 {
	return this.hash
}

// HashType returns EVT_HASH_NONE, EVT_HASH_22BITS or EVT_HASH_32BITS
func (this *Event) HashType() int {
	return this.hashType
}

// String returns a string representation of this event.
// If the event wraps a message, the the message is returned.
// Owtherwise a string is built from the fields.
func (this *Event) String() string {
	if len(this.msg) > 0 {
		return this.msg
	}

	hash := ""
	t := ""
	id := ""
	block := ""

	if this.hashType != EVT_HASH_NONE {
		hash = fmt.Sprintf(", \"hash\": %x", this.hash)
	}

	if this.id >= 0 {
		id = fmt.Sprintf(", \"id\": %d", this.id)
	}

	if this.blockType != BLOCK_NONE {
		block = fmt.Sprintf(", \"block\":\"%s\", \"compressed\":%d", this.blockType, this.compressedSize)
	}

	switch this.eventType {
	case EVT_BLOCK_ENCODED:
		t = "BLOCK_ENCODED"

	case EVT_BLOCK_DECODED:
		t = "BLOCK_DECODED"

	case EVT_CHECKSUM:
		t = "CHECKSUM"

	case EVT_COMPRESSION_START:
		t = "COMPRESSION_START"

	case EVT_DECOMPRESSION_START:
		t = "DECOMPRESSION_START"

	case EVT_COMPRESSION_END:
		t = "COMPRESSION_END"

	case EVT_DECOMPRESSION_END:
		t = "DECOMPRESSION_END"
	}

	return fmt.Sprintf("{ \"type\":\"%s\"%s, \"size\":%d%s, \"time\":%d%s }", t, id, this.size,
		block, this.eventTime.UnixNano()/1000000, hash)
}

// Listener is an interface implemented by event processors
type Listener interface {
	// ProcessEvent is the method called whenever a Listener receives an event.
	ProcessEvent(evt *Event)
}
