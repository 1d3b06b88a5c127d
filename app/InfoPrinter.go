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
	"errors"
	"fmt"
	"io"
	"sync"

	fse "github.com/flanglet/fse-go"
	"github.com/gocarina/gocsv"
)

// An implementation of Listener to display block information (info option
// of the BlockCompressor/BlockDecompressor)

const (
	// ENCODING event type
	ENCODING = 0
	// DECODING event type
	DECODING = 1

	INFO_TEXT = "text"
	INFO_CSV  = "csv"
)

// blockRow one CSV record
type blockRow struct {
	Event      string `csv:"event"`
	ID         int    `csv:"id"`
	Type       string `csv:"type"`
	Size       int64  `csv:"size"`
	Compressed int64  `csv:"compressed"`
	Ratio      string `csv:"ratio"`
	Hash       string `csv:"hash"`
}

// InfoPrinter contains all the data required to print one event
type InfoPrinter struct {
	writer        io.Writer
	infoType      uint
	format        string
	lock          sync.Mutex
	headerPrinted bool
	blocks        int
	rawTotal      int64
	codedTotal    int64
}

// NewInfoPrinter creates a new instance of InfoPrinter printing block
// events as text or as CSV records
func NewInfoPrinter(format string, infoType uint, writer io.Writer) (*InfoPrinter, error) {
	if writer == nil {
		return nil, errors.New("invalid null writer parameter")
	}

	if format != INFO_TEXT && format != INFO_CSV {
		return nil, fmt.Errorf("invalid info format '%s'", format)
	}

	this := &InfoPrinter{}
	this.writer = writer
	this.infoType = infoType & 1
	this.format = format
	return this, nil
}

// ProcessEvent receives an event and writes a log record to the internal writer
func (this *InfoPrinter) ProcessEvent(evt *fse.Event) {
	this.lock.Lock()
	defer this.lock.Unlock()

	switch evt.Type() {
	case fse.EVT_BLOCK_ENCODED, fse.EVT_BLOCK_DECODED:
		this.blocks++
		this.rawTotal += evt.Size()
		this.codedTotal += evt.CompressedSize()

		if this.format == INFO_CSV {
			this.printRow(this.newRow(evt))
			return
		}

		verb := "Encoded"

		if this.infoType == DECODING {
			verb = "Decoded"
		}

		fmt.Fprintf(this.writer, "Block %4d: %s %-10s %6d => %6d (%s)\n", evt.ID(), verb,
			evt.BlockType(), evt.Size(), evt.CompressedSize(), ratio(evt.Size(), evt.CompressedSize()))

	case fse.EVT_CHECKSUM:
		if this.format == INFO_CSV {
			this.printRow(this.newRow(evt))
			return
		}

		fmt.Fprintf(this.writer, "Checksum:   %06x\n", evt.Hash())

	case fse.EVT_COMPRESSION_END, fse.EVT_DECOMPRESSION_END:
		if this.format == INFO_TEXT {
			fmt.Fprintf(this.writer, "Blocks:     %d, %d => %d bytes (%s)\n", this.blocks,
				this.rawTotal, this.codedTotal, ratio(this.rawTotal, this.codedTotal))
		}

		this.blocks = 0
		this.rawTotal = 0
		this.codedTotal = 0
	}
}

func (this *InfoPrinter) newRow(evt *fse.Event) blockRow {
	row := blockRow{ID: evt.ID(), Size: evt.Size(), Compressed: evt.CompressedSize()}

	if evt.Type() == fse.EVT_CHECKSUM {
		row.Event = "CHECKSUM"
		row.Type = fse.BLOCK_CRC.String()
		row.Hash = fmt.Sprintf("%06x", evt.Hash())
		return row
	}

	if this.infoType == ENCODING {
		row.Event = "ENCODED"
	} else {
		row.Event = "DECODED"
	}

	row.Type = evt.BlockType().String()
	row.Ratio = ratio(evt.Size(), evt.CompressedSize())
	return row
}

func (this *InfoPrinter) printRow(row blockRow) {
	rows := []blockRow{row}

	// Best effort, ignore error
	if this.headerPrinted == false {
		this.headerPrinted = true
		_ = gocsv.Marshal(rows, this.writer)
		return
	}

	_ = gocsv.MarshalWithoutHeaders(rows, this.writer)
}

func ratio(raw, coded int64) string {
	if raw == 0 {
		return "0.0000"
	}

	return fmt.Sprintf("%.4f", float64(coded)/float64(raw))
}
