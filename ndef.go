// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pn5180

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-pn5180/pkg/ndef"
)

// TLV type constants per NFC Forum Type 5 Tag specification
const (
	tlvTypeNull       = 0x00 // padding byte, no length field
	tlvTypeNDEF       = 0x03 // NDEF Message TLV
	tlvTypeTerminator = 0xFE // end of data area, no length field
)

// Type 5 capability container constants.
const (
	ccMagic1Byte = 0xE1 // CC with one-byte data area size
	ccMagic2Byte = 0xE2 // CC with two-byte data area size
	ccAreaUnit   = 8    // data area size is stored in 8-byte units
)

// NDEF mapping errors.
var (
	ErrNDEFNotFound = errors.New("NDEF TLV not found")
	ErrNDEFTooLarge = errors.New("NDEF message exceeds tag data area")
)

// capabilityContainer holds the decoded Type 5 capability container.
type capabilityContainer struct {
	dataOffset int // byte offset of the TLV area
	dataSize   int // TLV area size in bytes
}

// readCapabilityContainer reads and validates the CC at the start of
// tag memory. A tag without a valid CC is reported as ErrNotFormatted.
func (t *Tag) readCapabilityContainer(ctx context.Context) (*capabilityContainer, error) {
	cc, err := t.ReadAt(ctx, 0, 4)
	if err != nil {
		return nil, fmt.Errorf("read capability container: %w", err)
	}

	if cc[0] != ccMagic1Byte && cc[0] != ccMagic2Byte {
		return nil, fmt.Errorf("%w: CC magic 0x%02X", ErrNotFormatted, cc[0])
	}
	// Version and access byte: major version 1, free read access.
	if cc[1]&0xF0 != 0x40 || cc[1]&0x0C != 0 {
		return nil, fmt.Errorf("%w: CC version/access 0x%02X", ErrNotFormatted, cc[1])
	}

	if cc[2] != 0 {
		return &capabilityContainer{
			dataOffset: 4,
			dataSize:   int(cc[2]) * ccAreaUnit,
		}, nil
	}

	// Extended CC: size lives in bytes 6-7 and the TLV area starts at 8.
	ext, err := t.ReadAt(ctx, 4, 4)
	if err != nil {
		return nil, fmt.Errorf("read extended capability container: %w", err)
	}
	size := int(binary.BigEndian.Uint16(ext[2:4])) * ccAreaUnit
	if size == 0 {
		return nil, fmt.Errorf("%w: zero data area size", ErrNotFormatted)
	}
	return &capabilityContainer{dataOffset: 8, dataSize: size}, nil
}

// findNDEFTLV walks the TLV area and returns the NDEF message payload.
// NULL TLVs are skipped one byte at a time, proprietary TLVs by their
// declared length, and a terminator before any NDEF TLV means the tag
// is formatted but empty.
func findNDEFTLV(area []byte) ([]byte, error) {
	offset := 0
	for offset < len(area) {
		switch area[offset] {
		case tlvTypeNull:
			offset++
			continue
		case tlvTypeTerminator:
			return nil, ErrNDEFNotFound
		}

		length, headerSize, err := tlvLength(area, offset)
		if err != nil {
			return nil, err
		}
		if area[offset] == tlvTypeNDEF {
			start := offset + headerSize
			if start+length > len(area) {
				return nil, fmt.Errorf("%w: NDEF TLV length %d exceeds data area",
					ErrInvalidResponse, length)
			}
			return area[start : start+length], nil
		}
		offset += headerSize + length
	}
	return nil, ErrNDEFNotFound
}

// tlvLength decodes the length field at offset, returning the payload
// length and total header size (type + length bytes).
func tlvLength(area []byte, offset int) (length, headerSize int, err error) {
	if offset+1 >= len(area) {
		return 0, 0, fmt.Errorf("%w: truncated TLV at offset %d", ErrInvalidResponse, offset)
	}
	if area[offset+1] != 0xFF {
		return int(area[offset+1]), 2, nil
	}
	// Long format: 0xFF plus a two-byte big-endian length.
	if offset+3 >= len(area) {
		return 0, 0, fmt.Errorf("%w: truncated long TLV at offset %d", ErrInvalidResponse, offset)
	}
	return int(binary.BigEndian.Uint16(area[offset+2 : offset+4])), 4, nil
}

// ReadNDEF reads and parses the tag's NDEF message.
func (t *Tag) ReadNDEF(ctx context.Context) (*ndef.Message, error) {
	cc, err := t.readCapabilityContainer(ctx)
	if err != nil {
		return nil, err
	}

	size := cc.dataSize
	if cc.dataOffset+size > t.Capacity() {
		size = t.Capacity() - cc.dataOffset
	}
	area, err := t.ReadAt(ctx, cc.dataOffset, size)
	if err != nil {
		return nil, fmt.Errorf("read data area: %w", err)
	}

	payload, err := findNDEFTLV(area)
	if err != nil {
		return nil, err
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(payload); err != nil {
		return nil, fmt.Errorf("parse NDEF message: %w", err)
	}
	return msg, nil
}

// WriteNDEF writes an NDEF message to the tag, replacing any previous
// message. The tag must already carry a valid capability container.
func (t *Tag) WriteNDEF(ctx context.Context, msg *ndef.Message) error {
	cc, err := t.readCapabilityContainer(ctx)
	if err != nil {
		return err
	}

	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal NDEF message: %w", err)
	}

	var tlv []byte
	if len(payload) <= 0xFE {
		tlv = make([]byte, 0, 2+len(payload)+1)
		tlv = append(tlv, tlvTypeNDEF, byte(len(payload)))
	} else {
		tlv = make([]byte, 0, 4+len(payload)+1)
		tlv = append(tlv, tlvTypeNDEF, 0xFF)
		//nolint:gosec // len() is non-negative and bounded by tag capacity
		tlv = binary.BigEndian.AppendUint16(tlv, uint16(len(payload)))
	}
	tlv = append(tlv, payload...)
	tlv = append(tlv, tlvTypeTerminator)

	if len(tlv) > cc.dataSize || cc.dataOffset+len(tlv) > t.Capacity() {
		return fmt.Errorf("%w: %d bytes, data area %d", ErrNDEFTooLarge, len(tlv), cc.dataSize)
	}
	return t.WriteAt(ctx, cc.dataOffset, tlv)
}

// ReadText returns the text of the first Text record in the tag's
// NDEF message.
func (t *Tag) ReadText(ctx context.Context) (string, error) {
	msg, err := t.ReadNDEF(ctx)
	if err != nil {
		return "", err
	}
	for _, rec := range msg.Records {
		if rec.TNF == ndef.TNFWellKnown && rec.Type == ndef.TextRecordType {
			return ndef.DecodeTextPayload(rec.Payload)
		}
	}
	return "", fmt.Errorf("%w: no text record", ErrNDEFNotFound)
}

// WriteText writes a single English text record as the tag's NDEF
// message.
func (t *Tag) WriteText(ctx context.Context, text string) error {
	return t.WriteNDEF(ctx, ndef.NewMessage(ndef.NewTextRecord(text, "en")))
}
