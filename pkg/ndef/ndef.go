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

// Package ndef encodes and decodes NFC Forum NDEF messages. It covers
// the record framing plus the Text and URI well-known record types.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TNF (Type Name Format) values as defined by NFC Forum.
const (
	TNFEmpty       byte = 0x00
	TNFWellKnown   byte = 0x01
	TNFMedia       byte = 0x02
	TNFAbsoluteURI byte = 0x03
	TNFExternal    byte = 0x04
	TNFUnknown     byte = 0x05
	TNFUnchanged   byte = 0x06
	TNFReserved    byte = 0x07
)

// Record header flag bits.
const (
	flagMB byte = 0x80 // message begin
	flagME byte = 0x40 // message end
	flagCF byte = 0x20 // chunk flag
	flagSR byte = 0x10 // short record
	flagIL byte = 0x08 // ID length present

	tnfMask           byte = 0x07
	shortRecordMaxLen      = 255
)

// Common errors.
var (
	ErrEmptyMessage    = errors.New("ndef: empty message")
	ErrTruncatedRecord = errors.New("ndef: truncated record data")
	ErrInvalidTNF      = errors.New("ndef: invalid TNF value")
	ErrChunkedRecord   = errors.New("ndef: chunked records not supported")
)

// Record represents a single NDEF record.
type Record struct {
	Type    string
	ID      string
	Payload []byte
	TNF     byte
	mb      bool
	me      bool
}

// MB returns true if this record is the first in a message.
func (r *Record) MB() bool { return r.mb }

// ME returns true if this record is the last in a message.
func (r *Record) ME() bool { return r.me }

// Message represents an NDEF message containing one or more records.
type Message struct {
	Records []*Record
}

// NewMessage builds a message from records.
func NewMessage(records ...*Record) *Message {
	return &Message{Records: records}
}

// Marshal serializes the message. MB and ME flags are assigned from
// record position, overriding whatever the records carried.
func (m *Message) Marshal() ([]byte, error) {
	if len(m.Records) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	last := len(m.Records) - 1
	for i, rec := range m.Records {
		rec.mb = i == 0
		rec.me = i == last
		var err error
		out, err = rec.appendTo(out)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return out, nil
}

// Unmarshal parses one NDEF message from data and returns the number
// of bytes consumed. Parsing stops at the first record carrying the
// message-end flag; trailing bytes are left untouched.
func (m *Message) Unmarshal(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyMessage
	}

	m.Records = nil
	offset := 0
	for offset < len(data) {
		rec := &Record{}
		n, err := rec.parse(data[offset:])
		if err != nil {
			return offset, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		if rec.mb && len(m.Records) > 0 {
			// Start of a following message.
			break
		}
		m.Records = append(m.Records, rec)
		offset += n
		if rec.me {
			break
		}
	}

	if len(m.Records) == 0 {
		return 0, ErrEmptyMessage
	}
	return offset, nil
}

// appendTo serializes the record onto dst.
func (r *Record) appendTo(dst []byte) ([]byte, error) {
	if r.TNF > TNFReserved {
		return nil, ErrInvalidTNF
	}

	flags := r.TNF & tnfMask
	if r.mb {
		flags |= flagMB
	}
	if r.me {
		flags |= flagME
	}
	short := len(r.Payload) <= shortRecordMaxLen
	if short {
		flags |= flagSR
	}
	if r.ID != "" {
		flags |= flagIL
	}

	dst = append(dst, flags, byte(len(r.Type)))
	if short {
		dst = append(dst, byte(len(r.Payload)))
	} else {
		//nolint:gosec // len() is non-negative
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(r.Payload)))
	}
	if r.ID != "" {
		dst = append(dst, byte(len(r.ID)))
	}
	dst = append(dst, r.Type...)
	dst = append(dst, r.ID...)
	dst = append(dst, r.Payload...)
	return dst, nil
}

// parse decodes one record from data and returns the bytes consumed.
func (r *Record) parse(data []byte) (int, error) {
	if len(data) < 3 {
		return 0, ErrTruncatedRecord
	}

	flags := data[0]
	if flags&flagCF != 0 {
		return 0, ErrChunkedRecord
	}
	r.TNF = flags & tnfMask
	if r.TNF > TNFUnchanged {
		return 0, ErrInvalidTNF
	}
	r.mb = flags&flagMB != 0
	r.me = flags&flagME != 0

	typeLen := int(data[1])
	pos := 2

	var payloadLen int
	if flags&flagSR != 0 {
		payloadLen = int(data[pos])
		pos++
	} else {
		if pos+4 > len(data) {
			return 0, ErrTruncatedRecord
		}
		payloadLen = int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
	}

	var idLen int
	if flags&flagIL != 0 {
		if pos >= len(data) {
			return 0, ErrTruncatedRecord
		}
		idLen = int(data[pos])
		pos++
	}

	if pos+typeLen+idLen+payloadLen > len(data) {
		return 0, ErrTruncatedRecord
	}

	r.Type = string(data[pos : pos+typeLen])
	pos += typeLen
	r.ID = string(data[pos : pos+idLen])
	pos += idLen
	if payloadLen > 0 {
		r.Payload = append([]byte(nil), data[pos:pos+payloadLen]...)
	}
	pos += payloadLen

	return pos, nil
}
