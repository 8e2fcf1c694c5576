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

package testing

import (
	"bytes"
	"encoding/hex"
)

// ISO 15693 request flags and command codes understood by the virtual
// tag. Kept local so the simulator does not depend on the driver it is
// used to test.
const (
	isoFlagAddressed = 0x20

	isoCmdInventory     = 0x01
	isoCmdStayQuiet     = 0x02
	isoCmdReadSingle    = 0x20
	isoCmdWriteSingle   = 0x21
	isoCmdLockBlock     = 0x22
	isoCmdReadMultiple  = 0x23
	isoCmdSelect        = 0x25
	isoCmdResetToReady  = 0x26
	isoCmdGetSystemInfo = 0x2B

	isoErrBlockNotAvail = 0x10
	isoErrBlockLocked   = 0x12
)

// TestVicinityUID is the default UID for virtual tags, stored in wire
// order (LSB first).
var TestVicinityUID = []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0x04, 0xE0}

// VirtualTag simulates an ISO 15693 vicinity card: a block memory with
// lock bits behind the subset of the command set the driver uses.
type VirtualTag struct {
	UID       []byte
	Blocks    [][]byte
	locked    []bool
	DSFID     byte
	AFI       byte
	BlockSize int
	Present   bool
	quiet     bool

	// FailBlock, when >= 0, makes every read or write of that block
	// answer with error code FailCode.
	FailBlock int
	FailCode  byte
}

// NewVirtualTag creates a virtual tag with the given UID (nil selects
// TestVicinityUID), 64 blocks of 4 bytes, formatted with an empty
// Type 5 capability container.
func NewVirtualTag(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestVicinityUID
	}

	tag := &VirtualTag{
		UID:       uid,
		BlockSize: 4,
		Blocks:    make([][]byte, 64),
		locked:    make([]bool, 64),
		DSFID:     0x00,
		AFI:       0x00,
		Present:   true,
		FailBlock: -1,
		FailCode:  isoErrBlockNotAvail,
	}
	for i := range tag.Blocks {
		tag.Blocks[i] = make([]byte, tag.BlockSize)
	}

	// Capability container: magic, version 1.0 with free access,
	// 248-byte data area, then an empty NDEF TLV and terminator.
	copy(tag.Blocks[0], []byte{0xE1, 0x40, 0x1F, 0x00})
	copy(tag.Blocks[1], []byte{0x03, 0x00, 0xFE, 0x00})

	return tag
}

// UIDString returns the UID as a hex string.
func (v *VirtualTag) UIDString() string {
	return hex.EncodeToString(v.UID)
}

// Remove takes the tag out of the field.
func (v *VirtualTag) Remove() {
	v.Present = false
}

// Insert puts the tag back into the field.
func (v *VirtualTag) Insert() {
	v.Present = true
	v.quiet = false
}

// SetNDEFText loads the data area with a single short text record so
// read paths have something real to find. The TLV bytes are built by
// hand to stay independent of the codec under test.
func (v *VirtualTag) SetNDEFText(text string) {
	record := []byte{
		0xD1,                // MB, ME, SR, TNF well-known
		0x01,                // type length
		byte(len(text) + 3), // payload: status + "en" + text
		0x54,                // type "T"
		0x02, 0x65, 0x6E,    // UTF-8 status, "en"
	}
	record = append(record, text...)

	tlv := []byte{0x03, byte(len(record))}
	tlv = append(tlv, record...)
	tlv = append(tlv, 0xFE)

	v.LoadBytes(4, tlv)
}

// LoadBytes writes raw bytes into tag memory starting at a byte
// offset, for test fixture setup. Out-of-range bytes are dropped.
func (v *VirtualTag) LoadBytes(offset int, data []byte) {
	for i, b := range data {
		pos := offset + i
		block := pos / v.BlockSize
		if block >= len(v.Blocks) {
			return
		}
		v.Blocks[block][pos%v.BlockSize] = b
	}
}

// ReadBytes returns a copy of tag memory for test assertions.
func (v *VirtualTag) ReadBytes(offset, length int) []byte {
	out := make([]byte, 0, length)
	for pos := offset; pos < offset+length; pos++ {
		block := pos / v.BlockSize
		if block >= len(v.Blocks) {
			break
		}
		out = append(out, v.Blocks[block][pos%v.BlockSize])
	}
	return out
}

// LockBlockAt marks a block as locked so writes to it fail.
func (v *VirtualTag) LockBlockAt(block int) {
	if block >= 0 && block < len(v.locked) {
		v.locked[block] = true
	}
}

// Respond processes one ISO 15693 request frame and returns the tag's
// response (response flags byte plus payload), or nil when the tag
// stays silent.
func (v *VirtualTag) Respond(frame []byte) []byte {
	if !v.Present || len(frame) < 2 {
		return nil
	}

	flags := frame[0]
	command := frame[1]
	params := frame[2:]

	if flags&isoFlagAddressed != 0 {
		if len(params) < len(v.UID) || !bytes.Equal(params[:len(v.UID)], v.UID) {
			return nil
		}
		params = params[len(v.UID):]
	}

	if v.quiet && command != isoCmdResetToReady && command != isoCmdSelect {
		return nil
	}

	switch command {
	case isoCmdInventory:
		resp := []byte{0x00, v.DSFID}
		return append(resp, v.UID...)

	case isoCmdStayQuiet:
		v.quiet = true
		return nil

	case isoCmdReadSingle:
		if len(params) < 1 {
			return nil
		}
		return v.readBlocks(int(params[0]), 1)

	case isoCmdWriteSingle:
		if len(params) < 1+v.BlockSize {
			return nil
		}
		return v.writeBlock(int(params[0]), params[1:1+v.BlockSize])

	case isoCmdLockBlock:
		if len(params) < 1 {
			return nil
		}
		v.LockBlockAt(int(params[0]))
		return []byte{0x00}

	case isoCmdReadMultiple:
		if len(params) < 2 {
			return nil
		}
		return v.readBlocks(int(params[0]), int(params[1])+1)

	case isoCmdSelect, isoCmdResetToReady:
		v.quiet = false
		return []byte{0x00}

	case isoCmdGetSystemInfo:
		resp := []byte{0x00, 0x07} // DSFID, AFI and memory size present
		resp = append(resp, v.UID...)
		resp = append(resp, v.DSFID, v.AFI,
			byte(len(v.Blocks)-1), byte(v.BlockSize-1))
		return resp

	default:
		return nil
	}
}

func (v *VirtualTag) readBlocks(first, count int) []byte {
	resp := []byte{0x00}
	for block := first; block < first+count; block++ {
		if block == v.FailBlock || block >= len(v.Blocks) {
			return []byte{0x01, v.failCode(block)}
		}
		resp = append(resp, v.Blocks[block]...)
	}
	return resp
}

func (v *VirtualTag) writeBlock(block int, data []byte) []byte {
	if block == v.FailBlock || block >= len(v.Blocks) {
		return []byte{0x01, v.failCode(block)}
	}
	if v.locked[block] {
		return []byte{0x01, isoErrBlockLocked}
	}
	copy(v.Blocks[block], data)
	return []byte{0x00}
}

func (v *VirtualTag) failCode(block int) byte {
	if block == v.FailBlock {
		return v.FailCode
	}
	return isoErrBlockNotAvail
}
