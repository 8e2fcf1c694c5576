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
	"encoding/hex"
	"errors"
	"fmt"
)

// ISO 15693 command codes (ISO/IEC 15693-3 table 5)
const (
	cmdISOInventory           = 0x01
	cmdISOStayQuiet           = 0x02
	cmdISOReadSingleBlock     = 0x20
	cmdISOWriteSingleBlock    = 0x21
	cmdISOLockBlock           = 0x22
	cmdISOReadMultipleBlocks  = 0x23
	cmdISOWriteMultipleBlocks = 0x24
	cmdISOSelect              = 0x25
	cmdISOResetToReady        = 0x26
	cmdISOWriteAFI            = 0x27
	cmdISOLockAFI             = 0x28
	cmdISOWriteDSFID          = 0x29
	cmdISOLockDSFID           = 0x2A
	cmdISOGetSystemInfo       = 0x2B
	cmdISOGetBlockSecurity    = 0x2C
	cmdISOGetSystemInfoExt    = 0x3B

	// Vendor custom command region (0xA0-0xDF IC manufacturer dependent)
	cmdISOCustomReadSingle    = 0xC0
	cmdISOCustomWriteSingle   = 0xC1
	cmdISOCustomLockBlock     = 0xC2
	cmdISOCustomReadMultiple  = 0xC3
	cmdISOCustomWriteMultiple = 0xC4
)

// ISO 15693 request flag bits (ISO/IEC 15693-3 table 3)
const (
	// FlagSubCarrier requests two sub-carriers from the VICC.
	FlagSubCarrier byte = 0x01
	// FlagHighDataRate requests the high data rate.
	FlagHighDataRate byte = 0x02
	// FlagInventory marks inventory-mode flag interpretation.
	FlagInventory byte = 0x04
	// FlagProtocolExtension marks the protocol format extension.
	FlagProtocolExtension byte = 0x08
	// FlagAddressed marks a request carrying the target UID.
	FlagAddressed byte = 0x20

	// defaultRequestFlags: high data rate, single sub-carrier.
	defaultRequestFlags = FlagHighDataRate

	// inventoryRequestFlags: inventory mode, high data rate, one slot.
	inventoryRequestFlags = 0x26
)

// UIDSize is the size of an ISO 15693 unique identifier.
const UIDSize = 8

// UID is an ISO 15693 unique identifier, as transmitted on the wire
// (LSB first).
type UID [UIDSize]byte

// String returns the UID as a hex string.
func (u UID) String() string {
	return hex.EncodeToString(u[:])
}

// TagInfo holds the fields of a GET_SYSTEM_INFORMATION response.
// Fields the tag did not report are zero.
type TagInfo struct {
	UID       UID
	InfoFlags byte
	DSFID     byte
	AFI       byte
	NumBlocks int
	BlockSize int
}

// ISO15693 frames and issues ISO/IEC 15693 commands through a Device's
// transceive engine and classifies the outcomes.
//
// UID presence is explicit: commands taking *UID operate in addressed
// mode when the pointer is non-nil and in non-addressed mode when nil.
type ISO15693 struct {
	device *Device
	flags  byte
}

// NewISO15693 creates an ISO 15693 command layer on top of a device.
func NewISO15693(device *Device) *ISO15693 {
	return &ISO15693{
		device: device,
		flags:  defaultRequestFlags,
	}
}

// Device returns the underlying PN5180 device.
func (i *ISO15693) Device() *Device {
	return i.device
}

// Configure prepares the chip for ISO 15693 operation: soft reset, RF
// configuration load, field on, transceiver parked in IDLE.
func (i *ISO15693) Configure() error {
	return i.device.ConfigureISO15693()
}

// Disconnect switches the RF field off.
func (i *ISO15693) Disconnect() error {
	return i.device.RFOff()
}

// SetFlags overrides the request flags byte used for subsequent
// non-inventory commands.
func (i *ISO15693) SetFlags(flags byte) {
	i.flags = flags
}

// buildFrame assembles [requestFlags, command, UID?, params...]. A
// non-nil uid sets the addressed flag and injects the 8 UID bytes
// directly after the command code.
func (i *ISO15693) buildFrame(command byte, uid *UID, params ...byte) []byte {
	flags := i.flags
	size := 2 + len(params)
	if uid != nil {
		flags |= FlagAddressed
		size += UIDSize
	}

	frame := make([]byte, 0, size)
	frame = append(frame, flags, command)
	if uid != nil {
		frame = append(frame, uid[:]...)
	}
	return append(frame, params...)
}

// transact runs one transceive round trip and classifies the result:
// NoAnswerFlags maps to ErrNoAnswer, any other nonzero flags byte to a
// *TagError carrying the datasheet code, zero flags to success.
func (i *ISO15693) transact(ctx context.Context, name string, frame []byte) ([]byte, error) {
	flags, payload, err := i.device.Transceive(ctx, frame)
	if err != nil {
		return nil, err
	}

	switch {
	case flags == NoAnswerFlags:
		return nil, fmt.Errorf("%s: %w", name, ErrNoAnswer)
	case flags != 0:
		var code byte
		if len(payload) > 0 {
			code = payload[0]
		}
		return nil, &TagError{Command: name, Code: code}
	default:
		return payload, nil
	}
}

// Inventory requests a single UID from the field. A success with fewer
// than 9 payload bytes (DSFID + 8 UID bytes) is classified as no
// answer: some chips flag success on a truncated reception.
func (i *ISO15693) Inventory(ctx context.Context) (UID, error) {
	frame := []byte{inventoryRequestFlags, cmdISOInventory, 0x00} // zero mask length
	payload, err := i.transact(ctx, "Inventory", frame)
	if err != nil {
		return UID{}, err
	}
	if len(payload) < 1+UIDSize {
		return UID{}, fmt.Errorf("Inventory: %w", ErrNoAnswer)
	}

	var uid UID
	copy(uid[:], payload[1:1+UIDSize])
	return uid, nil
}

// StayQuiet silences the addressed tag until reset or reselection. A
// quieted tag sends no reply, so the engine's no-answer outcome is the
// success case here.
func (i *ISO15693) StayQuiet(ctx context.Context, uid UID) error {
	_, err := i.transact(ctx, "StayQuiet", i.buildFrame(cmdISOStayQuiet, &uid))
	if err != nil && !errors.Is(err, ErrNoAnswer) {
		return err
	}
	return nil
}

// ReadSingleBlock reads one block of tag memory.
func (i *ISO15693) ReadSingleBlock(ctx context.Context, block byte, uid *UID) ([]byte, error) {
	return i.transact(ctx, "ReadSingleBlock", i.buildFrame(cmdISOReadSingleBlock, uid, block))
}

// WriteSingleBlock writes one block of tag memory. The returned
// payload is the tag's response data; a successful write returns an
// empty payload.
func (i *ISO15693) WriteSingleBlock(ctx context.Context, block byte, data []byte, uid *UID) ([]byte, error) {
	params := make([]byte, 0, 1+len(data))
	params = append(params, block)
	params = append(params, data...)
	return i.transact(ctx, "WriteSingleBlock", i.buildFrame(cmdISOWriteSingleBlock, uid, params...))
}

// LockBlock permanently locks one block of tag memory.
func (i *ISO15693) LockBlock(ctx context.Context, block byte, uid *UID) error {
	_, err := i.transact(ctx, "LockBlock", i.buildFrame(cmdISOLockBlock, uid, block))
	return err
}

// ReadMultipleBlocks reads count consecutive blocks starting at
// firstBlock and returns their concatenated contents. count must be
// within 1..256; on the wire the parameter is zero-based (N means N+1
// blocks).
func (i *ISO15693) ReadMultipleBlocks(ctx context.Context, firstBlock byte, count int, uid *UID) ([]byte, error) {
	if count < 1 || count > 256 {
		return nil, fmt.Errorf("%w: block count %d", ErrInvalidParameter, count)
	}
	frame := i.buildFrame(cmdISOReadMultipleBlocks, uid, firstBlock, byte(count-1))
	return i.transact(ctx, "ReadMultipleBlocks", frame)
}

// WriteMultipleBlocks writes count consecutive blocks starting at
// firstBlock. data must hold exactly count blocks. Success requires
// the tag to acknowledge every requested block: a response payload
// shorter than count means a partial write.
func (i *ISO15693) WriteMultipleBlocks(
	ctx context.Context, firstBlock byte, count int, data []byte, uid *UID,
) error {
	if count < 1 || count > 256 {
		return fmt.Errorf("%w: block count %d", ErrInvalidParameter, count)
	}

	params := make([]byte, 0, 2+len(data))
	params = append(params, firstBlock, byte(count-1))
	params = append(params, data...)
	payload, err := i.transact(ctx, "WriteMultipleBlocks", i.buildFrame(cmdISOWriteMultipleBlocks, uid, params...))
	if err != nil {
		return err
	}
	if len(payload) != count {
		return fmt.Errorf("%w: tag acknowledged %d of %d blocks", ErrInvalidResponse, len(payload), count)
	}
	return nil
}

// Select moves the addressed tag into the selected state.
func (i *ISO15693) Select(ctx context.Context, uid UID) error {
	_, err := i.transact(ctx, "Select", i.buildFrame(cmdISOSelect, &uid))
	return err
}

// ResetToReady returns the tag to the ready state.
func (i *ISO15693) ResetToReady(ctx context.Context, uid *UID) error {
	_, err := i.transact(ctx, "ResetToReady", i.buildFrame(cmdISOResetToReady, uid))
	return err
}

// WriteAFI writes the application family identifier.
func (i *ISO15693) WriteAFI(ctx context.Context, afi byte, uid *UID) error {
	_, err := i.transact(ctx, "WriteAFI", i.buildFrame(cmdISOWriteAFI, uid, afi))
	return err
}

// LockAFI permanently locks the application family identifier.
func (i *ISO15693) LockAFI(ctx context.Context, uid *UID) error {
	_, err := i.transact(ctx, "LockAFI", i.buildFrame(cmdISOLockAFI, uid))
	return err
}

// WriteDSFID writes the data storage format identifier.
func (i *ISO15693) WriteDSFID(ctx context.Context, dsfid byte, uid *UID) error {
	_, err := i.transact(ctx, "WriteDSFID", i.buildFrame(cmdISOWriteDSFID, uid, dsfid))
	return err
}

// LockDSFID permanently locks the data storage format identifier.
func (i *ISO15693) LockDSFID(ctx context.Context, uid *UID) error {
	_, err := i.transact(ctx, "LockDSFID", i.buildFrame(cmdISOLockDSFID, uid))
	return err
}

// GetSystemInformation queries the tag's metadata and memory geometry.
// The UID field is always present in the response; DSFID, AFI and the
// geometry bytes appear only when their info flag bit is set and
// default to zero otherwise.
func (i *ISO15693) GetSystemInformation(ctx context.Context, uid *UID) (*TagInfo, error) {
	payload, err := i.transact(ctx, "GetSystemInformation", i.buildFrame(cmdISOGetSystemInfo, uid))
	if err != nil {
		return nil, err
	}
	return parseSystemInformation(payload)
}

// parseSystemInformation decodes a GET_SYSTEM_INFORMATION payload:
// [infoFlags, UID(8), DSFID?, AFI?, memSize(2)?, ...].
func parseSystemInformation(payload []byte) (*TagInfo, error) {
	if len(payload) < 1+UIDSize {
		return nil, fmt.Errorf("%w: system information payload of %d bytes", ErrInvalidResponse, len(payload))
	}

	info := &TagInfo{InfoFlags: payload[0]}
	copy(info.UID[:], payload[1:1+UIDSize])

	p := 1 + UIDSize
	if info.InfoFlags&0x01 != 0 {
		if p >= len(payload) {
			return nil, fmt.Errorf("%w: truncated DSFID field", ErrInvalidResponse)
		}
		info.DSFID = payload[p]
		p++
	}
	if info.InfoFlags&0x02 != 0 {
		if p >= len(payload) {
			return nil, fmt.Errorf("%w: truncated AFI field", ErrInvalidResponse)
		}
		info.AFI = payload[p]
		p++
	}
	if info.InfoFlags&0x04 != 0 {
		if p+1 >= len(payload) {
			return nil, fmt.Errorf("%w: truncated memory size field", ErrInvalidResponse)
		}
		// Both fields are stored minus one; block size uses 5 bits.
		info.NumBlocks = int(payload[p]) + 1
		info.BlockSize = int(payload[p+1]&0x1F) + 1
	}

	return info, nil
}

// GetSystemInformationExt issues the extended system information
// command, requesting all parameter fields. The raw payload is
// returned undecoded; field layout varies by vendor.
func (i *ISO15693) GetSystemInformationExt(ctx context.Context, uid *UID) ([]byte, error) {
	return i.transact(ctx, "GetSystemInformationExt", i.buildFrame(cmdISOGetSystemInfoExt, uid, 0x1F))
}

// GetMultipleBlockSecurityStatus returns the lock status byte of count
// consecutive blocks starting at firstBlock.
func (i *ISO15693) GetMultipleBlockSecurityStatus(
	ctx context.Context, firstBlock byte, count int, uid *UID,
) ([]byte, error) {
	if count < 1 || count > 256 {
		return nil, fmt.Errorf("%w: block count %d", ErrInvalidParameter, count)
	}
	frame := i.buildFrame(cmdISOGetBlockSecurity, uid, firstBlock, byte(count-1))
	return i.transact(ctx, "GetMultipleBlockSecurityStatus", frame)
}

// CustomReadSingle issues the vendor 0xC0 read with a 16-bit block
// number (LSB first), as used by larger vendor memories.
func (i *ISO15693) CustomReadSingle(ctx context.Context, mfgCode byte, block uint16, uid *UID) ([]byte, error) {
	params := []byte{mfgCode, byte(block), byte(block >> 8)}
	if uid != nil {
		// Manufacturer code precedes the UID in the custom frame layout
		frame := make([]byte, 0, 3+UIDSize+2)
		frame = append(frame, i.flags|FlagAddressed, cmdISOCustomReadSingle, mfgCode)
		frame = append(frame, uid[:]...)
		frame = append(frame, byte(block), byte(block>>8))
		return i.transact(ctx, "CustomReadSingle", frame)
	}
	return i.transact(ctx, "CustomReadSingle", i.buildFrame(cmdISOCustomReadSingle, nil, params...))
}

// Custom issues an arbitrary vendor command (0xA0-0xFF region) with a
// manufacturer code and raw parameter bytes.
func (i *ISO15693) Custom(ctx context.Context, command, mfgCode byte, params []byte) ([]byte, error) {
	if command < 0xA0 {
		return nil, fmt.Errorf("%w: 0x%02X is not in the custom command region", ErrInvalidParameter, command)
	}
	all := make([]byte, 0, 1+len(params))
	all = append(all, mfgCode)
	all = append(all, params...)
	return i.transact(ctx, "Custom", i.buildFrame(command, nil, all...))
}

// Raw issues an arbitrary command code with raw parameters, the escape
// hatch for codes this layer does not model.
func (i *ISO15693) Raw(ctx context.Context, command byte, params []byte, uid *UID) ([]byte, error) {
	return i.transact(ctx, "Raw", i.buildFrame(command, uid, params...))
}
