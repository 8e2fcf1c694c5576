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

// Package testing provides a PN5180 chip simulator and a virtual
// ISO 15693 tag for driver tests that need realistic wire behavior
// without hardware.
package testing

import (
	"encoding/binary"
	"fmt"

	"github.com/ZaparooProject/go-pn5180/internal/syncutil"
)

// Host interface opcodes and register addresses mirrored from the
// PN5180 datasheet; local copies keep the simulator independent of
// the driver package.
const (
	hostWriteRegister        = 0x00
	hostWriteRegisterOrMask  = 0x01
	hostWriteRegisterAndMask = 0x02
	hostReadRegister         = 0x04
	hostReadEEPROM           = 0x07
	hostSendData             = 0x09
	hostReadData             = 0x0A
	hostLoadRFConfig         = 0x11
	hostRFOn                 = 0x16
	hostRFOff                = 0x17

	regSystemConfig = 0x00
	regIRQStatus    = 0x02
	regIRQClear     = 0x03
	regRxStatus     = 0x13
	regRFStatus     = 0x1D

	irqRx    = 1 << 0
	irqTx    = 1 << 1
	irqRxSOF = 1 << 14

	sysCommandFieldMask = 0x7
	commandTransceive   = 3

	stateWaitTransmit = 1
)

// Default chip identity values placed in the simulated EEPROM.
const (
	TestProductVersion  uint16 = 0x0004
	TestFirmwareVersion uint16 = 0x0402
	TestEEPROMVersion   uint16 = 0x0091
)

// ChipSimulator emulates the PN5180 host interface behind a transport
// handler: a register file, identity EEPROM, and a transmit path that
// forwards RF frames to an attached VirtualTag.
//
// Wire it up with MockTransport.SetHandler(sim.Handle).
type ChipSimulator struct {
	mu        syncutil.Mutex
	registers [0x40]uint32
	eeprom    [256]byte
	rxBuffer  []byte
	pending   []byte
	Tag       *VirtualTag

	// RFStatusOverride, when non-nil, is returned verbatim for every
	// RF_STATUS read. Tests use it to force transceiver states the
	// simulator never enters on its own.
	RFStatusOverride *uint32

	FieldOn     bool
	transmitted bool
	TxConfig    byte
	RxConfig    byte
	SentFrames  [][]byte
}

// NewChipSimulator creates a simulator with the given tag in the
// field. A nil tag simulates an empty field.
func NewChipSimulator(tag *VirtualTag) *ChipSimulator {
	sim := &ChipSimulator{Tag: tag}
	for i := 0; i < 16; i++ {
		sim.eeprom[i] = byte(0xA0 + i) // die identifier
	}
	binary.LittleEndian.PutUint16(sim.eeprom[0x10:], TestProductVersion)
	binary.LittleEndian.PutUint16(sim.eeprom[0x12:], TestFirmwareVersion)
	binary.LittleEndian.PutUint16(sim.eeprom[0x14:], TestEEPROMVersion)
	return sim
}

// Register returns the current value of a register, for assertions.
func (s *ChipSimulator) Register(addr byte) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRegister(addr)
}

// Handle processes one SPI exchange. A frame of all fill bytes clocks
// out the response of the previous command; anything else is a host
// command.
func (s *ChipSimulator) Handle(tx []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isFillFrame(tx) {
		out := make([]byte, len(tx))
		copy(out, s.pending)
		s.pending = nil
		return out, nil
	}

	if len(tx) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	s.pending = nil

	switch tx[0] {
	case hostWriteRegister:
		if err := checkLen(tx, 6); err != nil {
			return nil, err
		}
		s.writeRegister(tx[1], binary.LittleEndian.Uint32(tx[2:6]))

	case hostWriteRegisterOrMask:
		if err := checkLen(tx, 6); err != nil {
			return nil, err
		}
		s.writeRegister(tx[1], s.readRegister(tx[1])|binary.LittleEndian.Uint32(tx[2:6]))

	case hostWriteRegisterAndMask:
		if err := checkLen(tx, 6); err != nil {
			return nil, err
		}
		s.writeRegister(tx[1], s.readRegister(tx[1])&binary.LittleEndian.Uint32(tx[2:6]))

	case hostReadRegister:
		if err := checkLen(tx, 2); err != nil {
			return nil, err
		}
		s.pending = binary.LittleEndian.AppendUint32(nil, s.readRegister(tx[1]))

	case hostReadEEPROM:
		if err := checkLen(tx, 3); err != nil {
			return nil, err
		}
		addr, length := int(tx[1]), int(tx[2])
		if addr+length > len(s.eeprom) {
			return nil, fmt.Errorf("EEPROM read past end: %d+%d", addr, length)
		}
		s.pending = append([]byte(nil), s.eeprom[addr:addr+length]...)

	case hostSendData:
		if err := checkLen(tx, 2); err != nil {
			return nil, err
		}
		s.transmit(tx[2:])

	case hostReadData:
		s.pending = append([]byte(nil), s.rxBuffer...)

	case hostLoadRFConfig:
		if err := checkLen(tx, 3); err != nil {
			return nil, err
		}
		s.TxConfig, s.RxConfig = tx[1], tx[2]

	case hostRFOn:
		s.FieldOn = true

	case hostRFOff:
		s.FieldOn = false

	default:
		return nil, fmt.Errorf("unsupported host command 0x%02X", tx[0])
	}

	return make([]byte, len(tx)), nil
}

func (s *ChipSimulator) readRegister(addr byte) uint32 {
	if addr == regRFStatus {
		if s.RFStatusOverride != nil {
			return *s.RFStatusOverride
		}
		// The transceiver sits in WAIT_TRANSMIT from the moment the
		// TRANSCEIVE command is set until data is sent.
		cmd := s.registers[regSystemConfig] & sysCommandFieldMask
		if cmd == commandTransceive && !s.transmitted {
			return stateWaitTransmit << 24
		}
		return 0
	}
	return s.registers[addr]
}

func (s *ChipSimulator) writeRegister(addr byte, value uint32) {
	if addr == regIRQClear {
		s.registers[regIRQStatus] &^= value
		return
	}
	if addr == regSystemConfig {
		prev := s.registers[regSystemConfig] & sysCommandFieldMask
		if value&sysCommandFieldMask == commandTransceive && prev != commandTransceive {
			s.transmitted = false
		}
	}
	s.registers[addr] = value
}

// transmit forwards an RF frame to the tag and latches the reception
// state the driver polls for.
func (s *ChipSimulator) transmit(frame []byte) {
	s.transmitted = true
	s.SentFrames = append(s.SentFrames, append([]byte(nil), frame...))
	s.registers[regIRQStatus] |= irqTx
	s.rxBuffer = nil
	s.registers[regRxStatus] = 0

	if !s.FieldOn || s.Tag == nil {
		return
	}
	resp := s.Tag.Respond(frame)
	if resp == nil {
		return
	}
	s.rxBuffer = resp
	s.registers[regRxStatus] = uint32(len(resp))
	s.registers[regIRQStatus] |= irqRxSOF | irqRx
}

func isFillFrame(tx []byte) bool {
	if len(tx) == 0 {
		return false
	}
	for _, b := range tx {
		if b != 0xFF {
			return false
		}
	}
	return true
}

func checkLen(tx []byte, want int) error {
	if len(tx) < want {
		return fmt.Errorf("command 0x%02X frame too short: %d bytes", tx[0], len(tx))
	}
	return nil
}
