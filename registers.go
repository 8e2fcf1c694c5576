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

// Register addresses (datasheet section 11.6)
const (
	regSystemConfig = 0x00
	regIRQEnable    = 0x01
	regIRQStatus    = 0x02
	regIRQClear     = 0x03
	regRxStatus     = 0x13
	regCRCTxConfig  = 0x19
	regRFStatus     = 0x1D
)

// SYSTEM_CONFIG register bits. The low three bits form the command
// field that drives the transceiver state machine.
const (
	sysResetSet    uint32 = 0x00000100
	sysResetClear  uint32 = 0xFFFFFEFF
	sysStartSend   uint32 = 0x00000008
	sysCommandMask uint32 = 0xFFFFFFF8

	sysCommandIdle       uint32 = 0x00000000
	sysCommandTransceive uint32 = 0x00000003
	sysCommandKeep       uint32 = 0x00000004
	sysCommandLoopback   uint32 = 0x00000005
	sysCommandPRBS       uint32 = 0x00000006
)

// IRQ_STATUS register bits
const (
	irqRxComplete uint32 = 1 << 0
	irqTxComplete uint32 = 1 << 1
	irqIdle       uint32 = 1 << 2
	irqRxSOFDet   uint32 = 1 << 14

	// irqClearAll clears every flag the IRQ_STATUS register defines
	// (20 implemented bits).
	irqClearAll uint32 = 0x000FFFFF
)

// rxStatusByteCountMask extracts the 9-bit received byte count from RX_STATUS.
const rxStatusByteCountMask uint32 = 0x1FF

// TransceiveState is the transceiver state machine value held in
// RF_STATUS bits 24-26.
type TransceiveState uint8

// Transceiver states (datasheet TRANSCEIVE_STATE field)
const (
	StateIdle TransceiveState = iota
	StateWaitTransmit
	StateTransmitting
	StateWaitReceive
	StateWaitForData
	StateReceiving
	StateLoopback
	StateReserved
)

// transceiveStateNames maps state values to their datasheet names.
var transceiveStateNames = map[TransceiveState]string{
	StateIdle:         "IDLE",
	StateWaitTransmit: "WAIT_TRANSMIT",
	StateTransmitting: "TRANSMITTING",
	StateWaitReceive:  "WAIT_RECEIVE",
	StateWaitForData:  "WAIT_FOR_DATA",
	StateReceiving:    "RECEIVING",
	StateLoopback:     "LOOPBACK",
	StateReserved:     "RESERVED",
}

// String returns the datasheet name of the state.
func (s TransceiveState) String() string {
	if name, ok := transceiveStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// transceiveStateOf extracts the transceiver state from an RF_STATUS value.
func transceiveStateOf(rfStatus uint32) TransceiveState {
	return TransceiveState((rfStatus >> 24) & 0x7)
}

// registerNames maps register addresses to their datasheet names.
// Used by Device.DumpRegisters for diagnostics.
var registerNames = map[byte]string{
	0x00: "SYSTEM_CONFIG",
	0x01: "IRQ_ENABLE",
	0x02: "IRQ_STATUS",
	0x03: "IRQ_CLEAR",
	0x04: "TRANSCEIVER_CONFIG",
	0x05: "PADCONFIG",
	0x06: "RFU",
	0x07: "PADOUT",
	0x08: "TIMER0_STATUS",
	0x09: "TIMER1_STATUS",
	0x0A: "TIMER2_STATUS",
	0x0B: "TIMER0_RELOAD",
	0x0C: "TIMER1_RELOAD",
	0x0D: "TIMER2_RELOAD",
	0x0E: "TIMER0_CONFIG",
	0x0F: "TIMER1_CONFIG",
	0x10: "TIMER2_CONFIG",
	0x11: "RX_WAIT_CONFIG",
	0x12: "CRC_RX_CONFIG",
	0x13: "RX_STATUS",
	0x14: "TX_UNDERSHOOT_CONFIG",
	0x15: "TX_OVERSHOOT_CONFIG",
	0x16: "TX_DATA_MOD",
	0x17: "TX_WAIT_CONFIG",
	0x18: "TX_CONFIG",
	0x19: "CRC_TX_CONFIG",
	0x1A: "SIGPRO_CONFIG",
	0x1B: "SIGPRO_CM_CONFIG",
	0x1C: "SIGPRO_RM_CONFIG",
	0x1D: "RF_STATUS",
	0x1E: "AGC_CONFIG",
	0x1F: "AGC_VALUE",
	0x20: "RF_CONTROL_TX",
	0x21: "RF_CONTROL_TX_CLK",
	0x22: "RF_CONTROL_RX",
	0x23: "LD_CONTROL",
	0x24: "SYSTEM_STATUS",
	0x25: "TEMP_CONTROL",
	0x26: "CHECK_CARD_RESULT",
	0x27: "DPC_CONFIG",
	0x28: "EMD_CONTROL",
	0x29: "ANT_CONTROL",
	0x39: "SIGPRO_RM_CONFIG_EXTENSION",
}

// maxDumpRegister is the last contiguous register address covered by
// DumpRegisters; 0x39 is dumped separately.
const maxDumpRegister = 0x29

// RegisterName returns the datasheet name for a register address, or
// "RESERVED" for addresses outside the documented map.
func RegisterName(addr byte) string {
	if name, ok := registerNames[addr]; ok {
		return name
	}
	return "RESERVED"
}
