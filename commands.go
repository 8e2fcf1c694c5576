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

// PN5180 host interface command codes (datasheet section 11.4)
const (
	cmdWriteRegister        = 0x00
	cmdWriteRegisterOrMask  = 0x01
	cmdWriteRegisterAndMask = 0x02
	cmdWriteRegisterMulti   = 0x03
	cmdReadRegister         = 0x04
	cmdReadRegisterMulti    = 0x05
	cmdWriteEEPROM          = 0x06
	cmdReadEEPROM           = 0x07
	cmdWriteTxData          = 0x08
	cmdSendData             = 0x09
	cmdReadData             = 0x0A
	cmdSwitchMode           = 0x0B
	cmdMifareAuthenticate   = 0x0C
	cmdEpcInventory         = 0x0D
	cmdEpcResumeInventory   = 0x0E
	cmdEpcRetrieveSize      = 0x0F
	cmdLoadRFConfig         = 0x11
	cmdUpdateRFConfig       = 0x12
	cmdRetrieveRFConfigSize = 0x13
	cmdRetrieveRFConfig     = 0x14
	cmdRFOn                 = 0x16
	cmdRFOff                = 0x17
	cmdConfigTestbusDigital = 0x18
	cmdConfigTestbusAnalog  = 0x19
)

// fillByte is clocked out while reading a command response. The PN5180
// ignores MOSI during the response phase; 0xFF keeps the line idle-high.
const fillByte = 0xFF

// EEPROM addresses for chip identity fields
const (
	eepromDieIdentifier   = 0x00 // 16 bytes
	eepromProductVersion  = 0x10 // 2 bytes
	eepromFirmwareVersion = 0x12 // 2 bytes
	eepromEEPROMVersion   = 0x14 // 2 bytes
)

// RF configuration indexes for LOAD_RF_CONFIG (ISO 15693 modes)
const (
	// RFConfigTxISO15693ASK100 selects 100% ASK transmit modulation at 26 kbps.
	RFConfigTxISO15693ASK100 byte = 0x0D
	// RFConfigRxISO15693_26Kbps selects 26 kbps receive.
	RFConfigRxISO15693_26Kbps byte = 0x8D
	// RFConfigTxISO15693ASK10 selects 10% ASK transmit modulation.
	RFConfigTxISO15693ASK10 byte = 0x0E
	// RFConfigRxISO15693_53Kbps selects 53 kbps receive.
	RFConfigRxISO15693_53Kbps byte = 0x8E
)

// RFOnMode flags for the RF_ON command
const (
	// RFOnStandard enables the field with ISO/IEC 18092 collision avoidance.
	RFOnStandard byte = 0x00
	// RFOnNoCollisionAvoidance disables ISO/IEC 18092 collision avoidance.
	RFOnNoCollisionAvoidance byte = 0x01
	// RFOnActiveCommunication selects ISO/IEC 18092 active communication mode.
	RFOnActiveCommunication byte = 0x02
)
