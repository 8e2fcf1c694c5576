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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// ResetSettle is the wait after toggling the soft-reset bit
	ResetSettle time.Duration
	// HighSpeed selects the 53 kbps ISO 15693 receive configuration
	HighSpeed bool
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		ResetSettle: 50 * time.Millisecond,
		HighSpeed:   false,
	}
}

// Option configures a Device during construction
type Option func(*Device) error

// WithResetSettle overrides the soft-reset settle time.
func WithResetSettle(d time.Duration) Option {
	return func(dev *Device) error {
		if d <= 0 {
			return fmt.Errorf("%w: reset settle must be positive", ErrInvalidParameter)
		}
		dev.config.ResetSettle = d
		return nil
	}
}

// WithHighSpeed selects the ASK10/53 kbps ISO 15693 RF configuration
// instead of the default ASK100/26 kbps pair.
func WithHighSpeed() Option {
	return func(dev *Device) error {
		dev.config.HighSpeed = true
		return nil
	}
}

// Device represents a PN5180 NFC reader frontend and implements the
// chip's host command protocol over a Transport.
//
// Thread Safety: Device is NOT thread-safe. The chip has a single
// register file and one transceive sequence may be in flight at a
// time; all methods must be called from a single goroutine or
// protected with external synchronization.
type Device struct {
	transport Transport
	config    *DeviceConfig
}

// New creates a new PN5180 device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport {
	return d.transport
}

// Close closes the underlying transport.
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// sendCommand writes [opcode, params...] in one exchange and, when
// respLen is nonzero, performs one further exchange of fill bytes to
// clock out the response. No retries: a dead link propagates as-is.
func (d *Device) sendCommand(opcode byte, params []byte, respLen int) ([]byte, error) {
	buf := make([]byte, 1+len(params))
	buf[0] = opcode
	copy(buf[1:], params)

	if _, err := d.transport.Exchange(buf); err != nil {
		return nil, NewTransportError("sendCommand", string(d.transport.Type()),
			fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
	}
	Debugf("cmd 0x%02X sent (%d bytes)", opcode, len(buf))

	if respLen == 0 {
		return nil, nil
	}

	fill := make([]byte, respLen)
	for i := range fill {
		fill[i] = fillByte
	}
	resp, err := d.transport.Exchange(fill)
	if err != nil {
		return nil, NewTransportError("sendCommand", string(d.transport.Type()),
			fmt.Errorf("%w: %w", ErrTransportRead, err), ErrorTypeTransient)
	}
	return resp, nil
}

// WriteRegister writes a 32-bit value (little-endian on the wire) to a
// configuration register.
func (d *Device) WriteRegister(addr byte, value uint32) error {
	params := make([]byte, 5)
	params[0] = addr
	binary.LittleEndian.PutUint32(params[1:], value)
	_, err := d.sendCommand(cmdWriteRegister, params, 0)
	return err
}

// WriteRegisterOrMask sets register bits using a 32-bit OR mask.
func (d *Device) WriteRegisterOrMask(addr byte, mask uint32) error {
	params := make([]byte, 5)
	params[0] = addr
	binary.LittleEndian.PutUint32(params[1:], mask)
	_, err := d.sendCommand(cmdWriteRegisterOrMask, params, 0)
	return err
}

// WriteRegisterAndMask clears register bits using a 32-bit AND mask.
func (d *Device) WriteRegisterAndMask(addr byte, mask uint32) error {
	params := make([]byte, 5)
	params[0] = addr
	binary.LittleEndian.PutUint32(params[1:], mask)
	_, err := d.sendCommand(cmdWriteRegisterAndMask, params, 0)
	return err
}

// ReadRegister reads one 32-bit register value.
func (d *Device) ReadRegister(addr byte) (uint32, error) {
	resp, err := d.sendCommand(cmdReadRegister, []byte{addr}, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(resp), nil
}

// ReadEEPROM reads length bytes from the chip EEPROM starting at addr.
func (d *Device) ReadEEPROM(addr, length byte) ([]byte, error) {
	return d.sendCommand(cmdReadEEPROM, []byte{addr, length}, int(length))
}

// SendData writes a frame into the transmission buffer and starts the
// RF transmission. validBits is the number of valid bits in the last
// byte; 8 sends whole bytes only.
func (d *Device) SendData(validBits byte, data []byte) error {
	params := make([]byte, 1+len(data))
	params[0] = validBits
	copy(params[1:], data)
	_, err := d.sendCommand(cmdSendData, params, 0)
	return err
}

// ReadData reads length bytes from the reception buffer after a
// successful reception.
func (d *Device) ReadData(length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	return d.sendCommand(cmdReadData, []byte{0x00}, length)
}

// LoadRFConfig loads transmitter and receiver RF configurations from
// EEPROM into the configuration registers.
func (d *Device) LoadRFConfig(txConfig, rxConfig byte) error {
	_, err := d.sendCommand(cmdLoadRFConfig, []byte{txConfig, rxConfig}, 0)
	return err
}

// RFOn switches the RF field on. See the RFOn* mode constants.
func (d *Device) RFOn(mode byte) error {
	_, err := d.sendCommand(cmdRFOn, []byte{mode}, 0)
	return err
}

// RFOff switches the RF field off.
func (d *Device) RFOff() error {
	_, err := d.sendCommand(cmdRFOff, []byte{0x00}, 0)
	return err
}

// Register helpers used by the transceive engine

// irqStatus reads the IRQ_STATUS register.
func (d *Device) irqStatus() (uint32, error) {
	return d.ReadRegister(regIRQStatus)
}

// clearIRQStatus acknowledges every pending IRQ flag. Safe to issue
// repeatedly: clearing an already-clear flag has no effect.
func (d *Device) clearIRQStatus() error {
	return d.WriteRegister(regIRQClear, irqClearAll)
}

// transceiveState reads the transceiver state machine from RF_STATUS.
func (d *Device) transceiveState() (TransceiveState, error) {
	rf, err := d.ReadRegister(regRFStatus)
	if err != nil {
		return StateIdle, err
	}
	return transceiveStateOf(rf), nil
}

// rxByteCount reads the 9-bit received byte count from RX_STATUS.
func (d *Device) rxByteCount() (int, error) {
	rx, err := d.ReadRegister(regRxStatus)
	if err != nil {
		return 0, err
	}
	return int(rx & rxStatusByteCountMask), nil
}

// setCommand switches the SYSTEM_CONFIG command field: clear the low
// three bits, then OR in the requested command value.
func (d *Device) setCommand(command uint32) error {
	if err := d.WriteRegisterAndMask(regSystemConfig, sysCommandMask); err != nil {
		return err
	}
	return d.WriteRegisterOrMask(regSystemConfig, command)
}

// SoftwareReset toggles the SYSTEM_CONFIG soft-reset bit with a settle
// wait on each edge.
func (d *Device) SoftwareReset() error {
	if err := d.WriteRegisterOrMask(regSystemConfig, sysResetSet); err != nil {
		return err
	}
	time.Sleep(d.config.ResetSettle)
	if err := d.WriteRegisterAndMask(regSystemConfig, sysResetClear); err != nil {
		return err
	}
	time.Sleep(d.config.ResetSettle)
	return nil
}

// ConfigureISO15693 soft-resets the chip, loads the ISO 15693 RF
// configuration, enables the field and parks the transceiver in IDLE.
func (d *Device) ConfigureISO15693() error {
	if err := d.SoftwareReset(); err != nil {
		return err
	}

	txConfig, rxConfig := RFConfigTxISO15693ASK100, RFConfigRxISO15693_26Kbps
	if d.config.HighSpeed {
		txConfig, rxConfig = RFConfigTxISO15693ASK10, RFConfigRxISO15693_53Kbps
	}
	if err := d.LoadRFConfig(txConfig, rxConfig); err != nil {
		return err
	}

	if err := d.RFOn(RFOnStandard); err != nil {
		return err
	}

	return d.setCommand(sysCommandIdle)
}

// Chip identity (EEPROM)

// FirmwareVersion returns the chip firmware version word.
func (d *Device) FirmwareVersion() (uint16, error) {
	resp, err := d.ReadEEPROM(eepromFirmwareVersion, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(resp), nil
}

// ProductVersion returns the chip product version word.
func (d *Device) ProductVersion() (uint16, error) {
	resp, err := d.ReadEEPROM(eepromProductVersion, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(resp), nil
}

// EEPROMVersion returns the chip EEPROM layout version word.
func (d *Device) EEPROMVersion() (uint16, error) {
	resp, err := d.ReadEEPROM(eepromEEPROMVersion, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(resp), nil
}

// DieIdentifier returns the 16-byte die identifier as a hex string.
func (d *Device) DieIdentifier() (string, error) {
	resp, err := d.ReadEEPROM(eepromDieIdentifier, 16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(resp), nil
}

// SelfTest reads the chip identity fields and returns a printable
// summary, verifying the host interface end to end.
func (d *Device) SelfTest() (string, error) {
	fw, err := d.FirmwareVersion()
	if err != nil {
		return "", err
	}
	product, err := d.ProductVersion()
	if err != nil {
		return "", err
	}
	eeprom, err := d.EEPROMVersion()
	if err != nil {
		return "", err
	}
	die, err := d.DieIdentifier()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Firmware version: %#x\n", fw)
	fmt.Fprintf(&sb, "Product version : %#x\n", product)
	fmt.Fprintf(&sb, "EEPROM version  : %#x\n", eeprom)
	fmt.Fprintf(&sb, "Die identifier  : %s\n", die)
	return sb.String(), nil
}

// DumpRegisters reads every documented register and returns a
// formatted listing for diagnostics.
func (d *Device) DumpRegisters() (string, error) {
	var sb strings.Builder
	sb.WriteString("======= Register Dump =======\n")
	for addr := byte(0); addr <= maxDumpRegister; addr++ {
		value, err := d.ReadRegister(addr)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%-26s %#02x = %#08x\n", RegisterName(addr), addr, value)
	}
	value, err := d.ReadRegister(0x39)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "%-26s %#02x = %#08x\n", RegisterName(0x39), 0x39, value)
	sb.WriteString("=============================\n")
	return sb.String(), nil
}
