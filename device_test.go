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
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-pn5180/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSimDevice wires a Device to a fresh chip simulator with the given
// tag (nil for an empty field). The reset settle is shortened so tests
// that configure the chip stay fast.
func newSimDevice(t *testing.T, tag *testutil.VirtualTag) (*Device, *testutil.ChipSimulator) {
	t.Helper()

	sim := testutil.NewChipSimulator(tag)
	transport := NewMockTransport()
	transport.SetHandler(sim.Handle)

	device, err := New(transport, WithResetSettle(time.Millisecond))
	require.NoError(t, err)
	return device, sim
}

func TestNew(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	device, err := New(transport)
	require.NoError(t, err)
	assert.Equal(t, transport, device.Transport())
	assert.Equal(t, 50*time.Millisecond, device.config.ResetSettle)
}

func TestNew_OptionError(t *testing.T) {
	t.Parallel()

	_, err := New(NewMockTransport(), WithResetSettle(-1))
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDevice_WriteRegister_WireFormat(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	device, err := New(transport)
	require.NoError(t, err)

	require.NoError(t, device.WriteRegister(0x02, 0x000FFFFF))

	exchanges := transport.Exchanges()
	require.Len(t, exchanges, 1)
	// Opcode, register address, then the value little-endian.
	assert.Equal(t, []byte{0x00, 0x02, 0xFF, 0xFF, 0x0F, 0x00}, exchanges[0])
}

func TestDevice_RegisterMasks_WireFormat(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	device, err := New(transport)
	require.NoError(t, err)

	require.NoError(t, device.WriteRegisterOrMask(regSystemConfig, 0x00000003))
	require.NoError(t, device.WriteRegisterAndMask(regSystemConfig, 0xFFFFFFF8))

	exchanges := transport.Exchanges()
	require.Len(t, exchanges, 2)
	assert.Equal(t, []byte{0x01, 0x00, 0x03, 0x00, 0x00, 0x00}, exchanges[0])
	assert.Equal(t, []byte{0x02, 0x00, 0xF8, 0xFF, 0xFF, 0xFF}, exchanges[1])
}

func TestDevice_ReadRegister(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	device, err := New(transport)
	require.NoError(t, err)

	// First exchange carries the command, second clocks out the value.
	transport.QueueResponse(nil)
	transport.QueueResponse([]byte{0x78, 0x56, 0x34, 0x12})

	value, err := device.ReadRegister(0x1D)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), value)

	exchanges := transport.Exchanges()
	require.Len(t, exchanges, 2)
	assert.Equal(t, []byte{0x04, 0x1D}, exchanges[0])
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, exchanges[1])
}

func TestDevice_SendData_WireFormat(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	device, err := New(transport)
	require.NoError(t, err)

	require.NoError(t, device.SendData(8, []byte{0x26, 0x01, 0x00}))

	exchanges := transport.Exchanges()
	require.Len(t, exchanges, 1)
	assert.Equal(t, []byte{0x09, 0x08, 0x26, 0x01, 0x00}, exchanges[0])
}

func TestDevice_TransportError(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	device, err := New(transport)
	require.NoError(t, err)
	require.NoError(t, transport.Close())

	err = device.WriteRegister(0x00, 0)
	require.ErrorIs(t, err, ErrTransportClosed)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "sendCommand", transportErr.Op)
}

func TestDevice_Identity(t *testing.T) {
	t.Parallel()

	device, _ := newSimDevice(t, nil)

	fw, err := device.FirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, testutil.TestFirmwareVersion, fw)

	product, err := device.ProductVersion()
	require.NoError(t, err)
	assert.Equal(t, testutil.TestProductVersion, product)

	eeprom, err := device.EEPROMVersion()
	require.NoError(t, err)
	assert.Equal(t, testutil.TestEEPROMVersion, eeprom)

	die, err := device.DieIdentifier()
	require.NoError(t, err)
	assert.Len(t, die, 32) // 16 bytes hex encoded
}

func TestDevice_SelfTest(t *testing.T) {
	t.Parallel()

	device, _ := newSimDevice(t, nil)

	summary, err := device.SelfTest()
	require.NoError(t, err)
	assert.Contains(t, summary, "Firmware version")
	assert.Contains(t, summary, "Die identifier")
}

func TestDevice_ConfigureISO15693(t *testing.T) {
	t.Parallel()

	device, sim := newSimDevice(t, nil)

	require.NoError(t, device.ConfigureISO15693())
	assert.True(t, sim.FieldOn)
	assert.Equal(t, byte(RFConfigTxISO15693ASK100), sim.TxConfig)
	assert.Equal(t, byte(RFConfigRxISO15693_26Kbps), sim.RxConfig)
	// Transceiver parked in IDLE.
	assert.Equal(t, uint32(sysCommandIdle), sim.Register(regSystemConfig)&0x7)
}

func TestDevice_ConfigureISO15693_HighSpeed(t *testing.T) {
	t.Parallel()

	sim := testutil.NewChipSimulator(nil)
	transport := NewMockTransport()
	transport.SetHandler(sim.Handle)
	device, err := New(transport, WithResetSettle(time.Millisecond), WithHighSpeed())
	require.NoError(t, err)

	require.NoError(t, device.ConfigureISO15693())
	assert.Equal(t, byte(RFConfigTxISO15693ASK10), sim.TxConfig)
	assert.Equal(t, byte(RFConfigRxISO15693_53Kbps), sim.RxConfig)
}

func TestDevice_DumpRegisters(t *testing.T) {
	t.Parallel()

	device, _ := newSimDevice(t, nil)

	dump, err := device.DumpRegisters()
	require.NoError(t, err)
	assert.Contains(t, dump, "SYSTEM_CONFIG")
	assert.Contains(t, dump, "RF_STATUS")
	assert.Contains(t, dump, "Register Dump")
}
