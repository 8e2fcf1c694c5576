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

//go:build linux

// Package spidev provides a raw /dev/spidev ioctl transport for the
// PN5180, for systems where the periph.io host drivers are not
// available.
package spidev

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	pn5180 "github.com/ZaparooProject/go-pn5180"
	"golang.org/x/sys/unix"
)

// spidev ioctl requests, from linux/spi/spidev.h.
const (
	spiIOCWrMode        = 0x40016B01
	spiIOCWrBitsPerWord = 0x40016B03
	spiIOCWrMaxSpeedHz  = 0x40046B04
	spiIOCMessage1      = 0x40206B00
)

const (
	defaultSpeedHz = 2_000_000
	spiMode0       = 0

	defaultBusyTimeout = 50 * time.Millisecond
	busyPollInterval   = 100 * time.Microsecond
	noBusyPinDelay     = 2 * time.Millisecond
)

// spiTransfer mirrors struct spi_ioc_transfer.
type spiTransfer struct {
	txBuf          uint64
	rxBuf          uint64
	length         uint32
	speedHz        uint32
	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNbits        uint8
	rxNbits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

// Transport implements the pn5180.Transport interface over a
// /dev/spidevN.M device, with the BUSY line optionally read through
// the sysfs GPIO interface.
type Transport struct {
	busyPath    string
	devicePath  string
	fd          int
	speedHz     uint32
	busyTimeout time.Duration
	open        bool
}

// Option configures a Transport during construction
type Option func(*Transport) error

// WithBusyGPIO reads the PN5180 BUSY line from an exported sysfs GPIO,
// e.g. /sys/class/gpio/gpio25/value for pin 25. The GPIO must already
// be exported and set as an input.
func WithBusyGPIO(pin int) Option {
	return func(t *Transport) error {
		path := fmt.Sprintf("/sys/class/gpio/gpio%d/value", pin)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("BUSY gpio %d not exported: %w", pin, err)
		}
		t.busyPath = path
		return nil
	}
}

// WithSpeedHz overrides the default SPI clock speed.
func WithSpeedHz(hz uint32) Option {
	return func(t *Transport) error {
		if hz == 0 {
			return fmt.Errorf("invalid SPI speed %d", hz)
		}
		t.speedHz = hz
		return nil
	}
}

// WithBusyTimeout overrides how long Exchange waits for the BUSY line
// to release.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(t *Transport) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid BUSY timeout %v", timeout)
		}
		t.busyTimeout = timeout
		return nil
	}
}

// New opens a spidev device, e.g. "/dev/spidev0.0".
func New(devicePath string, opts ...Option) (*Transport, error) {
	transport := &Transport{
		devicePath:  devicePath,
		fd:          -1,
		speedHz:     defaultSpeedHz,
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		if err := opt(transport); err != nil {
			return nil, err
		}
	}

	fd, err := unix.Open(devicePath, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", devicePath, err)
	}
	transport.fd = fd
	transport.open = true

	mode := uint8(spiMode0)
	if err := transport.ioctl(spiIOCWrMode, unsafe.Pointer(&mode)); err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("set SPI mode: %w", err)
	}
	bits := uint8(8)
	if err := transport.ioctl(spiIOCWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("set bits per word: %w", err)
	}
	speed := transport.speedHz
	if err := transport.ioctl(spiIOCWrMaxSpeedHz, unsafe.Pointer(&speed)); err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("set SPI speed: %w", err)
	}

	return transport, nil
}

func (t *Transport) ioctl(request uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		uintptr(t.fd),
		request,
		uintptr(arg),
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// waitNotBusy blocks until the BUSY line releases, or falls back to a
// fixed delay when no BUSY GPIO is configured.
func (t *Transport) waitNotBusy() error {
	if t.busyPath == "" {
		time.Sleep(noBusyPinDelay)
		return nil
	}

	deadline := time.Now().Add(t.busyTimeout)
	for {
		value, err := os.ReadFile(t.busyPath)
		if err != nil {
			return pn5180.NewTransportError("waitNotBusy", t.devicePath,
				fmt.Errorf("read BUSY gpio: %w", err), pn5180.ErrorTypePermanent)
		}
		if len(value) > 0 && value[0] == '0' {
			return nil
		}
		if time.Now().After(deadline) {
			return pn5180.NewTransportError("waitNotBusy", t.devicePath,
				fmt.Errorf("%w: BUSY held for %v", pn5180.ErrBusyTimeout, t.busyTimeout),
				pn5180.ErrorTypeTimeout)
		}
		time.Sleep(busyPollInterval)
	}
}

// Exchange implements pn5180.Transport
func (t *Transport) Exchange(tx []byte) ([]byte, error) {
	if !t.open {
		return nil, pn5180.ErrTransportClosed
	}
	if len(tx) == 0 {
		return nil, nil
	}
	if err := t.waitNotBusy(); err != nil {
		return nil, err
	}

	rx := make([]byte, len(tx))
	transfer := spiTransfer{
		//nolint:gosec // pointers are pinned for the duration of the syscall
		txBuf: uint64(uintptr(unsafe.Pointer(&tx[0]))),
		//nolint:gosec // pointers are pinned for the duration of the syscall
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(tx)),
		speedHz:     t.speedHz,
		bitsPerWord: 8,
	}
	if err := t.ioctl(spiIOCMessage1, unsafe.Pointer(&transfer)); err != nil {
		return nil, pn5180.NewTransportError("Exchange", t.devicePath,
			fmt.Errorf("%w: %w", pn5180.ErrTransportWrite, err),
			pn5180.ErrorTypeTransient)
	}
	return rx, nil
}

// Close closes the transport connection
func (t *Transport) Close() error {
	if !t.open {
		return nil
	}
	t.open = false
	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("close %s: %w", t.devicePath, err)
	}
	t.fd = -1
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	return t.open
}

// Type returns the transport type
func (*Transport) Type() pn5180.TransportType {
	return pn5180.TransportSpidev
}
