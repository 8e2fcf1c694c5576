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

// Package spi provides a periph.io based SPI transport for the PN5180.
package spi

import (
	"fmt"
	"time"

	pn5180 "github.com/ZaparooProject/go-pn5180"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// The PN5180 host interface is specified up to 7 MHz; 2 MHz leaves
	// margin for long jumper wires.
	defaultFreq = 2 * physic.MegaHertz
	mode        = spi.Mode0

	defaultBusyTimeout = 50 * time.Millisecond
	busyPollInterval   = 100 * time.Microsecond

	// Pause used instead of BUSY gating when no BUSY pin is wired.
	noBusyPinDelay = 2 * time.Millisecond

	resetPulse  = 10 * time.Millisecond
	resetSettle = 10 * time.Millisecond
)

// Transport implements the pn5180.Transport interface over a periph.io
// SPI port, with optional BUSY and RESET GPIO lines.
type Transport struct {
	port        spi.PortCloser
	conn        spi.Conn
	busy        gpio.PinIn
	reset       gpio.PinOut
	portName    string
	freq        physic.Frequency
	busyTimeout time.Duration
}

// Option configures a Transport during construction
type Option func(*Transport) error

// WithBusyPin wires the PN5180 BUSY line to a named GPIO. Without it
// the transport falls back to fixed delays between exchanges.
func WithBusyPin(name string) Option {
	return func(t *Transport) error {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return fmt.Errorf("BUSY pin %q not found", name)
		}
		if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("configure BUSY pin %q: %w", name, err)
		}
		t.busy = pin
		return nil
	}
}

// WithResetPin wires the PN5180 RST line to a named GPIO, enabling
// hardware resets.
func WithResetPin(name string) Option {
	return func(t *Transport) error {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return fmt.Errorf("RESET pin %q not found", name)
		}
		if err := pin.Out(gpio.High); err != nil {
			return fmt.Errorf("configure RESET pin %q: %w", name, err)
		}
		t.reset = pin
		return nil
	}
}

// WithFrequency overrides the default SPI clock frequency.
func WithFrequency(freq physic.Frequency) Option {
	return func(t *Transport) error {
		if freq <= 0 {
			return fmt.Errorf("invalid SPI frequency %v", freq)
		}
		t.freq = freq
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

// New creates a new SPI transport on the named port, e.g. "SPI0.0".
func New(portName string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	transport := &Transport{
		portName:    portName,
		freq:        defaultFreq,
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		if err := opt(transport); err != nil {
			return nil, err
		}
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}
	conn, err := port.Connect(transport.freq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}
	transport.port = port
	transport.conn = conn

	return transport, nil
}

// waitNotBusy blocks until the BUSY line releases. The chip holds BUSY
// high while processing the previous frame; asserting chip select
// during that window corrupts the exchange.
func (t *Transport) waitNotBusy() error {
	if t.busy == nil {
		time.Sleep(noBusyPinDelay)
		return nil
	}

	deadline := time.Now().Add(t.busyTimeout)
	for t.busy.Read() == gpio.High {
		if time.Now().After(deadline) {
			return pn5180.NewTransportError("waitNotBusy", t.portName,
				fmt.Errorf("%w: BUSY held for %v", pn5180.ErrBusyTimeout, t.busyTimeout),
				pn5180.ErrorTypeTimeout)
		}
		time.Sleep(busyPollInterval)
	}
	return nil
}

// Exchange implements pn5180.Transport
func (t *Transport) Exchange(tx []byte) ([]byte, error) {
	if t.conn == nil {
		return nil, pn5180.ErrTransportClosed
	}
	if err := t.waitNotBusy(); err != nil {
		return nil, err
	}

	rx := make([]byte, len(tx))
	if err := t.conn.Tx(tx, rx); err != nil {
		return nil, pn5180.NewTransportError("Exchange", t.portName,
			fmt.Errorf("%w: %w", pn5180.ErrTransportWrite, err),
			pn5180.ErrorTypeTransient)
	}
	return rx, nil
}

// Reset pulses the RST line low. Returns an error when no reset pin
// was configured.
func (t *Transport) Reset() error {
	if t.reset == nil {
		return fmt.Errorf("no RESET pin configured for %s", t.portName)
	}
	if err := t.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("assert RESET: %w", err)
	}
	time.Sleep(resetPulse)
	if err := t.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("release RESET: %w", err)
	}
	time.Sleep(resetSettle)
	return nil
}

// Close closes the transport connection
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.conn = nil
	if err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	return t.conn != nil
}

// Type returns the transport type
func (*Transport) Type() pn5180.TransportType {
	return pn5180.TransportSPI
}
