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
	"sync"
)

// Transport defines the byte-exchange interface to a PN5180. The chip
// has a single SPI host interface gated by a BUSY line; implementations
// must wait for BUSY to release before asserting chip select.
type Transport interface {
	// Exchange performs one blocking full-duplex transfer. The returned
	// slice has the same length as tx.
	Exchange(tx []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSPI represents the periph.io SPI bus transport.
	TransportSPI TransportType = "spi"
	// TransportSpidev represents the raw /dev/spidev ioctl transport.
	TransportSpidev TransportType = "spidev"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides a scriptable implementation of Transport for
// testing. Responses are consumed in FIFO order; a handler function can
// be installed instead for stateful simulations.
type MockTransport struct {
	handler   func(tx []byte) ([]byte, error)
	script    []mockExchange
	exchanges [][]byte
	mu        sync.Mutex
	connected bool
}

type mockExchange struct {
	err error
	rx  []byte
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{connected: true}
}

// Exchange implements Transport
func (m *MockTransport) Exchange(tx []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrTransportClosed
	}

	// Record what the codec sent
	txCopy := make([]byte, len(tx))
	copy(txCopy, tx)
	m.exchanges = append(m.exchanges, txCopy)

	if m.handler != nil {
		return m.handler(tx)
	}

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		if next.err != nil {
			return nil, next.err
		}
		rx := make([]byte, len(tx))
		copy(rx, next.rx)
		return rx, nil
	}

	return make([]byte, len(tx)), nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// SetHandler installs a function that computes every exchange response.
// Queued responses are ignored while a handler is set.
func (m *MockTransport) SetHandler(handler func(tx []byte) ([]byte, error)) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// QueueResponse appends a response returned by a future Exchange call.
// The response is padded with zero bytes to the exchange length.
func (m *MockTransport) QueueResponse(rx []byte) {
	m.mu.Lock()
	m.script = append(m.script, mockExchange{rx: rx})
	m.mu.Unlock()
}

// QueueError appends an error returned by a future Exchange call.
func (m *MockTransport) QueueError(err error) {
	m.mu.Lock()
	m.script = append(m.script, mockExchange{err: err})
	m.mu.Unlock()
}

// Exchanges returns every tx buffer seen so far, in order.
func (m *MockTransport) Exchanges() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.exchanges))
	copy(out, m.exchanges)
	return out
}

// Reset clears recorded exchanges and any unconsumed script entries.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.exchanges = nil
	m.script = nil
	m.handler = nil
	m.connected = true
	m.mu.Unlock()
}
