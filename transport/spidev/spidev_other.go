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

//go:build !linux

// Package spidev provides a raw /dev/spidev ioctl transport for the
// PN5180. The spidev interface only exists on Linux.
package spidev

import (
	"errors"
	"time"

	pn5180 "github.com/ZaparooProject/go-pn5180"
)

// ErrUnsupportedPlatform is returned by New on systems without the
// Linux spidev interface.
var ErrUnsupportedPlatform = errors.New("spidev transport requires Linux")

// Transport is a placeholder on non-Linux systems; New always fails.
type Transport struct{}

// Option configures a Transport during construction
type Option func(*Transport) error

// WithBusyGPIO is a no-op on non-Linux systems.
func WithBusyGPIO(_ int) Option {
	return func(*Transport) error { return nil }
}

// WithSpeedHz is a no-op on non-Linux systems.
func WithSpeedHz(_ uint32) Option {
	return func(*Transport) error { return nil }
}

// WithBusyTimeout is a no-op on non-Linux systems.
func WithBusyTimeout(_ time.Duration) Option {
	return func(*Transport) error { return nil }
}

// New always returns ErrUnsupportedPlatform.
func New(_ string, _ ...Option) (*Transport, error) {
	return nil, ErrUnsupportedPlatform
}

// Exchange implements pn5180.Transport
func (*Transport) Exchange(_ []byte) ([]byte, error) {
	return nil, ErrUnsupportedPlatform
}

// Close implements pn5180.Transport
func (*Transport) Close() error { return nil }

// IsConnected implements pn5180.Transport
func (*Transport) IsConnected() bool { return false }

// Type returns the transport type
func (*Transport) Type() pn5180.TransportType {
	return pn5180.TransportSpidev
}
