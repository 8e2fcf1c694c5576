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
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error categories for error handling and caller-side retry decisions
var (
	// Transport errors - the SPI link itself failed
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportRead   = errors.New("transport read failed")
	ErrTransportClosed = errors.New("transport is closed")
	ErrBusyTimeout     = errors.New("busy line never released")

	// Tag-level outcomes - expected during normal operation
	ErrNoAnswer = errors.New("no answer from tag")

	// Response errors - the tag answered but the payload is malformed
	ErrInvalidResponse = errors.New("invalid response format")

	// Data errors - not retryable
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrOutOfRange       = errors.New("address out of tag memory range")
	ErrNotFormatted     = errors.New("tag is not NDEF formatted")
)

// ErrorType represents the category of a transport error.
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps SPI-link errors with additional context.
// These are fatal for the operation and propagate unrecovered: the
// core never retries a dead link.
type TransportError struct {
	Err  error     // Underlying error
	Op   string    // Operation that failed
	Port string    // Port or device identifier
	Type ErrorType // Error category
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:   op,
		Port: port,
		Err:  err,
		Type: errType,
	}
}

// ProtocolStateError reports that the transceiver was not in
// WAIT_TRANSMIT when a send was about to start. The chip state machine
// is stuck; the caller must reset the chip before trying again.
type ProtocolStateError struct {
	State TransceiveState
}

func (e *ProtocolStateError) Error() string {
	return fmt.Sprintf("transceiver in state %s, want WAIT_TRANSMIT (chip reset required)", e.State)
}

// TagError wraps the error code a tag returned in an ISO 15693
// response (response flags nonzero). These are recoverable: the tag is
// present and answered, it just rejected the command.
type TagError struct {
	Command string
	Code    byte
}

func (e *TagError) Error() string {
	base := fmt.Sprintf("tag error 0x%02X (%s)", e.Code, tagErrorCodeMeaning(e.Code))
	if e.Command != "" {
		base = e.Command + ": " + base
	}
	return base
}

// tagErrorCodeMeaning returns the ISO/IEC 15693-3 meaning for a tag
// error code. Codes outside the table render as their raw hex value.
func tagErrorCodeMeaning(code byte) string {
	meanings := map[byte]string{
		0x00: "error code zero",
		0x01: "the command is not supported",
		0x02: "the command is not recognised (format error)",
		0x03: "the option is not supported",
		0x0F: "unknown error",
		0x10: "the specified block is not available (does not exist)",
		0x11: "the specified block is already locked and cannot be locked again",
		0x12: "the specified block is locked and its content cannot be changed",
		0x13: "the specified block was not successfully programmed",
		0x14: "the specified block was not successfully locked",
		0xA7: "custom command error",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return fmt.Sprintf("unmapped code 0x%02X", code)
}

// WriteBlockError reports a failed chunk inside a multi-chunk byte
// range write. Remaining chunks are never attempted: writing past a
// failed block would place later data at the wrong logical offset.
type WriteBlockError struct {
	Err   error
	Block int
}

func (e *WriteBlockError) Error() string {
	return fmt.Sprintf("write block %d: %v", e.Block, e.Err)
}

func (e *WriteBlockError) Unwrap() error {
	return e.Err
}

// IsNoAnswer reports whether the error means no tag responded. This is
// an expected outcome during polling, not a fault.
func IsNoAnswer(err error) bool {
	return errors.Is(err, ErrNoAnswer)
}

// IsTagError reports whether the error is a tag-returned error code,
// extracting it when present.
func IsTagError(err error) (*TagError, bool) {
	var te *TagError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsRetryable returns true if reissuing the operation could succeed
// without operator intervention. The core itself never retries; this
// helper is for callers deciding what to do with a failed transaction.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeTransient || te.Type == ErrorTypeTimeout
	}

	// A stuck state machine needs a chip reset first
	var pse *ProtocolStateError
	if errors.As(err, &pse) {
		return false
	}

	// No answer and tag-rejected outcomes may clear on the next attempt
	if errors.Is(err, ErrNoAnswer) {
		return true
	}
	var tagErr *TagError
	return errors.As(err, &tagErr)
}

// IsFatal returns true if the error indicates the device or connection
// is gone and polling should stop entirely.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating device
// disconnection, e.g. an unplugged SPI adapter.
func isDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	return false
}
