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
	"context"
	"time"
)

// NoAnswerFlags is the response flags value synthesized when no tag
// answered within the receive windows.
const NoAnswerFlags byte = 0xFF

// Transceive timing. The short pre-detect window rejects an absent tag
// quickly; the longer window covers worst-case card processing latency.
const (
	preDetectWindow = 1 * time.Millisecond
	receiveWindow   = 50 * time.Millisecond
	irqPollInterval = 1 * time.Millisecond
)

// Transceive sends one ISO 15693 frame and collects the tag's reply.
//
// The sequence is: acknowledge pending IRQs, arm the transceiver, send
// the frame (whole bytes), then poll IRQ_STATUS under two deadlines:
// up to 1 ms for start-of-frame detection and, once reception started,
// up to 50 ms for completion. Either window elapsing yields the
// no-answer result (NoAnswerFlags, nil payload) - the absence of a tag
// is an expected outcome, not an error. The transceiver is parked back
// in IDLE on every exit path.
//
// If the state machine is not in WAIT_TRANSMIT after arming, the
// transaction fails with *ProtocolStateError and the caller must reset
// the chip. Cancellation is deadline-based: ctx is consulted only
// before the transaction starts, never inside a receive window.
func (d *Device) Transceive(ctx context.Context, frame []byte) (flags byte, payload []byte, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, nil, ctxErr
	}

	if err = d.clearIRQStatus(); err != nil {
		return 0, nil, err
	}
	if err = d.setCommand(sysCommandTransceive); err != nil {
		return 0, nil, err
	}

	// Transceiver is armed from here on. Restore IDLE exactly once on
	// every exit path so a timeout can never strand the chip in
	// TRANSCEIVE mode.
	defer func() {
		if idleErr := d.setCommand(sysCommandIdle); idleErr != nil && err == nil {
			flags, payload = 0, nil
			err = idleErr
		}
	}()

	state, err := d.transceiveState()
	if err != nil {
		return 0, nil, err
	}
	if state != StateWaitTransmit {
		return 0, nil, &ProtocolStateError{State: state}
	}

	if err = d.SendData(8, frame); err != nil {
		return 0, nil, err
	}

	sofSeen, err := d.waitIRQ(irqRxSOFDet, preDetectWindow)
	if err != nil {
		return 0, nil, err
	}
	if !sofSeen {
		Debugln("transceive: no RX start within pre-detect window")
		return NoAnswerFlags, nil, nil
	}

	complete, err := d.waitIRQ(irqRxComplete, receiveWindow)
	if err != nil {
		return 0, nil, err
	}
	if !complete {
		Debugln("transceive: RX never completed within receive window")
		return NoAnswerFlags, nil, nil
	}

	count, err := d.rxByteCount()
	if err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return NoAnswerFlags, nil, nil
	}

	resp, err := d.ReadData(count)
	if err != nil {
		return 0, nil, err
	}

	Debugf("transceive: received %d bytes, flags 0x%02X", count, resp[0])
	return resp[0], resp[1:], nil
}

// waitIRQ polls IRQ_STATUS for any bit in mask until it appears or the
// window elapses, sampling at a fixed cadence. The sleep between
// samples is the engine's only suspension point.
func (d *Device) waitIRQ(mask uint32, window time.Duration) (bool, error) {
	deadline := time.Now().Add(window)
	for {
		status, err := d.irqStatus()
		if err != nil {
			return false, err
		}
		if status&mask != 0 {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		time.Sleep(irqPollInterval)
	}
}
