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

// Package pn5180 is a driver for the NXP PN5180 NFC frontend with an
// ISO/IEC 15693 protocol stack on top.
//
// The layers, bottom to top:
//
//   - Transport: one full-duplex SPI exchange at a time, BUSY-gated.
//     Implementations live in transport/spi (periph.io) and
//     transport/spidev (raw ioctls); MockTransport backs tests.
//   - Device: the chip's host command set - registers, EEPROM, RF
//     control - plus the transceive sequence used for every RF round
//     trip.
//   - ISO15693: vicinity card commands framed per ISO/IEC 15693-3,
//     from Inventory to block I/O and system information.
//   - Tag: byte-addressed memory access over the card's block
//     geometry, with NDEF read and write on top.
//
// Continuous tag monitoring lives in the polling subpackage, reader
// discovery in detection.
//
// A Device is not safe for concurrent use; drive it from one
// goroutine.
package pn5180
