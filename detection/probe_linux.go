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

package detection

import (
	"context"

	pn5180 "github.com/ZaparooProject/go-pn5180"
	"github.com/ZaparooProject/go-pn5180/transport/spidev"
)

func init() {
	prober = probeSpidev
}

// probeSpidev opens the device node and reads the product version. A
// PN5180 always answers the EEPROM read; anything else on the bus
// returns garbage or an ioctl error.
func probeSpidev(_ context.Context, path string) bool {
	transport, err := spidev.New(path)
	if err != nil {
		return false
	}
	defer func() { _ = transport.Close() }()

	device, err := pn5180.New(transport)
	if err != nil {
		return false
	}

	version, err := device.ProductVersion()
	if err != nil {
		return false
	}
	// An absent or held-in-reset chip clocks out all zeros or all ones.
	return version != 0x0000 && version != 0xFFFF
}
