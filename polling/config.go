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

package polling

import "time"

// Config holds polling configuration options
type Config struct {
	// PollInterval is the pause between inventory rounds. Each round
	// costs a full RF exchange, so very short intervals mostly heat
	// the antenna.
	PollInterval time.Duration

	// MaxConsecutiveErrors is the number of consecutive transient
	// polling errors tolerated before the loop gives up. 0 disables
	// the limit.
	MaxConsecutiveErrors int
}

// DefaultConfig returns the default polling configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:         250 * time.Millisecond,
		MaxConsecutiveErrors: 10,
	}
}
