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

// Package detection finds PN5180 readers on the system's SPI buses.
package detection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Mode represents the level of invasiveness for device detection
type Mode int

const (
	// Passive mode only enumerates device nodes without any communication
	Passive Mode = iota
	// Probe mode opens each candidate and reads the chip identity
	Probe
)

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - an SPI device node exists but was not probed
	Low Confidence = iota
	// High confidence - the device answered an identity read like a PN5180
	High
)

func (c Confidence) String() string {
	if c == High {
		return "high"
	}
	return "low"
}

// DeviceInfo represents a detected PN5180 candidate
type DeviceInfo struct {
	// Path is the spidev device node, e.g. "/dev/spidev0.0"
	Path string
	// Name is a human-readable device name
	Name string
	// Confidence is the detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	return fmt.Sprintf("spi device at %s (confidence: %s)", d.Path, d.Confidence)
}

// Options configures the detection behavior
type Options struct {
	// IgnorePaths lists device paths to skip
	IgnorePaths []string
	// Mode is the detection invasiveness level
	Mode Mode
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() *Options {
	return &Options{Mode: Probe}
}

// Errors
var (
	// ErrNoDevicesFound indicates no PN5180 devices were detected
	ErrNoDevicesFound = errors.New("no PN5180 devices found")
	// ErrUnsupportedPlatform indicates the platform has no spidev interface
	ErrUnsupportedPlatform = errors.New("platform not supported")
)

// prober verifies a candidate device node; wired per-platform so the
// package still builds where no SPI stack exists.
var prober func(ctx context.Context, path string) bool

// Detect searches for PN5180 devices on spidev buses. Candidates come
// from the PN5180_SPI_DEVICE environment variable and /dev/spidev*
// enumeration.
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if runtime.GOOS != "linux" {
		return nil, ErrUnsupportedPlatform
	}

	var devices []DeviceInfo
	for _, path := range candidatePaths() {
		select {
		case <-ctx.Done():
			return devices, fmt.Errorf("detection cancelled: %w", ctx.Err())
		default:
		}
		if isIgnored(path, opts.IgnorePaths) {
			continue
		}

		device := DeviceInfo{
			Path:       path,
			Name:       fmt.Sprintf("SPI device %s", filepath.Base(path)),
			Confidence: Low,
		}
		if opts.Mode == Probe {
			if prober == nil || !prober(ctx, path) {
				continue
			}
			device.Confidence = High
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

// candidatePaths collects spidev nodes, environment override first.
func candidatePaths() []string {
	var paths []string
	seen := make(map[string]bool)

	add := func(path string) {
		if path == "" || seen[path] {
			return
		}
		if _, err := os.Stat(path); err != nil {
			return
		}
		seen[path] = true
		paths = append(paths, path)
	}

	add(os.Getenv("PN5180_SPI_DEVICE"))

	matches, err := filepath.Glob("/dev/spidev*")
	if err != nil {
		return paths
	}
	for _, path := range matches {
		add(path)
	}
	return paths
}

func isIgnored(path string, ignorePaths []string) bool {
	for _, ignored := range ignorePaths {
		if path == ignored {
			return true
		}
	}
	return false
}
