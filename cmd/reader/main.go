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

// Command reader is a demo CLI for PN5180 readers: it monitors the
// field for ISO 15693 tags and prints or writes their NDEF content.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	pn5180 "github.com/ZaparooProject/go-pn5180"
	"github.com/ZaparooProject/go-pn5180/detection"
	"github.com/ZaparooProject/go-pn5180/polling"
	"github.com/ZaparooProject/go-pn5180/transport/spi"
	"github.com/ZaparooProject/go-pn5180/transport/spidev"
)

type config struct {
	devicePath string
	busyPin    string
	busyGPIO   int
	writeText  string
	info       bool
	debug      bool
}

// Package-level flag variables
var (
	flagDevicePath string
	flagBusyPin    string
	flagBusyGPIO   int
	flagWriteText  string
	flagInfo       bool
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "",
		"Device path: /dev/spidevN.M for raw spidev, or a periph.io port name like SPI0.0 (auto-detect if empty)")
	flag.StringVar(&flagBusyPin, "busy-pin", "", "GPIO name for the BUSY line (periph.io transport)")
	flag.IntVar(&flagBusyGPIO, "busy-gpio", 0, "Exported sysfs GPIO number for the BUSY line (spidev transport)")
	flag.StringVar(&flagWriteText, "write", "", "Text to write to the next scanned tag (exits after write)")
	flag.BoolVar(&flagInfo, "info", false, "Print chip identity and register dump, then exit")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		devicePath: flagDevicePath,
		busyPin:    flagBusyPin,
		busyGPIO:   flagBusyGPIO,
		writeText:  flagWriteText,
		info:       flagInfo,
		debug:      flagDebug,
	}
	if cfg.debug {
		pn5180.SetDebugEnabled(true)
	}
	return cfg
}

// newTransport picks a transport from the device path: /dev nodes go
// through raw spidev ioctls, anything else through periph.io.
func newTransport(cfg *config) (pn5180.Transport, error) {
	path := cfg.devicePath
	if strings.HasPrefix(path, "/dev/") {
		var opts []spidev.Option
		if cfg.busyGPIO > 0 {
			opts = append(opts, spidev.WithBusyGPIO(cfg.busyGPIO))
		}
		transport, err := spidev.New(path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create spidev transport for %s: %w", path, err)
		}
		return transport, nil
	}

	var opts []spi.Option
	if cfg.busyPin != "" {
		opts = append(opts, spi.WithBusyPin(cfg.busyPin))
	}
	transport, err := spi.New(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SPI transport for %s: %w", path, err)
	}
	return transport, nil
}

func connectToDevice(ctx context.Context, cfg *config) (*pn5180.Device, error) {
	if cfg.devicePath == "" {
		if cfg.debug {
			_, _ = fmt.Println("Auto-detecting PN5180 devices...")
		}
		devices, err := detection.Detect(ctx, detection.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("auto-detection failed: %w", err)
		}
		cfg.devicePath = devices[0].Path
		if cfg.debug {
			_, _ = fmt.Printf("Using %s\n", devices[0])
		}
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	device, err := pn5180.New(transport)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create PN5180 device: %w", err)
	}

	if cfg.debug {
		if version, versionErr := device.FirmwareVersion(); versionErr == nil {
			_, _ = fmt.Printf("PN5180 firmware: %d.%d\n", version>>8, version&0xFF)
		}
	}
	return device, nil
}

func runInfoMode(device *pn5180.Device) error {
	summary, err := device.SelfTest()
	if err != nil {
		return fmt.Errorf("self test failed: %w", err)
	}
	_, _ = fmt.Print(summary)

	dump, err := device.DumpRegisters()
	if err != nil {
		return fmt.Errorf("register dump failed: %w", err)
	}
	_, _ = fmt.Print(dump)
	return nil
}

func runReadMode(ctx context.Context, iso *pn5180.ISO15693) error {
	session := polling.NewSession(iso, polling.DefaultConfig())
	defer func() {
		if err := session.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close session: %v\n", err)
		}
	}()

	_, _ = fmt.Println("Starting continuous tag monitoring. Press Ctrl+C to stop...")

	session.OnTagDetected = func(tag *pn5180.Tag) error {
		_, _ = fmt.Printf("Tag detected: %s\n", tag.Summary())
		text, err := tag.ReadText(ctx)
		if err != nil {
			_, _ = fmt.Printf("No readable text: %v\n", err)
			return nil // keep monitoring
		}
		_, _ = fmt.Printf("Text: %q\n", text)
		return nil
	}
	session.OnTagRemoved = func() {
		_, _ = fmt.Println("Tag removed - ready for next tag...")
	}

	if err := session.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("polling session: %w", err)
	}
	return nil
}

func runWriteMode(ctx context.Context, iso *pn5180.ISO15693, cfg *config) error {
	_, _ = fmt.Printf("Waiting for tag to write text: %q\n", cfg.writeText)
	_, _ = fmt.Println("Please place a tag near the reader...")

	written := make(chan error, 1)
	session := polling.NewSession(iso, polling.DefaultConfig())
	defer func() { _ = session.Close() }()

	session.OnTagDetected = func(tag *pn5180.Tag) error {
		_, _ = fmt.Println("Tag detected! Writing text...")
		err := tag.WriteText(ctx, cfg.writeText)
		written <- err
		return err
	}

	sessionDone := make(chan error, 1)
	go func() { sessionDone <- session.Start(ctx) }()

	select {
	case err := <-written:
		if err != nil {
			return fmt.Errorf("write operation failed: %w", err)
		}
		_, _ = fmt.Printf("Successfully wrote text to tag: %q\n", cfg.writeText)
		return nil
	case err := <-sessionDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("polling session: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("write cancelled: %w", ctx.Err())
	}
}

func run(ctx context.Context, cfg *config) error {
	device, err := connectToDevice(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	if cfg.info {
		return runInfoMode(device)
	}

	iso := pn5180.NewISO15693(device)
	if err := iso.Configure(); err != nil {
		return fmt.Errorf("failed to configure ISO 15693 mode: %w", err)
	}
	defer func() { _ = iso.Disconnect() }()

	if cfg.writeText != "" {
		return runWriteMode(ctx, iso, cfg)
	}
	return runReadMode(ctx, iso)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
