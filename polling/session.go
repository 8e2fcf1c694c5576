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

// Package polling provides continuous tag presence monitoring on top
// of the ISO 15693 protocol layer.
package polling

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pn5180 "github.com/ZaparooProject/go-pn5180"
	"github.com/ZaparooProject/go-pn5180/internal/syncutil"
)

// Session monitors tag presence with periodic inventory rounds. Every
// round queries the field; presence is never assumed from a previous
// round, so a tag that is swapped between two rounds is reported as a
// removal followed by a new detection even when the swap is faster
// than the poll interval.
type Session struct {
	OnTagDetected func(tag *pn5180.Tag) error
	OnTagRemoved  func()

	iso    *pn5180.ISO15693
	config *Config

	current    *pn5180.UID
	stateMutex syncutil.RWMutex
	closed     atomic.Bool
	paused     atomic.Bool
}

// NewSession creates a new tag monitoring session
func NewSession(iso *pn5180.ISO15693, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	return &Session{
		iso:    iso,
		config: config,
	}
}

// SetOnTagDetected sets the callback for when a tag enters the field.
func (s *Session) SetOnTagDetected(callback func(*pn5180.Tag) error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.OnTagDetected = callback
}

// SetOnTagRemoved sets the callback for when the tag leaves the field.
func (s *Session) SetOnTagRemoved(callback func()) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.OnTagRemoved = callback
}

// CurrentUID returns the UID of the tag currently in the field, or ""
// when the field is empty.
func (s *Session) CurrentUID() string {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.String()
}

// Pause suspends polling rounds without stopping the loop. Used to
// keep the RF field quiet during a tag write.
func (s *Session) Pause() {
	s.paused.Store(true)
}

// Resume restarts polling rounds after a Pause.
func (s *Session) Resume() {
	s.paused.Store(false)
}

// Close stops the session permanently.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Start runs the polling loop until ctx is cancelled or the session is
// closed. Transient errors are tolerated up to MaxConsecutiveErrors in
// a row; fatal errors stop the loop immediately.
func (s *Session) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	errorRun := 0
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("polling stopped: %w", ctx.Err())
		case <-ticker.C:
		}
		if s.closed.Load() {
			return nil
		}
		if s.paused.Load() {
			continue
		}

		if err := s.Tick(ctx); err != nil {
			if pn5180.IsFatal(err) {
				return fmt.Errorf("polling failed: %w", err)
			}
			errorRun++
			if s.config.MaxConsecutiveErrors > 0 && errorRun >= s.config.MaxConsecutiveErrors {
				return fmt.Errorf("polling failed after %d consecutive errors: %w", errorRun, err)
			}
			pn5180.Debugf("poll round error (%d in a row): %v", errorRun, err)
			continue
		}
		errorRun = 0
	}
}

// Tick runs one polling round: an inventory query, state transitions,
// and callbacks. Exposed so callers with their own scheduling can
// drive the session directly.
func (s *Session) Tick(ctx context.Context) error {
	uid, err := s.iso.Inventory(ctx)
	if err != nil {
		if pn5180.IsNoAnswer(err) {
			s.handleFieldEmpty()
			return nil
		}
		return fmt.Errorf("inventory round: %w", err)
	}

	s.stateMutex.RLock()
	current := s.current
	s.stateMutex.RUnlock()

	if current != nil && *current == uid {
		return nil
	}
	if current != nil {
		// A different tag means the old one is gone.
		s.handleFieldEmpty()
	}
	return s.handleTagFound(ctx, uid)
}

// handleFieldEmpty reports a removal if a tag was being tracked.
func (s *Session) handleFieldEmpty() {
	s.stateMutex.Lock()
	hadTag := s.current != nil
	s.current = nil
	cb := s.OnTagRemoved
	s.stateMutex.Unlock()

	if hadTag && cb != nil {
		cb()
	}
}

// handleTagFound fetches the new tag's geometry and reports it.
func (s *Session) handleTagFound(ctx context.Context, uid pn5180.UID) error {
	info, err := s.iso.GetSystemInformation(ctx, &uid)
	if err != nil {
		// The tag may have left between inventory and the follow-up:
		// treat it as never seen.
		if pn5180.IsNoAnswer(err) {
			return nil
		}
		return fmt.Errorf("tag %s system information: %w", uid, err)
	}

	tag, err := pn5180.NewTag(s.iso, info)
	if err != nil {
		return fmt.Errorf("tag %s: %w", uid, err)
	}

	s.stateMutex.Lock()
	s.current = &uid
	cb := s.OnTagDetected
	s.stateMutex.Unlock()

	if cb != nil {
		if err := cb(tag); err != nil {
			return fmt.Errorf("tag detected callback: %w", err)
		}
	}
	return nil
}
