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

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pn5180 "github.com/ZaparooProject/go-pn5180"
	testutil "github.com/ZaparooProject/go-pn5180/internal/testing"
)

func newTestSession(t *testing.T, vtag *testutil.VirtualTag) (*Session, *testutil.ChipSimulator) {
	t.Helper()

	sim := testutil.NewChipSimulator(vtag)
	transport := pn5180.NewMockTransport()
	transport.SetHandler(sim.Handle)

	device, err := pn5180.New(transport, pn5180.WithResetSettle(time.Millisecond))
	require.NoError(t, err)
	iso := pn5180.NewISO15693(device)
	require.NoError(t, iso.Configure())

	return NewSession(iso, nil), sim
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	assert.Equal(t, 250*time.Millisecond, config.PollInterval)
	assert.Equal(t, 10, config.MaxConsecutiveErrors)
}

func TestSession_Tick_DetectsTag(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	session, _ := newTestSession(t, vtag)
	ctx := context.Background()

	var detected *pn5180.Tag
	session.SetOnTagDetected(func(tag *pn5180.Tag) error {
		detected = tag
		return nil
	})

	require.NoError(t, session.Tick(ctx))
	require.NotNil(t, detected)
	assert.Equal(t, vtag.UIDString(), detected.UID())
	assert.Equal(t, 64, detected.NumBlocks())
	assert.Equal(t, vtag.UIDString(), session.CurrentUID())
}

func TestSession_Tick_SameTagIsQuiet(t *testing.T) {
	t.Parallel()

	session, _ := newTestSession(t, testutil.NewVirtualTag(nil))
	ctx := context.Background()

	detections := 0
	session.SetOnTagDetected(func(*pn5180.Tag) error {
		detections++
		return nil
	})

	require.NoError(t, session.Tick(ctx))
	require.NoError(t, session.Tick(ctx))
	require.NoError(t, session.Tick(ctx))
	assert.Equal(t, 1, detections)
}

func TestSession_Tick_EmptyField(t *testing.T) {
	t.Parallel()

	session, _ := newTestSession(t, nil)

	removed := false
	session.SetOnTagRemoved(func() { removed = true })

	require.NoError(t, session.Tick(context.Background()))
	assert.False(t, removed)
	assert.Empty(t, session.CurrentUID())
}

func TestSession_Tick_ReportsRemoval(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	session, _ := newTestSession(t, vtag)
	ctx := context.Background()

	removed := false
	session.SetOnTagRemoved(func() { removed = true })

	require.NoError(t, session.Tick(ctx))
	require.Equal(t, vtag.UIDString(), session.CurrentUID())

	vtag.Remove()
	require.NoError(t, session.Tick(ctx))
	assert.True(t, removed)
	assert.Empty(t, session.CurrentUID())
}

func TestSession_Tick_SwappedTag(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	session, sim := newTestSession(t, vtag)
	ctx := context.Background()

	var detectedUIDs []string
	removals := 0
	session.SetOnTagDetected(func(tag *pn5180.Tag) error {
		detectedUIDs = append(detectedUIDs, tag.UID())
		return nil
	})
	session.SetOnTagRemoved(func() { removals++ })

	require.NoError(t, session.Tick(ctx))

	// Swap the tag between two rounds
	other := testutil.NewVirtualTag([]byte{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA, 0x04, 0xE0})
	sim.Tag = other
	require.NoError(t, session.Tick(ctx))

	assert.Equal(t, 1, removals)
	require.Len(t, detectedUIDs, 2)
	assert.Equal(t, vtag.UIDString(), detectedUIDs[0])
	assert.Equal(t, other.UIDString(), detectedUIDs[1])
}

func TestSession_Tick_TagReturns(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	session, _ := newTestSession(t, vtag)
	ctx := context.Background()

	detections := 0
	session.SetOnTagDetected(func(*pn5180.Tag) error {
		detections++
		return nil
	})

	require.NoError(t, session.Tick(ctx))
	vtag.Remove()
	require.NoError(t, session.Tick(ctx))
	vtag.Insert()
	require.NoError(t, session.Tick(ctx))

	assert.Equal(t, 2, detections)
}

func TestSession_PauseSkipsRounds(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	session, _ := newTestSession(t, vtag)
	session.config.PollInterval = time.Millisecond

	detected := make(chan struct{}, 1)
	session.SetOnTagDetected(func(*pn5180.Tag) error {
		select {
		case detected <- struct{}{}:
		default:
		}
		return nil
	})

	session.Pause()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Start(ctx) }()

	select {
	case <-detected:
		t.Fatal("detected a tag while paused")
	case <-time.After(20 * time.Millisecond):
	}

	session.Resume()
	select {
	case <-detected:
	case <-time.After(time.Second):
		t.Fatal("no detection after resume")
	}

	require.NoError(t, session.Close())
	cancel()
	<-done
}

func TestSession_Start_StopsOnClose(t *testing.T) {
	t.Parallel()

	session, _ := newTestSession(t, nil)
	session.config.PollInterval = time.Millisecond

	require.NoError(t, session.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := session.Start(ctx)
	require.NoError(t, err)
}

func TestSession_Start_ContextCancel(t *testing.T) {
	t.Parallel()

	session, _ := newTestSession(t, nil)
	session.config.PollInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := session.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
