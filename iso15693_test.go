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
	"testing"

	testutil "github.com/ZaparooProject/go-pn5180/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestISO wires an ISO15693 layer to a simulated chip with the
// given tag in the field, already configured for ISO 15693.
func newTestISO(t *testing.T, tag *testutil.VirtualTag) (*ISO15693, *testutil.ChipSimulator) {
	t.Helper()

	device, sim := newSimDevice(t, tag)
	iso := NewISO15693(device)
	require.NoError(t, iso.Configure())
	return iso, sim
}

func testUID(t *testing.T) UID {
	t.Helper()

	var uid UID
	copy(uid[:], testutil.TestVicinityUID)
	return uid
}

func TestISO15693_BuildFrame(t *testing.T) {
	t.Parallel()

	iso := NewISO15693(nil)
	uid := UID{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0x04, 0xE0}

	tests := []struct {
		name    string
		uid     *UID
		params  []byte
		command byte
		want    []byte
	}{
		{
			name:    "NonAddressed_NoParams",
			command: cmdISOGetSystemInfo,
			want:    []byte{0x02, 0x2B},
		},
		{
			name:    "NonAddressed_WithParams",
			command: cmdISOReadSingleBlock,
			params:  []byte{0x05},
			want:    []byte{0x02, 0x20, 0x05},
		},
		{
			name:    "Addressed_InjectsUIDAndFlag",
			command: cmdISOReadSingleBlock,
			uid:     &uid,
			params:  []byte{0x05},
			want:    []byte{0x22, 0x20, 0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0x04, 0xE0, 0x05},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, iso.buildFrame(tt.command, tt.uid, tt.params...))
		})
	}
}

func TestISO15693_Inventory(t *testing.T) {
	t.Parallel()

	iso, sim := newTestISO(t, testutil.NewVirtualTag(nil))

	uid, err := iso.Inventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testUID(t), uid)

	// The inventory frame: inventory flags, command, zero mask length.
	frames := sim.SentFrames
	require.NotEmpty(t, frames)
	assert.Equal(t, []byte{0x26, 0x01, 0x00}, frames[len(frames)-1])
}

func TestISO15693_Inventory_EmptyField(t *testing.T) {
	t.Parallel()

	iso, _ := newTestISO(t, nil)

	_, err := iso.Inventory(context.Background())
	require.ErrorIs(t, err, ErrNoAnswer)
	assert.True(t, IsNoAnswer(err))
}

func TestISO15693_Inventory_ShortPayloadIsNoAnswer(t *testing.T) {
	t.Parallel()

	// A tag answering with a truncated UID produces a success response
	// shorter than the nine payload bytes (format + 8-byte UID) a full
	// inventory carries. That is indistinguishable from garbage and
	// must read as an empty field.
	iso, _ := newTestISO(t, testutil.NewVirtualTag([]byte{0x01, 0x23, 0x45, 0x67}))

	_, err := iso.Inventory(context.Background())
	require.ErrorIs(t, err, ErrNoAnswer)
}

func TestISO15693_ReadWriteSingleBlock(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualTag(nil)
	iso, _ := newTestISO(t, tag)
	uid := testUID(t)
	ctx := context.Background()

	payload, err := iso.WriteSingleBlock(ctx, 10, []byte{0xDE, 0xAD, 0xBE, 0xEF}, &uid)
	require.NoError(t, err)
	assert.Empty(t, payload)

	data, err := iso.ReadSingleBlock(ctx, 10, &uid)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, data)
}

func TestISO15693_ReadMultipleBlocks(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualTag(nil)
	tag.LoadBytes(8, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	iso, _ := newTestISO(t, tag)
	uid := testUID(t)

	data, err := iso.ReadMultipleBlocks(context.Background(), 2, 2, &uid)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, data)
}

func TestISO15693_ReadMultipleBlocks_CountValidation(t *testing.T) {
	t.Parallel()

	iso := NewISO15693(nil)

	_, err := iso.ReadMultipleBlocks(context.Background(), 0, 0, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = iso.ReadMultipleBlocks(context.Background(), 0, 257, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestISO15693_TagError(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualTag(nil)
	tag.FailBlock = 5
	tag.FailCode = 0x10
	iso, _ := newTestISO(t, tag)
	uid := testUID(t)

	_, err := iso.ReadSingleBlock(context.Background(), 5, &uid)
	var tagErr *TagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, byte(0x10), tagErr.Code)
	assert.Equal(t, "ReadSingleBlock", tagErr.Command)
	assert.Contains(t, err.Error(), "not available")
	extracted, ok := IsTagError(err)
	assert.True(t, ok)
	assert.Equal(t, tagErr, extracted)
}

func TestISO15693_AddressedMismatchIsNoAnswer(t *testing.T) {
	t.Parallel()

	iso, _ := newTestISO(t, testutil.NewVirtualTag(nil))
	wrong := UID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	_, err := iso.ReadSingleBlock(context.Background(), 0, &wrong)
	require.ErrorIs(t, err, ErrNoAnswer)
}

func TestISO15693_StayQuiet(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualTag(nil)
	iso, _ := newTestISO(t, tag)
	uid := testUID(t)
	ctx := context.Background()

	// No reply is the success case.
	require.NoError(t, iso.StayQuiet(ctx, uid))

	// A quieted tag ignores addressed reads until reset.
	_, err := iso.ReadSingleBlock(ctx, 0, &uid)
	require.ErrorIs(t, err, ErrNoAnswer)

	require.NoError(t, iso.ResetToReady(ctx, &uid))
	_, err = iso.ReadSingleBlock(ctx, 0, &uid)
	require.NoError(t, err)
}

func TestISO15693_GetSystemInformation(t *testing.T) {
	t.Parallel()

	iso, _ := newTestISO(t, testutil.NewVirtualTag(nil))
	uid := testUID(t)

	info, err := iso.GetSystemInformation(context.Background(), &uid)
	require.NoError(t, err)
	assert.Equal(t, uid, info.UID)
	assert.Equal(t, 64, info.NumBlocks)
	assert.Equal(t, 4, info.BlockSize)
}

func TestParseSystemInformation(t *testing.T) {
	t.Parallel()

	uidBytes := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0x04, 0xE0}

	tests := []struct {
		name    string
		payload []byte
		want    TagInfo
		wantErr bool
	}{
		{
			name: "AllFields",
			payload: append(append([]byte{0x07}, uidBytes...),
				0x05,       // DSFID
				0x02,       // AFI
				0x0F, 0x03, // 16 blocks of 4 bytes, stored minus one
			),
			want: TagInfo{InfoFlags: 0x07, DSFID: 0x05, AFI: 0x02, NumBlocks: 16, BlockSize: 4},
		},
		{
			name:    "UIDOnly",
			payload: append([]byte{0x00}, uidBytes...),
			want:    TagInfo{},
		},
		{
			name: "GeometryOnly_BlockSizeUsesFiveBits",
			// Upper bits of the size byte carry vendor data and must
			// be masked off.
			payload: append(append([]byte{0x04}, uidBytes...), 0x3F, 0xE3),
			want:    TagInfo{InfoFlags: 0x04, NumBlocks: 64, BlockSize: 4},
		},
		{
			name:    "TooShort",
			payload: []byte{0x07, 0x01, 0x23},
			wantErr: true,
		},
		{
			name:    "TruncatedDSFID",
			payload: append([]byte{0x01}, uidBytes...),
			wantErr: true,
		},
		{
			name:    "TruncatedMemorySize",
			payload: append(append([]byte{0x04}, uidBytes...), 0x0F),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info, err := parseSystemInformation(tt.payload)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.InfoFlags, info.InfoFlags)
			assert.Equal(t, tt.want.DSFID, info.DSFID)
			assert.Equal(t, tt.want.AFI, info.AFI)
			assert.Equal(t, tt.want.NumBlocks, info.NumBlocks)
			assert.Equal(t, tt.want.BlockSize, info.BlockSize)
		})
	}
}

func TestISO15693_LockBlockPreventsWrites(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualTag(nil)
	iso, _ := newTestISO(t, tag)
	uid := testUID(t)
	ctx := context.Background()

	require.NoError(t, iso.LockBlock(ctx, 7, &uid))

	_, err := iso.WriteSingleBlock(ctx, 7, []byte{1, 2, 3, 4}, &uid)
	var tagErr *TagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, byte(0x12), tagErr.Code)
}

func TestISO15693_CustomCommandValidation(t *testing.T) {
	t.Parallel()

	iso := NewISO15693(nil)

	_, err := iso.Custom(context.Background(), 0x20, 0x04, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)
}
