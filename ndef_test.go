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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/ZaparooProject/go-pn5180/internal/testing"
	"github.com/ZaparooProject/go-pn5180/pkg/ndef"
)

func TestTag_ReadText(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	vtag.SetNDEFText("hello world")
	tag, _ := newTestTag(t, vtag)

	text, err := tag.ReadText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestTag_WriteText_Roundtrip(t *testing.T) {
	t.Parallel()

	tag, vtag := newTestTag(t, testutil.NewVirtualTag(nil))
	ctx := context.Background()

	require.NoError(t, tag.WriteText(ctx, "zaparoo"))

	text, err := tag.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "zaparoo", text)

	// The TLV area carries an NDEF TLV followed by a terminator.
	area := vtag.ReadBytes(4, 2)
	assert.Equal(t, byte(0x03), area[0])
	tlvLen := int(area[1])
	assert.Equal(t, byte(0xFE), vtag.ReadBytes(4+2+tlvLen, 1)[0])
}

func TestTag_WriteNDEF_ReplacesMessage(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	vtag.SetNDEFText("first")
	tag, _ := newTestTag(t, vtag)
	ctx := context.Background()

	msg := ndef.NewMessage(ndef.NewURIRecord("https://zaparoo.org"))
	require.NoError(t, tag.WriteNDEF(ctx, msg))

	got, err := tag.ReadNDEF(ctx)
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, ndef.TNFWellKnown, got.Records[0].TNF)
	assert.Equal(t, ndef.URIRecordType, got.Records[0].Type)

	uri, err := ndef.ParseURIRecord(got.Records[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "https://zaparoo.org", uri)
}

func TestTag_ReadNDEF_NotFormatted(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	vtag.LoadBytes(0, []byte{0x00, 0x00, 0x00, 0x00})
	tag, _ := newTestTag(t, vtag)

	_, err := tag.ReadNDEF(context.Background())
	require.ErrorIs(t, err, ErrNotFormatted)
}

func TestTag_ReadNDEF_BadAccessByte(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	// Write access restricted
	vtag.LoadBytes(0, []byte{0xE1, 0x43, 0x1F, 0x00})
	tag, _ := newTestTag(t, vtag)

	_, err := tag.ReadNDEF(context.Background())
	require.ErrorIs(t, err, ErrNotFormatted)
}

func TestTag_ReadNDEF_TerminatorOnly(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	vtag.LoadBytes(4, []byte{0xFE, 0x00, 0x00, 0x00})
	tag, _ := newTestTag(t, vtag)

	_, err := tag.ReadNDEF(context.Background())
	require.ErrorIs(t, err, ErrNDEFNotFound)
}

func TestTag_ReadNDEF_EmptyMessage(t *testing.T) {
	t.Parallel()

	// The factory-formatted data area holds a zero-length NDEF TLV.
	tag, _ := newTestTag(t, testutil.NewVirtualTag(nil))

	_, err := tag.ReadNDEF(context.Background())
	require.ErrorIs(t, err, ndef.ErrEmptyMessage)
}

func TestTag_ReadNDEF_SkipsNullTLVs(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	text := []byte{0x02, 'e', 'n', 'o', 'k'}
	tlv := append([]byte{0x00, 0x00, 0x03, byte(4 + len(text))},
		0xD1, 0x01, byte(len(text)), 'T')
	tlv = append(tlv, text...)
	tlv = append(tlv, 0xFE)
	vtag.LoadBytes(4, tlv)
	tag, _ := newTestTag(t, vtag)

	got, err := tag.ReadText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestTag_ReadText_ExtendedCC(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	// Two-byte CC: data area size in bytes 6-7, TLV area at offset 8.
	vtag.LoadBytes(0, []byte{0xE2, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x1E})
	text := []byte{0x02, 'e', 'n', 'o', 'k'}
	tlv := append([]byte{0x03, byte(4 + len(text)), 0xD1, 0x01, byte(len(text)), 'T'}, text...)
	tlv = append(tlv, 0xFE)
	vtag.LoadBytes(8, tlv)
	tag, _ := newTestTag(t, vtag)

	got, err := tag.ReadText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestTag_WriteNDEF_TooLarge(t *testing.T) {
	t.Parallel()

	vtag := testutil.NewVirtualTag(nil)
	// One 8-byte unit of data area
	vtag.LoadBytes(0, []byte{0xE1, 0x40, 0x01, 0x00})
	tag, _ := newTestTag(t, vtag)

	err := tag.WriteText(context.Background(), "this will not fit in eight bytes")
	require.ErrorIs(t, err, ErrNDEFTooLarge)
}
