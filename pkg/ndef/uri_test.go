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

package ndef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeURIPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		uri      string
		wantRest string
		wantCode byte
	}{
		// "https://www." must win over the shorter "https://"
		{name: "LongestPrefixWins", uri: "https://www.example.com", wantCode: 0x02, wantRest: "example.com"},
		{name: "HTTPS", uri: "https://zaparoo.org", wantCode: 0x04, wantRest: "zaparoo.org"},
		{name: "Tel", uri: "tel:+15551234567", wantCode: 0x05, wantRest: "+15551234567"},
		{name: "Mailto", uri: "mailto:a@b.org", wantCode: 0x06, wantRest: "a@b.org"},
		{name: "NoPrefix", uri: "spotify:track:abc", wantCode: 0x00, wantRest: "spotify:track:abc"},
		{name: "URN", uri: "urn:epc:id:sgtin", wantCode: 0x1E, wantRest: "sgtin"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload := EncodeURIPayload(tt.uri)
			require.NotEmpty(t, payload)
			assert.Equal(t, tt.wantCode, payload[0])
			assert.Equal(t, tt.wantRest, string(payload[1:]))
		})
	}
}

func TestURIRoundtrip(t *testing.T) {
	t.Parallel()

	uris := []string{
		"https://www.example.com/path?q=1",
		"http://plain.example",
		"ftp://ftp.example.org/file",
		"custom-scheme://opaque",
	}

	for _, uri := range uris {
		rec := NewURIRecord(uri)
		assert.Equal(t, TNFWellKnown, rec.TNF)
		assert.Equal(t, URIRecordType, rec.Type)

		got, err := ParseURIRecord(rec.Payload)
		require.NoError(t, err)
		assert.Equal(t, uri, got)
	}
}

func TestParseURIRecord_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseURIRecord(nil)
	require.ErrorIs(t, err, ErrURIPayloadTooShort)

	_, err = ParseURIRecord([]byte{0x24, 'x'})
	require.ErrorIs(t, err, ErrURIInvalidPrefixCode)
}
