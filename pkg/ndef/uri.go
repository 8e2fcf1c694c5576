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
	"errors"
	"strings"
)

// URI record constants.
const URIRecordType = "U"

// URI record errors.
var (
	ErrURIPayloadTooShort   = errors.New("ndef: URI payload too short")
	ErrURIInvalidPrefixCode = errors.New("ndef: invalid URI prefix code")
)

// uriPrefixes is the NFC Forum URI RTD abbreviation table, indexed by
// prefix code. Code 0x00 means no abbreviation.
var uriPrefixes = []string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
	"ftp://anonymous:anonymous@",
	"ftp://ftp.",
	"ftps://",
	"sftp://",
	"smb://",
	"nfs://",
	"ftp://",
	"dav://",
	"news:",
	"telnet://",
	"imap:",
	"rtsp://",
	"urn:",
	"pop:",
	"sip:",
	"sips:",
	"tftp:",
	"btspp://",
	"btl2cap://",
	"btgoep://",
	"tcpobex://",
	"irdaobex://",
	"file://",
	"urn:epc:id:",
	"urn:epc:tag:",
	"urn:epc:pat:",
	"urn:epc:raw:",
	"urn:epc:",
	"urn:nfc:",
}

// NewURIRecord creates a well-known URI record, abbreviating the URI
// with the longest matching prefix from the NFC Forum table.
func NewURIRecord(uri string) *Record {
	return &Record{
		TNF:     TNFWellKnown,
		Type:    URIRecordType,
		Payload: EncodeURIPayload(uri),
	}
}

// EncodeURIPayload builds a URI record payload, compressing the URI
// with the longest matching abbreviation prefix.
func EncodeURIPayload(uri string) []byte {
	code := 0
	for i, prefix := range uriPrefixes[1:] {
		if strings.HasPrefix(uri, prefix) && len(prefix) > len(uriPrefixes[code]) {
			code = i + 1
		}
	}

	payload := make([]byte, 0, 1+len(uri))
	payload = append(payload, byte(code))
	payload = append(payload, uri[len(uriPrefixes[code]):]...)
	return payload
}

// ParseURIRecord reconstructs the full URI from a URI record payload.
func ParseURIRecord(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", ErrURIPayloadTooShort
	}
	code := int(payload[0])
	if code >= len(uriPrefixes) {
		return "", ErrURIInvalidPrefixCode
	}
	return uriPrefixes[code] + string(payload[1:]), nil
}

// DecodeURIPayload is an alias for ParseURIRecord for API symmetry
// with the Text helpers.
func DecodeURIPayload(payload []byte) (string, error) {
	return ParseURIRecord(payload)
}
