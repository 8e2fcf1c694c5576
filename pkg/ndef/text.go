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

import "errors"

// Text record constants.
const (
	TextRecordType = "T"

	textUTF16Flag    = 0x80
	textLangLenMask  = 0x3F
	maxLanguageBytes = 63
)

// Text record errors.
var (
	ErrTextPayloadTooShort = errors.New("ndef: text payload too short")
	ErrTextLanguageTooLong = errors.New("ndef: language code too long")
)

// TextRecord holds the decoded fields of a Text record payload.
type TextRecord struct {
	Text     string
	Language string
	UTF16    bool
}

// NewTextRecord creates a well-known Text record. language is an IANA
// language code such as "en" or "de-DE"; empty defaults to "en".
func NewTextRecord(text, language string) *Record {
	return &Record{
		TNF:     TNFWellKnown,
		Type:    TextRecordType,
		Payload: encodeText(text, language),
	}
}

func encodeText(text, language string) []byte {
	if language == "" {
		language = "en"
	}
	if len(language) > maxLanguageBytes {
		language = language[:maxLanguageBytes]
	}

	payload := make([]byte, 0, 1+len(language)+len(text))
	payload = append(payload, byte(len(language))) // UTF-8 status byte
	payload = append(payload, language...)
	payload = append(payload, text...)
	return payload
}

// ParseTextRecord decodes a Text record payload.
func ParseTextRecord(payload []byte) (*TextRecord, error) {
	if len(payload) < 1 {
		return nil, ErrTextPayloadTooShort
	}

	status := payload[0]
	langLen := int(status & textLangLenMask)
	if len(payload) < 1+langLen {
		return nil, ErrTextPayloadTooShort
	}

	return &TextRecord{
		Language: string(payload[1 : 1+langLen]),
		Text:     string(payload[1+langLen:]),
		UTF16:    status&textUTF16Flag != 0,
	}, nil
}

// DecodeTextPayload extracts just the text string from a Text record
// payload.
func DecodeTextPayload(payload []byte) (string, error) {
	rec, err := ParseTextRecord(payload)
	if err != nil {
		return "", err
	}
	return rec.Text, nil
}
