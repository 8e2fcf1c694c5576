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
	"fmt"
)

// Tag represents an ISO 15693 vicinity card present in the field,
// carrying its memory geometry from GET_SYSTEM_INFORMATION. The UID
// and geometry are fixed for the Tag's lifetime.
//
// Tags only support whole-block RF operations; ReadAt and WriteAt
// translate arbitrary byte ranges into correctly aligned block
// transactions so a caller can never corrupt neighboring bytes with a
// partial-block write.
type Tag struct {
	iso       *ISO15693
	uid       UID
	dsfid     byte
	afi       byte
	blockSize int
	numBlocks int
}

// NewTag builds a Tag from a system information response.
func NewTag(iso *ISO15693, info *TagInfo) (*Tag, error) {
	if info.BlockSize < 1 || info.BlockSize > 32 {
		return nil, fmt.Errorf("%w: block size %d", ErrInvalidParameter, info.BlockSize)
	}
	if info.NumBlocks < 1 || info.NumBlocks > 256 {
		return nil, fmt.Errorf("%w: block count %d", ErrInvalidParameter, info.NumBlocks)
	}
	return &Tag{
		iso:       iso,
		uid:       info.UID,
		dsfid:     info.DSFID,
		afi:       info.AFI,
		blockSize: info.BlockSize,
		numBlocks: info.NumBlocks,
	}, nil
}

// UID returns the tag's unique identifier as hex string
func (t *Tag) UID() string {
	return t.uid.String()
}

// UIDBytes returns the tag's unique identifier as bytes
func (t *Tag) UIDBytes() []byte {
	uid := make([]byte, UIDSize)
	copy(uid, t.uid[:])
	return uid
}

// DSFID returns the data storage format identifier.
func (t *Tag) DSFID() byte {
	return t.dsfid
}

// AFI returns the application family identifier.
func (t *Tag) AFI() byte {
	return t.afi
}

// BlockSize returns the tag's block size in bytes (1-32).
func (t *Tag) BlockSize() int {
	return t.blockSize
}

// NumBlocks returns the tag's block count (1-256).
func (t *Tag) NumBlocks() int {
	return t.numBlocks
}

// Capacity returns the tag's addressable memory in bytes.
func (t *Tag) Capacity() int {
	return t.blockSize * t.numBlocks
}

// Summary returns a brief summary of the tag
func (t *Tag) Summary() string {
	return fmt.Sprintf("Tag: UID %s, %d blocks x %d bytes", t.UID(), t.numBlocks, t.blockSize)
}

// checkRange validates that [offset, offset+length) lies inside the
// tag's memory.
func (t *Tag) checkRange(offset, length int) error {
	if offset < 0 || length < 0 {
		return fmt.Errorf("%w: offset %d, length %d", ErrInvalidParameter, offset, length)
	}
	if offset+length > t.Capacity() {
		return fmt.Errorf("%w: [%d, %d) exceeds capacity %d",
			ErrOutOfRange, offset, offset+length, t.Capacity())
	}
	return nil
}

// ReadAt reads length bytes starting at byte offset. The covering
// block range is fetched in one multiple-block read and the requested
// slice is cut out of the concatenated blocks.
func (t *Tag) ReadAt(ctx context.Context, offset, length int) ([]byte, error) {
	if err := t.checkRange(offset, length); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	skip := offset % t.blockSize
	startBlock := (offset - skip) / t.blockSize
	totalBytes := length + skip
	if rem := totalBytes % t.blockSize; rem != 0 {
		totalBytes += t.blockSize - rem
	}
	count := totalBytes / t.blockSize

	data, err := t.iso.ReadMultipleBlocks(ctx, byte(startBlock), count, &t.uid)
	if err != nil {
		return nil, err
	}
	if len(data) < skip+length {
		return nil, fmt.Errorf("%w: got %d of %d block bytes", ErrInvalidResponse, len(data), totalBytes)
	}
	return data[skip : skip+length], nil
}

// WriteAt writes data starting at byte offset. The range is zero-padded
// on both sides to whole blocks and written one block at a time: a
// single-block write per chunk pins a failure to a specific block,
// which a multiple-block write cannot do. The first failed chunk halts
// the sequence - blocks after a failure would land at the wrong
// logical offset.
func (t *Tag) WriteAt(ctx context.Context, offset int, data []byte) error {
	if err := t.checkRange(offset, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	skip := offset % t.blockSize
	startBlock := (offset - skip) / t.blockSize

	padded := make([]byte, skip, skip+len(data)+t.blockSize)
	padded = append(padded, data...)
	if rem := len(padded) % t.blockSize; rem != 0 {
		padded = append(padded, make([]byte, t.blockSize-rem)...)
	}

	for i := 0; i < len(padded); i += t.blockSize {
		block := startBlock + i/t.blockSize
		payload, err := t.iso.WriteSingleBlock(ctx, byte(block), padded[i:i+t.blockSize], &t.uid)
		if err != nil {
			return &WriteBlockError{Block: block, Err: err}
		}
		if len(payload) > 0 {
			return &WriteBlockError{
				Block: block,
				Err:   fmt.Errorf("%w: unexpected %d-byte response", ErrInvalidResponse, len(payload)),
			}
		}
	}
	return nil
}
