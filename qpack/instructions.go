// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package qpack

import "github.com/qtransport/quicd/varint"

// Encoder-stream instruction bit patterns (RFC 9204 §4.3; spec.md §6):
// Set Dynamic Table Capacity 001xxxxx, Insert With Name Reference
// 1Txxxxxx (T selects the static table), Insert Without Name Reference
// 01xxxxxx, Duplicate 000xxxxx.
const (
	patSetCapacity       = 0x20
	patInsertWithName    = 0x80
	patInsertWithoutName = 0x40
	patDuplicate         = 0x00

	insertWithNameStaticBit = 0x40
)

// Decoder-stream instruction bit patterns: Section Acknowledgement
// 1xxxxxxx, Stream Cancellation 01xxxxxx, Insert Count Increment
// 00xxxxxx.
const (
	patSectionAck        = 0x80
	patStreamCancel      = 0x40
	patInsertCountIncDec = 0x00
)

// EncodeSetCapacity builds a Set Dynamic Table Capacity instruction.
func EncodeSetCapacity(capacity uint64) []byte {
	return varint.EncodePrefixed(nil, patSetCapacity, 5, capacity)
}

// EncodeInsertWithNameReference builds an Insert With Name Reference
// instruction: nameIndex is into the static table if staticName, else
// the dynamic table.
func EncodeInsertWithNameReference(staticName bool, nameIndex uint64, value string) []byte {
	prefix := byte(patInsertWithName)
	if staticName {
		prefix |= insertWithNameStaticBit
	}
	dst := varint.EncodePrefixed(nil, prefix, 6, nameIndex)
	return encodeStringLiteral(dst, value, 0x00, 0x80, 7)
}

// EncodeInsertWithoutNameReference builds an Insert Without Name
// Reference instruction carrying both name and value as literals.
func EncodeInsertWithoutNameReference(name, value string) []byte {
	dst := encodeStringLiteral(nil, name, patInsertWithoutName, 0x20, 5)
	return encodeStringLiteral(dst, value, 0x00, 0x80, 7)
}

// EncodeDuplicate builds a Duplicate instruction.
func EncodeDuplicate(absoluteIndex uint64) []byte {
	return varint.EncodePrefixed(nil, patDuplicate, 5, absoluteIndex)
}

// EncodeSectionAcknowledgement builds a decoder-stream Section
// Acknowledgement instruction for the request stream streamID.
func EncodeSectionAcknowledgement(streamID uint64) []byte {
	return varint.EncodePrefixed(nil, patSectionAck, 7, streamID)
}

// EncodeStreamCancellation builds a decoder-stream Stream Cancellation
// instruction for streamID.
func EncodeStreamCancellation(streamID uint64) []byte {
	return varint.EncodePrefixed(nil, patStreamCancel, 6, streamID)
}

// EncodeInsertCountIncrement builds a decoder-stream Insert Count
// Increment instruction.
func EncodeInsertCountIncrement(increment uint64) []byte {
	return varint.EncodePrefixed(nil, patInsertCountIncDec, 6, increment)
}
