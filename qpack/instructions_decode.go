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

// EncoderInstructionKind distinguishes the four instructions sent on
// the QPACK encoder stream (RFC 9204 §4.3).
type EncoderInstructionKind int

const (
	InstrSetCapacity EncoderInstructionKind = iota
	InstrInsertWithName
	InstrInsertWithoutName
	InstrDuplicate
)

// EncoderInstruction is one decoded encoder-stream instruction; which
// fields are meaningful depends on Kind.
type EncoderInstruction struct {
	Kind          EncoderInstructionKind
	Capacity      uint64 // InstrSetCapacity
	StaticName    bool   // InstrInsertWithName
	NameIndex     uint64 // InstrInsertWithName
	AbsoluteIndex uint64 // InstrDuplicate
	Name          string // InstrInsertWithoutName
	Value         string // InstrInsertWithName, InstrInsertWithoutName
}

// DecodeEncoderInstruction reads one instruction off the front of b. It
// returns varint.ErrNeedMoreData if b holds an incomplete instruction.
func DecodeEncoderInstruction(b []byte) (EncoderInstruction, int, error) {
	if len(b) == 0 {
		return EncoderInstruction{}, 0, varint.ErrNeedMoreData
	}

	switch {
	case b[0]&0x80 != 0:
		staticName := b[0]&insertWithNameStaticBit != 0
		idx, n1, err := varint.DecodePrefixed(b, 6)
		if err != nil {
			return EncoderInstruction{}, 0, err
		}
		val, n2, err := decodeStringLiteral(b[n1:], 0x80, 7)
		if err != nil {
			return EncoderInstruction{}, 0, err
		}
		return EncoderInstruction{Kind: InstrInsertWithName, StaticName: staticName, NameIndex: idx, Value: val}, n1 + n2, nil

	case b[0]&0x40 != 0:
		name, n1, err := decodeStringLiteral(b, 0x20, 5)
		if err != nil {
			return EncoderInstruction{}, 0, err
		}
		val, n2, err := decodeStringLiteral(b[n1:], 0x80, 7)
		if err != nil {
			return EncoderInstruction{}, 0, err
		}
		return EncoderInstruction{Kind: InstrInsertWithoutName, Name: name, Value: val}, n1 + n2, nil

	case b[0]&0x20 != 0:
		cap, n, err := varint.DecodePrefixed(b, 5)
		if err != nil {
			return EncoderInstruction{}, 0, err
		}
		return EncoderInstruction{Kind: InstrSetCapacity, Capacity: cap}, n, nil

	default:
		idx, n, err := varint.DecodePrefixed(b, 5)
		if err != nil {
			return EncoderInstruction{}, 0, err
		}
		return EncoderInstruction{Kind: InstrDuplicate, AbsoluteIndex: idx}, n, nil
	}
}

// DecoderInstructionKind distinguishes the three instructions sent on
// the QPACK decoder stream (RFC 9204 §4.4).
type DecoderInstructionKind int

const (
	InstrSectionAck DecoderInstructionKind = iota
	InstrStreamCancel
	InstrInsertCountIncrement
)

// DecoderInstruction is one decoded decoder-stream instruction.
type DecoderInstruction struct {
	Kind  DecoderInstructionKind
	Value uint64 // stream ID for Ack/Cancel, increment for InsertCountIncrement
}

// DecodeDecoderInstruction reads one instruction off the front of b.
func DecodeDecoderInstruction(b []byte) (DecoderInstruction, int, error) {
	if len(b) == 0 {
		return DecoderInstruction{}, 0, varint.ErrNeedMoreData
	}

	switch {
	case b[0]&0x80 != 0:
		v, n, err := varint.DecodePrefixed(b, 7)
		if err != nil {
			return DecoderInstruction{}, 0, err
		}
		return DecoderInstruction{Kind: InstrSectionAck, Value: v}, n, nil

	case b[0]&0x40 != 0:
		v, n, err := varint.DecodePrefixed(b, 6)
		if err != nil {
			return DecoderInstruction{}, 0, err
		}
		return DecoderInstruction{Kind: InstrStreamCancel, Value: v}, n, nil

	default:
		v, n, err := varint.DecodePrefixed(b, 6)
		if err != nil {
			return DecoderInstruction{}, 0, err
		}
		return DecoderInstruction{Kind: InstrInsertCountIncrement, Value: v}, n, nil
	}
}
