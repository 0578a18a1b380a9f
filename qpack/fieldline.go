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

// Header is one decoded (or to-be-encoded) header field.
type Header struct {
	Name, Value string
}

// fieldLineKind distinguishes the header-block field line
// representations this package implements. Post-Base variants (RFC
// 9204 §4.5.3, §4.5.4) are not implemented: they only matter for
// interleaved blocked-stream pipelines with entries inserted after a
// block's Base, which this implementation's single in-order encoder
// never produces.
type fieldLineKind int

const (
	fieldIndexed fieldLineKind = iota
	fieldLiteralWithName
	fieldLiteralWithLiteralName
)

// EncodeIndexedFieldLine builds an Indexed Field Line referencing
// either the static table or the dynamic table (relative to Base,
// already resolved to a wire index by the caller).
func EncodeIndexedFieldLine(static bool, index uint64) []byte {
	prefix := byte(0x80)
	if static {
		prefix |= 0x40
	}
	return varint.EncodePrefixed(nil, prefix, 6, index)
}

// EncodeLiteralFieldLineWithNameRef builds a Literal Field Line With
// Name Reference: the name comes from a table index, the value is a
// literal.
func EncodeLiteralFieldLineWithNameRef(static bool, nameIndex uint64, value string) []byte {
	prefix := byte(0x40)
	if static {
		prefix |= 0x10
	}
	dst := varint.EncodePrefixed(nil, prefix, 4, nameIndex)
	return encodeStringLiteral(dst, value, 0x00, 0x80, 7)
}

// EncodeLiteralFieldLineWithLiteralName builds a Literal Field Line
// With Literal Name: both name and value are literals, used when
// neither table holds a matching name.
func EncodeLiteralFieldLineWithLiteralName(name, value string) []byte {
	dst := encodeStringLiteral(nil, name, 0x20, 0x08, 3)
	return encodeStringLiteral(dst, value, 0x00, 0x80, 7)
}

// decodedFieldLine is the raw, Base-relative result of parsing one
// field line; resolving it against table state happens one level up in
// Decoder.DecodeHeaderBlock, which is the only place Base is known.
type decodedFieldLine struct {
	kind        fieldLineKind
	static      bool
	index       uint64
	name, value string
}

func decodeFieldLine(b []byte) (decodedFieldLine, int, error) {
	if len(b) == 0 {
		return decodedFieldLine{}, 0, varint.ErrNeedMoreData
	}

	switch {
	case b[0]&0x80 != 0:
		static := b[0]&0x40 != 0
		idx, n, err := varint.DecodePrefixed(b, 6)
		if err != nil {
			return decodedFieldLine{}, 0, err
		}
		return decodedFieldLine{kind: fieldIndexed, static: static, index: idx}, n, nil

	case b[0]&0x40 != 0:
		static := b[0]&0x10 != 0
		idx, n1, err := varint.DecodePrefixed(b, 4)
		if err != nil {
			return decodedFieldLine{}, 0, err
		}
		val, n2, err := decodeStringLiteral(b[n1:], 0x80, 7)
		if err != nil {
			return decodedFieldLine{}, 0, err
		}
		return decodedFieldLine{kind: fieldLiteralWithName, static: static, index: idx, value: val}, n1 + n2, nil

	case b[0]&0x20 != 0:
		name, n1, err := decodeStringLiteral(b, 0x08, 3)
		if err != nil {
			return decodedFieldLine{}, 0, err
		}
		val, n2, err := decodeStringLiteral(b[n1:], 0x80, 7)
		if err != nil {
			return decodedFieldLine{}, 0, err
		}
		return decodedFieldLine{kind: fieldLiteralWithLiteralName, name: name, value: val}, n1 + n2, nil

	default:
		return decodedFieldLine{}, 0, newError("post-base field line representations are not supported")
	}
}
