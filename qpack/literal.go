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

import (
	"golang.org/x/net/http2/hpack"

	"github.com/qtransport/quicd/varint"
)

// encodeStringLiteral writes s as a QPACK string literal: a Huffman
// flag at huffBit folded into an N-bit prefixed length sharing the
// first byte with pattern's fixed high bits, followed by either the raw
// bytes or their Huffman coding — whichever is shorter (RFC 9204
// §4.1.2 defers entirely to RFC 7541 §5.2, whose Huffman table is
// byte-identical between HPACK and QPACK). Callers own the bit layout
// because different instructions place the string literal's header
// bits at different offsets in the first byte.
func encodeStringLiteral(dst []byte, s string, pattern, huffBit byte, n uint8) []byte {
	huffLen := hpack.HuffmanEncodeLength(s)
	if huffLen < uint64(len(s)) {
		dst = varint.EncodePrefixed(dst, pattern|huffBit, n, huffLen)
		return hpack.AppendHuffmanString(dst, s)
	}
	dst = varint.EncodePrefixed(dst, pattern, n, uint64(len(s)))
	return append(dst, s...)
}

// decodeStringLiteral reads a QPACK string literal off the front of b.
func decodeStringLiteral(b []byte, huffBit byte, n uint8) (string, int, error) {
	if len(b) == 0 {
		return "", 0, varint.ErrNeedMoreData
	}
	huffman := b[0]&huffBit != 0

	length, consumed, err := varint.DecodePrefixed(b, n)
	if err != nil {
		return "", 0, err
	}
	if uint64(len(b)-consumed) < length {
		return "", 0, varint.ErrNeedMoreData
	}
	raw := b[consumed : consumed+int(length)]
	consumed += int(length)

	if !huffman {
		return string(raw), consumed, nil
	}
	s, err := hpack.HuffmanDecodeToString(raw)
	if err != nil {
		return "", 0, newError("huffman decode: %s", err)
	}
	return s, consumed, nil
}
