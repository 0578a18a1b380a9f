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

// Package varint implements the QUIC variable-length integer codec
// (RFC 9000 §16) and the RFC 7541 §5.1 prefixed-integer codec QPACK
// reuses for its instruction streams.
package varint

import "github.com/pkg/errors"

func newError(format string, args ...any) error {
	return errors.Errorf("varint: "+format, args...)
}

// Max is the largest value representable by a QUIC varint (2^62 - 1).
const Max = (1 << 62) - 1

var (
	// ErrNeedMoreData is returned when the input buffer is shorter than
	// the length the leading byte selects.
	ErrNeedMoreData = newError("need more data")

	// ErrTooLarge is returned when encoding a value above Max.
	ErrTooLarge = newError("value exceeds 2^62-1")

	// ErrNoSpace is returned when the destination has insufficient free
	// bytes to hold the encoding.
	ErrNoSpace = newError("insufficient space")
)

// Len returns the number of bytes encode(v) would occupy. Deterministic
// and idempotent per spec.md §4.2.
func Len(v uint64) int {
	switch {
	case v <= 63:
		return 1
	case v <= 16383:
		return 2
	case v <= 1073741823:
		return 4
	default:
		return 8
	}
}

// Encode appends the varint encoding of v to dst and returns the result.
// It returns ErrTooLarge if v > Max.
func Encode(dst []byte, v uint64) ([]byte, error) {
	if v > Max {
		return dst, ErrTooLarge
	}
	n := Len(v)
	switch n {
	case 1:
		return append(dst, byte(v)), nil
	case 2:
		return append(dst, byte(v>>8)|0x40, byte(v)), nil
	case 4:
		return append(dst,
			byte(v>>24)|0x80, byte(v>>16), byte(v>>8), byte(v)), nil
	default:
		return append(dst,
			byte(v>>56)|0xc0, byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v)), nil
	}
}

// EncodeTo writes the varint encoding of v into dst starting at offset 0
// and returns the number of bytes written. It returns ErrNoSpace if dst
// is too short, and never partially writes in that case.
func EncodeTo(dst []byte, v uint64) (int, error) {
	if v > Max {
		return 0, ErrTooLarge
	}
	n := Len(v)
	if len(dst) < n {
		return 0, ErrNoSpace
	}
	buf, _ := Encode(dst[:0:0], v)
	copy(dst, buf)
	return n, nil
}

// lenFromPrefix returns the total encoded length {1,2,4,8} selected by
// the first two bits of b.
func lenFromPrefix(b byte) int {
	switch b >> 6 {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 8
	}
}

// Decode reads a varint from the front of b. It returns the value, the
// number of bytes consumed, and ErrNeedMoreData if b is shorter than the
// length the leading byte selects (never dereferencing past len(b)).
func Decode(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrNeedMoreData
	}
	n := lenFromPrefix(b[0])
	if len(b) < n {
		return 0, 0, ErrNeedMoreData
	}

	v := uint64(b[0] & 0x3f)
	for i := 1; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, n, nil
}
