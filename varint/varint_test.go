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

package varint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLenBuckets(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{63, 1},
		{64, 2},
		{16383, 2},
		{16384, 4},
		{1 << 30, 8},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Len(c.v), "value=%d", c.v)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 37, 63, 64, 16383, 16384, 1073741823, 1073741824, Max} {
		buf, err := Encode(nil, v)
		require.NoError(t, err)
		require.Len(t, buf, Len(v))

		got, n, err := Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v, got)
	}
}

func TestEncodeRejectsOverflow(t *testing.T) {
	_, err := Encode(nil, Max+1)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeTruncatedNeedsMoreData(t *testing.T) {
	buf, _ := Encode(nil, 16384) // 4-byte encoding
	_, _, err := Decode(buf[:2])
	assert.ErrorIs(t, err, ErrNeedMoreData)

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrNeedMoreData)
}

func TestPrefixedIntegerRoundTrip(t *testing.T) {
	for _, n := range []uint8{4, 5, 6, 7} {
		for _, v := range []uint64{0, 1, 10, 30, 127, 128, 1000, 1 << 20} {
			buf := EncodePrefixed(nil, 0, n, v)
			got, consumed, err := DecodePrefixed(buf, n)
			require.NoError(t, err, "n=%d v=%d", n, v)
			assert.Equal(t, len(buf), consumed)
			assert.Equal(t, v, got, "n=%d v=%d", n, v)
		}
	}
}

func TestPrefixedIntegerKnownEncoding(t *testing.T) {
	// RFC 7541 C.1.1: 10 encoded with a 5-bit prefix is a single byte.
	buf := EncodePrefixed(nil, 0, 5, 10)
	assert.Equal(t, []byte{10}, buf)

	// RFC 7541 C.1.2: 1337 encoded with a 5-bit prefix is 3 bytes.
	buf = EncodePrefixed(nil, 0, 5, 1337)
	assert.Equal(t, []byte{31, 154, 10}, buf)
}

func TestDecodePrefixedNeedsMoreData(t *testing.T) {
	buf := EncodePrefixed(nil, 0, 5, 1337)
	_, _, err := DecodePrefixed(buf[:1], 5)
	assert.ErrorIs(t, err, ErrNeedMoreData)
}
