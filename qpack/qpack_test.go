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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIndexedDynamicRoundTrip is spec.md §8 scenario 6: the encoder
// inserts ("x-bench", "v") via its encoder stream, then encodes a
// header block referencing dynamic index 0; the decoder, after
// applying the same encoder-stream instruction, decodes the block back
// to exactly {"x-bench": "v"}.
func TestIndexedDynamicRoundTrip(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	instr, absIdx, err := enc.InsertWithoutNameReference("x-bench", "v")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), absIdx)

	n, err := dec.ApplyEncoderInstruction(instr)
	require.NoError(t, err)
	assert.Equal(t, len(instr), n)

	block, referenced, err := enc.EncodeHeaderBlock([]Header{{Name: "x-bench", Value: "v"}})
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, referenced)

	// Prefix is 1 byte Required Insert Count + 1 byte Base, so the
	// field line itself is the 3rd byte and must be the literal
	// pattern 0x80 (Indexed Field Line, dynamic table, index 0) spec.md
	// §8 scenario 6 names explicitly.
	require.Len(t, block, 3)
	assert.Equal(t, byte(0x80), block[2])

	headers, err := dec.DecodeHeaderBlock(block)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, Header{Name: "x-bench", Value: "v"}, headers[0])

	enc.OnSectionAcknowledgement(referenced)
	assert.Equal(t, uint64(1), enc.Table().KnownReceivedCount())
}

func TestHeaderBlockBlockedUntilInstructionApplied(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	_, _, err := enc.InsertWithoutNameReference("x-bench", "v")
	require.NoError(t, err)

	block, _, err := enc.EncodeHeaderBlock([]Header{{Name: "x-bench", Value: "v"}})
	require.NoError(t, err)

	_, err = dec.DecodeHeaderBlock(block)
	assert.Equal(t, ErrBlockedOnInsertCount, err)
}

func TestStaticTableExactMatchUsesIndexedFieldLine(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	block, referenced, err := enc.EncodeHeaderBlock([]Header{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)
	assert.Empty(t, referenced)

	headers, err := dec.DecodeHeaderBlock(block)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, Header{Name: ":method", Value: "GET"}, headers[0])
}

func TestLiteralFieldLineWithLiteralNameRoundTrip(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	block, referenced, err := enc.EncodeHeaderBlock([]Header{{Name: "x-custom", Value: "unindexed-value"}})
	require.NoError(t, err)
	assert.Empty(t, referenced)

	headers, err := dec.DecodeHeaderBlock(block)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, Header{Name: "x-custom", Value: "unindexed-value"}, headers[0])
}

func TestEncoderInstructionRoundTrips(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want EncoderInstruction
	}{
		{"set-capacity", EncodeSetCapacity(4096), EncoderInstruction{Kind: InstrSetCapacity, Capacity: 4096}},
		{"insert-with-name-dynamic", EncodeInsertWithNameReference(false, 3, "v"), EncoderInstruction{Kind: InstrInsertWithName, StaticName: false, NameIndex: 3, Value: "v"}},
		{"insert-with-name-static", EncodeInsertWithNameReference(true, 17, "GET"), EncoderInstruction{Kind: InstrInsertWithName, StaticName: true, NameIndex: 17, Value: "GET"}},
		{"insert-without-name", EncodeInsertWithoutNameReference("x-bench", "v"), EncoderInstruction{Kind: InstrInsertWithoutName, Name: "x-bench", Value: "v"}},
		{"duplicate", EncodeDuplicate(5), EncoderInstruction{Kind: InstrDuplicate, AbsoluteIndex: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, n, err := DecodeEncoderInstruction(tc.in)
			require.NoError(t, err)
			assert.Equal(t, len(tc.in), n)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecoderInstructionRoundTrips(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want DecoderInstruction
	}{
		{"section-ack", EncodeSectionAcknowledgement(9), DecoderInstruction{Kind: InstrSectionAck, Value: 9}},
		{"stream-cancel", EncodeStreamCancellation(9), DecoderInstruction{Kind: InstrStreamCancel, Value: 9}},
		{"insert-count-increment", EncodeInsertCountIncrement(3), DecoderInstruction{Kind: InstrInsertCountIncrement, Value: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, n, err := DecodeDecoderInstruction(tc.in)
			require.NoError(t, err)
			assert.Equal(t, len(tc.in), n)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRequiredInsertCountRoundTrip(t *testing.T) {
	maxEntries := uint64(10)
	for ric := uint64(0); ric < 30; ric++ {
		encoded := encodeRequiredInsertCount(ric, maxEntries)
		got, err := decodeRequiredInsertCount(encoded, maxEntries, ric)
		require.NoError(t, err)
		assert.Equal(t, ric, got, "ric=%d", ric)
	}
}

func TestDynamicTableEvictsOldestUnreferencedEntry(t *testing.T) {
	// Capacity for exactly 2 small entries (each "a"/"1" = 1+1+32 = 34 bytes).
	table := NewDynamicTable(68)
	i0, err := table.Insert("a", "1")
	require.NoError(t, err)
	i1, err := table.Insert("b", "2")
	require.NoError(t, err)

	// A third insert must evict entry 0 (oldest, unreferenced).
	i2, err := table.Insert("c", "3")
	require.NoError(t, err)

	_, _, ok := table.Get(i0)
	assert.False(t, ok, "entry 0 should have been evicted")
	_, _, ok = table.Get(i1)
	assert.True(t, ok)
	_, _, ok = table.Get(i2)
	assert.True(t, ok)
}

func TestDynamicTableEvictionBlockedByReference(t *testing.T) {
	table := NewDynamicTable(68)
	i0, err := table.Insert("a", "1")
	require.NoError(t, err)
	require.True(t, table.Ref(i0))
	_, err = table.Insert("b", "2")
	require.NoError(t, err)

	_, err = table.Insert("c", "3")
	assert.Error(t, err, "inserting a third entry must fail: entry 0 is still referenced")
}
