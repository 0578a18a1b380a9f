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

package h3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtransport/quicd/qpack"
)

func TestHeaderDecoderQueuesAndRedrivesBlockedStream(t *testing.T) {
	enc := qpack.NewEncoder(4096)
	qdec := qpack.NewDecoder(4096)
	hd := NewHeaderDecoder(qdec)

	instr, _, err := enc.InsertWithoutNameReference("x-bench", "v")
	require.NoError(t, err)

	block, _, err := enc.EncodeHeaderBlock([]qpack.Header{{Name: "x-bench", Value: "v"}})
	require.NoError(t, err)

	headers, ok, err := hd.DecodeHeaders(4, block)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, headers)
	assert.Equal(t, 1, hd.Blocked())

	_, unblocked, err := hd.ApplyEncoderInstruction(instr)
	require.NoError(t, err)
	require.Len(t, unblocked, 1)
	assert.Equal(t, uint64(4), unblocked[0].StreamID)
	assert.Equal(t, []qpack.Header{{Name: "x-bench", Value: "v"}}, unblocked[0].Headers)
	assert.Equal(t, 0, hd.Blocked())
}

func TestHeaderDecoderDecodesImmediatelyWhenNotBlocked(t *testing.T) {
	enc := qpack.NewEncoder(4096)
	qdec := qpack.NewDecoder(4096)
	hd := NewHeaderDecoder(qdec)

	block, _, err := enc.EncodeHeaderBlock([]qpack.Header{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)

	headers, ok, err := hd.DecodeHeaders(0, block)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []qpack.Header{{Name: ":method", Value: "GET"}}, headers)
}
