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

	"github.com/qtransport/quicd/buffer"
	"github.com/qtransport/quicd/qerr"
)

type testAllocator struct{ chunkSize int }

func (a testAllocator) Get() []byte  { return make([]byte, a.chunkSize) }
func (a testAllocator) Put(_ []byte) {}

func newTestPool(chunkSize int) *buffer.Pool {
	return buffer.NewPool(testAllocator{chunkSize: chunkSize}, chunkSize)
}

func settingsFrameBytes(t *testing.T, s Settings) []byte {
	t.Helper()
	f, err := EncodeFrame(s)
	require.NoError(t, err)
	b, err := f.Encode()
	require.NoError(t, err)
	return b
}

func TestDecoderReassemblesFrameSplitAcrossFeeds(t *testing.T) {
	pool := newTestPool(4) // deliberately tiny, to force the frame across several Multi blocks
	d := NewDecoder(pool)

	want := Settings{QPACKMaxTableCapacity: 4096, QPACKBlockedStreams: 16}
	wire := settingsFrameBytes(t, want)

	// Feed one byte at a time: every intermediate Next() must report
	// NeedMoreData, never Error.
	for i := 0; i < len(wire)-1; i++ {
		d.Feed(wire[i : i+1])
		_, status, err := d.Next()
		require.NoError(t, err)
		assert.Equal(t, StatusNeedMoreData, status)
	}
	d.Feed(wire[len(wire)-1:])

	f, status, err := d.Next()
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)
	assert.Equal(t, FrameSettings, f.Type)

	got, err := DecodeSettings(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, want.QPACKMaxTableCapacity, got.QPACKMaxTableCapacity)
	assert.Equal(t, want.QPACKBlockedStreams, got.QPACKBlockedStreams)
}

func TestDecoderDecodesTwoBackToBackFrames(t *testing.T) {
	pool := newTestPool(64)
	d := NewDecoder(pool)

	a := Frame{Type: FrameGoaway, Payload: []byte{0x04}}
	b := Frame{Type: FrameMaxPushID, Payload: []byte{0x08}}
	ab, err := a.Encode()
	require.NoError(t, err)
	bb, err := b.Encode()
	require.NoError(t, err)
	d.Feed(append(ab, bb...))

	f1, status, err := d.Next()
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)
	assert.Equal(t, FrameGoaway, f1.Type)

	f2, status, err := d.Next()
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)
	assert.Equal(t, FrameMaxPushID, f2.Type)

	_, status, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, StatusNeedMoreData, status)
}

func TestControlStreamRequiresSettingsFirst(t *testing.T) {
	pool := newTestPool(64)
	c := NewControlStream(pool)

	cancelPush := Frame{Type: FrameCancelPush, Payload: []byte{0x01}}
	b, err := cancelPush.Encode()
	require.NoError(t, err)
	c.Feed(b)

	_, closeErr := c.Poll()
	require.NotNil(t, closeErr)
	assert.Equal(t, qerr.KindCloseApplication, closeErr.Kind)
	assert.Equal(t, uint64(qerr.H3MissingSettings), closeErr.AppCode)
}

func TestControlStreamRejectsSecondSettings(t *testing.T) {
	pool := newTestPool(64)
	c := NewControlStream(pool)

	first := settingsFrameBytes(t, Settings{QPACKMaxTableCapacity: 100})
	second := settingsFrameBytes(t, Settings{QPACKMaxTableCapacity: 200})
	c.Feed(first)

	frames, closeErr := c.Poll()
	require.Nil(t, closeErr)
	require.Len(t, frames, 1)

	c.Feed(second)
	_, closeErr = c.Poll()
	require.NotNil(t, closeErr)
	assert.Equal(t, uint64(qerr.H3FrameUnexpected), closeErr.AppCode)
}

func TestControlStreamRejectsHeadersFrame(t *testing.T) {
	pool := newTestPool(64)
	c := NewControlStream(pool)

	c.Feed(settingsFrameBytes(t, Settings{}))
	frames, closeErr := c.Poll()
	require.Nil(t, closeErr)
	require.Len(t, frames, 1)

	headers := Frame{Type: FrameHeaders, Payload: []byte("x")}
	b, err := headers.Encode()
	require.NoError(t, err)
	c.Feed(b)

	_, closeErr = c.Poll()
	require.NotNil(t, closeErr)
	assert.Equal(t, uint64(qerr.H3FrameUnexpected), closeErr.AppCode)
}

func TestSettingsEncodeDecodeRoundTrip(t *testing.T) {
	want := Settings{
		QPACKMaxTableCapacity: 4096,
		MaxFieldSectionSize:   65536,
		QPACKBlockedStreams:   16,
		Extra:                 map[uint64]uint64{0x40: 7},
	}
	payload, err := want.Encode()
	require.NoError(t, err)

	got, err := DecodeSettings(payload)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseStreamPreambleRoundTrip(t *testing.T) {
	b, err := EncodeStreamPreamble(StreamQPACKEncoder)
	require.NoError(t, err)

	typ, n, err := ParseStreamPreamble(b)
	require.NoError(t, err)
	assert.Equal(t, StreamQPACKEncoder, typ)
	assert.Equal(t, len(b), n)
}
