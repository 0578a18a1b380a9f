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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame, localIsServer bool) Frame {
	t.Helper()
	buf, err := f.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, f.EvalSize(), len(buf))

	frames, err := Decode(buf, localIsServer)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	return frames[0]
}

func TestStreamFrameRoundTrip(t *testing.T) {
	f := &Stream{StreamID: 4, Offset: 10, Data: []byte("hello"), OffPresent: true, LenPresent: true, Fin: true}
	got := roundTrip(t, f, true) // client-initiated bidi stream 4, server is local
	assert.Equal(t, f, got)
}

func TestStreamFrameRejectsWrongInitiator(t *testing.T) {
	// stream ID 1 has the server-initiated bit set (0x01); a server
	// decoding it from its peer should reject it as self-claimed.
	f := &Stream{StreamID: 1, Data: []byte("x")}
	buf, err := f.Encode(nil)
	require.NoError(t, err)
	_, err = Decode(buf, true)
	assert.Error(t, err)
}

func TestStreamFrameImplicitLengthRunsToEndOfPacket(t *testing.T) {
	f := &Stream{StreamID: 4, Data: []byte("tail bytes")}
	buf, err := f.Encode(nil)
	require.NoError(t, err)
	frames, err := Decode(buf, true)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, f.Data, frames[0].(*Stream).Data)
}

func TestAckFrameRoundTripMultipleRanges(t *testing.T) {
	f := &Ack{
		LargestAcked: 100,
		AckDelay:     42,
		Ranges: []AckRange{
			{Smallest: 95, Largest: 100},
			{Smallest: 80, Largest: 90},
			{Smallest: 10, Largest: 20},
		},
	}
	got := roundTrip(t, f, true)
	assert.Equal(t, f, got)
}

func TestAckECNFrameRoundTrip(t *testing.T) {
	f := &Ack{
		LargestAcked: 10,
		AckDelay:     1,
		Ranges:       []AckRange{{Smallest: 0, Largest: 10}},
		ECN:          &ECNCounts{ECT0: 3, ECT1: 1, ECNCE: 0},
	}
	got := roundTrip(t, f, true)
	assert.Equal(t, f, got)
}

func TestAckFrameRejectsUnderflowingFirstRange(t *testing.T) {
	// largest=5 but first-range length encodes to 10, which would put
	// smallest below zero.
	raw := []byte{byte(TypeAck), 5, 0, 0, 10}
	_, err := Decode(raw, true)
	assert.Error(t, err)
}

func TestCryptoFrameRoundTrip(t *testing.T) {
	f := &Crypto{Offset: 0, Data: []byte("client hello bytes")}
	got := roundTrip(t, f, true)
	assert.Equal(t, f, got)
}

func TestConnectionCloseTransportRoundTrip(t *testing.T) {
	f := &ConnectionClose{ErrorCode: 0x0a, FrameType_: 0x08, Reason: "protocol violation"}
	got := roundTrip(t, f, true)
	assert.Equal(t, f, got)
}

func TestConnectionCloseApplicationRoundTrip(t *testing.T) {
	f := &ConnectionClose{IsApplication: true, ErrorCode: 0x0100, Reason: "bye"}
	got := roundTrip(t, f, true)
	assert.Equal(t, f, got)
}

func TestResetStreamRoundTrip(t *testing.T) {
	f := &ResetStream{StreamID: 4, AppError: 7, FinalSize: 1000}
	got := roundTrip(t, f, true)
	assert.Equal(t, f, got)
}

func TestNewConnectionIDRoundTrip(t *testing.T) {
	f := &NewConnectionID{SequenceNumber: 3, RetirePriorTo: 1, ConnectionID: []byte{1, 2, 3, 4}}
	for i := range f.ResetToken {
		f.ResetToken[i] = byte(i)
	}
	got := roundTrip(t, f, true)
	assert.Equal(t, f, got)
}

func TestDatagramFrameRoundTrip(t *testing.T) {
	f := &Datagram{Data: []byte("unreliable payload"), LenPresent: true}
	got := roundTrip(t, f, true)
	assert.Equal(t, f, got)
}

func TestDecodeMultipleFramesInOnePayload(t *testing.T) {
	var buf []byte
	buf, _ = Ping{}.Encode(buf)
	buf, _ = (&MaxData{Maximum: 9000}).Encode(buf)
	buf, _ = HandshakeDone{}.Encode(buf)

	frames, err := Decode(buf, true)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, TypePing, frames[0].FrameType())
	assert.Equal(t, TypeMaxData, frames[1].FrameType())
	assert.Equal(t, TypeHandshakeDone, frames[2].FrameType())
}

func TestDecodePartialFinalFrameIsError(t *testing.T) {
	buf := []byte{byte(TypeMaxData)} // varint body missing entirely
	_, err := Decode(buf, true)
	assert.Error(t, err)
}

func TestDecodeUnknownTypeIsError(t *testing.T) {
	_, err := Decode([]byte{0x3f}, true)
	assert.Error(t, err)
}
