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

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecvStreamReassemblyScenario is spec.md §8 scenario 3, literally:
// receive offset=10 len=5 "World", then offset=0 len=10 "HelloHello";
// the application ends up with "HelloHelloWorld" and the callback
// (here, a non-nil return from Write) fires exactly once, on the second
// frame.
func TestRecvStreamReassemblyScenario(t *testing.T) {
	r := NewRecvStream()

	out1, err := r.Write(10, []byte("World"), false)
	require.NoError(t, err)
	assert.Nil(t, out1, "out-of-order fragment must not be delivered yet")

	out2, err := r.Write(0, []byte("HelloHello"), false)
	require.NoError(t, err)
	assert.Equal(t, []byte("HelloHelloWorld"), out2)
	assert.Equal(t, uint64(15), r.ReadOffset())
}

func TestRecvStreamDuplicateIsIdempotent(t *testing.T) {
	r := NewRecvStream()
	out1, err := r.Write(0, []byte("Hello"), false)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), out1)

	out2, err := r.Write(0, []byte("Hello"), false)
	require.NoError(t, err)
	assert.Nil(t, out2)
}

func TestRecvStreamMismatchedOverlapIsError(t *testing.T) {
	r := NewRecvStream()
	_, err := r.Write(10, []byte("World"), false)
	require.NoError(t, err)
	_, err = r.Write(8, []byte("XXZZZ"), false)
	assert.Error(t, err)
}

func TestRecvStreamFinRatchetsFinalSize(t *testing.T) {
	r := NewRecvStream()
	_, err := r.Write(0, []byte("Hello"), true)
	require.NoError(t, err)
	size, ok := r.FinalSize()
	require.True(t, ok)
	assert.Equal(t, uint64(5), size)
	assert.Equal(t, RecvDataRecvd, r.State())

	_, err = r.Write(5, []byte("oops"), false)
	assert.Error(t, err, "bytes beyond final size must be rejected")
}

func TestSendStreamRespectsFlowCredit(t *testing.T) {
	s := NewSendStream()
	n := s.Write([]byte("0123456789"), 4)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(4), s.SendNextOffset())
}

func TestSendStreamOnAckTransitionsToDataRecvd(t *testing.T) {
	s := NewSendStream()
	s.Write([]byte("hello"), 100)
	s.Close()
	assert.Equal(t, SendDataSent, s.State())

	s.OnAck(0, 5, true)
	assert.Equal(t, SendDataRecvd, s.State())
}

func TestSendStreamOnLossRequeuesAtStableOffsets(t *testing.T) {
	s := NewSendStream()
	s.Write([]byte("hello"), 100)
	s.MarkInFlight(0)
	s.OnLoss(0, 5)

	pending := s.PendingChunks()
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(0), pending[0].offset)
	assert.False(t, pending[0].inFlight)
}

func TestBidiStreamClosesOnlyWhenBothHalvesTerminal(t *testing.T) {
	var closedID uint64 = ^uint64(0)
	s := NewBidiStream(7)
	s.CloseCallback = func(id uint64) { closedID = id }

	s.Send.Write([]byte("hi"), 100)
	s.Send.Close()
	s.OnAck(0, 2, true)
	assert.Equal(t, ^uint64(0), closedID, "must not close until recv side is also terminal")

	_, err := s.OnReceive(0, []byte("yo"), true)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), closedID)
}

func TestActiveSetDoubleBufferSwap(t *testing.T) {
	a := NewActiveSet()
	a.MarkActive(1)
	a.MarkActive(2)
	a.MarkActive(1) // dedup

	assert.Empty(t, a.Active(), "nothing active before the first Swap")
	a.Swap()
	assert.ElementsMatch(t, []uint64{1, 2}, a.Active())

	a.MarkActive(3)
	assert.ElementsMatch(t, []uint64{1, 2}, a.Active(), "staging must not affect the active set until the next Swap")
	a.Swap()
	assert.ElementsMatch(t, []uint64{3}, a.Active())
}
