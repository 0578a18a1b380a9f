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

package conn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtransport/quicd/frame"
	"github.com/qtransport/quicd/stream"
)

func streamFrameFixture(id uint64, data []byte) frame.Stream {
	return frame.Stream{StreamID: id, Data: data, LenPresent: true}
}

func TestOpenStreamQueuesUntilCreditRaised(t *testing.T) {
	c := New(false, nil, TransportParameters{})

	var got *stream.Stream
	c.OpenStream(true, func(s *stream.Stream) { got = s })
	assert.Nil(t, got, "no bidi credit yet, request must queue")
	require.Len(t, c.pendingOpens, 1)

	c.peerMaxStreamsBidi = 1
	c.drainPendingOpens()
	require.NotNil(t, got)
	assert.Equal(t, uint64(0x00), got.ID, "client-initiated bidi streams start at 0x00")
	assert.Empty(t, c.pendingOpens)
}

func TestHandleStreamFrameCreatesPeerInitiatedStream(t *testing.T) {
	c := New(false, nil, TransportParameters{}) // client

	// Stream ID 0x01 = server-initiated (bit 0 set), bidi (bit 1 clear):
	// legitimate for a client to receive.
	f := streamFrameFixture(0x01, []byte("hi"))
	err := c.handleStream(&f)
	require.NoError(t, err)
	require.Contains(t, c.streams, uint64(0x01))
}

func TestHandleStreamFrameRejectsSelfClaimedStreamID(t *testing.T) {
	c := New(false, nil, TransportParameters{}) // client

	// Stream ID 0x00 = client-initiated: the client must never receive a
	// STREAM frame for a stream it never opened.
	f := streamFrameFixture(0x00, []byte("hi"))
	err := c.handleStream(&f)
	assert.Error(t, err)
}

func TestCloseTransitionsToClosingAndArmsTimer(t *testing.T) {
	c := New(true, nil, TransportParameters{})
	now := time.Unix(1_700_000_000, 0)
	c.Close(0x00, "done", now)
	assert.Equal(t, StateClosing, c.State)

	kind, at, ok := c.timers.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, timerClosing, kind)
	assert.True(t, at.After(now))
}

func TestReceivedConnectionCloseEntersDraining(t *testing.T) {
	c := New(true, nil, TransportParameters{})
	now := time.Unix(1_700_000_000, 0)
	c.enterDraining(now)
	assert.Equal(t, StateDraining, c.State)
}
