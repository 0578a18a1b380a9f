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

package sendctl

// ConnFlowControl tracks the connection-wide send limit imposed by the
// peer's MAX_DATA and the connection's own receive limit advertised to
// the peer via MAX_DATA (spec.md §4.7).
type ConnFlowControl struct {
	peerMaxData     uint64
	totalSentOffset uint64

	recvMaxData  uint64 // limit we've advertised to the peer
	totalRecvOffset uint64
	peerBlocked  bool
}

// NewConnFlowControl constructs connection-level flow control state
// seeded from the negotiated transport parameters.
func NewConnFlowControl(peerMaxData, localMaxData uint64) *ConnFlowControl {
	return &ConnFlowControl{peerMaxData: peerMaxData, recvMaxData: localMaxData}
}

// SendCredit is how many more bytes this endpoint may send in total.
func (c *ConnFlowControl) SendCredit() uint64 {
	if c.totalSentOffset >= c.peerMaxData {
		return 0
	}
	return c.peerMaxData - c.totalSentOffset
}

// OnSent records bytes placed into STREAM/CRYPTO frames counted against
// connection-level flow control (CRYPTO frames are exempt per RFC 9000
// §4; callers only report STREAM bytes here).
func (c *ConnFlowControl) OnSent(n uint64) { c.totalSentOffset += n }

// OnMaxData raises the peer-advertised send limit (MAX_DATA never
// decreases it).
func (c *ConnFlowControl) OnMaxData(max uint64) {
	if max > c.peerMaxData {
		c.peerMaxData = max
	}
}

// OnDataBlocked records that the peer signaled it is blocked at limit;
// ShouldRaiseRecvLimit reports whether we should schedule a new local
// MAX_DATA to unblock them.
func (c *ConnFlowControl) OnDataBlocked() { c.peerBlocked = true }

// OnRecv records bytes delivered to the application, for deciding
// whether to raise the receive-side MAX_DATA we advertise.
func (c *ConnFlowControl) OnRecv(n uint64) { c.totalRecvOffset += n }

// ShouldRaiseRecvLimit implements spec.md §4.7's "raise the advertised
// limit past some fraction of the current window" policy: once the
// bytes consumed reach half of the current advertised limit (or the peer
// explicitly signaled DATA_BLOCKED), the new limit is the bytes consumed
// plus the current limit.
func (c *ConnFlowControl) ShouldRaiseRecvLimit() (newLimit uint64, ok bool) {
	consumed := c.totalRecvOffset
	window := c.recvMaxData
	if !c.peerBlocked && consumed*2 < window {
		return 0, false
	}
	newLimit = c.totalRecvOffset + window
	c.recvMaxData = newLimit
	c.peerBlocked = false
	return newLimit, true
}

// StreamFlowControl is the per-stream analogue of ConnFlowControl.
type StreamFlowControl struct {
	peerMaxStreamData uint64
	sentOffset        uint64

	recvMaxStreamData uint64
	recvOffset        uint64
	peerBlocked       bool
}

func NewStreamFlowControl(peerMax, localMax uint64) *StreamFlowControl {
	return &StreamFlowControl{peerMaxStreamData: peerMax, recvMaxStreamData: localMax}
}

func (s *StreamFlowControl) SendCredit() uint64 {
	if s.sentOffset >= s.peerMaxStreamData {
		return 0
	}
	return s.peerMaxStreamData - s.sentOffset
}

func (s *StreamFlowControl) OnSent(n uint64) { s.sentOffset += n }

func (s *StreamFlowControl) OnMaxStreamData(max uint64) {
	if max > s.peerMaxStreamData {
		s.peerMaxStreamData = max
	}
}

func (s *StreamFlowControl) OnStreamDataBlocked() { s.peerBlocked = true }

func (s *StreamFlowControl) OnRecv(n uint64) { s.recvOffset += n }

func (s *StreamFlowControl) ShouldRaiseRecvLimit() (newLimit uint64, ok bool) {
	if !s.peerBlocked && s.recvOffset*2 < s.recvMaxStreamData {
		return 0, false
	}
	newLimit = s.recvOffset + s.recvMaxStreamData
	s.recvMaxStreamData = newLimit
	s.peerBlocked = false
	return newLimit, true
}
