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

import "github.com/qtransport/quicd/frame"

// Stream composes one SendStream and one RecvStream into a single
// bidirectional (or, with one half left nil, unidirectional) stream.
// It closes — invoking CloseCallback — only once both halves that exist
// reach a terminal state; a reset on either side is independent of the
// other (spec.md §4.6).
type Stream struct {
	ID   uint64
	Send *SendStream
	Recv *RecvStream

	CloseCallback func(id uint64)

	closed bool
}

// NewBidiStream constructs a stream with both halves present.
func NewBidiStream(id uint64) *Stream {
	return &Stream{ID: id, Send: NewSendStream(), Recv: NewRecvStream()}
}

// NewSendOnlyStream constructs a unidirectional stream this endpoint
// opened (it writes but never reads).
func NewSendOnlyStream(id uint64) *Stream {
	return &Stream{ID: id, Send: NewSendStream()}
}

// NewRecvOnlyStream constructs a unidirectional stream the peer opened
// (this endpoint only reads).
func NewRecvOnlyStream(id uint64) *Stream {
	return &Stream{ID: id, Recv: NewRecvStream()}
}

func sendTerminal(s *SendStream) bool {
	if s == nil {
		return true
	}
	return s.State() == SendDataRecvd || s.State() == SendResetRecvd
}

func recvTerminal(r *RecvStream) bool {
	if r == nil {
		return true
	}
	return r.State() == RecvDataRecvd || r.State() == RecvResetRecvd
}

// checkClosed fires CloseCallback exactly once, the moment both present
// halves have reached a terminal state.
func (s *Stream) checkClosed() {
	if s.closed {
		return
	}
	if sendTerminal(s.Send) && recvTerminal(s.Recv) {
		s.closed = true
		if s.CloseCallback != nil {
			s.CloseCallback(s.ID)
		}
	}
}

// OnAck forwards a send-side acknowledgment and re-checks closure.
func (s *Stream) OnAck(offset, length uint64, finAcked bool) {
	if s.Send == nil {
		return
	}
	s.Send.OnAck(offset, length, finAcked)
	s.checkClosed()
}

// OnReceive forwards a recv-side STREAM frame payload and re-checks
// closure; it returns whatever newly-contiguous bytes RecvStream.Write
// produced.
func (s *Stream) OnReceive(offset uint64, data []byte, fin bool) ([]byte, error) {
	if s.Recv == nil {
		return nil, nil
	}
	out, err := s.Recv.Write(offset, data, fin)
	s.checkClosed()
	return out, err
}

// BuildSendFrames returns the next STREAM frames to place in an outgoing
// packet, or nil for a recv-only stream.
func (s *Stream) BuildSendFrames(maxBytes int) []*frame.Stream {
	if s.Send == nil {
		return nil
	}
	return s.Send.BuildFrames(s.ID, maxBytes)
}

// ResetSend abandons the send half and re-checks closure.
func (s *Stream) ResetSend() {
	if s.Send == nil {
		return
	}
	s.Send.Reset()
	s.checkClosed()
}

// ResetRecv marks the recv half reset (RESET_STREAM received) and
// re-checks closure.
func (s *Stream) ResetRecv(finalSize uint64) {
	if s.Recv == nil {
		return
	}
	s.Recv.Reset(finalSize)
	s.checkClosed()
}
