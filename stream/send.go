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

// SendState is the send half of a stream's state machine (RFC 9000
// §3.1).
type SendState int

const (
	SendReady SendState = iota
	SendSend
	SendDataSent
	SendDataRecvd
	SendResetSent
	SendResetRecvd
)

// pendingOutChunk is one unacknowledged (or not-yet-sent) run of
// application bytes at a stable offset. Offsets never get renumbered
// across retransmission (spec.md §4.6: "offsets are stable").
type pendingOutChunk struct {
	offset  uint64
	data    []byte
	acked   bool
	inFlight bool
}

// SendStream tracks application bytes written to a stream, which of
// them are acknowledged, and which need retransmission after loss.
type SendStream struct {
	state SendState

	sendNextOffset uint64
	ackedThrough   uint64 // contiguous bytes acked from offset 0

	chunks []pendingOutChunk

	finAtOffset uint64
	hasFin      bool
	finAcked    bool
}

// NewSendStream constructs an empty send-side stream state machine.
func NewSendStream() *SendStream {
	return &SendStream{state: SendReady}
}

func (s *SendStream) State() SendState { return s.state }

// Write appends application bytes at the current send offset, returning
// the number of bytes accepted. creditRemaining is the caller's current
// per-stream flow-control credit (spec.md §4.6: "respects per-stream
// send flow credit"); Write never accepts more than that.
func (s *SendStream) Write(data []byte, creditRemaining uint64) int {
	if s.state == SendResetSent || s.state == SendResetRecvd || s.hasFin {
		return 0
	}
	n := len(data)
	if uint64(n) > creditRemaining {
		n = int(creditRemaining)
	}
	if n <= 0 {
		return 0
	}
	chunk := pendingOutChunk{offset: s.sendNextOffset, data: append([]byte(nil), data[:n]...)}
	s.chunks = append(s.chunks, chunk)
	s.sendNextOffset += uint64(n)
	if s.state == SendReady {
		s.state = SendSend
	}
	return n
}

// Close flags FIN at the current send offset (no further Write calls
// are accepted once called).
func (s *SendStream) Close() {
	if s.hasFin {
		return
	}
	s.hasFin = true
	s.finAtOffset = s.sendNextOffset
	s.state = SendDataSent
}

// Reset abandons the stream, transitioning to ResetSent. The caller uses
// SendNextOffset() as RESET_STREAM's final_size.
func (s *SendStream) Reset() {
	s.state = SendResetSent
	s.chunks = nil
}

// SendNextOffset returns the offset one past the last byte written so
// far (the stream's final_size once FIN or RESET_STREAM is sent).
func (s *SendStream) SendNextOffset() uint64 { return s.sendNextOffset }

// PendingChunks returns the chunks still needing to be sent or
// retransmitted (not yet acked), for the Send Controller's packet
// assembly pass.
func (s *SendStream) PendingChunks() []pendingOutChunk {
	var out []pendingOutChunk
	for _, c := range s.chunks {
		if !c.acked {
			out = append(out, c)
		}
	}
	return out
}

// MarkInFlight records that a chunk (identified by its stable offset)
// has just been placed into an outgoing packet.
func (s *SendStream) MarkInFlight(offset uint64) {
	for i := range s.chunks {
		if s.chunks[i].offset == offset {
			s.chunks[i].inFlight = true
			return
		}
	}
}

// BuildFrames converts pending (never-sent or lost) chunks into STREAM
// frames for streamID, consuming at most maxBytes of encoded frame size
// and marking each included chunk in-flight so a later call doesn't
// resend it before loss or ack resolves it. Chunks already in flight are
// skipped; OnLoss clears inFlight to make them eligible again.
func (s *SendStream) BuildFrames(streamID uint64, maxBytes int) []*frame.Stream {
	var out []*frame.Stream
	for _, c := range s.PendingChunks() {
		if c.inFlight {
			continue
		}
		f := &frame.Stream{
			StreamID:   streamID,
			Offset:     c.offset,
			Data:       c.data,
			OffPresent: c.offset != 0,
			LenPresent: true,
			Fin:        s.hasFin && c.offset+uint64(len(c.data)) == s.finAtOffset,
		}
		if f.EvalSize() > maxBytes {
			break
		}
		maxBytes -= f.EvalSize()
		out = append(out, f)
		s.MarkInFlight(c.offset)
	}
	return out
}

// OnAck marks bytes in [offset, offset+length) acknowledged, and fin if
// the FIN bit was included in the acknowledged packet. Once every byte
// through FIN is acked, the stream transitions DataSent → DataRecvd.
func (s *SendStream) OnAck(offset, length uint64, finAcked bool) {
	end := offset + length
	for i := range s.chunks {
		c := &s.chunks[i]
		if c.acked {
			continue
		}
		if c.offset >= offset && c.offset+uint64(len(c.data)) <= end {
			c.acked = true
		}
	}
	if finAcked && s.hasFin {
		s.finAcked = true
	}
	s.recomputeAckedThrough()

	if s.hasFin && s.finAcked && s.ackedThrough >= s.finAtOffset && s.state == SendDataSent {
		s.state = SendDataRecvd
	}
}

func (s *SendStream) recomputeAckedThrough() {
	changed := true
	for changed {
		changed = false
		for _, c := range s.chunks {
			if c.acked && c.offset == s.ackedThrough {
				s.ackedThrough += uint64(len(c.data))
				changed = true
			}
		}
	}
}

// OnLoss re-queues bytes in [offset, offset+length) for retransmission;
// it is a no-op for any portion already acknowledged.
func (s *SendStream) OnLoss(offset, length uint64) {
	end := offset + length
	for i := range s.chunks {
		c := &s.chunks[i]
		if c.acked {
			continue
		}
		if c.offset >= offset && c.offset+uint64(len(c.data)) <= end {
			c.inFlight = false
		}
	}
}
