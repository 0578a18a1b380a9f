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
	"time"

	"github.com/qtransport/quicd/frame"
	"github.com/qtransport/quicd/packet"
	"github.com/qtransport/quicd/sendctl"
)

// maxPacketPayload is the conservative single-packet byte ceiling
// BuildPacket assembles frames under. It stays well clear of a typical
// path MTU (1252-1500B) without needing PMTU discovery. It is only a
// ceiling: BuildPacket adds no PADDING, so an Initial datagram is not
// brought up to RFC 9000 §14.1's 1200-byte minimum.
const maxPacketPayload = 1200

// maxTrackedAcks bounds how many distinct received packet numbers one
// ackTracker retains; once exceeded, the oldest (smallest) are dropped.
// A peer that hasn't re-acked that far back in 64 packets has almost
// certainly already retransmitted past them.
const maxTrackedAcks = 64

// ackTracker buffers received packet numbers awaiting acknowledgment in
// one packet-number space, kept in the descending order frame.Ack.Ranges
// requires (RFC 9000 §13.2.1: the first range covers LargestAcked, and
// subsequent ranges run toward smaller packet numbers).
type ackTracker struct {
	pending      []uint64 // descending, deduplicated
	ackEliciting bool
}

// onReceived records pn as seen, marking this space's ACK as due if the
// packet it came in on was itself ack-eliciting (an ACK-only packet
// never needs acknowledging, per RFC 9000 §13.2.4).
func (a *ackTracker) onReceived(pn uint64, ackEliciting bool) {
	i := 0
	for i < len(a.pending) && a.pending[i] > pn {
		i++
	}
	if i < len(a.pending) && a.pending[i] == pn {
		if ackEliciting {
			a.ackEliciting = true
		}
		return
	}
	a.pending = append(a.pending, 0)
	copy(a.pending[i+1:], a.pending[i:])
	a.pending[i] = pn
	if len(a.pending) > maxTrackedAcks {
		a.pending = a.pending[:maxTrackedAcks]
	}
	if ackEliciting {
		a.ackEliciting = true
	}
}

// hasPending reports whether an ACK frame is owed in this space.
func (a *ackTracker) hasPending() bool {
	return a.ackEliciting && len(a.pending) > 0
}

// buildAck renders the buffered packet numbers into one ACK frame and
// clears the ack-eliciting flag; the packet numbers themselves stay
// buffered so a second outgoing packet in the same flight still
// acknowledges them; the peer dedupes.
func (a *ackTracker) buildAck() *frame.Ack {
	if len(a.pending) == 0 {
		return nil
	}
	ack := &frame.Ack{LargestAcked: a.pending[0]}
	cur := frame.AckRange{Smallest: a.pending[0], Largest: a.pending[0]}
	for _, pn := range a.pending[1:] {
		if pn+1 == cur.Smallest {
			cur.Smallest = pn
			continue
		}
		ack.Ranges = append(ack.Ranges, cur)
		cur = frame.AckRange{Smallest: pn, Largest: pn}
	}
	ack.Ranges = append(ack.Ranges, cur)
	a.ackEliciting = false
	return ack
}

// ackFrameSource returns the FrameSource that supplies space's pending
// ACK, first among a packet's sources so it is never crowded out by
// stream data competing for the remaining budget.
func (c *Conn) ackFrameSource(space sendctl.PNSpace) sendctl.FrameSource {
	return func(remaining int) []frame.Frame {
		if !c.acks[space].hasPending() {
			return nil
		}
		ack := c.acks[space].buildAck()
		if ack == nil {
			return nil
		}
		return []frame.Frame{ack}
	}
}

// streamFrameSource drains the active stream set built up by MarkActive
// since the last Swap, converting pending application bytes into STREAM
// frames. It is scoped by the Send Controller's connection-level credit
// (congestion window and peer MAX_DATA combined) itself, rather than
// relying on PollSend's plain per-packet byte budget, so ACK/control
// frames from other sources in the same packet are never blocked by
// flow control (RFC 9000 §4 exempts them) while stream bytes still
// respect it.
func (c *Conn) streamFrameSource() sendctl.FrameSource {
	return func(remaining int) []frame.Frame {
		budget := remaining
		if credit := int(c.ctl.SendCredit()); credit < budget {
			budget = credit
		}
		if budget <= 0 {
			return nil
		}
		var out []frame.Frame
		for _, id := range c.active.Active() {
			if budget <= 0 {
				break
			}
			s, ok := c.streams[id]
			if !ok {
				continue
			}
			built := s.BuildSendFrames(budget)
			if len(built) == 0 {
				continue
			}
			sent := 0
			for _, f := range built {
				out = append(out, f)
				sent += f.EvalSize()
			}
			budget -= sent
			c.ctl.Flow().OnSent(uint64(sent))
		}
		return out
	}
}

// BuildPacket assembles, protects, and returns one packet at level,
// wiring the Connection orchestrator's send-side contract: scheduler
// (stream.ActiveSet) and pending acks feed the Send Controller's
// PollSend, whose frames are encoded (frame.Encode) and then header- and
// AEAD-protected (packet.Encode{Long,Short}HeaderPacket). It returns a
// nil slice, nil error when there is genuinely nothing to send at this
// level (no keys yet, or no frame source produced anything) — not an
// error condition.
//
// Each call covers a single encryption level; RFC 9001 §4.1.4's
// coalescing of multiple levels into one datagram is left to
// PollDatagram, which calls BuildPacket once per level and concatenates
// the results (every long-header packet it produces carries an explicit
// Length, so a 1-RTT packet — which has none — is always placed last).
func (c *Conn) BuildPacket(level packet.Level, now time.Time) ([]byte, error) {
	crypto := c.crypto[level]
	if !crypto.CanEncrypt() {
		return nil, nil
	}
	if len(c.peerCID) == 0 {
		// Nothing addressed to yet: no long- or short-header packet can
		// carry a destination connection ID.
		return nil, nil
	}
	space := levelToSpace(level)

	sources := []sendctl.FrameSource{c.ackFrameSource(space)}
	if level == packet.LevelApplication {
		sources = append(sources, c.streamFrameSource())
	}

	frames, ackEliciting := c.ctl.PollSend(maxPacketPayload, sources)
	if len(frames) == 0 {
		return nil, nil
	}

	payload, err := frame.Encode(nil, frames)
	if err != nil {
		return nil, err
	}

	pn := c.nextPN[space]
	largestAcked, _ := c.ctl.LargestAcked(space)

	var out []byte
	switch level {
	case packet.LevelApplication:
		out, err = packet.EncodeShortHeaderPacket(c.peerCID, false, pn, largestAcked, payload, crypto)
	default:
		typ := packet.TypeInitial
		if level == packet.LevelHandshake {
			typ = packet.TypeHandshake
		}
		out, err = packet.EncodeLongHeaderPacket(typ, packet.Version1, c.peerCID, c.localCID, nil, pn, largestAcked, payload, crypto)
	}
	if err != nil {
		return nil, err
	}

	c.nextPN[space]++
	c.ctl.OnPacketSent(space, pn, now, len(out), ackEliciting, frames)
	if ackEliciting {
		c.resetIdleTimer(now)
	}
	return out, nil
}

// PollDatagram assembles one outgoing UDP datagram by coalescing
// whatever each installed encryption level currently has to send,
// Initial first and Application (1-RTT) last. It swaps the stream
// scheduler's active set exactly once per call, so every level sees the
// same scheduling snapshot.
func (c *Conn) PollDatagram(now time.Time) ([]byte, error) {
	c.active.Swap()

	var out []byte
	for _, level := range [...]packet.Level{packet.LevelInitial, packet.LevelHandshake, packet.LevelApplication} {
		pkt, err := c.BuildPacket(level, now)
		if err != nil {
			return nil, err
		}
		out = append(out, pkt...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
