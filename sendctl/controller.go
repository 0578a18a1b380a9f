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

import (
	"time"

	"github.com/qtransport/quicd/frame"
	"github.com/qtransport/quicd/metrics"
)

// maxConsecutivePTOs is the threshold beyond which the controller
// signals a persistent-timeout condition upward to the connection
// (spec.md §4.7: "after a configurable threshold... signal persistent
// timeout").
const maxConsecutivePTOs = 8

// FrameSource supplies frames for one priority tier of packet assembly.
// It receives the remaining byte budget for the packet and returns the
// frames it wants included, consuming as much of the budget as it
// chooses; Controller does not call a source again once the budget is
// exhausted, walking an ordered list of named sources rather than
// hard-coding them.
type FrameSource func(remaining int) []frame.Frame

// Controller is the Send Controller (L6): three independent packet
// number spaces, the shared RTT estimator and congestion controller
// that RFC 9002 scopes to the whole connection, a pacer, and connection-
// level flow control.
type Controller struct {
	spaces [numSpaces]*Space
	rtt    *RTTEstimator
	cc     *NewReno
	pacer  *Pacer
	flow   *ConnFlowControl

	maxAckDelay time.Duration

	ptoCount int
}

// NewController constructs a Send Controller. peerMaxData/localMaxData
// seed connection-level flow control from the negotiated transport
// parameters; maxAckDelay is the peer's advertised max_ack_delay.
func NewController(now time.Time, peerMaxData, localMaxData uint64, maxAckDelay time.Duration) *Controller {
	c := &Controller{
		rtt:         NewRTTEstimator(),
		cc:          NewNewReno(),
		pacer:       NewPacer(now),
		flow:        NewConnFlowControl(peerMaxData, localMaxData),
		maxAckDelay: maxAckDelay,
	}
	for i := range c.spaces {
		c.spaces[i] = newSpace()
	}
	return c
}

func (c *Controller) space(sp PNSpace) *Space { return c.spaces[sp] }

// LargestAcked returns the largest packet number in space sp the peer
// has acknowledged so far (false if none yet).
func (c *Controller) LargestAcked(sp PNSpace) (uint64, bool) { return c.space(sp).LargestAcked() }

func (c *Controller) RTT() *RTTEstimator         { return c.rtt }
func (c *Controller) Congestion() *NewReno       { return c.cc }
func (c *Controller) Flow() *ConnFlowControl     { return c.flow }

// PTOCount returns the consecutive-PTO counter, for connection-lifecycle
// span attributes and metrics.
func (c *Controller) PTOCount() int { return c.ptoCount }
func (c *Controller) BytesInFlight() int {
	n := 0
	for _, s := range c.spaces {
		n += s.BytesInFlight()
	}
	return n
}

// SendCredit is spec.md §4.7's connection-level cap:
// min(cwnd - bytes_in_flight, peer_max_data - total_sent_offset).
func (c *Controller) SendCredit() uint64 {
	ccCredit := c.cc.Cwnd() - c.BytesInFlight()
	if ccCredit < 0 {
		ccCredit = 0
	}
	flowCredit := c.flow.SendCredit()
	if uint64(ccCredit) < flowCredit {
		return uint64(ccCredit)
	}
	return flowCredit
}

// CanSend reports whether the pacer currently permits sending a packet
// of the given size.
func (c *Controller) CanSend(now time.Time, size int) bool {
	return c.pacer.CanSend(now, c.cc.Cwnd(), c.rtt.Smoothed(), size)
}

// OnPacketSent records a just-assembled packet in its space's in-flight
// table and spends pacing tokens.
func (c *Controller) OnPacketSent(sp PNSpace, pn uint64, now time.Time, bytesSent int, ackEliciting bool, frames []frame.Frame) {
	c.space(sp).OnSent(pn, now, bytesSent, ackEliciting, frames)
	c.pacer.Spend(bytesSent)
	metrics.PacketsSent.Inc()
	metrics.BytesInFlight.Set(float64(c.BytesInFlight()))
}

// OnAckReceived processes an incoming ACK frame for space sp: updates
// the in-flight table, samples RTT, grows cwnd for newly-acked bytes,
// and resets the consecutive-PTO counter.
func (c *Controller) OnAckReceived(sp PNSpace, ack *frame.Ack, now time.Time) {
	res := c.space(sp).OnAck(ack)
	if res.rttSampleFrom != nil {
		rtt := now.Sub(res.rttSampleFrom.SentAt)
		ackDelay := time.Duration(ack.AckDelay) * time.Microsecond
		c.rtt.Sample(rtt, ackDelay, c.maxAckDelay)
		c.ptoCount = 0
	}
	for _, p := range res.newlyAcked {
		c.cc.OnAck(p.BytesSent, p.SentAt)
	}
	if len(res.newlyAcked) > 0 {
		metrics.PacketsAcked.Add(float64(len(res.newlyAcked)))
	}
	metrics.SmoothedRTT.Set(c.rtt.Smoothed().Seconds())
	metrics.CongestionWindow.Set(float64(c.cc.Cwnd()))
	metrics.BytesInFlight.Set(float64(c.BytesInFlight()))
}

// DetectLosses runs RFC 9002 §6.1 loss detection for space sp, applies
// the New Reno congestion event (and persistent-congestion collapse, if
// applicable) for whatever it finds, and returns the lost packets so
// the caller can re-queue their frames via stream.SendStream.OnLoss /
// retransmit CRYPTO ranges.
func (c *Controller) DetectLosses(sp PNSpace, now time.Time) []*InFlight {
	lost := c.space(sp).DetectLosses(now, c.rtt)
	if len(lost) == 0 {
		return nil
	}
	c.cc.OnCongestionEvent(now)
	if PersistentCongestion(lost, c.PTO()) {
		c.cc.OnPersistentCongestion()
	}
	metrics.PacketsLost.Add(float64(len(lost)))
	metrics.CongestionWindow.Set(float64(c.cc.Cwnd()))
	return lost
}

// PTO returns the current connection-wide probe timeout, backed off
// exponentially by the number of consecutive expirations without an ack
// (RFC 9002 §6.2.1).
func (c *Controller) PTO() time.Duration {
	base := c.rtt.PTO(c.maxAckDelay)
	for i := 0; i < c.ptoCount; i++ {
		base *= 2
	}
	return base
}

// OnPTOExpired bumps the consecutive-PTO counter and reports whether
// the persistent-timeout threshold has now been crossed, in which case
// the caller (conn) should give up on the connection.
func (c *Controller) OnPTOExpired() (persistentTimeout bool) {
	c.ptoCount++
	return c.ptoCount >= maxConsecutivePTOs
}

// PollSend assembles one packet's frame list from an ordered list of
// FrameSources, stopping once budget is exhausted, and reports whether
// any included frame is ack-eliciting.
func (c *Controller) PollSend(budget int, sources []FrameSource) ([]frame.Frame, bool) {
	var out []frame.Frame
	remaining := budget
	ackEliciting := false
	for _, src := range sources {
		if remaining <= 0 {
			break
		}
		fs := src(remaining)
		for _, f := range fs {
			sz := f.EvalSize()
			if sz > remaining {
				continue
			}
			out = append(out, f)
			remaining -= sz
			if f.FrameType() != frame.TypePadding && f.FrameType() != frame.TypeAck {
				ackEliciting = true
			}
		}
	}
	return out, ackEliciting
}
