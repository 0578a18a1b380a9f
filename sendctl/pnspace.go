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
	"sort"
	"time"

	"github.com/qtransport/quicd/frame"
)

// PNSpace identifies one of the three independent packet number spaces
// (RFC 9000 §12.3).
type PNSpace int

const (
	SpaceInitial PNSpace = iota
	SpaceHandshake
	SpaceApplication
	numSpaces
)

// InFlight records one sent packet (ack-eliciting or not, per
// AckEliciting) not yet acked or declared lost.
type InFlight struct {
	PN           uint64
	SentAt       time.Time
	BytesSent    int
	AckEliciting bool
	Frames       []frame.Frame
}

// Space tracks everything scoped to a single packet number space: the
// in-flight table, largest acked, and PTO/loss bookkeeping.
type Space struct {
	inFlight     []*InFlight
	largestAcked uint64
	haveLargest  bool

	ptoCount int
}

func newSpace() *Space { return &Space{} }

// OnSent records a just-transmitted packet in the in-flight table.
func (s *Space) OnSent(pn uint64, now time.Time, bytesSent int, ackEliciting bool, frames []frame.Frame) {
	s.inFlight = append(s.inFlight, &InFlight{
		PN: pn, SentAt: now, BytesSent: bytesSent, AckEliciting: ackEliciting, Frames: frames,
	})
}

// ackResult summarizes the effect of processing one incoming ACK frame.
type ackResult struct {
	newlyAcked    []*InFlight
	ackedBytes    int
	rttSampleFrom *InFlight // the largest newly-acked ack-eliciting packet, for RTT sampling
}

// OnAck marks packets named by ack's ranges as acknowledged and removes
// them from the in-flight table, returning what was newly acked.
func (s *Space) OnAck(ack *frame.Ack) ackResult {
	if !s.haveLargest || ack.LargestAcked > s.largestAcked {
		s.largestAcked = ack.LargestAcked
		s.haveLargest = true
	}

	acked := map[uint64]bool{}
	for _, r := range ack.Ranges {
		for pn := r.Smallest; pn <= r.Largest; pn++ {
			acked[pn] = true
		}
	}

	var res ackResult
	remaining := s.inFlight[:0]
	for _, p := range s.inFlight {
		if acked[p.PN] {
			res.newlyAcked = append(res.newlyAcked, p)
			res.ackedBytes += p.BytesSent
			if res.rttSampleFrom == nil || p.PN > res.rttSampleFrom.PN {
				if p.AckEliciting {
					res.rttSampleFrom = p
				}
			}
			continue
		}
		remaining = append(remaining, p)
	}
	s.inFlight = remaining
	return res
}

// DetectLosses applies RFC 9002 §6.1's two criteria (packet_threshold=3,
// time_threshold) to every still-in-flight packet below the largest
// acked packet number, returning and removing those declared lost.
func (s *Space) DetectLosses(now time.Time, rtt *RTTEstimator) []*InFlight {
	if !s.haveLargest {
		return nil
	}
	latest := rtt.Latest()
	smoothed := rtt.Smoothed()
	base := latest
	if smoothed > base {
		base = smoothed
	}
	timeThreshold := base * 9 / 8
	if timeThreshold < kGranularity {
		timeThreshold = kGranularity
	}

	var lost []*InFlight
	remaining := s.inFlight[:0]
	for _, p := range s.inFlight {
		if p.PN >= s.largestAcked {
			remaining = append(remaining, p)
			continue
		}
		pnGap := s.largestAcked - p.PN
		lostByCount := pnGap >= 3
		lostByTime := !p.SentAt.IsZero() && now.Sub(p.SentAt) > timeThreshold
		if lostByCount || lostByTime {
			lost = append(lost, p)
			continue
		}
		remaining = append(remaining, p)
	}
	s.inFlight = remaining
	sort.Slice(lost, func(i, j int) bool { return lost[i].PN < lost[j].PN })
	return lost
}

// LargestAcked returns the largest packet number in this space the peer
// has acknowledged so far, for RFC 9000 §17.1 packet-number-length
// selection on the next packet sent in this space.
func (s *Space) LargestAcked() (uint64, bool) { return s.largestAcked, s.haveLargest }

// BytesInFlight sums the send size of every still-unacked packet.
func (s *Space) BytesInFlight() int {
	n := 0
	for _, p := range s.inFlight {
		n += p.BytesSent
	}
	return n
}

// PersistentCongestion reports whether the send times of the lost
// packets (sorted by packet number) span at least ptoWindow (RFC 9002
// §7.6). It sees only the lost packets, so it does not check whether any
// packet sent inside that span was acknowledged.
func PersistentCongestion(lost []*InFlight, ptoWindow time.Duration) bool {
	if len(lost) < 2 {
		return false
	}
	span := lost[len(lost)-1].SentAt.Sub(lost[0].SentAt)
	return span >= ptoWindow
}
