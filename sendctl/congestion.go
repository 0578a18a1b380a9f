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

import "time"

// kMinWindow is the floor New Reno's cwnd collapses to under persistent
// congestion (RFC 9002 §7.6), expressed in bytes (2 * max_datagram_size).
const kMinWindow = 2 * 1200

// MaxDatagramSize is the assumed UDP payload size used for cwnd maths
// absent path MTU discovery.
const MaxDatagramSize = 1200

// NewReno is the New Reno congestion controller baseline spec.md §4.7
// names explicitly (slow start, congestion avoidance, and a collapse to
// kMinWindow on persistent congestion).
type NewReno struct {
	cwnd     int
	ssthresh int

	recoveryStart time.Time
	inRecovery    bool
}

// NewNewReno constructs a controller starting in slow start with the
// RFC 9002 §7.2 initial window: 10*MaxDatagramSize (12000 bytes), which
// is below that section's 14720-byte cap, so no cap is applied.
func NewNewReno() *NewReno {
	return &NewReno{cwnd: 10 * MaxDatagramSize, ssthresh: 1 << 62}
}

func (c *NewReno) Cwnd() int     { return c.cwnd }
func (c *NewReno) Ssthresh() int { return c.ssthresh }

func (c *NewReno) inSlowStart() bool { return c.cwnd < c.ssthresh }

// OnAck grows cwnd for bytesAcked bytes delivered at sentTime (used to
// exit recovery: an ack for a packet sent after recoveryStart ends it).
func (c *NewReno) OnAck(bytesAcked int, sentTime time.Time) {
	if c.inRecovery && sentTime.After(c.recoveryStart) {
		c.inRecovery = false
	}
	if c.inRecovery {
		return
	}
	if c.inSlowStart() {
		c.cwnd += bytesAcked
		return
	}
	// Congestion avoidance: cwnd += mss * bytes_acked / cwnd.
	c.cwnd += MaxDatagramSize * bytesAcked / c.cwnd
}

// OnCongestionEvent halves cwnd (floored at kMinWindow) and enters
// recovery, ignoring further loss events for packets already accounted
// for in this recovery period.
func (c *NewReno) OnCongestionEvent(now time.Time) {
	if c.inRecovery {
		return
	}
	c.inRecovery = true
	c.recoveryStart = now
	c.ssthresh = c.cwnd / 2
	if c.ssthresh < kMinWindow {
		c.ssthresh = kMinWindow
	}
	c.cwnd = c.ssthresh
}

// OnPersistentCongestion collapses cwnd to the minimum window and
// resets to slow start (RFC 9002 §7.6).
func (c *NewReno) OnPersistentCongestion() {
	c.cwnd = kMinWindow
	c.ssthresh = 1 << 62
	c.inRecovery = false
}
