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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtransport/quicd/frame"
)

// TestACKDrivenLossDetection is spec.md §8 scenario 4: send packets 1..5,
// ack packet 5 only; packets 1-2 (packet-number distance >= 3 from the
// largest acked) are declared lost, 3-4 are not yet.
func TestACKDrivenLossDetection(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	ctl := NewController(base, 1<<30, 1<<30, 25*time.Millisecond)

	for pn := uint64(1); pn <= 5; pn++ {
		ctl.OnPacketSent(SpaceApplication, pn, base, 100, true, nil)
	}

	ack := &frame.Ack{LargestAcked: 5, Ranges: []frame.AckRange{{Smallest: 5, Largest: 5}}}
	ctl.OnAckReceived(SpaceApplication, ack, base.Add(10*time.Millisecond))

	lost := ctl.DetectLosses(SpaceApplication, base.Add(10*time.Millisecond))
	require.Len(t, lost, 2)
	assert.Equal(t, uint64(1), lost[0].PN)
	assert.Equal(t, uint64(2), lost[1].PN)

	remaining := ctl.space(SpaceApplication).inFlight
	var remainingPNs []uint64
	for _, p := range remaining {
		remainingPNs = append(remainingPNs, p.PN)
	}
	assert.ElementsMatch(t, []uint64{3, 4}, remainingPNs)
}

func TestCongestionEventHalvesCwnd(t *testing.T) {
	cc := NewNewReno()
	initial := cc.Cwnd()
	now := time.Unix(1_700_000_000, 0)
	cc.OnCongestionEvent(now)
	assert.Equal(t, initial/2, cc.Cwnd())
	assert.Equal(t, cc.Cwnd(), cc.Ssthresh())
}

func TestCongestionEventIsIgnoredWhileAlreadyInRecovery(t *testing.T) {
	cc := NewNewReno()
	now := time.Unix(1_700_000_000, 0)
	cc.OnCongestionEvent(now)
	afterFirst := cc.Cwnd()
	cc.OnCongestionEvent(now.Add(time.Millisecond))
	assert.Equal(t, afterFirst, cc.Cwnd(), "a second event within the same recovery period must not halve cwnd again")
}

func TestPersistentCongestionCollapsesToMinWindow(t *testing.T) {
	cc := NewNewReno()
	cc.OnPersistentCongestion()
	assert.Equal(t, kMinWindow, cc.Cwnd())
}

func TestSlowStartGrowsCwndByBytesAcked(t *testing.T) {
	cc := NewNewReno()
	before := cc.Cwnd()
	cc.OnAck(500, time.Unix(1_700_000_000, 0))
	assert.Equal(t, before+500, cc.Cwnd())
}

func TestRTTEstimatorFirstSampleSeedsAllFields(t *testing.T) {
	r := NewRTTEstimator()
	r.Sample(100*time.Millisecond, 0, 25*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, r.Smoothed())
	assert.Equal(t, 100*time.Millisecond, r.Min())
	assert.Equal(t, 50*time.Millisecond, r.Var())
}

func TestFlowControlBlocksAtPeerLimit(t *testing.T) {
	fc := NewConnFlowControl(1000, 1000)
	assert.Equal(t, uint64(1000), fc.SendCredit())
	fc.OnSent(1000)
	assert.Equal(t, uint64(0), fc.SendCredit())
	fc.OnMaxData(2000)
	assert.Equal(t, uint64(1000), fc.SendCredit())
}

func TestFlowControlRaisesRecvLimitPastHalfWindow(t *testing.T) {
	fc := NewConnFlowControl(0, 1000)
	fc.OnRecv(600)
	newLimit, ok := fc.ShouldRaiseRecvLimit()
	require.True(t, ok)
	assert.Equal(t, uint64(1600), newLimit)
}

func TestPollSendIncludesFramesThatFitBudget(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	ctl := NewController(base, 1<<30, 1<<30, 25*time.Millisecond)

	big := &frame.Stream{StreamID: 4, Data: make([]byte, 900), OffPresent: false, LenPresent: true}
	small := frame.Ping{}

	sources := []FrameSource{
		func(remaining int) []frame.Frame { return []frame.Frame{big} },
		func(remaining int) []frame.Frame { return []frame.Frame{small} },
	}
	frames, ackEliciting := ctl.PollSend(950, sources)
	require.Len(t, frames, 2)
	assert.True(t, ackEliciting)
}

func TestPacerBlocksSecondPacketUntilRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := NewPacer(now)
	assert.True(t, p.CanSend(now, 12000, 100*time.Millisecond, 1200))
	p.Spend(1200)
	assert.False(t, p.CanSend(now, 12000, 100*time.Millisecond, 1200))
	assert.True(t, p.CanSend(now.Add(100*time.Millisecond), 12000, 100*time.Millisecond, 1200))
}
