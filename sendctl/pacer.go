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

// pacingGainNum/pacingGainDen approximate N≈1.25 from spec.md §4.7
// without floating point.
const (
	pacingGainNum = 5
	pacingGainDen = 4
)

// Pacer is a token-bucket limiting send rate to N*cwnd/smoothed_rtt,
// refilled lazily on each CanSend/Spend call from elapsed wall time.
type Pacer struct {
	tokens  float64
	lastRef time.Time
}

// NewPacer constructs a pacer with a full initial bucket so the very
// first packet is never held back waiting for a refill.
func NewPacer(now time.Time) *Pacer {
	return &Pacer{tokens: float64(MaxDatagramSize), lastRef: now}
}

func (p *Pacer) refill(now time.Time, cwnd int, smoothedRTT time.Duration) {
	if smoothedRTT <= 0 {
		return
	}
	elapsed := now.Sub(p.lastRef)
	p.lastRef = now
	if elapsed <= 0 {
		return
	}
	rate := float64(cwnd) * pacingGainNum / pacingGainDen / smoothedRTT.Seconds()
	p.tokens += rate * elapsed.Seconds()
	maxTokens := float64(cwnd)
	if p.tokens > maxTokens {
		p.tokens = maxTokens
	}
}

// CanSend reports whether enough tokens are available for a packet of
// size bytes, refilling the bucket first.
func (p *Pacer) CanSend(now time.Time, cwnd int, smoothedRTT time.Duration, size int) bool {
	p.refill(now, cwnd, smoothedRTT)
	return p.tokens >= float64(size)
}

// Spend deducts size tokens after a packet of that size is sent.
func (p *Pacer) Spend(size int) {
	p.tokens -= float64(size)
	if p.tokens < 0 {
		p.tokens = 0
	}
}
