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

// Package sendctl implements the QUIC Send Controller (L6): per-packet-
// number-space ACK tracking and loss detection, the cross-space New Reno
// congestion controller, a token-bucket pacer, and send-side flow
// control, wired together by Controller's packet-assembly pass
// (RFC 9002, RFC 9000 §4 and §13).
package sendctl

import "time"

// kGranularity is RFC 9002's timer granularity: the assumed system timer
// resolution, used as a floor on PTO and loss-detection time thresholds.
const kGranularity = time.Millisecond

// RTTEstimator tracks latest/min/smoothed RTT and RTT variance the way
// RFC 9002 §5 defines them.
type RTTEstimator struct {
	latestRTT   time.Duration
	minRTT      time.Duration
	smoothedRTT time.Duration
	rttvar      time.Duration
	haveSample  bool
}

// NewRTTEstimator constructs an estimator with no samples yet.
func NewRTTEstimator() *RTTEstimator { return &RTTEstimator{} }

// Sample folds in one new RTT measurement. After the first sample it
// subtracts the peer-reported ackDelay, capped to maxAckDelay, when that
// keeps the sample above min_rtt (RFC 9002 §5.3).
func (r *RTTEstimator) Sample(rtt, ackDelay, maxAckDelay time.Duration) {
	r.latestRTT = rtt
	if !r.haveSample {
		r.minRTT = rtt
		r.smoothedRTT = rtt
		r.rttvar = rtt / 2
		r.haveSample = true
		return
	}
	if rtt < r.minRTT {
		r.minRTT = rtt
	}
	adjusted := rtt
	if ackDelay > maxAckDelay {
		ackDelay = maxAckDelay
	}
	if adjusted > r.minRTT && adjusted-ackDelay > r.minRTT {
		adjusted -= ackDelay
	}

	rttvarSample := adjusted - r.smoothedRTT
	if rttvarSample < 0 {
		rttvarSample = -rttvarSample
	}
	r.rttvar = (3*r.rttvar + rttvarSample) / 4 // beta = 1/4
	r.smoothedRTT = (7*r.smoothedRTT + adjusted) / 8 // alpha = 1/8
}

// PTO returns the current probe-timeout duration for one packet number
// space: smoothed_rtt + max(4*rttvar, kGranularity) + max_ack_delay.
func (r *RTTEstimator) PTO(maxAckDelay time.Duration) time.Duration {
	if !r.haveSample {
		// RFC 9002 §6.2.1: before any sample, use a conservative default.
		return 999 * time.Millisecond
	}
	rttvar4 := 4 * r.rttvar
	if rttvar4 < kGranularity {
		rttvar4 = kGranularity
	}
	return r.smoothedRTT + rttvar4 + maxAckDelay
}

func (r *RTTEstimator) Latest() time.Duration   { return r.latestRTT }
func (r *RTTEstimator) Min() time.Duration      { return r.minRTT }
func (r *RTTEstimator) Smoothed() time.Duration { return r.smoothedRTT }
func (r *RTTEstimator) Var() time.Duration      { return r.rttvar }
