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

// Package metrics instruments the transport engine with Prometheus
// counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric this package registers, including the
// panic counter internal/rescue increments. It is exported, though no
// other package in this module references it.
const Namespace = "quicd"

const namespace = Namespace

// PanicsRecovered counts recovered panics, incremented by
// internal/rescue.HandleCrash.
var PanicsRecovered = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "panics_recovered_total",
		Help:      "Panics recovered by internal/rescue.HandleCrash",
	},
)

var (
	PacketsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Packets sent across all packet number spaces",
		},
	)

	PacketsLost = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_lost_total",
			Help:      "Packets declared lost by RFC 9002 loss detection",
		},
	)

	PacketsAcked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_acked_total",
			Help:      "Packets acknowledged by the peer",
		},
	)

	CongestionWindow = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "congestion_window_bytes",
			Help:      "Current New Reno congestion window, in bytes",
		},
	)

	SmoothedRTT = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "smoothed_rtt_seconds",
			Help:      "RFC 9002 smoothed round-trip time estimate",
		},
	)

	BytesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bytes_in_flight",
			Help:      "Bytes sent and not yet acknowledged or declared lost",
		},
	)

	QPACKBlockedStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "qpack_blocked_streams",
			Help:      "HTTP/3 request streams currently blocked on QPACK Required Insert Count",
		},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections not yet in the Closed state",
		},
	)
)
