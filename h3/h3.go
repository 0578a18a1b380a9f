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

// Package h3 implements the HTTP/3 frame layer (L8): stateful frame
// boundary reassembly across buffer boundaries and the unidirectional
// control/QPACK stream type dispatch (RFC 9114 §7, §9; spec.md §4.5's
// "separate tag space, used above QUIC streams").
package h3

import "github.com/qtransport/quicd/varint"

// StreamType is the preamble varint a unidirectional HTTP/3 stream
// opens with (RFC 9114 §6.2; spec.md §6).
type StreamType uint64

const (
	StreamControl     StreamType = 0x00
	StreamPush        StreamType = 0x01
	StreamQPACKEncoder StreamType = 0x02
	StreamQPACKDecoder StreamType = 0x03
)

// FrameType is an HTTP/3 frame type (RFC 9114 §7.2).
type FrameType uint64

const (
	FrameData        FrameType = 0x00
	FrameHeaders     FrameType = 0x01
	FrameCancelPush  FrameType = 0x03
	FrameSettings    FrameType = 0x04
	FramePushPromise FrameType = 0x05
	FrameGoaway      FrameType = 0x07
	FrameMaxPushID   FrameType = 0x0D
)

// DecodeStatus is the three-way result RFC 9114's incremental decode
// needs when frames arrive split across QUIC STREAM frames (spec.md
// §4.5: "{Success, NeedMoreData, Error}").
type DecodeStatus int

const (
	StatusSuccess DecodeStatus = iota
	StatusNeedMoreData
	StatusError
)

// Frame is one fully-reassembled HTTP/3 frame: its type, and the raw
// payload bytes (DATA/HEADERS carry opaque bytes — DATA is
// application/QPACK-encoded payload the caller interprets further up;
// SETTINGS payloads are parsed by DecodeSettings, and no parser exists
// for GOAWAY or MAX_PUSH_ID payloads).
type Frame struct {
	Type    FrameType
	Payload []byte
}

// ParseStreamPreamble reads the leading type varint off a freshly
// opened unidirectional stream.
func ParseStreamPreamble(b []byte) (StreamType, int, error) {
	v, n, err := varint.Decode(b)
	if err != nil {
		return 0, 0, err
	}
	return StreamType(v), n, nil
}
