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

// Package frame implements the QUIC frame codec (L4): ~20 frame variants
// expressed as a tagged union (one concrete Go struct per variant behind
// a small Frame interface), decoded and encoded via a single tag switch
// rather than a virtual-dispatch interface hierarchy per variant.
package frame

import (
	"github.com/pkg/errors"

	"github.com/qtransport/quicd/qerr"
)

func newError(format string, args ...any) error {
	return errors.Errorf("frame: "+format, args...)
}

// Type is the QUIC frame type field (RFC 9000 §19). STREAM, MAX_STREAMS,
// STREAMS_BLOCKED, CONNECTION_CLOSE, and DATAGRAM each occupy a small
// range or pair of adjacent codepoints rather than one fixed value; the
// constants below name the low end of each such range.
type Type uint64

const (
	TypePadding              Type = 0x00
	TypePing                 Type = 0x01
	TypeAck                  Type = 0x02
	TypeAckECN               Type = 0x03
	TypeResetStream          Type = 0x04
	TypeStopSending          Type = 0x05
	TypeCrypto               Type = 0x06
	TypeNewToken             Type = 0x07
	TypeStream               Type = 0x08 // 0x08-0x0f, low 3 bits = off/len/fin
	TypeMaxData              Type = 0x10
	TypeMaxStreamData        Type = 0x11
	TypeMaxStreamsBidi       Type = 0x12
	TypeMaxStreamsUni        Type = 0x13
	TypeDataBlocked          Type = 0x14
	TypeStreamDataBlocked    Type = 0x15
	TypeStreamsBlockedBidi   Type = 0x16
	TypeStreamsBlockedUni    Type = 0x17
	TypeNewConnectionID      Type = 0x18
	TypeRetireConnectionID   Type = 0x19
	TypePathChallenge        Type = 0x1a
	TypePathResponse         Type = 0x1b
	TypeConnectionCloseQUIC  Type = 0x1c
	TypeConnectionCloseApp   Type = 0x1d
	TypeHandshakeDone        Type = 0x1e
	TypeDatagram             Type = 0x30 // 0x30-0x31, low bit = len present
)

// Frame is the tagged-union contract every frame variant satisfies.
// EvalSize lets the Send Controller (L6) measure a frame's wire size
// without allocating, for MTU-aware packet assembly.
type Frame interface {
	FrameType() Type
	Encode(dst []byte) ([]byte, error)
	EvalSize() int
}

// ErrPartialFrame is returned by Decode when the payload ends in the
// middle of a frame body — a protocol violation per spec.md §4.5
// ("a partial final frame is a protocol error").
var ErrPartialFrame = qerr.Transport(qerr.FrameEncodingError, "frame: truncated frame body")

// streamInitiatorIsServer reports whether streamID's low bit (RFC 9000
// §2.1) marks it as server-initiated.
func streamInitiatorIsServer(streamID uint64) bool { return streamID&0x1 != 0 }

// streamIDOwnedByLocal reports whether streamID's initiator bit claims
// the local endpoint opened it — used to reject a peer claiming
// ownership of a stream it did not open (spec.md §4.5: "reject if
// stream-id bits disagree with local role").
func streamIDOwnedByLocal(streamID uint64, localIsServer bool) bool {
	return streamInitiatorIsServer(streamID) == localIsServer
}
