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

// Package packet implements QUIC packet header parsing and serialization
// (L3): long- and short-header variants, version negotiation, retry
// integrity, and packet-number reconstruction, layered above qcrypto for
// header/payload protection.
package packet

import (
	"github.com/pkg/errors"

	"github.com/qtransport/quicd/qerr"
	"github.com/qtransport/quicd/varint"
)

func newError(format string, args ...any) error {
	return errors.Errorf("packet: "+format, args...)
}

// MaxCIDLen is the maximum connection-ID length QUIC v1 permits.
const MaxCIDLen = 20

// Version is the QUIC wire version. quicd speaks QUIC v1 only.
const Version1 uint32 = 0x00000001

// Type distinguishes the long-header packet variants and the one
// short-header variant (OneRTT).
type Type int

const (
	TypeInitial Type = iota
	TypeZeroRTT
	TypeHandshake
	TypeRetry
	TypeVersionNegotiation
	TypeOneRTT
)

func (t Type) String() string {
	switch t {
	case TypeInitial:
		return "Initial"
	case TypeZeroRTT:
		return "0-RTT"
	case TypeHandshake:
		return "Handshake"
	case TypeRetry:
		return "Retry"
	case TypeVersionNegotiation:
		return "VersionNegotiation"
	case TypeOneRTT:
		return "1-RTT"
	default:
		return "Unknown"
	}
}

// longTypeBits maps the 2-bit long-header type field (RFC 9000 §17.2) to
// Type, for QUIC v1.
var longTypeBits = map[byte]Type{
	0b00: TypeInitial,
	0b01: TypeZeroRTT,
	0b10: TypeHandshake,
	0b11: TypeRetry,
}

// LongHeader is the parsed form of every long-header packet variant.
// Fields not applicable to a given Type are left zero.
type LongHeader struct {
	Type    Type
	Version uint32
	DCID    []byte
	SCID    []byte

	Token []byte // Initial only

	ODCID          []byte // Retry only: original destination CID
	RetryIntegrity []byte // Retry only: 16-byte integrity tag

	SupportedVersions []uint32 // VersionNegotiation only

	Length uint64 // Initial/0-RTT/Handshake only: remaining PN+payload length

	PacketNumber    uint64
	PNLen           int
	pnOffset        int // offset of the truncated PN field within the datagram
	headerLen       int // total header length including PN, before payload
}

// PNOffset returns the byte offset of the truncated packet-number field
// within the datagram this header was parsed from.
func (h *LongHeader) PNOffset() int { return h.pnOffset }

// HeaderLen returns the total header length (including the truncated PN
// field) within the datagram.
func (h *LongHeader) HeaderLen() int { return h.headerLen }

// ShortHeader is the parsed form of a 1-RTT packet.
type ShortHeader struct {
	SpinBit  bool
	KeyPhase bool
	DCID     []byte

	PacketNumber uint64
	PNLen        int
	pnOffset     int
	headerLen    int
}

func (h *ShortHeader) PNOffset() int  { return h.pnOffset }
func (h *ShortHeader) HeaderLen() int { return h.headerLen }

// IsLongHeader reports whether the first byte of a datagram indicates a
// long-header packet (RFC 9000 §17.2: bit 0x80 set).
func IsLongHeader(b0 byte) bool { return b0&0x80 != 0 }

// ParseLongHeaderPrefix parses every unprotected field of a long header
// up to and including the Length varint, stopping just before the
// (still header-protected) truncated packet number. It does not touch
// header or payload protection. Returns qerr.Transport(ProtocolViolation)
// on structural violations (bad fixed bit, oversized CID) and
// qerr.Drop for a short/truncated buffer (the datagram may simply be
// garbage, not worth tearing down the connection over).
func ParseLongHeaderPrefix(b []byte) (*LongHeader, error) {
	if len(b) < 7 {
		return nil, qerr.Drop("long header: too short")
	}
	b0 := b[0]
	version := uint32(b[1])<<24 | uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4])
	off := 5

	if version == 0 {
		return parseVersionNegotiation(b, b0)
	}

	if b0&0x40 == 0 {
		return nil, qerr.Transport(qerr.ProtocolViolation, "long header: fixed bit not set")
	}

	typ, ok := longTypeBits[(b0>>4)&0x03]
	if !ok {
		return nil, qerr.Transport(qerr.ProtocolViolation, "long header: unknown type bits")
	}

	dcidLen := int(b[off])
	off++
	if dcidLen > MaxCIDLen || off+dcidLen > len(b) {
		return nil, qerr.Transport(qerr.ProtocolViolation, "long header: dcid too long")
	}
	dcid := append([]byte(nil), b[off:off+dcidLen]...)
	off += dcidLen

	if off >= len(b) {
		return nil, qerr.Drop("long header: truncated before scid length")
	}
	scidLen := int(b[off])
	off++
	if scidLen > MaxCIDLen || off+scidLen > len(b) {
		return nil, qerr.Transport(qerr.ProtocolViolation, "long header: scid too long")
	}
	scid := append([]byte(nil), b[off:off+scidLen]...)
	off += scidLen

	h := &LongHeader{Type: typ, Version: version, DCID: dcid, SCID: scid}

	switch typ {
	case TypeRetry:
		return parseRetry(b, off, h)
	case TypeInitial:
		tokenLen, n, err := varint.Decode(b[off:])
		if err != nil {
			return nil, qerr.Drop("long header: truncated token length")
		}
		off += n
		if uint64(off)+tokenLen > uint64(len(b)) {
			return nil, qerr.Transport(qerr.ProtocolViolation, "long header: token exceeds datagram")
		}
		h.Token = append([]byte(nil), b[off:off+int(tokenLen)]...)
		off += int(tokenLen)
	}

	length, n, err := varint.Decode(b[off:])
	if err != nil {
		return nil, qerr.Drop("long header: truncated length field")
	}
	off += n
	h.Length = length
	h.pnOffset = off
	h.headerLen = off // PN bytes appended to headerLen once pnLen is known

	if uint64(off) > uint64(len(b)) {
		return nil, qerr.Transport(qerr.ProtocolViolation, "long header: length exceeds datagram")
	}
	return h, nil
}

// ParseShortHeaderPrefix parses the unprotected prefix of a short-header
// packet. dcidLen is the length the local endpoint issued for this CID
// (short headers carry no length field — callers must already know it,
// per spec.md §4.4).
func ParseShortHeaderPrefix(b []byte, dcidLen int) (*ShortHeader, error) {
	if len(b) < 1+dcidLen {
		return nil, qerr.Drop("short header: too short")
	}
	b0 := b[0]
	if b0&0x80 != 0 {
		return nil, qerr.Transport(qerr.ProtocolViolation, "short header: long-header bit set")
	}
	if b0&0x40 == 0 {
		return nil, qerr.Transport(qerr.ProtocolViolation, "short header: fixed bit not set")
	}

	h := &ShortHeader{
		DCID:     append([]byte(nil), b[1:1+dcidLen]...),
		pnOffset: 1 + dcidLen,
	}
	h.headerLen = h.pnOffset
	return h, nil
}
