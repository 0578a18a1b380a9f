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

package packet

import (
	"github.com/qtransport/quicd/qcrypto"
	"github.com/qtransport/quicd/qerr"
	"github.com/qtransport/quicd/varint"
)

// Level identifies which of the three packet-number spaces (RFC 9000
// §12.3) and which Cryptographer a packet belongs to.
type Level int

const (
	LevelInitial Level = iota
	LevelHandshake
	LevelApplication
)

func (l Level) String() string {
	switch l {
	case LevelInitial:
		return "Initial"
	case LevelHandshake:
		return "Handshake"
	default:
		return "Application"
	}
}

func levelFor(t Type) Level {
	switch t {
	case TypeInitial, TypeZeroRTT:
		return LevelInitial
	case TypeHandshake:
		return LevelHandshake
	default:
		return LevelApplication
	}
}

// CryptoLookup resolves the Cryptographer for a given encryption level.
// Connection implements this by holding one qcrypto.Cryptographer per
// level (nil once a level's keys have been discarded).
type CryptoLookup interface {
	Cryptographer(level Level) *qcrypto.Cryptographer
}

// LargestAcked reports the largest packet number known to be
// acknowledged in a given packet-number space, feeding packet-number
// reconstruction (RFC 9000 Appendix A.3).
type LargestAcked interface {
	Largest(level Level) uint64
}

// DecodedPacket is one fully header-protection-removed and
// AEAD-decrypted packet, ready for frame parsing.
type DecodedPacket struct {
	Level        Level
	Type         Type
	PacketNumber uint64
	DCID         []byte
	SCID         []byte // long headers only
	Payload      []byte // decrypted frame bytes
}

// PacketError pairs a per-packet qerr.Error with the byte range of the
// datagram it applies to, so a caller logging datagram-level decode
// failures can report which coalesced packet misbehaved without
// aborting the rest of the datagram (spec.md §4.4: "A failure at any
// stage drops just that packet, not the datagram").
type PacketError struct {
	Offset int
	Err    *qerr.Error
}

// minSampleWindow is the number of bytes after pnOffset that must exist
// for header-protection sampling: 4 bytes reserved for the (at most
// 4-byte) truncated PN plus the 16-byte sample (RFC 9001 §5.4.2).
const minSampleWindow = 4 + 16

// DecodeDatagram runs the ExpectHeader → DecryptHeaderProtection →
// DecryptPayload → EmitFrames state machine over every packet coalesced
// into one UDP datagram. b is mutated in place (header-protection
// removal happens in place) and must not be reused by the caller after
// this call. dcidLen is the length of connection ID the local endpoint
// issued, needed to parse a trailing short-header packet.
func (d *Decoder) DecodeDatagram(b []byte, dcidLen int) ([]*DecodedPacket, []PacketError) {
	var packets []*DecodedPacket
	var errs []PacketError

	off := 0
	for off < len(b) {
		rest := b[off:]
		if IsLongHeader(rest[0]) {
			consumed, pkt, err := d.decodeOneLong(rest)
			if err != nil {
				errs = append(errs, PacketError{Offset: off, Err: asQErr(err)})
				if consumed <= 0 {
					// Unparseable prefix: nothing more can be recovered
					// from this datagram.
					return packets, errs
				}
				off += consumed
				continue
			}
			if pkt != nil {
				packets = append(packets, pkt)
			}
			off += consumed
			continue
		}

		// Short header is always last in a datagram (spec.md §4.4).
		pkt, err := d.decodeOneShort(rest, dcidLen)
		if err != nil {
			errs = append(errs, PacketError{Offset: off, Err: asQErr(err)})
		} else if pkt != nil {
			packets = append(packets, pkt)
		}
		return packets, errs
	}
	return packets, errs
}

// Decoder holds the per-connection dependencies DecodeDatagram needs:
// which Cryptographer to use per level, and the largest acknowledged PN
// per space for packet-number reconstruction.
type Decoder struct {
	Crypto  CryptoLookup
	Acked   LargestAcked
}

func asQErr(err error) *qerr.Error {
	if qe, ok := err.(*qerr.Error); ok {
		return qe
	}
	return qerr.Drop("%v", err)
}

func (d *Decoder) decodeOneLong(b []byte) (int, *DecodedPacket, error) {
	h, err := ParseLongHeaderPrefix(b)
	if err != nil {
		return 0, nil, err
	}
	if h.Type == TypeVersionNegotiation {
		// Not a protected packet; nothing further to decode, and VN
		// packets are never coalesced with anything else.
		return len(b), nil, nil
	}
	if h.Type == TypeRetry {
		return len(b), nil, nil
	}

	packetEnd := h.pnOffset + int(h.Length)
	if packetEnd > len(b) {
		return 0, nil, qerr.Transport(qerr.ProtocolViolation, "long header: length field exceeds datagram")
	}
	if len(b)-h.pnOffset < minSampleWindow {
		return packetEnd, nil, qerr.Drop("long header: insufficient bytes for header-protection sample")
	}

	level := levelFor(h.Type)
	crypto := d.Crypto.Cryptographer(level)
	if crypto == nil {
		return packetEnd, nil, qerr.Drop("%s: no keys installed for level", level)
	}

	sample := b[h.pnOffset+4 : h.pnOffset+4+16]
	mask, err := crypto.ReadMask(sample)
	if err != nil {
		return packetEnd, nil, qerr.Drop("%s: %v", level, err)
	}

	b[0] = qcrypto.UnmaskFirstByte(b[0], mask, false)
	pnLen := qcrypto.RecoverPNLen(b[0])
	qcrypto.XorPN(b[h.pnOffset:h.pnOffset+pnLen], mask)

	truncated := decodeTruncatedPN(b[h.pnOffset : h.pnOffset+pnLen])
	full := DecodePN(truncated, pnLen, d.Acked.Largest(level))

	aad := b[0 : h.pnOffset+pnLen]
	ciphertext := b[h.pnOffset+pnLen : packetEnd]

	plain, result, err := crypto.DecryptPacket(full, aad, ciphertext, nil)
	if err != nil {
		return packetEnd, nil, qerr.Transport(qerr.InternalError, "%s: %v", level, err)
	}
	if result != qcrypto.ResultOK {
		return packetEnd, nil, qerr.Drop("%s: AEAD authentication failed", level)
	}

	return packetEnd, &DecodedPacket{
		Level:        level,
		Type:         h.Type,
		PacketNumber: full,
		DCID:         h.DCID,
		SCID:         h.SCID,
		Payload:      plain,
	}, nil
}

func (d *Decoder) decodeOneShort(b []byte, dcidLen int) (*DecodedPacket, error) {
	h, err := ParseShortHeaderPrefix(b, dcidLen)
	if err != nil {
		return nil, err
	}
	if len(b)-h.pnOffset < minSampleWindow {
		return nil, qerr.Drop("short header: insufficient bytes for header-protection sample")
	}

	crypto := d.Crypto.Cryptographer(LevelApplication)
	if crypto == nil {
		return nil, qerr.Drop("application: no keys installed")
	}

	sample := b[h.pnOffset+4 : h.pnOffset+4+16]
	mask, err := crypto.ReadMask(sample)
	if err != nil {
		return nil, qerr.Drop("application: %v", err)
	}

	b[0] = qcrypto.UnmaskFirstByte(b[0], mask, true)
	pnLen := qcrypto.RecoverPNLen(b[0])
	qcrypto.XorPN(b[h.pnOffset:h.pnOffset+pnLen], mask)

	truncated := decodeTruncatedPN(b[h.pnOffset : h.pnOffset+pnLen])
	full := DecodePN(truncated, pnLen, d.Acked.Largest(LevelApplication))

	aad := b[0 : h.pnOffset+pnLen]
	ciphertext := b[h.pnOffset+pnLen:]

	plain, result, err := crypto.DecryptPacket(full, aad, ciphertext, nil)
	if err != nil {
		return nil, qerr.Transport(qerr.InternalError, "application: %v", err)
	}
	if result != qcrypto.ResultOK {
		return nil, qerr.Drop("application: AEAD authentication failed")
	}

	return &DecodedPacket{
		Level:        LevelApplication,
		Type:         TypeOneRTT,
		PacketNumber: full,
		DCID:         h.DCID,
		Payload:      plain,
	}, nil
}

func decodeTruncatedPN(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// EncodeLongHeaderPacket serializes and protects a full long-header
// packet (Initial/0-RTT/Handshake) from plaintext frame payload. token is
// only meaningful for Initial; pass nil otherwise.
func EncodeLongHeaderPacket(typ Type, version uint32, dcid, scid, token []byte, pn uint64, largestAcked uint64, payload []byte, crypto *qcrypto.Cryptographer) ([]byte, error) {
	typeBits := byte(0)
	switch typ {
	case TypeInitial:
		typeBits = 0b00
	case TypeZeroRTT:
		typeBits = 0b01
	case TypeHandshake:
		typeBits = 0b10
	default:
		return nil, newError("unsupported long-header encode type %v", typ)
	}

	pnLen := EncodePNLen(pn, largestAcked)
	pnBytes := make([]byte, pnLen)
	TruncatePN(pnBytes, pn, pnLen)

	header := make([]byte, 0, 7+len(dcid)+len(scid)+len(token)+10)
	header = append(header, 0xc0|typeBits<<4|byte(pnLen-1))
	header = append(header, byte(version>>24), byte(version>>16), byte(version>>8), byte(version))
	header = append(header, byte(len(dcid)))
	header = append(header, dcid...)
	header = append(header, byte(len(scid)))
	header = append(header, scid...)
	if typ == TypeInitial {
		header, _ = varint.Encode(header, uint64(len(token)))
		header = append(header, token...)
	}
	length := uint64(pnLen) + uint64(len(payload)) + uint64(qcrypto.TagLen)
	header, err := varint.Encode(header, length)
	if err != nil {
		return nil, err
	}
	pnOffset := len(header)
	header = append(header, pnBytes...)

	aad := append([]byte(nil), header...)
	ciphertext, err := crypto.EncryptPacket(pn, aad, payload, nil)
	if err != nil {
		return nil, err
	}

	packet := append(header, ciphertext...)
	if len(packet)-pnOffset < minSampleWindow {
		return nil, newError("encoded packet too short for header-protection sample")
	}
	sample := packet[pnOffset+4 : pnOffset+4+16]
	if err := crypto.EncryptHeader(packet, sample, pnOffset, pnLen, false); err != nil {
		return nil, err
	}
	return packet, nil
}

// EncodeShortHeaderPacket serializes and protects a 1-RTT packet.
func EncodeShortHeaderPacket(dcid []byte, keyPhase bool, pn uint64, largestAcked uint64, payload []byte, crypto *qcrypto.Cryptographer) ([]byte, error) {
	pnLen := EncodePNLen(pn, largestAcked)
	pnBytes := make([]byte, pnLen)
	TruncatePN(pnBytes, pn, pnLen)

	b0 := byte(0x40) | byte(pnLen-1)
	if keyPhase {
		b0 |= 0x04
	}

	header := make([]byte, 0, 1+len(dcid)+4)
	header = append(header, b0)
	header = append(header, dcid...)
	pnOffset := len(header)
	header = append(header, pnBytes...)

	aad := append([]byte(nil), header...)
	ciphertext, err := crypto.EncryptPacket(pn, aad, payload, nil)
	if err != nil {
		return nil, err
	}

	packet := append(header, ciphertext...)
	if len(packet)-pnOffset < minSampleWindow {
		return nil, newError("encoded packet too short for header-protection sample")
	}
	sample := packet[pnOffset+4 : pnOffset+4+16]
	if err := crypto.EncryptHeader(packet, sample, pnOffset, pnLen, true); err != nil {
		return nil, err
	}
	return packet, nil
}
