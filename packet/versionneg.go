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

import "github.com/qtransport/quicd/qerr"

// parseVersionNegotiation parses a Version Negotiation packet (RFC 9000
// §17.2.1), identified by the version field being 0. b0 is the already
// read first byte (its type bits carry no meaning for this packet type).
func parseVersionNegotiation(b []byte, b0 byte) (*LongHeader, error) {
	off := 5
	if off >= len(b) {
		return nil, qerr.Drop("version negotiation: truncated before dcid length")
	}
	dcidLen := int(b[off])
	off++
	if off+dcidLen > len(b) {
		return nil, qerr.Drop("version negotiation: dcid exceeds datagram")
	}
	dcid := append([]byte(nil), b[off:off+dcidLen]...)
	off += dcidLen

	if off >= len(b) {
		return nil, qerr.Drop("version negotiation: truncated before scid length")
	}
	scidLen := int(b[off])
	off++
	if off+scidLen > len(b) {
		return nil, qerr.Drop("version negotiation: scid exceeds datagram")
	}
	scid := append([]byte(nil), b[off:off+scidLen]...)
	off += scidLen

	remaining := b[off:]
	if len(remaining)%4 != 0 {
		return nil, qerr.Drop("version negotiation: supported versions list not 4-byte aligned")
	}
	versions := make([]uint32, 0, len(remaining)/4)
	for i := 0; i < len(remaining); i += 4 {
		v := uint32(remaining[i])<<24 | uint32(remaining[i+1])<<16 | uint32(remaining[i+2])<<8 | uint32(remaining[i+3])
		versions = append(versions, v)
	}

	return &LongHeader{
		Type:              TypeVersionNegotiation,
		Version:           0,
		DCID:              dcid,
		SCID:              scid,
		SupportedVersions: versions,
	}, nil
}

// BuildVersionNegotiation serializes a Version Negotiation packet offering
// versions in response to a packet from a client using dcid/scid (swapped:
// the server's response echoes the client's SCID as DCID and vice versa,
// per RFC 9000 §17.2.1).
func BuildVersionNegotiation(dcid, scid []byte, versions []uint32) []byte {
	out := make([]byte, 0, 5+1+len(dcid)+1+len(scid)+4*len(versions))
	out = append(out, 0x80) // first byte: long-header bit set; rest unspecified by the RFC
	out = append(out, 0, 0, 0, 0)
	out = append(out, byte(len(dcid)))
	out = append(out, dcid...)
	out = append(out, byte(len(scid)))
	out = append(out, scid...)
	for _, v := range versions {
		out = append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	return out
}
