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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtransport/quicd/conn"
)

func TestDispatchDatagramCreatesServerConnOnUnknownLongHeader(t *testing.T) {
	registry := conn.NewRegistry()
	dcid := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x01, 0x02}

	datagram := buildInitialPrefix(dcid)
	dispatchDatagram(registry, datagram)

	c, ok := registry.Lookup(dcid)
	require.True(t, ok)
	assert.True(t, c.IsServer)
}

func TestDispatchDatagramRoutesToExistingConnByDCID(t *testing.T) {
	registry := conn.NewRegistry()
	dcid := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	existing := conn.New(true, registry, conn.TransportParameters{})
	registry.Register(dcid, existing)

	datagram := buildInitialPrefix(dcid)
	dispatchDatagram(registry, datagram)

	got, ok := registry.Lookup(dcid)
	require.True(t, ok)
	assert.Same(t, existing, got)
}

func TestDispatchDatagramDropsUnparseableShortHeaderForUnknownConn(t *testing.T) {
	registry := conn.NewRegistry()
	// Short header (top bit clear) too short to contain a full DCID: must
	// not panic and must leave the registry untouched.
	dispatchDatagram(registry, []byte{0x40, 0x01})
	assert.Empty(t, registry.IdleConnections(0))
}

// buildInitialPrefix constructs the minimal unprotected long-header
// prefix packet.ParseLongHeaderPrefix needs: fixed+long bits, QUIC v1,
// an 8-byte DCID, a zero-length SCID, an empty token, and a zero-length
// varint.
func buildInitialPrefix(dcid []byte) []byte {
	b := []byte{0xc0 | 0x40} // long header, Initial type bits 00, fixed bit set
	b = append(b, 0x00, 0x00, 0x00, 0x01)
	b = append(b, byte(len(dcid)))
	b = append(b, dcid...)
	b = append(b, 0x00) // scid length 0
	b = append(b, 0x00) // token length varint (0)
	b = append(b, 0x00) // remaining length varint (0)
	return b
}
