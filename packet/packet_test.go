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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtransport/quicd/qcrypto"
)

type fixedCrypto struct {
	c *qcrypto.Cryptographer
}

func (f fixedCrypto) Cryptographer(Level) *qcrypto.Cryptographer { return f.c }

type fixedAcked struct{ n uint64 }

func (f fixedAcked) Largest(Level) uint64 { return f.n }

func TestPNReconstructionRoundTrip(t *testing.T) {
	largestAcked := uint64(0xa82f30ea)
	full := uint64(0xa82f9b32)
	pnLen := EncodePNLen(full, largestAcked)
	require.Equal(t, 2, pnLen)

	buf := make([]byte, pnLen)
	TruncatePN(buf, full, pnLen)
	truncated := decodeTruncatedPN(buf)
	got := DecodePN(truncated, pnLen, largestAcked)
	assert.Equal(t, full, got)
}

func TestInitialPacketRoundTripThroughDecoder(t *testing.T) {
	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	scid := []byte{1, 2, 3, 4}

	client := qcrypto.New(qcrypto.SuiteAES128GCMSHA256)
	require.NoError(t, client.InstallInitial(dcid, false))
	server := qcrypto.New(qcrypto.SuiteAES128GCMSHA256)
	require.NoError(t, server.InstallInitial(dcid, true))

	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}

	packet, err := EncodeLongHeaderPacket(TypeInitial, Version1, dcid, scid, nil, 2, 0, payload, client)
	require.NoError(t, err)

	dec := &Decoder{Crypto: fixedCrypto{c: server}, Acked: fixedAcked{n: 0}}
	packets, errs := dec.DecodeDatagram(packet, 8)
	require.Empty(t, errs)
	require.Len(t, packets, 1)
	assert.Equal(t, uint64(2), packets[0].PacketNumber)
	assert.Equal(t, LevelInitial, packets[0].Level)
	assert.Equal(t, payload, packets[0].Payload)
}

func TestOneRTTPacketRoundTripThroughDecoder(t *testing.T) {
	dcid := []byte{9, 9, 9, 9}
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i + 1)
	}

	client := qcrypto.New(qcrypto.SuiteAES128GCMSHA256)
	require.NoError(t, client.InstallSecret(secret, true))
	server := qcrypto.New(qcrypto.SuiteAES128GCMSHA256)
	require.NoError(t, server.InstallSecret(secret, false))

	payload := []byte("short header payload bytes, long enough for a sample window")

	packet, err := EncodeShortHeaderPacket(dcid, false, 7, 0, payload, client)
	require.NoError(t, err)

	dec := &Decoder{Crypto: fixedCrypto{c: server}, Acked: fixedAcked{n: 0}}
	packets, errs := dec.DecodeDatagram(packet, len(dcid))
	require.Empty(t, errs)
	require.Len(t, packets, 1)
	assert.Equal(t, uint64(7), packets[0].PacketNumber)
	assert.Equal(t, LevelApplication, packets[0].Level)
	assert.Equal(t, payload, packets[0].Payload)
}

func TestCoalescedInitialAndHandshakeDecodeIndependently(t *testing.T) {
	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	scid := []byte{5, 6, 7, 8}

	initClient := qcrypto.New(qcrypto.SuiteAES128GCMSHA256)
	require.NoError(t, initClient.InstallInitial(dcid, false))
	initServer := qcrypto.New(qcrypto.SuiteAES128GCMSHA256)
	require.NoError(t, initServer.InstallInitial(dcid, true))

	hsSecret := make([]byte, 32)
	for i := range hsSecret {
		hsSecret[i] = byte(200 + i)
	}
	hsClient := qcrypto.New(qcrypto.SuiteAES128GCMSHA256)
	require.NoError(t, hsClient.InstallSecret(hsSecret, true))
	hsServer := qcrypto.New(qcrypto.SuiteAES128GCMSHA256)
	require.NoError(t, hsServer.InstallSecret(hsSecret, false))

	initialPayload := make([]byte, 20)
	handshakePayload := make([]byte, 20)
	for i := range handshakePayload {
		handshakePayload[i] = byte(100 + i)
	}

	p1, err := EncodeLongHeaderPacket(TypeInitial, Version1, dcid, scid, nil, 1, 0, initialPayload, initClient)
	require.NoError(t, err)
	p2, err := EncodeLongHeaderPacket(TypeHandshake, Version1, dcid, scid, nil, 1, 0, handshakePayload, hsClient)
	require.NoError(t, err)

	datagram := append(append([]byte(nil), p1...), p2...)

	levelCrypto := map[Level]*qcrypto.Cryptographer{
		LevelInitial:   initServer,
		LevelHandshake: hsServer,
	}
	dec := &Decoder{
		Crypto: cryptoLookupFunc(func(l Level) *qcrypto.Cryptographer { return levelCrypto[l] }),
		Acked:  fixedAcked{n: 0},
	}
	packets, errs := dec.DecodeDatagram(datagram, 8)
	require.Empty(t, errs)
	require.Len(t, packets, 2)
	assert.Equal(t, LevelInitial, packets[0].Level)
	assert.Equal(t, LevelHandshake, packets[1].Level)
	assert.Equal(t, handshakePayload, packets[1].Payload)
}

type cryptoLookupFunc func(Level) *qcrypto.Cryptographer

func (f cryptoLookupFunc) Cryptographer(l Level) *qcrypto.Cryptographer { return f(l) }

func TestRetryIntegrityTagRoundTrip(t *testing.T) {
	odcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	pseudo := []byte{0xc0, 0, 0, 0, 1, 4, 1, 2, 3, 4, 0}

	tag, err := RetryIntegrityTag(odcid, pseudo)
	require.NoError(t, err)
	assert.Len(t, tag, 16)
	assert.NoError(t, VerifyRetryIntegrityTag(odcid, pseudo, tag))

	tag[0] ^= 0xff
	assert.Error(t, VerifyRetryIntegrityTag(odcid, pseudo, tag))
}

func TestVersionNegotiationRoundTrip(t *testing.T) {
	dcid := []byte{1, 2, 3}
	scid := []byte{4, 5, 6}
	vn := BuildVersionNegotiation(dcid, scid, []uint32{Version1, 0xabababab})

	h, err := ParseLongHeaderPrefix(vn)
	require.NoError(t, err)
	assert.Equal(t, TypeVersionNegotiation, h.Type)
	assert.Equal(t, dcid, h.DCID)
	assert.Equal(t, scid, h.SCID)
	assert.Equal(t, []uint32{Version1, 0xabababab}, h.SupportedVersions)
}
