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

package qcrypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitialRoundTrip is scenario 1 from spec.md §8: a 64-byte plaintext
// packet, encrypted under the client's initial write keys and decrypted
// under the server's initial read keys, must come back byte-identical.
func TestInitialRoundTrip(t *testing.T) {
	dcid, err := hex.DecodeString("8394c8f03e515708")
	require.NoError(t, err)

	client := New(SuiteAES128GCMSHA256)
	require.NoError(t, client.InstallInitial(dcid, false))

	server := New(SuiteAES128GCMSHA256)
	require.NoError(t, server.InstallInitial(dcid, true))

	plaintext := make([]byte, 64)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	aad := []byte{0x01, 0x02, 0x03, 0x04}

	ciphertext, err := client.EncryptPacket(1, aad, plaintext, nil)
	require.NoError(t, err)
	assert.Len(t, ciphertext, len(plaintext)+TagLen)

	got, result, err := server.DecryptPacket(1, aad, ciphertext, nil)
	require.NoError(t, err)
	require.Equal(t, ResultOK, result)
	assert.Equal(t, plaintext, got)
}

func TestDecryptAuthFailureIsDropNotError(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	client := New(SuiteAES128GCMSHA256)
	require.NoError(t, client.InstallInitial(dcid, false))
	server := New(SuiteAES128GCMSHA256)
	require.NoError(t, server.InstallInitial(dcid, true))

	ciphertext, err := client.EncryptPacket(1, []byte("aad"), []byte("hello"), nil)
	require.NoError(t, err)
	ciphertext[0] ^= 0xff // corrupt

	_, result, err := server.DecryptPacket(1, []byte("aad"), ciphertext, nil)
	require.NoError(t, err, "auth failure must not surface as a Go error")
	assert.Equal(t, ResultAuthFailed, result)
}

func TestHeaderProtectionRoundTripAES(t *testing.T) {
	dcid := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	c := New(SuiteAES128GCMSHA256)
	require.NoError(t, c.InstallInitial(dcid, false))

	packet := make([]byte, 32)
	packet[0] = 0xc3 // long header, PN len bits = 3 (4-byte PN) before protection
	pnOffset := 18
	pnLen := 4
	sample := make([]byte, 16)
	for i := range sample {
		sample[i] = byte(i + 1)
	}

	original := append([]byte(nil), packet...)

	require.NoError(t, c.EncryptHeader(packet, sample, pnOffset, pnLen, false))
	assert.NotEqual(t, original, packet)

	require.NoError(t, c.DecryptHeader(packet, sample, pnOffset, pnLen, false))
	assert.Equal(t, original, packet)
}

func TestHeaderProtectionRoundTripChaCha(t *testing.T) {
	suite := SuiteChaCha20Poly1305SHA256
	c := New(suite)
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	require.NoError(t, c.InstallSecret(secret, false))
	require.NoError(t, c.InstallSecret(secret, true))

	packet := make([]byte, 16)
	packet[0] = 0x43 // short header
	pnOffset := 1
	pnLen := 2
	sample := make([]byte, 16)
	for i := range sample {
		sample[i] = byte(255 - i)
	}
	original := append([]byte(nil), packet...)

	require.NoError(t, c.EncryptHeader(packet, sample, pnOffset, pnLen, true))
	assert.NotEqual(t, original, packet)
	require.NoError(t, c.DecryptHeader(packet, sample, pnOffset, pnLen, true))
	assert.Equal(t, original, packet)
}

func TestKeyUpdateRotatesKeepingHPKey(t *testing.T) {
	c := New(SuiteAES128GCMSHA256)
	secret := make([]byte, 32)
	require.NoError(t, c.InstallSecret(secret, false))
	require.NoError(t, c.InstallSecret(secret, true))

	plaintext := []byte("generation zero")
	ct0, err := c.EncryptPacket(1, nil, plaintext, nil)
	require.NoError(t, err)

	require.NoError(t, c.KeyUpdate(nil, false))
	require.NoError(t, c.KeyUpdate(nil, true))

	// The old generation still decrypts until promoted.
	got, result, err := c.DecryptPacket(1, nil, ct0, nil)
	require.NoError(t, err)
	require.Equal(t, ResultOK, result)
	assert.Equal(t, plaintext, got)

	require.NoError(t, c.PromoteNextRead())
	require.NoError(t, c.PromoteNextWrite())

	ct1, err := c.EncryptPacket(1, nil, plaintext, nil)
	require.NoError(t, err)
	assert.NotEqual(t, ct0, ct1, "new generation must use a distinct key/iv")

	got2, result2, err := c.DecryptPacket(1, nil, ct1, nil)
	require.NoError(t, err)
	require.Equal(t, ResultOK, result2)
	assert.Equal(t, plaintext, got2)
}

func TestTryDecryptNextGenerationDetectsPeerKeyUpdate(t *testing.T) {
	a := New(SuiteAES128GCMSHA256)
	b := New(SuiteAES128GCMSHA256)
	secretAB := make([]byte, 32)
	for i := range secretAB {
		secretAB[i] = 7
	}
	secretBA := make([]byte, 32)
	for i := range secretBA {
		secretBA[i] = 13
	}
	require.NoError(t, a.InstallSecret(secretAB, true))
	require.NoError(t, a.InstallSecret(secretBA, false))
	require.NoError(t, b.InstallSecret(secretAB, false))
	require.NoError(t, b.InstallSecret(secretBA, true))

	// a rotates its write key (simulating a to-b key update).
	require.NoError(t, a.KeyUpdate(nil, true))
	require.NoError(t, a.PromoteNextWrite())

	ciphertext, err := a.EncryptPacket(5, nil, []byte("post-update"), nil)
	require.NoError(t, err)

	// b hasn't rotated yet: current generation must fail.
	_, result, err := b.DecryptPacket(5, nil, ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultAuthFailed, result)

	// b derives its own next generation and detects the update there.
	require.NoError(t, b.KeyUpdate(nil, false))
	plain, ok := b.TryDecryptNextGeneration(5, nil, ciphertext, nil)
	require.True(t, ok)
	assert.Equal(t, []byte("post-update"), plain)
}
