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
	"crypto/aes"
	"crypto/cipher"

	"github.com/qtransport/quicd/qerr"
)

// retryIntegrityKey and retryIntegrityNonce are the fixed AES-128-GCM
// key/nonce RFC 9001 §5.8 defines for QUIC v1 Retry Integrity Tag
// computation. They are public constants of the protocol, not secrets.
var (
	retryIntegrityKey = []byte{
		0xbe, 0x0c, 0x69, 0x0b, 0x9f, 0x66, 0x57, 0x5a,
		0x1d, 0x76, 0x6c, 0x54, 0x68, 0x8c, 0x07, 0x2e,
	}
	retryIntegrityNonce = []byte{
		0x46, 0x15, 0x99, 0xd3, 0x5d, 0x63, 0x2b, 0xf2,
		0x23, 0x98, 0x25, 0xbb,
	}
)

func newRetryAEAD() (cipher.AEAD, error) {
	block, err := aes.NewCipher(retryIntegrityKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// RetryIntegrityTag computes the 16-byte Retry Integrity Tag for a Retry
// packet, given the original destination CID the client used on the
// Initial this Retry answers, and pseudo, the Retry packet contents with
// an empty (not yet appended) tag (RFC 9001 §5.8: AAD = ODCID length byte
// + ODCID + the Retry packet header and payload up to the tag).
func RetryIntegrityTag(odcid, pseudo []byte) ([]byte, error) {
	aead, err := newRetryAEAD()
	if err != nil {
		return nil, newError("retry integrity aead: %v", err)
	}
	aad := make([]byte, 0, 1+len(odcid)+len(pseudo))
	aad = append(aad, byte(len(odcid)))
	aad = append(aad, odcid...)
	aad = append(aad, pseudo...)
	return aead.Seal(nil, retryIntegrityNonce, nil, aad), nil
}

// VerifyRetryIntegrityTag checks a received Retry packet's integrity tag
// against the ODCID the client sent on its first Initial. Per spec.md
// §9's supplemental address-binding requirement, this alone is not
// sufficient proof of path ownership — callers must additionally confirm
// the Retry token itself encodes the client's observed source address
// before trusting it. This package provides no token-validation helper;
// RetryToken only extracts the token bytes.
func VerifyRetryIntegrityTag(odcid, pseudo, tag []byte) error {
	want, err := RetryIntegrityTag(odcid, pseudo)
	if err != nil {
		return err
	}
	if len(tag) != len(want) {
		return qerr.Drop("retry: integrity tag length mismatch")
	}
	var diff byte
	for i := range want {
		diff |= want[i] ^ tag[i]
	}
	if diff != 0 {
		return qerr.Drop("retry: integrity tag mismatch")
	}
	return nil
}

func parseRetry(b []byte, off int, h *LongHeader) (*LongHeader, error) {
	if len(b)-off < 16 {
		return nil, qerr.Drop("retry: too short for integrity tag")
	}
	tagOff := len(b) - 16
	h.RetryIntegrity = append([]byte(nil), b[tagOff:]...)
	_ = off // retry token occupies b[off:tagOff]; caller reads via RetryToken
	return h, nil
}

// RetryToken returns the address-validation token carried by a parsed
// Retry packet. b must be the same datagram h was parsed from, and
// h.Type must be TypeRetry.
func RetryToken(b []byte, h *LongHeader) []byte {
	tagOff := len(b) - 16
	return b[headerPrefixLen(b):tagOff]
}

// headerPrefixLen recomputes the byte offset where a Retry packet's
// token begins: 1 (first byte) + 4 (version) + 1 + len(DCID) + 1 + len(SCID).
func headerPrefixLen(b []byte) int {
	off := 5
	dcidLen := int(b[off])
	off += 1 + dcidLen
	scidLen := int(b[off])
	off += 1 + scidLen
	return off
}
