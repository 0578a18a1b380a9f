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

// EncryptHeader applies header protection to packet using this
// Cryptographer's write-side header-protection key.
func (c *Cryptographer) EncryptHeader(packet []byte, sample []byte, pnOffset, pnLen int, isShort bool) error {
	if c.hpWrite == nil {
		return newError("write header-protection key not installed")
	}
	ApplyHeaderProtection(packet, sample, pnOffset, pnLen, isShort, c.hpWrite)
	return nil
}

// DecryptHeader applies header protection in reverse using this
// Cryptographer's read-side header-protection key. Because XOR is its
// own inverse the operation is identical to EncryptHeader; callers must
// unmask byte 0 before they know pnLen, so pnLen here is the value the
// caller has already recovered via RecoverPNLen from the unmasked byte 0.
func (c *Cryptographer) DecryptHeader(packet []byte, sample []byte, pnOffset, pnLen int, isShort bool) error {
	if c.hpRead == nil {
		return newError("read header-protection key not installed")
	}
	ApplyHeaderProtection(packet, sample, pnOffset, pnLen, isShort, c.hpRead)
	return nil
}

// ReadMask computes the header-protection mask for sample using this
// Cryptographer's read-side key, for the two-phase decode a real
// received packet requires (pnLen is not known until byte 0 is
// unmasked — see UnmaskFirstByte/XorPN).
func (c *Cryptographer) ReadMask(sample []byte) ([5]byte, error) {
	if c.hpRead == nil {
		return [5]byte{}, newError("read header-protection key not installed")
	}
	return c.hpRead.Mask(sample), nil
}

// deriveNextSecret implements the RFC 9001 §6 "quic ku" label used when a
// key update is triggered without an externally supplied secret.
func (c *Cryptographer) deriveNextSecret(current []byte) []byte {
	hashFn := c.suite.hashNew()
	return hkdfExpandLabel(hashFn, current, "quic ku", nil, len(current))
}

// KeyUpdate rotates the next generation of key/iv for the requested
// direction. The header-protection key is unchanged across a key update
// (RFC 9001 §6: "the same header protection key is not updated"). If
// newSecret is nil the next secret is derived via the "quic ku" label;
// otherwise newSecret (an externally supplied secret) is used directly.
//
// This method only performs the derivation; it does not decide when a
// direction rotates. The conn package calls none of KeyUpdate,
// PromoteNextRead, PromoteNextWrite or TryDecryptNextGeneration, so a
// connection never detects a peer-initiated key update or rotates its
// own keys.
func (c *Cryptographer) KeyUpdate(newSecret []byte, forWrite bool) error {
	current := c.curSecretRead
	if forWrite {
		current = c.curSecretWrite
	}
	if current == nil {
		return newError("cannot key-update before initial keys are installed")
	}

	next := newSecret
	if next == nil {
		next = c.deriveNextSecret(current)
	}

	keys := c.suite.deriveKeys(next)
	aead, err := newAEAD(c.suite, keys.key)
	if err != nil {
		return newError("derive next-generation aead: %v", err)
	}

	if forWrite {
		c.nextAeadWrite, c.nextIvWrite, c.nextSecretWrite = aead, keys.iv, next
	} else {
		c.nextAeadRead, c.nextIvRead, c.nextSecretRead = aead, keys.iv, next
	}
	return nil
}

// PromoteNextRead promotes a previously derived next-generation read key
// to current, discarding the prior generation. Call this once a packet
// has been observed to decrypt successfully under the next generation.
func (c *Cryptographer) PromoteNextRead() error {
	if c.nextAeadRead == nil {
		return newError("no pending read-side key update")
	}
	c.aeadRead, c.ivRead, c.curSecretRead = c.nextAeadRead, c.nextIvRead, c.nextSecretRead
	c.nextAeadRead, c.nextIvRead, c.nextSecretRead = nil, nil, nil
	return nil
}

// PromoteNextWrite promotes a previously derived next-generation write
// key to current, discarding the prior generation.
func (c *Cryptographer) PromoteNextWrite() error {
	if c.nextAeadWrite == nil {
		return newError("no pending write-side key update")
	}
	c.aeadWrite, c.ivWrite, c.curSecretWrite = c.nextAeadWrite, c.nextIvWrite, c.nextSecretWrite
	c.nextAeadWrite, c.nextIvWrite, c.nextSecretWrite = nil, nil, nil
	return nil
}

// TryDecryptNextGeneration attempts to open ciphertext under the
// not-yet-promoted next-generation read key, used to detect a
// peer-initiated key update (the packet's phase bit flipped and it
// fails to decrypt under the current generation, but succeeds under the
// next).
func (c *Cryptographer) TryDecryptNextGeneration(pn uint64, aad, ciphertext, out []byte) ([]byte, bool) {
	if c.nextAeadRead == nil {
		return nil, false
	}
	nonce := buildNonce(c.nextIvRead, pn)
	plain, err := c.nextAeadRead.Open(out, nonce, ciphertext, aad)
	if err != nil {
		return nil, false
	}
	return plain, true
}
