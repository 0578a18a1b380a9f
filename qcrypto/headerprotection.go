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
	"crypto/aes"

	"golang.org/x/crypto/chacha20"
)

// longHeaderMask masks the low 4 bits of byte 0 on long-header packets
// (RFC 9001 §5.4.1); shortHeaderMask masks the low 5 bits on short-header
// packets. spec.md §9's first Open Question resolves to these RFC-defined
// constants rather than any source-specific bit pattern.
const (
	longHeaderMask  byte = 0x0f
	shortHeaderMask byte = 0x1f
)

// headerProtector derives the 5-byte mask RFC 9001 §5.4.2/5.4.3 defines
// from a 16-byte ciphertext sample.
type headerProtector interface {
	Mask(sample []byte) [5]byte
}

type aesHeaderProtector struct {
	block interface {
		Encrypt(dst, src []byte)
		BlockSize() int
	}
}

func newAESHeaderProtector(hpKey []byte) (headerProtector, error) {
	block, err := aes.NewCipher(hpKey)
	if err != nil {
		return nil, err
	}
	return &aesHeaderProtector{block: block}, nil
}

// Mask computes AES-ECB(hpKey, sample)[:5] (RFC 9001 §5.4.3).
func (p *aesHeaderProtector) Mask(sample []byte) [5]byte {
	var out [16]byte
	p.block.Encrypt(out[:], sample)
	var mask [5]byte
	copy(mask[:], out[:5])
	return mask
}

type chachaHeaderProtector struct {
	key [32]byte
}

func newChaChaHeaderProtector(hpKey []byte) (headerProtector, error) {
	var p chachaHeaderProtector
	copy(p.key[:], hpKey)
	return &p, nil
}

// Mask computes the ChaCha20 block-counter mask per RFC 9001 §5.4.4: the
// first 4 sample bytes are the little-endian block counter, the last 12
// are the nonce, and the mask is the first 5 keystream bytes of block 0
// (here expressed as encrypting 5 zero bytes through ChaCha20 seeked to
// that counter/nonce).
func (p *chachaHeaderProtector) Mask(sample []byte) [5]byte {
	counter := uint32(sample[0]) | uint32(sample[1])<<8 | uint32(sample[2])<<16 | uint32(sample[3])<<24
	nonce := sample[4:16]

	c, err := chacha20.NewUnauthenticatedCipher(p.key[:], nonce)
	if err != nil {
		panic(err) // key/nonce are fixed-length slices sized above; cannot fail
	}
	c.SetCounter(counter)

	var mask [5]byte
	c.XORKeyStream(mask[:], mask[:])
	return mask
}

// ApplyHeaderProtection XORs mask into packet in place: mask[0] (masked
// to longHeaderMask or shortHeaderMask depending on isShort) into byte 0,
// and mask[1:1+pnLen] into the truncated packet-number bytes starting at
// pnOffset. This single-shot form is only valid for encode, where pnLen
// is already known; decode must split the operation (see UnmaskFirstByte
// / XorPN below) because pnLen isn't known until byte 0 is unmasked.
func ApplyHeaderProtection(packet []byte, sample []byte, pnOffset int, pnLen int, isShort bool, hp headerProtector) {
	mask := hp.Mask(sample)
	packet[0] ^= mask[0] & bitmaskFor(isShort)
	XorPN(packet[pnOffset:pnOffset+pnLen], mask)
}

func bitmaskFor(isShort bool) byte {
	if isShort {
		return shortHeaderMask
	}
	return longHeaderMask
}

// UnmaskFirstByte removes header protection from byte 0 only, returning
// the unmasked byte. Callers recover pnLen from the result via
// RecoverPNLen before they know how many packet-number bytes to unmask.
func UnmaskFirstByte(b0 byte, mask [5]byte, isShort bool) byte {
	return b0 ^ (mask[0] & bitmaskFor(isShort))
}

// XorPN unmasks (or masks) the packet-number bytes in place using the
// already-computed 5-byte mask.
func XorPN(pn []byte, mask [5]byte) {
	for i := range pn {
		pn[i] ^= mask[1+i]
	}
}

// RecoverPNLen reads a header-protected byte 0 after it has already been
// unmasked and returns the 1-4 byte truncated packet-number length
// encoded in its low two bits.
func RecoverPNLen(unmaskedByte0 byte) int {
	return int(unmaskedByte0&0x03) + 1
}
