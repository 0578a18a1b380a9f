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

// Package qcrypto implements the per-encryption-level AEAD cryptographer
// (L2): packet protection, header protection, the RFC 9001 HKDF key
// schedule, and key update. It binds TLS-exported secrets to concrete
// AES-128-GCM, AES-256-GCM, and ChaCha20-Poly1305 implementations behind
// one Cryptographer contract, matching the quicx `aead_base_cryptographer`
// family collapsed into a single Go interface (spec.md §9: "virtual
// interface families... re-express as tagged unions / a capability set").
package qcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/qtransport/quicd/qerr"
)

func newError(format string, args ...any) error {
	return errors.Errorf("qcrypto: "+format, args...)
}

// Suite identifies one of the three TLS 1.3 cipher suites QUIC v1 permits.
type Suite int

const (
	SuiteAES128GCMSHA256 Suite = iota
	SuiteAES256GCMSHA384
	SuiteChaCha20Poly1305SHA256
)

// TagLen is the AEAD tag length, 16 bytes for all three QUIC v1 suites.
const TagLen = 16

// InitialSalt is the RFC 9001 §5.2 salt used to derive QUIC v1 initial
// secrets from the client's destination connection ID.
var InitialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
	0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
}

func (s Suite) hashNew() func() hash.Hash {
	if s == SuiteAES256GCMSHA384 {
		return sha512.New384
	}
	return sha256.New
}

func (s Suite) keyLen() int {
	if s == SuiteAES256GCMSHA384 || s == SuiteChaCha20Poly1305SHA256 {
		return 32
	}
	return 16
}

const ivLen = 12

// secretKeys is the key/iv/hp triple derived from one traffic secret.
type secretKeys struct {
	secret []byte
	key    []byte
	iv     []byte
	hp     []byte
}

func (s Suite) deriveKeys(secret []byte) secretKeys {
	hashFn := s.hashNew()
	key := hkdfExpandLabel(hashFn, secret, "quic key", nil, s.keyLen())
	iv := hkdfExpandLabel(hashFn, secret, "quic iv", nil, ivLen)
	hp := hkdfExpandLabel(hashFn, secret, "quic hp", nil, s.keyLen())
	return secretKeys{secret: secret, key: key, iv: iv, hp: hp}
}

// hkdfExpandLabel implements RFC 8446 §7.1's HKDF-Expand-Label as
// specialized for QUIC (no certificate-context field; RFC 9001 §5.1/5.2
// labels are ASCII strings prefixed with "tls13 ").
func hkdfExpandLabel(hashFn func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label

	hkdfLabel := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	hkdfLabel = append(hkdfLabel, byte(length>>8), byte(length))
	hkdfLabel = append(hkdfLabel, byte(len(fullLabel)))
	hkdfLabel = append(hkdfLabel, fullLabel...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)

	out := make([]byte, length)
	r := hkdf.Expand(hashFn, secret, hkdfLabel)
	if _, err := io.ReadFull(r, out); err != nil {
		// hkdf.Expand's Reader only errors once the expansion limit
		// (255*hashLen) is exceeded; every QUIC key/iv/hp/ku length is
		// far below that, so this path is unreachable in practice.
		panic(err)
	}
	return out
}

// Result distinguishes an authentication failure (drop the packet) from
// a parameter error (an internal invariant was violated) per spec.md §4.3.
type Result int

const (
	ResultOK Result = iota
	ResultAuthFailed
	ResultParamError
)

// Cryptographer is the per-encryption-level AEAD object: one key/iv/hp
// triple for reading, one (independently rotatable) for writing.
type Cryptographer struct {
	suite Suite

	aeadRead, aeadWrite     cipher.AEAD
	hpRead, hpWrite         headerProtector
	ivRead, ivWrite         []byte

	// next generation, populated once a key update has been initiated;
	// promoted to current on KeyUpdate.
	nextAeadRead, nextAeadWrite cipher.AEAD
	nextIvRead, nextIvWrite     []byte
	nextSecretRead, nextSecretWrite []byte
	curSecretRead, curSecretWrite   []byte
}

// New constructs an empty Cryptographer for suite; call InstallInitial or
// InstallSecret before use.
func New(suite Suite) *Cryptographer {
	return &Cryptographer{suite: suite}
}

func newAEAD(suite Suite, key []byte) (cipher.AEAD, error) {
	if suite == SuiteChaCha20Poly1305SHA256 {
		return chacha20poly1305.New(key)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func newHeaderProtector(suite Suite, hpKey []byte) (headerProtector, error) {
	if suite == SuiteChaCha20Poly1305SHA256 {
		return newChaChaHeaderProtector(hpKey)
	}
	return newAESHeaderProtector(hpKey)
}

// DeriveInitialSecrets computes the RFC 9001 §5.2 client/server initial
// secrets from dcid, independent of any Cryptographer instance. Exposed
// for the "vectors" CLI and tests that check the RFC 9001 §A.3 sample
// vector without installing keys into a Cryptographer.
func DeriveInitialSecrets(suite Suite, dcid []byte) (clientSecret, serverSecret []byte) {
	hashFn := suite.hashNew()
	initialSecret := hkdf.Extract(hashFn, dcid, InitialSalt)
	clientSecret = hkdfExpandLabel(hashFn, initialSecret, "client in", nil, sha256.Size)
	serverSecret = hkdfExpandLabel(hashFn, initialSecret, "server in", nil, sha256.Size)
	return clientSecret, serverSecret
}

// InstallInitial derives the client/server initial secrets from dcid per
// RFC 9001 §5.2 and installs both read and write keys. isServer selects
// which direction ("client in"/"server in") maps to read vs. write.
func (c *Cryptographer) InstallInitial(dcid []byte, isServer bool) error {
	clientSecret, serverSecret := DeriveInitialSecrets(c.suite, dcid)

	readSecret, writeSecret := clientSecret, serverSecret
	if isServer {
		readSecret, writeSecret = serverSecret, clientSecret
	}
	if err := c.InstallSecret(readSecret, false); err != nil {
		return err
	}
	return c.InstallSecret(writeSecret, true)
}

// InstallSecret installs an externally supplied TLS-exported traffic
// secret (used for Handshake and Application level keys) as the read or
// write side.
func (c *Cryptographer) InstallSecret(secret []byte, isWrite bool) error {
	keys := c.suite.deriveKeys(secret)
	aead, err := newAEAD(c.suite, keys.key)
	if err != nil {
		return newError("derive aead: %v", err)
	}
	hp, err := newHeaderProtector(c.suite, keys.hp)
	if err != nil {
		return newError("derive header protector: %v", err)
	}

	if isWrite {
		c.aeadWrite, c.ivWrite, c.hpWrite, c.curSecretWrite = aead, keys.iv, hp, secret
	} else {
		c.aeadRead, c.ivRead, c.hpRead, c.curSecretRead = aead, keys.iv, hp, secret
	}
	return nil
}

func buildNonce(iv []byte, pn uint64) []byte {
	nonce := make([]byte, len(iv))
	copy(nonce, iv)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pn >> (8 * i))
	}
	return nonce
}

// CanEncrypt reports whether write keys have been installed at this
// level yet, so a caller assembling an outgoing packet can skip a level
// whose keys haven't arrived (or have already been discarded).
func (c *Cryptographer) CanEncrypt() bool {
	return c != nil && c.aeadWrite != nil
}

// EncryptPacket seals plaintext under this Cryptographer's write keys at
// packet number pn, with aad as associated data, appending the result
// (ciphertext || 16-byte tag) to out.
func (c *Cryptographer) EncryptPacket(pn uint64, aad, plaintext, out []byte) ([]byte, error) {
	if c.aeadWrite == nil {
		return nil, newError("write keys not installed")
	}
	nonce := buildNonce(c.ivWrite, pn)
	return c.aeadWrite.Seal(out, nonce, plaintext, aad), nil
}

// DecryptPacket opens ciphertext (which includes the trailing tag) under
// this Cryptographer's read keys at packet number pn. It returns
// ResultAuthFailed (never an error needing a stack trace) on tag
// mismatch, per the "drop packet silently" propagation policy.
func (c *Cryptographer) DecryptPacket(pn uint64, aad, ciphertext, out []byte) ([]byte, Result, error) {
	if c.aeadRead == nil {
		return nil, ResultParamError, newError("read keys not installed")
	}
	nonce := buildNonce(c.ivRead, pn)
	plain, err := c.aeadRead.Open(out, nonce, ciphertext, aad)
	if err != nil {
		return nil, ResultAuthFailed, nil
	}
	return plain, ResultOK, nil
}

// qerrFromResult adapts a Result into the qerr propagation-policy error
// type. Nothing calls it; packet's decoder builds its own *qerr.Error
// values from a Result.
func qerrFromResult(r Result, context string) *qerr.Error {
	switch r {
	case ResultAuthFailed:
		return qerr.Drop("%s: AEAD authentication failed", context)
	case ResultParamError:
		return qerr.Transport(qerr.InternalError, "%s: keys not installed", context)
	default:
		return nil
	}
}
