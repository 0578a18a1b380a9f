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

package frame

import "github.com/qtransport/quicd/varint"

// Crypto carries TLS handshake bytes, fed into a per-level reassembly
// buffer (spec.md §4.5).
type Crypto struct {
	Offset uint64
	Data   []byte
}

func (f *Crypto) FrameType() Type { return TypeCrypto }
func (f *Crypto) EvalSize() int {
	return 1 + varint.Len(f.Offset) + varint.Len(uint64(len(f.Data))) + len(f.Data)
}

func (f *Crypto) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeCrypto))
	var err error
	dst, err = varint.Encode(dst, f.Offset)
	if err != nil {
		return nil, err
	}
	dst, err = varint.Encode(dst, uint64(len(f.Data)))
	if err != nil {
		return nil, err
	}
	return append(dst, f.Data...), nil
}

func decodeCrypto(rest []byte) (Frame, int, error) {
	off := 0
	offset, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n
	length, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n
	if uint64(off)+length > uint64(len(rest)) {
		return nil, 0, ErrPartialFrame
	}
	data := append([]byte(nil), rest[off:off+int(length)]...)
	off += int(length)
	return &Crypto{Offset: offset, Data: data}, 1 + off, nil
}

// NewToken delivers an address-validation token a client can present on
// a future connection's Initial packet.
type NewToken struct {
	Token []byte
}

func (f *NewToken) FrameType() Type { return TypeNewToken }
func (f *NewToken) EvalSize() int   { return 1 + varint.Len(uint64(len(f.Token))) + len(f.Token) }

func (f *NewToken) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeNewToken))
	dst, err := varint.Encode(dst, uint64(len(f.Token)))
	if err != nil {
		return nil, err
	}
	return append(dst, f.Token...), nil
}

func decodeNewToken(rest []byte) (Frame, int, error) {
	length, n, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	if uint64(n)+length > uint64(len(rest)) {
		return nil, 0, ErrPartialFrame
	}
	token := append([]byte(nil), rest[n:n+int(length)]...)
	return &NewToken{Token: token}, 1 + n + int(length), nil
}
