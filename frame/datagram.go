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

// Datagram carries an unreliable, unordered application message
// (RFC 9221). LenPresent mirrors STREAM's trailing-frame convention: if
// absent the frame runs to the end of the packet.
type Datagram struct {
	Data       []byte
	LenPresent bool
}

func (f *Datagram) FrameType() Type {
	if f.LenPresent {
		return TypeDatagram | 0x01
	}
	return TypeDatagram
}

func (f *Datagram) EvalSize() int {
	n := 1
	if f.LenPresent {
		n += varint.Len(uint64(len(f.Data)))
	}
	return n + len(f.Data)
}

func (f *Datagram) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(f.FrameType()))
	if f.LenPresent {
		var err error
		dst, err = varint.Encode(dst, uint64(len(f.Data)))
		if err != nil {
			return nil, err
		}
	}
	return append(dst, f.Data...), nil
}

func decodeDatagram(typeByte byte, rest []byte) (Frame, int, error) {
	lenPresent := typeByte&0x01 != 0
	off := 0
	var length int
	if lenPresent {
		l, n, err := varint.Decode(rest[off:])
		if err != nil {
			return nil, 0, ErrPartialFrame
		}
		off += n
		if uint64(off)+l > uint64(len(rest)) {
			return nil, 0, ErrPartialFrame
		}
		length = int(l)
	} else {
		length = len(rest) - off
	}
	data := append([]byte(nil), rest[off:off+length]...)
	off += length
	return &Datagram{Data: data, LenPresent: lenPresent}, 1 + off, nil
}
