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

import (
	"github.com/qtransport/quicd/qerr"
	"github.com/qtransport/quicd/varint"
)

// Stream carries application data for one stream. Off/Len/Fin mirror the
// three low bits of the wire type byte (RFC 9000 §19.8): OffPresent
// means Offset was explicitly encoded (otherwise implicitly 0),
// LenPresent means Length was explicitly encoded (otherwise the frame
// runs to the end of the packet), Fin marks the final offset of the
// stream.
type Stream struct {
	StreamID   uint64
	Offset     uint64
	Data       []byte
	OffPresent bool
	LenPresent bool
	Fin        bool
}

func (f *Stream) FrameType() Type { return TypeStream }

func (f *Stream) EvalSize() int {
	n := 1 + varint.Len(f.StreamID)
	if f.OffPresent {
		n += varint.Len(f.Offset)
	}
	if f.LenPresent {
		n += varint.Len(uint64(len(f.Data)))
	}
	return n + len(f.Data)
}

func (f *Stream) Encode(dst []byte) ([]byte, error) {
	typ := byte(TypeStream)
	if f.OffPresent {
		typ |= 0x04
	}
	if f.LenPresent {
		typ |= 0x02
	}
	if f.Fin {
		typ |= 0x01
	}
	dst = append(dst, typ)

	dst, err := varint.Encode(dst, f.StreamID)
	if err != nil {
		return nil, err
	}
	if f.OffPresent {
		dst, err = varint.Encode(dst, f.Offset)
		if err != nil {
			return nil, err
		}
	}
	if f.LenPresent {
		dst, err = varint.Encode(dst, uint64(len(f.Data)))
		if err != nil {
			return nil, err
		}
	}
	return append(dst, f.Data...), nil
}

// decodeStream parses a STREAM frame body. typeByte is the already
// consumed type octet (its low 3 bits select Off/Len/Fin); rest is the
// remaining payload after the type byte. localIsServer is used to reject
// a stream ID whose initiator bit disagrees with the local role, per
// spec.md §4.5 ("reject if stream-id bits disagree with local role").
func decodeStream(typeByte byte, rest []byte, localIsServer bool) (Frame, int, error) {
	f := &Stream{
		OffPresent: typeByte&0x04 != 0,
		LenPresent: typeByte&0x02 != 0,
		Fin:        typeByte&0x01 != 0,
	}
	off := 0

	sid, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n
	f.StreamID = sid

	if streamIDOwnedByLocal(sid, localIsServer) {
		// A peer must never send us a STREAM frame for a stream ID whose
		// initiator bit claims *we* opened it.
		return nil, 0, qerr.Transport(qerr.StreamStateError, "stream %d: initiator bit disagrees with local role", sid)
	}

	if f.OffPresent {
		o, n, err := varint.Decode(rest[off:])
		if err != nil {
			return nil, 0, ErrPartialFrame
		}
		off += n
		f.Offset = o
	}

	var length int
	if f.LenPresent {
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

	f.Data = append([]byte(nil), rest[off:off+length]...)
	off += length

	return f, 1 + off, nil
}
