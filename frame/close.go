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

// ConnectionClose is both CONNECTION_CLOSE wire variants: transport
// (numeric QUIC error + the frame type that triggered it, if any) and
// application (an application-defined error code, no frame type field).
type ConnectionClose struct {
	IsApplication bool
	ErrorCode     uint64
	FrameType_    uint64 // transport variant only; name avoids colliding with the FrameType() method
	Reason        string
}

func (f *ConnectionClose) FrameType() Type {
	if f.IsApplication {
		return TypeConnectionCloseApp
	}
	return TypeConnectionCloseQUIC
}

func (f *ConnectionClose) EvalSize() int {
	n := 1 + varint.Len(f.ErrorCode)
	if !f.IsApplication {
		n += varint.Len(f.FrameType_)
	}
	return n + varint.Len(uint64(len(f.Reason))) + len(f.Reason)
}

func (f *ConnectionClose) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(f.FrameType()))
	var err error
	dst, err = varint.Encode(dst, f.ErrorCode)
	if err != nil {
		return nil, err
	}
	if !f.IsApplication {
		dst, err = varint.Encode(dst, f.FrameType_)
		if err != nil {
			return nil, err
		}
	}
	dst, err = varint.Encode(dst, uint64(len(f.Reason)))
	if err != nil {
		return nil, err
	}
	return append(dst, f.Reason...), nil
}

func decodeConnectionClose(isApplication bool, rest []byte) (Frame, int, error) {
	off := 0
	code, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n

	var frameType uint64
	if !isApplication {
		ft, n, err := varint.Decode(rest[off:])
		if err != nil {
			return nil, 0, ErrPartialFrame
		}
		off += n
		frameType = ft
	}

	reasonLen, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n
	if uint64(off)+reasonLen > uint64(len(rest)) {
		return nil, 0, ErrPartialFrame
	}
	reason := string(rest[off : off+int(reasonLen)])
	off += int(reasonLen)

	return &ConnectionClose{
		IsApplication: isApplication,
		ErrorCode:     code,
		FrameType_:    frameType,
		Reason:        reason,
	}, 1 + off, nil
}
