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

// NewConnectionID issues a connection ID the peer may use as a
// destination on future packets, together with its stateless reset
// token and a retirement watermark.
type NewConnectionID struct {
	SequenceNumber uint64
	RetirePriorTo  uint64
	ConnectionID   []byte
	ResetToken     [16]byte
}

func (f *NewConnectionID) FrameType() Type { return TypeNewConnectionID }
func (f *NewConnectionID) EvalSize() int {
	return 1 + varint.Len(f.SequenceNumber) + varint.Len(f.RetirePriorTo) + 1 + len(f.ConnectionID) + 16
}

func (f *NewConnectionID) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeNewConnectionID))
	var err error
	dst, err = varint.Encode(dst, f.SequenceNumber)
	if err != nil {
		return nil, err
	}
	dst, err = varint.Encode(dst, f.RetirePriorTo)
	if err != nil {
		return nil, err
	}
	dst = append(dst, byte(len(f.ConnectionID)))
	dst = append(dst, f.ConnectionID...)
	return append(dst, f.ResetToken[:]...), nil
}

func decodeNewConnectionID(rest []byte) (Frame, int, error) {
	seq, n1, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off := n1
	retirePriorTo, n2, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n2
	if off >= len(rest) {
		return nil, 0, ErrPartialFrame
	}
	cidLen := int(rest[off])
	off++
	if off+cidLen+16 > len(rest) {
		return nil, 0, ErrPartialFrame
	}
	cid := append([]byte(nil), rest[off:off+cidLen]...)
	off += cidLen
	var token [16]byte
	copy(token[:], rest[off:off+16])
	off += 16
	return &NewConnectionID{
		SequenceNumber: seq,
		RetirePriorTo:  retirePriorTo,
		ConnectionID:   cid,
		ResetToken:     token,
	}, 1 + off, nil
}

// RetireConnectionID asks the peer to stop using a connection ID it
// previously issued.
type RetireConnectionID struct{ SequenceNumber uint64 }

func (f *RetireConnectionID) FrameType() Type { return TypeRetireConnectionID }
func (f *RetireConnectionID) EvalSize() int   { return 1 + varint.Len(f.SequenceNumber) }
func (f *RetireConnectionID) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeRetireConnectionID))
	return varint.Encode(dst, f.SequenceNumber)
}
func decodeRetireConnectionID(rest []byte) (Frame, int, error) {
	seq, n, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &RetireConnectionID{SequenceNumber: seq}, 1 + n, nil
}
