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

// ResetStream abruptly terminates the sending part of a stream.
// FinalSize lets the recipient validate it against any previously
// observed offsets on that stream (spec.md §4.5).
type ResetStream struct {
	StreamID  uint64
	AppError  uint64
	FinalSize uint64
}

func (f *ResetStream) FrameType() Type { return TypeResetStream }
func (f *ResetStream) EvalSize() int {
	return 1 + varint.Len(f.StreamID) + varint.Len(f.AppError) + varint.Len(f.FinalSize)
}

func (f *ResetStream) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeResetStream))
	var err error
	for _, v := range []uint64{f.StreamID, f.AppError, f.FinalSize} {
		dst, err = varint.Encode(dst, v)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func decodeResetStream(rest []byte) (Frame, int, error) {
	sid, n1, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	appErr, n2, err := varint.Decode(rest[n1:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	finalSize, n3, err := varint.Decode(rest[n1+n2:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &ResetStream{StreamID: sid, AppError: appErr, FinalSize: finalSize}, 1 + n1 + n2 + n3, nil
}

// StopSending asks the peer to cease sending on a stream.
type StopSending struct {
	StreamID uint64
	AppError uint64
}

func (f *StopSending) FrameType() Type { return TypeStopSending }
func (f *StopSending) EvalSize() int {
	return 1 + varint.Len(f.StreamID) + varint.Len(f.AppError)
}

func (f *StopSending) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeStopSending))
	var err error
	dst, err = varint.Encode(dst, f.StreamID)
	if err != nil {
		return nil, err
	}
	return varint.Encode(dst, f.AppError)
}

func decodeStopSending(rest []byte) (Frame, int, error) {
	sid, n1, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	appErr, n2, err := varint.Decode(rest[n1:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &StopSending{StreamID: sid, AppError: appErr}, 1 + n1 + n2, nil
}
