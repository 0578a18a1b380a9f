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

// MaxData raises the connection-level send credit.
type MaxData struct{ Maximum uint64 }

func (f *MaxData) FrameType() Type { return TypeMaxData }
func (f *MaxData) EvalSize() int   { return 1 + varint.Len(f.Maximum) }
func (f *MaxData) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeMaxData))
	return varint.Encode(dst, f.Maximum)
}
func decodeMaxData(rest []byte) (Frame, int, error) {
	v, n, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &MaxData{Maximum: v}, 1 + n, nil
}

// MaxStreamData raises the per-stream send credit.
type MaxStreamData struct {
	StreamID uint64
	Maximum  uint64
}

func (f *MaxStreamData) FrameType() Type { return TypeMaxStreamData }
func (f *MaxStreamData) EvalSize() int {
	return 1 + varint.Len(f.StreamID) + varint.Len(f.Maximum)
}
func (f *MaxStreamData) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeMaxStreamData))
	var err error
	dst, err = varint.Encode(dst, f.StreamID)
	if err != nil {
		return nil, err
	}
	return varint.Encode(dst, f.Maximum)
}
func decodeMaxStreamData(rest []byte) (Frame, int, error) {
	sid, n1, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	max, n2, err := varint.Decode(rest[n1:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &MaxStreamData{StreamID: sid, Maximum: max}, 1 + n1 + n2, nil
}

// MaxStreams raises the stream-count limit for one directionality.
type MaxStreams struct {
	Bidi           bool
	MaximumStreams uint64
}

func (f *MaxStreams) FrameType() Type {
	if f.Bidi {
		return TypeMaxStreamsBidi
	}
	return TypeMaxStreamsUni
}
func (f *MaxStreams) EvalSize() int { return 1 + varint.Len(f.MaximumStreams) }
func (f *MaxStreams) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(f.FrameType()))
	return varint.Encode(dst, f.MaximumStreams)
}
func decodeMaxStreams(bidi bool, rest []byte) (Frame, int, error) {
	v, n, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &MaxStreams{Bidi: bidi, MaximumStreams: v}, 1 + n, nil
}

// DataBlocked signals the sender is connection-flow-control limited.
type DataBlocked struct{ Limit uint64 }

func (f *DataBlocked) FrameType() Type { return TypeDataBlocked }
func (f *DataBlocked) EvalSize() int   { return 1 + varint.Len(f.Limit) }
func (f *DataBlocked) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeDataBlocked))
	return varint.Encode(dst, f.Limit)
}
func decodeDataBlocked(rest []byte) (Frame, int, error) {
	v, n, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &DataBlocked{Limit: v}, 1 + n, nil
}

// StreamDataBlocked signals the sender is stream-flow-control limited.
type StreamDataBlocked struct {
	StreamID uint64
	Limit    uint64
}

func (f *StreamDataBlocked) FrameType() Type { return TypeStreamDataBlocked }
func (f *StreamDataBlocked) EvalSize() int {
	return 1 + varint.Len(f.StreamID) + varint.Len(f.Limit)
}
func (f *StreamDataBlocked) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypeStreamDataBlocked))
	var err error
	dst, err = varint.Encode(dst, f.StreamID)
	if err != nil {
		return nil, err
	}
	return varint.Encode(dst, f.Limit)
}
func decodeStreamDataBlocked(rest []byte) (Frame, int, error) {
	sid, n1, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	limit, n2, err := varint.Decode(rest[n1:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &StreamDataBlocked{StreamID: sid, Limit: limit}, 1 + n1 + n2, nil
}

// StreamsBlocked signals the sender wanted to open more streams of one
// directionality than its peer-advertised limit allowed.
type StreamsBlocked struct {
	Bidi  bool
	Limit uint64
}

func (f *StreamsBlocked) FrameType() Type {
	if f.Bidi {
		return TypeStreamsBlockedBidi
	}
	return TypeStreamsBlockedUni
}
func (f *StreamsBlocked) EvalSize() int { return 1 + varint.Len(f.Limit) }
func (f *StreamsBlocked) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(f.FrameType()))
	return varint.Encode(dst, f.Limit)
}
func decodeStreamsBlocked(bidi bool, rest []byte) (Frame, int, error) {
	v, n, err := varint.Decode(rest)
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	return &StreamsBlocked{Bidi: bidi, Limit: v}, 1 + n, nil
}
