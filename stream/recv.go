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

// Package stream implements the QUIC stream engine (L5): send-stream
// retransmit tracking, recv-stream gap-buffer reassembly, the
// bidirectional coupling of the two, and the double-buffered active-set
// scheduler.
package stream

import (
	"bytes"
	"sort"

	"github.com/qtransport/quicd/qerr"
)

// RecvState is the receive half of a stream's state machine (RFC 9000
// §3.2).
type RecvState int

const (
	RecvRecv RecvState = iota
	RecvSizeKnown
	RecvDataRecvd
	RecvResetRecvd
)

// pendingChunk is one contiguous, merged run of received bytes not yet
// handed to the application because it doesn't abut readOffset.
type pendingChunk struct {
	offset uint64
	data   []byte
}

func (c pendingChunk) end() uint64 { return c.offset + uint64(len(c.data)) }

// RecvStream reassembles out-of-order STREAM frame fragments into the
// contiguous application-visible byte sequence (spec.md §4.6).
type RecvStream struct {
	state      RecvState
	readOffset uint64
	pending    []pendingChunk
	finalSize  uint64
	haveFinal  bool
}

// NewRecvStream constructs an empty receive-side stream state machine.
func NewRecvStream() *RecvStream {
	return &RecvStream{state: RecvRecv}
}

func (s *RecvStream) State() RecvState { return s.state }

// Write inserts one STREAM frame's payload at offset, merging it with
// already-buffered out-of-order fragments. It returns the bytes that
// became newly contiguous (readable) as a result of this call — which
// may span multiple previously disjoint fragments in one call, and is
// nil if this write didn't extend the contiguous prefix (spec.md §8
// scenario 3: the reader callback fires exactly once, on whichever
// frame's arrival completes the gap, not on every frame).
func (s *RecvStream) Write(offset uint64, data []byte, fin bool) ([]byte, error) {
	if s.state == RecvResetRecvd {
		return nil, nil
	}
	end := offset + uint64(len(data))

	if fin {
		if s.haveFinal && s.finalSize != end {
			return nil, qerr.Transport(qerr.FinalSizeError, "stream: fin at offset %d conflicts with prior final size %d", end, s.finalSize)
		}
		s.finalSize = end
		s.haveFinal = true
		s.state = RecvSizeKnown
	}
	if s.haveFinal && end > s.finalSize {
		return nil, qerr.Transport(qerr.FinalSizeError, "stream: bytes up to %d exceed final size %d", end, s.finalSize)
	}

	if end <= s.readOffset {
		// Fully duplicate: idempotent no-op.
		return nil, s.maybeComplete()
	}
	if offset < s.readOffset {
		// Partially duplicate: trim the already-delivered prefix.
		trim := s.readOffset - offset
		offset += trim
		data = data[trim:]
	}
	if len(data) > 0 {
		if err := s.insert(pendingChunk{offset: offset, data: data}); err != nil {
			return nil, err
		}
	}

	newly := s.advance()
	if err := s.maybeComplete(); err != nil {
		return newly, err
	}
	return newly, nil
}

// insert merges chunk into the sorted pending list, validating that any
// overlap with an already-stored chunk is byte-for-byte identical
// (spec.md §4.6: "overlapping bytes must match").
func (s *RecvStream) insert(chunk pendingChunk) error {
	idx := sort.Search(len(s.pending), func(i int) bool { return s.pending[i].offset >= chunk.offset })
	s.pending = append(s.pending, pendingChunk{})
	copy(s.pending[idx+1:], s.pending[idx:])
	s.pending[idx] = chunk

	merged := s.pending[:0]
	for _, c := range s.pending {
		if len(merged) == 0 {
			merged = append(merged, c)
			continue
		}
		last := &merged[len(merged)-1]
		if c.offset > last.end() {
			merged = append(merged, c)
			continue
		}
		if c.end() <= last.end() {
			// Fully contained: verify the overlapping region matches.
			overlapStart := c.offset - last.offset
			if !bytes.Equal(last.data[overlapStart:overlapStart+uint64(len(c.data))], c.data) {
				return qerr.Transport(qerr.FinalSizeError, "stream: overlapping bytes at offset %d do not match", c.offset)
			}
			continue
		}
		overlapLen := last.end() - c.offset
		if overlapLen > 0 {
			if !bytes.Equal(last.data[uint64(len(last.data))-overlapLen:], c.data[:overlapLen]) {
				return qerr.Transport(qerr.FinalSizeError, "stream: overlapping bytes at offset %d do not match", c.offset)
			}
		}
		last.data = append(last.data, c.data[overlapLen:]...)
	}
	s.pending = merged
	return nil
}

// advance pops every pending chunk that abuts readOffset, returning
// their concatenated bytes and advancing readOffset past them.
func (s *RecvStream) advance() []byte {
	if len(s.pending) == 0 || s.pending[0].offset != s.readOffset {
		return nil
	}
	var out []byte
	i := 0
	for ; i < len(s.pending) && s.pending[i].offset == s.readOffset; i++ {
		out = append(out, s.pending[i].data...)
		s.readOffset += uint64(len(s.pending[i].data))
	}
	s.pending = s.pending[i:]
	return out
}

func (s *RecvStream) maybeComplete() error {
	if s.haveFinal && s.readOffset == s.finalSize && s.state != RecvDataRecvd {
		s.state = RecvDataRecvd
	}
	return nil
}

// ReadOffset returns how many contiguous bytes from the start of the
// stream have been delivered to the application so far.
func (s *RecvStream) ReadOffset() uint64 { return s.readOffset }

// FinalSize reports the stream's final size once known (FIN received).
func (s *RecvStream) FinalSize() (uint64, bool) { return s.finalSize, s.haveFinal }

// Reset transitions the stream to ResetRecvd, discarding any buffered
// out-of-order data.
func (s *RecvStream) Reset(finalSize uint64) {
	s.state = RecvResetRecvd
	s.finalSize = finalSize
	s.haveFinal = true
	s.pending = nil
}
