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

package h3

import (
	"github.com/qtransport/quicd/buffer"
	"github.com/qtransport/quicd/varint"
)

// maxHeaderPeek covers the two leading varints (type, length) a frame
// header is made of; each is at most 8 bytes, so 16 always suffices.
const maxHeaderPeek = 16

// Decoder reassembles HTTP/3 frames off one stream's byte sequence,
// preserving whatever trailing partial frame remains across Feed calls
// (RFC 9114 §7.1: a frame's payload may be split across several QUIC
// STREAM frames, or even several datagrams).
type Decoder struct {
	buf *buffer.Multi
}

// NewDecoder creates a Decoder drawing scratch chunks from pool.
func NewDecoder(pool *buffer.Pool) *Decoder {
	return &Decoder{buf: buffer.NewMulti(pool)}
}

// Feed appends newly received stream bytes.
func (d *Decoder) Feed(b []byte) {
	d.buf.Write(b)
}

// peek copies up to n unread bytes into a scratch array without
// consuming them, so a header that turns out incomplete can be
// re-attempted once more bytes arrive.
func (d *Decoder) peek(n int) []byte {
	spans := d.buf.ReadableSpans(n)
	out := make([]byte, 0, n)
	for _, s := range spans {
		out = append(out, s.Bytes()...)
	}
	return out
}

// Next attempts to decode one frame off the front of the buffered
// bytes. Per spec.md §4.5 it returns {Success, NeedMoreData, Error}:
// NeedMoreData means the caller should Feed more bytes and retry, and
// must not be treated as a protocol violation.
func (d *Decoder) Next() (Frame, DecodeStatus, error) {
	avail := d.buf.Len()
	if avail == 0 {
		return Frame{}, StatusNeedMoreData, nil
	}

	peekN := avail
	if peekN > maxHeaderPeek {
		peekN = maxHeaderPeek
	}
	hdr := d.peek(peekN)

	typ, n1, err := varint.Decode(hdr)
	if err == varint.ErrNeedMoreData {
		return Frame{}, StatusNeedMoreData, nil
	} else if err != nil {
		return Frame{}, StatusError, err
	}

	length, n2, err := varint.Decode(hdr[n1:])
	if err == varint.ErrNeedMoreData {
		return Frame{}, StatusNeedMoreData, nil
	} else if err != nil {
		return Frame{}, StatusError, err
	}

	headerLen := n1 + n2
	if uint64(avail) < uint64(headerLen)+length {
		return Frame{}, StatusNeedMoreData, nil
	}

	d.buf.MoveRead(headerLen)
	payload := make([]byte, length)
	d.buf.Read(payload)

	return Frame{Type: FrameType(typ), Payload: payload}, StatusSuccess, nil
}

// Release returns every buffered chunk to its pool. Call once the
// stream the Decoder serves is closed or reset.
func (d *Decoder) Release() {
	d.buf.Release()
}
