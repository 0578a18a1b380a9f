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
	"github.com/qtransport/quicd/metrics"
	"github.com/qtransport/quicd/qpack"
)

// blockedBlock is one HEADERS frame payload a request stream handed us
// before the QPACK decoder's table had advanced far enough to resolve
// it (spec.md §5: "suspension point ... blocked on insertion-count
// prerequisites").
type blockedBlock struct {
	streamID uint64
	block    []byte
}

// DecodedHeaders pairs a request stream with the header block it was
// waiting on, once ApplyEncoderInstruction unblocks it.
type DecodedHeaders struct {
	StreamID uint64
	Headers  []qpack.Header
}

// HeaderDecoder is the request-stream side of QPACK: it decodes HEADERS
// frame payloads against a shared connection-wide qpack.Decoder, and
// queues blocks that arrive before their Required Insert Count is
// satisfiable, redriving them as encoder-stream instructions arrive.
type HeaderDecoder struct {
	qdec    *qpack.Decoder
	blocked []blockedBlock
}

// NewHeaderDecoder wraps a qpack.Decoder already wired to the
// connection's encoder stream.
func NewHeaderDecoder(qdec *qpack.Decoder) *HeaderDecoder {
	return &HeaderDecoder{qdec: qdec}
}

// DecodeHeaders attempts to decode block for streamID. If the decoder
// reports qpack.ErrBlockedOnInsertCount, the block is queued and
// DecodeHeaders returns (nil, false, nil); the caller should stop
// processing that stream until a later ApplyEncoderInstruction call
// reports it as unblocked.
func (d *HeaderDecoder) DecodeHeaders(streamID uint64, block []byte) ([]qpack.Header, bool, error) {
	headers, err := d.qdec.DecodeHeaderBlock(block)
	if err == qpack.ErrBlockedOnInsertCount {
		d.blocked = append(d.blocked, blockedBlock{streamID: streamID, block: block})
		metrics.QPACKBlockedStreams.Set(float64(len(d.blocked)))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return headers, true, nil
}

// ApplyEncoderInstruction applies one encoder-stream instruction to the
// shared table, then retries every still-queued header block; anything
// that now decodes cleanly is returned and dropped from the queue.
func (d *HeaderDecoder) ApplyEncoderInstruction(b []byte) (int, []DecodedHeaders, error) {
	n, err := d.qdec.ApplyEncoderInstruction(b)
	if err != nil {
		return 0, nil, err
	}

	var unblocked []DecodedHeaders
	remaining := d.blocked[:0]
	for _, bb := range d.blocked {
		headers, err := d.qdec.DecodeHeaderBlock(bb.block)
		switch {
		case err == qpack.ErrBlockedOnInsertCount:
			remaining = append(remaining, bb)
		case err != nil:
			return n, unblocked, err
		default:
			unblocked = append(unblocked, DecodedHeaders{StreamID: bb.streamID, Headers: headers})
		}
	}
	d.blocked = remaining
	metrics.QPACKBlockedStreams.Set(float64(len(d.blocked)))
	return n, unblocked, nil
}

// Blocked reports how many request streams are currently waiting on a
// Required Insert Count the table hasn't reached yet.
func (d *HeaderDecoder) Blocked() int { return len(d.blocked) }
