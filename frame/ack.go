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

// AckRange is one inclusive, closed interval of acknowledged packet
// numbers, [Smallest, Largest].
type AckRange struct {
	Smallest uint64
	Largest  uint64
}

// ECNCounts carries the three ECN codepoint counters an ACK_ECN frame
// reports (RFC 9000 §19.3.2).
type ECNCounts struct {
	ECT0, ECT1, ECNCE uint64
}

// Ack is both the ACK and ACK_ECN wire variants; ECN is nil unless the
// frame was decoded from (or is to be encoded as) type 0x03.
type Ack struct {
	LargestAcked uint64
	AckDelay     uint64 // raw wire value, not yet scaled by ack_delay_exponent
	Ranges       []AckRange
	ECN          *ECNCounts
}

func (f *Ack) FrameType() Type {
	if f.ECN != nil {
		return TypeAckECN
	}
	return TypeAck
}

func (f *Ack) EvalSize() int {
	n := 1 + varint.Len(f.LargestAcked) + varint.Len(f.AckDelay) + varint.Len(uint64(len(f.Ranges)-1))
	first := f.Ranges[0]
	n += varint.Len(first.Largest - first.Smallest)
	for i := 1; i < len(f.Ranges); i++ {
		gap := f.Ranges[i-1].Smallest - f.Ranges[i].Largest - 2
		n += varint.Len(gap) + varint.Len(f.Ranges[i].Largest-f.Ranges[i].Smallest)
	}
	if f.ECN != nil {
		n += varint.Len(f.ECN.ECT0) + varint.Len(f.ECN.ECT1) + varint.Len(f.ECN.ECNCE)
	}
	return n
}

func (f *Ack) Encode(dst []byte) ([]byte, error) {
	if len(f.Ranges) == 0 {
		return nil, newError("ack: at least one range required")
	}
	var err error
	dst = append(dst, byte(f.FrameType()))
	dst, err = varint.Encode(dst, f.LargestAcked)
	if err != nil {
		return nil, err
	}
	dst, err = varint.Encode(dst, f.AckDelay)
	if err != nil {
		return nil, err
	}
	dst, err = varint.Encode(dst, uint64(len(f.Ranges)-1))
	if err != nil {
		return nil, err
	}
	first := f.Ranges[0]
	dst, err = varint.Encode(dst, first.Largest-first.Smallest)
	if err != nil {
		return nil, err
	}
	prevSmallest := first.Smallest
	for i := 1; i < len(f.Ranges); i++ {
		r := f.Ranges[i]
		gap := prevSmallest - r.Largest - 2
		dst, err = varint.Encode(dst, gap)
		if err != nil {
			return nil, err
		}
		dst, err = varint.Encode(dst, r.Largest-r.Smallest)
		if err != nil {
			return nil, err
		}
		prevSmallest = r.Smallest
	}
	if f.ECN != nil {
		dst, err = varint.Encode(dst, f.ECN.ECT0)
		if err != nil {
			return nil, err
		}
		dst, err = varint.Encode(dst, f.ECN.ECT1)
		if err != nil {
			return nil, err
		}
		dst, err = varint.Encode(dst, f.ECN.ECNCE)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func decodeAck(typeByte byte, rest []byte) (Frame, int, error) {
	off := 0
	largest, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n

	delay, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n

	rangeCount, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n

	firstRangeLen, n, err := varint.Decode(rest[off:])
	if err != nil {
		return nil, 0, ErrPartialFrame
	}
	off += n
	if firstRangeLen > largest {
		return nil, 0, qerr.Transport(qerr.FrameEncodingError, "ack: first range underflows below zero")
	}

	f := &Ack{LargestAcked: largest, AckDelay: delay}
	smallest := largest - firstRangeLen
	f.Ranges = append(f.Ranges, AckRange{Smallest: smallest, Largest: largest})

	for i := uint64(0); i < rangeCount; i++ {
		gap, n, err := varint.Decode(rest[off:])
		if err != nil {
			return nil, 0, ErrPartialFrame
		}
		off += n
		rangeLen, n, err := varint.Decode(rest[off:])
		if err != nil {
			return nil, 0, ErrPartialFrame
		}
		off += n

		if gap+2 > smallest {
			return nil, 0, qerr.Transport(qerr.FrameEncodingError, "ack: range gap underflows below zero")
		}
		newLargest := smallest - gap - 2
		if rangeLen > newLargest {
			return nil, 0, qerr.Transport(qerr.FrameEncodingError, "ack: range underflows below zero")
		}
		newSmallest := newLargest - rangeLen
		f.Ranges = append(f.Ranges, AckRange{Smallest: newSmallest, Largest: newLargest})
		smallest = newSmallest
	}

	if typeByte == byte(TypeAckECN) {
		ect0, n, err := varint.Decode(rest[off:])
		if err != nil {
			return nil, 0, ErrPartialFrame
		}
		off += n
		ect1, n, err := varint.Decode(rest[off:])
		if err != nil {
			return nil, 0, ErrPartialFrame
		}
		off += n
		ce, n, err := varint.Decode(rest[off:])
		if err != nil {
			return nil, 0, ErrPartialFrame
		}
		off += n
		f.ECN = &ECNCounts{ECT0: ect0, ECT1: ect1, ECNCE: ce}
	}

	return f, 1 + off, nil
}
