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

package qpack

import "github.com/qtransport/quicd/varint"

// ErrBlockedOnInsertCount is returned by Decoder.DecodeHeaderBlock when
// the block's Required Insert Count names dynamic-table entries this
// Decoder hasn't received yet. The caller (the HTTP/3 stream layer)
// queues the block and retries once ApplyEncoderInstruction has
// advanced the table far enough, per spec.md §5's "suspension point ...
// blocked on insertion-count prerequisites".
var ErrBlockedOnInsertCount = newError("header block blocked on required insert count")

// Decoder is the QPACK decoder-side state for one connection: the
// dynamic table grown by encoder-stream instructions arriving out of
// band, and the header-block codec that reads against it.
type Decoder struct {
	table *DynamicTable
}

// NewDecoder creates a Decoder with the given initial dynamic table
// capacity.
func NewDecoder(capacity int) *Decoder {
	return &Decoder{table: NewDynamicTable(capacity)}
}

// Table exposes the decoder's dynamic table, mainly for tests and
// metrics.
func (d *Decoder) Table() *DynamicTable { return d.table }

// ApplyEncoderInstruction decodes and applies one instruction off the
// front of b, returning the bytes consumed. It returns
// varint.ErrNeedMoreData if b holds an incomplete instruction.
func (d *Decoder) ApplyEncoderInstruction(b []byte) (int, error) {
	instr, n, err := DecodeEncoderInstruction(b)
	if err != nil {
		return 0, err
	}

	switch instr.Kind {
	case InstrSetCapacity:
		if err := d.table.SetCapacity(int(instr.Capacity)); err != nil {
			return 0, err
		}
	case InstrInsertWithName:
		name, ok := d.resolveName(instr.StaticName, instr.NameIndex)
		if !ok {
			return 0, newError("insert with name reference: index %d not present", instr.NameIndex)
		}
		if _, err := d.table.Insert(name, instr.Value); err != nil {
			return 0, err
		}
	case InstrInsertWithoutName:
		if _, err := d.table.Insert(instr.Name, instr.Value); err != nil {
			return 0, err
		}
	case InstrDuplicate:
		if _, err := d.table.Duplicate(instr.AbsoluteIndex); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (d *Decoder) resolveName(static bool, index uint64) (string, bool) {
	if static {
		e, ok := StaticGet(index)
		return e.Name, ok
	}
	name, _, ok := d.table.Get(index)
	return name, ok
}

// DecodeHeaderBlock decodes one complete header block (the Required
// Insert Count / Base prefix plus every field line). The caller must
// supply the entire block; HTTP/3's DATA/HEADERS framing already
// delineates its length, so there is no further "need more data" case
// once a full frame payload is in hand — but there is still the
// blocked-on-table-state case ErrBlockedOnInsertCount reports.
func (d *Decoder) DecodeHeaderBlock(b []byte) ([]Header, error) {
	encRIC, n1, err := varint.DecodePrefixed(b, 8)
	if err != nil {
		return nil, err
	}
	b = b[n1:]

	if len(b) == 0 {
		return nil, varint.ErrNeedMoreData
	}
	negative := b[0]&0x80 != 0
	delta, n2, err := varint.DecodePrefixed(b, 7)
	if err != nil {
		return nil, err
	}
	b = b[n2:]

	ric, err := decodeRequiredInsertCount(encRIC, d.table.MaxEntries(), d.table.InsertCount())
	if err != nil {
		return nil, err
	}
	if ric > d.table.InsertCount() {
		return nil, ErrBlockedOnInsertCount
	}

	base, err := decodeBase(ric, negative, delta)
	if err != nil {
		return nil, err
	}

	var headers []Header
	for len(b) > 0 {
		line, n, err := decodeFieldLine(b)
		if err != nil {
			return nil, err
		}
		b = b[n:]

		h, err := d.resolveFieldLine(line, base)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func (d *Decoder) resolveFieldLine(line decodedFieldLine, base uint64) (Header, error) {
	switch line.kind {
	case fieldIndexed:
		if line.static {
			e, ok := StaticGet(line.index)
			if !ok {
				return Header{}, newError("indexed field line: static index %d not present", line.index)
			}
			return Header{Name: e.Name, Value: e.Value}, nil
		}
		abs := base - line.index - 1
		name, value, ok := d.table.Get(abs)
		if !ok {
			return Header{}, newError("indexed field line: dynamic absolute index %d not present", abs)
		}
		return Header{Name: name, Value: value}, nil

	case fieldLiteralWithName:
		name, ok := "", false
		if line.static {
			e, found := StaticGet(line.index)
			name, ok = e.Name, found
		} else {
			abs := base - line.index - 1
			n, _, found := d.table.Get(abs)
			name, ok = n, found
		}
		if !ok {
			return Header{}, newError("literal field line with name reference: index %d not present", line.index)
		}
		return Header{Name: name, Value: line.value}, nil

	default: // fieldLiteralWithLiteralName
		return Header{Name: line.name, Value: line.value}, nil
	}
}
