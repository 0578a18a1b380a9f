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

// Encoder is the QPACK encoder-side state for one connection: the
// dynamic table it grows via encoder-stream instructions, and the
// header-block codec that references it.
type Encoder struct {
	table *DynamicTable
}

// NewEncoder creates an Encoder with the given initial dynamic table
// capacity (as negotiated by SETTINGS_QPACK_MAX_TABLE_CAPACITY).
func NewEncoder(capacity int) *Encoder {
	return &Encoder{table: NewDynamicTable(capacity)}
}

// Table exposes the encoder's dynamic table, mainly for tests and
// metrics.
func (e *Encoder) Table() *DynamicTable { return e.table }

// SetCapacity resizes the dynamic table and returns the Set Dynamic
// Table Capacity instruction to send on the encoder stream.
func (e *Encoder) SetCapacity(capacity int) ([]byte, error) {
	if err := e.table.SetCapacity(capacity); err != nil {
		return nil, err
	}
	return EncodeSetCapacity(uint64(capacity)), nil
}

// InsertWithoutNameReference inserts a brand-new (name, value) pair and
// returns the encoder-stream instruction bytes plus the entry's
// absolute index.
func (e *Encoder) InsertWithoutNameReference(name, value string) ([]byte, uint64, error) {
	idx, err := e.table.Insert(name, value)
	if err != nil {
		return nil, 0, err
	}
	return EncodeInsertWithoutNameReference(name, value), idx, nil
}

// InsertWithNameReference inserts (name, value) reusing an existing
// name (static if staticName, else the dynamic entry at nameIndex), and
// returns the instruction bytes plus the new entry's absolute index.
func (e *Encoder) InsertWithNameReference(staticName bool, nameIndex uint64, name, value string) ([]byte, uint64, error) {
	idx, err := e.table.Insert(name, value)
	if err != nil {
		return nil, 0, err
	}
	return EncodeInsertWithNameReference(staticName, nameIndex, value), idx, nil
}

// Duplicate re-inserts the entry at absoluteIndex and returns the
// instruction bytes plus the duplicate's new absolute index.
func (e *Encoder) Duplicate(absoluteIndex uint64) ([]byte, uint64, error) {
	newIdx, err := e.table.Duplicate(absoluteIndex)
	if err != nil {
		return nil, 0, err
	}
	return EncodeDuplicate(absoluteIndex), newIdx, nil
}

// OnInsertCountIncrement applies a decoder-stream Insert Count
// Increment instruction.
func (e *Encoder) OnInsertCountIncrement(increment uint64) {
	e.table.SetKnownReceivedCount(e.table.KnownReceivedCount() + increment)
}

// OnSectionAcknowledgement drops the references a previously encoded
// header block took, and raises KnownReceivedCount to that block's
// Required Insert Count if it is higher. referencedIndices is the set
// of dynamic-table entries that block referenced (tracked by the
// caller, typically the stream's send state).
func (e *Encoder) OnSectionAcknowledgement(referencedIndices []uint64) {
	var maxIdx uint64
	hasRef := false
	for _, idx := range referencedIndices {
		e.table.Unref(idx)
		if !hasRef || idx+1 > maxIdx {
			maxIdx, hasRef = idx+1, true
		}
	}
	if hasRef {
		e.table.SetKnownReceivedCount(maxIdx)
	}
}

// fieldPlanKind is which field line representation EncodeHeaderBlock's
// first pass chose for one header, before Base (and therefore any
// dynamic relative index) is known.
type fieldPlanKind int

const (
	planStaticIndexed fieldPlanKind = iota
	planDynamicIndexed
	planStaticNameRef
	planDynamicNameRef
	planLiteral
)

type fieldPlan struct {
	kind        fieldPlanKind
	idx         uint64 // static index, or dynamic absolute index
	name, value string
}

// EncodeHeaderBlock encodes headers against the encoder's current
// dynamic table state, preferring an exact static match, then an exact
// dynamic match, then a static name-only match, then a dynamic name-only
// match, and finally a fully literal field line. It returns the wire bytes (prefix + field lines)
// and the absolute dynamic-table indices it referenced, so the caller
// can later release them via OnSectionAcknowledgement.
//
// Encoding runs in two passes because Base (and so every dynamic
// entry's Base-relative wire index) isn't known until every header in
// the block has chosen its representation.
func (e *Encoder) EncodeHeaderBlock(headers []Header) (block []byte, referenced []uint64, err error) {
	plans := make([]fieldPlan, 0, len(headers))
	var requiredInsertCount uint64

	for _, h := range headers {
		if idx, match, ok := StaticFind(h.Name, h.Value); ok && match {
			plans = append(plans, fieldPlan{kind: planStaticIndexed, idx: idx})
			continue
		}

		if idx, match, ok := e.table.Find(h.Name, h.Value); ok && match {
			e.table.Ref(idx)
			referenced = append(referenced, idx)
			if idx+1 > requiredInsertCount {
				requiredInsertCount = idx + 1
			}
			plans = append(plans, fieldPlan{kind: planDynamicIndexed, idx: idx})
			continue
		}

		if idx, _, ok := StaticFind(h.Name, ""); ok {
			plans = append(plans, fieldPlan{kind: planStaticNameRef, idx: idx, value: h.Value})
			continue
		}

		if idx, _, ok := e.table.Find(h.Name, ""); ok {
			e.table.Ref(idx)
			referenced = append(referenced, idx)
			if idx+1 > requiredInsertCount {
				requiredInsertCount = idx + 1
			}
			plans = append(plans, fieldPlan{kind: planDynamicNameRef, idx: idx, value: h.Value})
			continue
		}

		plans = append(plans, fieldPlan{kind: planLiteral, name: h.Name, value: h.Value})
	}

	base := requiredInsertCount
	var lines []byte
	for _, p := range plans {
		switch p.kind {
		case planStaticIndexed:
			lines = append(lines, EncodeIndexedFieldLine(true, p.idx)...)
		case planDynamicIndexed:
			lines = append(lines, EncodeIndexedFieldLine(false, base-p.idx-1)...)
		case planStaticNameRef:
			lines = append(lines, EncodeLiteralFieldLineWithNameRef(true, p.idx, p.value)...)
		case planDynamicNameRef:
			lines = append(lines, EncodeLiteralFieldLineWithNameRef(false, base-p.idx-1, p.value)...)
		case planLiteral:
			lines = append(lines, EncodeLiteralFieldLineWithLiteralName(p.name, p.value)...)
		}
	}

	prefix := varint.EncodePrefixed(nil, 0x00, 8, encodeRequiredInsertCount(requiredInsertCount, e.table.MaxEntries()))
	sign, delta := encodeBase(base, requiredInsertCount)
	signBit := byte(0x00)
	if sign {
		signBit = 0x80
	}
	prefix = varint.EncodePrefixed(prefix, signBit, 7, delta)

	return append(prefix, lines...), referenced, nil
}
