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

package buffer

// Single is a fixed-window single-block buffer: one Chunk plus a
// [readPos, writePos] window. readPos <= writePos <= cap(chunk) always.
//
// Every operation clamps at capacity instead of growing or panicking;
// growth, if needed, is Multi's job.
type Single struct {
	chunk            *Chunk
	readPos, writePos int
}

// NewSingle wraps chunk in a Single buffer starting empty.
func NewSingle(chunk *Chunk) *Single {
	return &Single{chunk: chunk}
}

// Cap returns the total chunk capacity.
func (b *Single) Cap() int { return b.chunk.Cap() }

// Len returns the number of unread, written bytes.
func (b *Single) Len() int { return b.writePos - b.readPos }

// Writable returns remaining free capacity.
func (b *Single) Writable() int { return b.chunk.Cap() - b.writePos }

// Write copies as much of p as fits before the chunk fills and returns
// the number of bytes actually copied. It never tears: either the full
// prefix that fits is copied, or nothing is.
func (b *Single) Write(p []byte) int {
	n := copy(b.chunk.buf[b.writePos:], p)
	b.writePos += n
	return n
}

// Read copies up to len(out) unread bytes into out, advancing readPos.
func (b *Single) Read(out []byte) int {
	n := copy(out, b.chunk.buf[b.readPos:b.writePos])
	b.readPos += n
	return n
}

// Peek copies up to len(out) unread bytes into out without advancing
// readPos.
func (b *Single) Peek(out []byte) int {
	return copy(out, b.chunk.buf[b.readPos:b.writePos])
}

// MoveRead advances readPos by n, consuming bytes without copying them.
// n must be non-negative and no larger than the current unread length;
// replays/rollbacks are modeled by cloning a read-only Span, never by a
// negative move (spec.md §9 Open Questions).
func (b *Single) MoveRead(n int) int {
	if n < 0 {
		return 0
	}
	if n > b.Len() {
		n = b.Len()
	}
	b.readPos += n
	return n
}

// MoveWrite reserves n bytes of the writable region without copying into
// it (the caller writes directly into WritableSpan first). n must be
// non-negative.
func (b *Single) MoveWrite(n int) int {
	if n < 0 {
		return 0
	}
	if n > b.Writable() {
		n = b.Writable()
	}
	b.writePos += n
	return n
}

// WritableSpan returns a view over the free region a caller may write
// into directly before calling MoveWrite.
func (b *Single) WritableSpan() Span {
	return Span{chunk: b.chunk, start: b.writePos, end: b.chunk.Cap()}
}

// ReadableSpan returns a view over the unread, written region.
func (b *Single) ReadableSpan() Span {
	return Span{chunk: b.chunk, start: b.readPos, end: b.writePos}
}

// Reset rewinds the buffer to empty without releasing the chunk.
func (b *Single) Reset() {
	b.readPos, b.writePos = 0, 0
}
