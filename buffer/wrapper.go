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

// Encoder stages writes against a Single's writable span and only
// advances writePos when Commit is called, replacing the
// source's destructor-flush encode wrapper with an explicit commit.
type Encoder struct {
	target  *Single
	staged  int
	failed  bool
}

// NewEncoder wraps target for staged writes.
func NewEncoder(target *Single) *Encoder {
	return &Encoder{target: target}
}

// Put appends p to the staging area. It fails (and marks the encoder
// failed) if insufficient free bytes remain; once failed, further Put
// calls are no-ops until Reset.
func (e *Encoder) Put(p []byte) bool {
	if e.failed {
		return false
	}
	if e.target.Writable()-e.staged < len(p) {
		e.failed = true
		return false
	}
	span := e.target.WritableSpan()
	copy(span.Bytes()[e.staged:], p)
	e.staged += len(p)
	return true
}

// Ok reports whether every Put since construction or Reset succeeded.
func (e *Encoder) Ok() bool { return !e.failed }

// Commit advances the target's writePos by the staged length and
// returns whether the encoder had not failed.
func (e *Encoder) Commit() bool {
	if e.failed {
		e.Reset()
		return false
	}
	e.target.MoveWrite(e.staged)
	e.staged = 0
	return true
}

// Reset discards staged writes without committing them.
func (e *Encoder) Reset() {
	e.staged = 0
	e.failed = false
}

// Decoder mirrors Encoder for reads: advances are recorded in a shadow
// cursor and only applied to the target on Commit, so a decode attempt
// that runs out of bytes partway through can be rolled back cleanly by
// simply not calling Commit.
type Decoder struct {
	target  *Single
	cursor  int
}

// NewDecoder wraps target for a speculative decode.
func NewDecoder(target *Single) *Decoder {
	return &Decoder{target: target}
}

// Remaining returns the unread length still available to this decoder.
func (d *Decoder) Remaining() int {
	return d.target.Len() - d.cursor
}

// Take returns the next n bytes without committing the advance, or nil
// if fewer than n bytes remain (NeedMoreData).
func (d *Decoder) Take(n int) []byte {
	if n > d.Remaining() {
		return nil
	}
	span := d.target.ReadableSpan()
	b := span.Bytes()[d.cursor : d.cursor+n]
	d.cursor += n
	return b
}

// Commit advances the underlying Single's readPos by the cursor
// accumulated so far.
func (d *Decoder) Commit() {
	d.target.MoveRead(d.cursor)
	d.cursor = 0
}

// Rollback discards the speculative advance; the next Take call starts
// again from the target's unmodified readPos.
func (d *Decoder) Rollback() {
	d.cursor = 0
}
