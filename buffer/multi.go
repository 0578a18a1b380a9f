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

// block is one record in a Multi's chunk queue: readPos <= writePos <=
// cap(chunk) is the per-record invariant; the Multi-level invariant
// (total readable length = sum of per-block readable lengths) follows
// from maintaining it on every block.
type block struct {
	chunk             *Chunk
	readPos, writePos int
}

func (r *block) readable() int  { return r.writePos - r.readPos }
func (r *block) writable() int  { return r.chunk.Cap() - r.writePos }

// Multi is a growable multi-block buffer backed by a Chunk Pool: writes
// that exceed the current tail block's capacity append a fresh chunk,
// and readable spans may cross block boundaries transparently.
type Multi struct {
	pool   *Pool
	blocks []*block
}

// NewMulti creates an empty Multi buffer drawing chunks from pool.
func NewMulti(pool *Pool) *Multi {
	return &Multi{pool: pool}
}

// Len returns the total unread byte length across every block.
func (m *Multi) Len() int {
	n := 0
	for _, r := range m.blocks {
		n += r.readable()
	}
	return n
}

func (m *Multi) tail() *block {
	if len(m.blocks) == 0 {
		return nil
	}
	return m.blocks[len(m.blocks)-1]
}

func (m *Multi) appendBlock() *block {
	r := &block{chunk: m.pool.Acquire()}
	m.blocks = append(m.blocks, r)
	return r
}

// Write appends all of p, growing by as many new chunks as needed. Multi
// never partially fails a write; it always returns len(p).
func (m *Multi) Write(p []byte) int {
	written := 0
	for len(p) > 0 {
		r := m.tail()
		if r == nil || r.writable() == 0 {
			r = m.appendBlock()
		}
		n := copy(r.chunk.buf[r.writePos:], p)
		r.writePos += n
		written += n
		p = p[n:]
	}
	return written
}

// Read copies up to len(out) unread bytes into out, advancing past fully
// consumed leading blocks and releasing their chunks back to the pool.
func (m *Multi) Read(out []byte) int {
	total := 0
	for total < len(out) && len(m.blocks) > 0 {
		r := m.blocks[0]
		n := copy(out[total:], r.chunk.buf[r.readPos:r.writePos])
		r.readPos += n
		total += n
		if r.readable() == 0 {
			r.chunk.release()
			m.blocks = m.blocks[1:]
		}
	}
	return total
}

// MoveRead advances the read cursor by n bytes without copying,
// releasing any block fully consumed in the process. n must be
// non-negative.
func (m *Multi) MoveRead(n int) int {
	if n < 0 {
		return 0
	}
	moved := 0
	for moved < n && len(m.blocks) > 0 {
		r := m.blocks[0]
		avail := r.readable()
		take := n - moved
		if take > avail {
			take = avail
		}
		r.readPos += take
		moved += take
		if r.readable() == 0 {
			r.chunk.release()
			m.blocks = m.blocks[1:]
		}
	}
	return moved
}

// ReadableSpans returns zero-copy Spans covering the first n unread
// bytes (or all of them, if n < 0), one per block crossed.
func (m *Multi) ReadableSpans(n int) []Span {
	if n < 0 {
		n = m.Len()
	}
	var spans []Span
	for _, r := range m.blocks {
		if n <= 0 {
			break
		}
		avail := r.readable()
		take := avail
		if take > n {
			take = n
		}
		spans = append(spans, Span{chunk: r.chunk, start: r.readPos, end: r.readPos + take})
		n -= take
	}
	return spans
}

// CloneReadable produces a shallow-copy Multi that references the same
// underlying chunks as m, limited to n unread bytes, and advances m's
// read cursor past those n bytes. This is how a received STREAM payload
// is split out of a datagram buffer without copying.
func (m *Multi) CloneReadable(n int) *Multi {
	clone := &Multi{pool: m.pool}
	remaining := n
	for remaining > 0 && len(m.blocks) > 0 {
		r := m.blocks[0]
		avail := r.readable()
		take := avail
		if take > remaining {
			take = avail
			if remaining < avail {
				take = remaining
			}
		}

		r.chunk.retain()
		clone.blocks = append(clone.blocks, &block{
			chunk:    r.chunk,
			readPos:  r.readPos,
			writePos: r.readPos + take,
		})

		r.readPos += take
		remaining -= take
		if r.readable() == 0 {
			r.chunk.release()
			m.blocks = m.blocks[1:]
		}
	}
	return clone
}

// Release drops every block's chunk reference; the Multi must not be
// used afterward.
func (m *Multi) Release() {
	for _, r := range m.blocks {
		r.chunk.release()
	}
	m.blocks = nil
}
