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

// Span is a non-owning [start, end) view over a Chunk's bytes.
type Span struct {
	chunk      *Chunk
	start, end int
}

// Bytes returns the viewed slice. Valid only while the Span (or a Shared
// clone of it) is alive.
func (s Span) Bytes() []byte {
	if s.chunk == nil {
		return nil
	}
	return s.chunk.buf[s.start:s.end]
}

// Len returns the span's byte length.
func (s Span) Len() int { return s.end - s.start }

// Shared is a Span plus a strong handle on the underlying chunk: it
// guarantees the pointed-to bytes stay valid for the Shared value's own
// lifetime, independent of what the originating buffer does afterward,
// and it may be handed across goroutines freely (the chunk's refcount is
// atomic).
type Shared struct {
	Span
}

// NewShared retains chunk and returns a Shared view over [start, end).
func NewShared(chunk *Chunk, start, end int) Shared {
	chunk.retain()
	return Shared{Span{chunk: chunk, start: start, end: end}}
}

// Clone returns an independent strong reference over the same bytes.
func (s Shared) Clone() Shared {
	s.chunk.retain()
	return s
}

// Release drops this Shared's strong reference. A Shared must not be
// used after Release.
func (s Shared) Release() {
	if s.chunk != nil {
		s.chunk.release()
	}
}
