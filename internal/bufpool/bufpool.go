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

// Package bufpool supplies the chunk allocator backing buffer.Pool.
//
// Pooled wraps bytebufferpool.Pool: get/put under contention is lock-free
// on the fast path and falls back to a fresh process allocation when the
// pool is empty, matching the "lock-free freelist... falls back to the
// process allocator" contract in the buffer-chunk-pool spec.
package bufpool

import (
	"github.com/valyala/bytebufferpool"
)

// Allocator hands out byte slices of a fixed chunk size and reclaims them.
type Allocator interface {
	Get() []byte
	Put(b []byte)
}

// Pooled is a bytebufferpool-backed Allocator.
type Pooled struct {
	chunkSize int
	pool      bytebufferpool.Pool
}

// NewPooled creates a Pooled allocator that serves chunkSize-byte slices.
func NewPooled(chunkSize int) *Pooled {
	return &Pooled{chunkSize: chunkSize}
}

func (p *Pooled) Get() []byte {
	bb := p.pool.Get()
	if cap(bb.B) < p.chunkSize {
		bb.B = make([]byte, p.chunkSize)
	}
	b := bb.B[:p.chunkSize]
	bytebufferpool.Put(bb)
	return b
}

func (p *Pooled) Put(b []byte) {
	// bytebufferpool buckets by size class internally; handing the slice
	// straight back through a throwaway ByteBuffer keeps one pool shared
	// across every chunk size a connection requests.
	p.pool.Put(&bytebufferpool.ByteBuffer{B: b[:0]})
}

// Direct allocates straight from the process allocator, for callers that
// skip pooling (small/short-lived workloads, or every chunk individually
// GC-tracked for debugging). No configuration option selects it; the
// module's own default pool (h3.NewDefaultPool) always uses Pooled.
type Direct struct {
	chunkSize int
}

// NewDirect creates a Direct allocator that serves chunkSize-byte slices.
func NewDirect(chunkSize int) *Direct {
	return &Direct{chunkSize: chunkSize}
}

func (d *Direct) Get() []byte    { return make([]byte, d.chunkSize) }
func (d *Direct) Put(_ []byte)   {}
