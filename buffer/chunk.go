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

// Package buffer implements the chunked read/write buffer machinery (L0):
// single-block and multi-block buffers, shared zero-copy spans, and the
// encode/decode wrappers incremental frame parsing builds on.
package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	return errors.Errorf("buffer: "+format, args...)
}

// DefaultChunkSize is the slab size a Pool hands out absent an override.
const DefaultChunkSize = 4096

// Allocator matches internal/bufpool.Allocator without importing it,
// keeping buffer free of a hard dependency on the pooling strategy.
type Allocator interface {
	Get() []byte
	Put(b []byte)
}

// Chunk owns one contiguous slab of memory. It is never copied by value;
// callers hold it behind a *Chunk, and release returns it to its Pool
// once the last reference to it drops.
type Chunk struct {
	pool *Pool
	buf  []byte
	refs int32
}

// Bytes returns the chunk's backing slice.
func (c *Chunk) Bytes() []byte { return c.buf }

// Cap returns the chunk's capacity.
func (c *Chunk) Cap() int { return len(c.buf) }

func (c *Chunk) retain() {
	atomic.AddInt32(&c.refs, 1)
}

// release drops one strong reference; on the last drop the chunk returns
// to its owning pool. A pool that has already been torn down (weak
// handle gone) is not an error: the chunk is simply left for GC, which is
// the "falls back to direct deallocation on a dead pool" strategy called
// for when re-architecting the C++ source's Buffer->Pool weak-backref
// graph (see DESIGN.md).
func (c *Chunk) release() {
	if atomic.AddInt32(&c.refs, -1) > 0 {
		return
	}
	if c.pool != nil {
		c.pool.put(c)
	}
}

// Pool is the chunk freelist. It is the strong root of the ownership
// graph: chunks hold a back-pointer to their pool, not the reverse, so a
// pool may always be torn down without leaving dangling strong cycles.
type Pool struct {
	mu        sync.Mutex
	free      []*Chunk
	alloc     Allocator
	chunkSize int
}

// NewPool constructs a chunk Pool of chunkSize-byte chunks, sourcing
// backing memory from alloc (typically internal/bufpool.Pooled).
func NewPool(alloc Allocator, chunkSize int) *Pool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Pool{alloc: alloc, chunkSize: chunkSize}
}

// ChunkSize returns the fixed slab size this pool hands out.
func (p *Pool) ChunkSize() int { return p.chunkSize }

// Acquire returns a Chunk with one strong reference already held.
func (p *Pool) Acquire() *Chunk {
	p.mu.Lock()
	n := len(p.free)
	if n > 0 {
		c := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		c.refs = 1
		return c
	}
	p.mu.Unlock()

	return &Chunk{
		pool: p,
		buf:  p.alloc.Get(),
		refs: 1,
	}
}

func (p *Pool) put(c *Chunk) {
	p.mu.Lock()
	p.free = append(p.free, c)
	p.mu.Unlock()
}
