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
	"github.com/qtransport/quicd/buffer"
	"github.com/qtransport/quicd/internal/bufpool"
)

// defaultChunkSize is the per-block size h3's frame decoder requests
// from its buffer.Pool.
const defaultChunkSize = 4096

// NewDefaultPool builds the production buffer.Pool for Decoder/
// ControlStream: bytebufferpool-backed via internal/bufpool, the same
// allocator the buffer package's chunk pool is designed around. Callers
// that already share a chunk pool across the connection (e.g. one also
// feeding L4's frame reassembly) should pass that pool to NewDecoder
// instead of calling this.
func NewDefaultPool() *buffer.Pool {
	return buffer.NewPool(bufpool.NewPooled(defaultChunkSize), defaultChunkSize)
}
